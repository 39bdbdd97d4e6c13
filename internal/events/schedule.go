// Package events defines the payloads published through the schedule outbox.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types written to schedule_outbox.
const (
	TypeScheduleCreated           = "schedule.created"
	TypeScheduleCompletionChanged = "schedule.completion_changed"
	TypeReminderCreated           = "notification.reminder_created"
)

// Kafka topics the dispatcher publishes to.
const (
	TopicScheduleEvents     = "schedule_events"
	TopicNotificationEvents = "notification_events"
)

// TopicFor returns the topic an event type is routed to, or "" when unknown.
func TopicFor(eventType string) string {
	switch eventType {
	case TypeScheduleCreated, TypeScheduleCompletionChanged:
		return TopicScheduleEvents
	case TypeReminderCreated:
		return TopicNotificationEvents
	}
	return ""
}

// ScheduleCreated is emitted when an activity is scheduled.
type ScheduleCreated struct {
	ScheduleID      int64     `json:"schedule_id"`
	UserID          int64     `json:"user_id"`
	ScheduledDate   string    `json:"scheduled_date"`
	ScheduledTime   string    `json:"scheduled_time"`
	ActivityType    string    `json:"activity_type"`
	ActivityDetails *string   `json:"activity_details"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ScheduleCompletionChanged is emitted whenever the completion flag is written.
type ScheduleCompletionChanged struct {
	ScheduleID  int64     `json:"schedule_id"`
	UserID      int64     `json:"user_id"`
	IsCompleted bool      `json:"is_completed"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ReminderCreated is emitted when a reminder notification is materialised.
type ReminderCreated struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Message        string    `json:"message"`
	SendTime       string    `json:"send_time"`
	Type           string    `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Decode unmarshals payload into the struct registered for eventType.
func Decode(eventType string, payload []byte) (any, error) {
	var target any
	switch eventType {
	case TypeScheduleCreated:
		target = &ScheduleCreated{}
	case TypeScheduleCompletionChanged:
		target = &ScheduleCompletionChanged{}
	case TypeReminderCreated:
		target = &ReminderCreated{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return target, nil
}
