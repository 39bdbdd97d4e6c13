package domain

import (
	"fmt"
	"strings"
	"time"
)

// Wire layouts shared with the store. Times are local wall-clock values.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"
)

// ActivityType enumerates what can be scheduled.
type ActivityType string

const (
	ActivityExercise   ActivityType = "Exercise"
	ActivityMeal       ActivityType = "Meal"
	ActivityMeditation ActivityType = "Meditation"
	ActivitySleep      ActivityType = "Sleep"
)

// ActivityTypes lists the accepted values in display order.
var ActivityTypes = []ActivityType{ActivityExercise, ActivityMeal, ActivityMeditation, ActivitySleep}

// Valid reports whether t is one of the enumerated types. Matching is exact.
func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NotificationTypeReminder is the only notification type produced by this service.
const NotificationTypeReminder = "Reminder"

// ScheduledActivity is a row of user_schedules.
type ScheduledActivity struct {
	ID              int64        `json:"schedule_id"`
	UserID          int64        `json:"user_id"`
	ScheduledDate   string       `json:"scheduled_date"`
	ScheduledTime   string       `json:"scheduled_time"`
	ActivityType    ActivityType `json:"activity_type"`
	ActivityDetails *string      `json:"activity_details"`
	IsCompleted     bool         `json:"is_completed"`
	CreatedAt       time.Time    `json:"created_at"`
	Notes           string       `json:"notes"` // echoed on create; not stored
}

// Details returns the activity details or an empty string.
func (a ScheduledActivity) Details() string {
	if a.ActivityDetails == nil {
		return ""
	}
	return *a.ActivityDetails
}

// SendTime is the timestamp at which a reminder for the activity becomes due.
func (a ScheduledActivity) SendTime() string {
	return a.ScheduledDate + " " + a.ScheduledTime
}

// ReminderMessage renders the reminder text for the activity.
func (a ScheduledActivity) ReminderMessage() string {
	return ReminderMessage(a.ActivityType, a.Details(), a.ScheduledTime)
}

// ReminderMessage renders "Reminder: <type>[ (<details>)] at <time>".
func ReminderMessage(activityType ActivityType, details, scheduledTime string) string {
	var b strings.Builder
	b.WriteString("Reminder: ")
	b.WriteString(string(activityType))
	if details != "" {
		fmt.Fprintf(&b, " (%s)", details)
	}
	b.WriteString(" at ")
	b.WriteString(scheduledTime)
	return b.String()
}

// Notification is a row of notifications.
type Notification struct {
	ID        int64     `json:"notification_id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	SendTime  string    `json:"send_time"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSchedule is the validated payload handed to the schedule repository.
type NewSchedule struct {
	ScheduledDate   string
	ScheduledTime   string
	ActivityType    ActivityType
	ActivityDetails *string
}

// TypeStats aggregates one activity type over a week.
type TypeStats struct {
	ActivityType   ActivityType `json:"activity_type"`
	TotalScheduled int          `json:"total_scheduled"`
	Completed      int          `json:"completed"`
}

// ScheduleStats summarises the current week and the recent completion streak.
type ScheduleStats struct {
	WeekStart   string      `json:"week_start"`
	WeekEnd     string      `json:"week_end"`
	WeeklyStats []TypeStats `json:"weekly_stats"`
	StreakDays  int         `json:"streak_days"`
}

// FormatTimestamp renders t in the store timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a store timestamp in the local zone.
func ParseTimestamp(value string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, strings.TrimSpace(value), time.Local)
}
