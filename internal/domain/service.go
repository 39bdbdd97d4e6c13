// Package domain defines scheduling and reminder business logic.
package domain

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ScheduleRepository captures persistence operations over user_schedules.
// Every per-schedule call is scoped by the owning user.
type ScheduleRepository interface {
	Create(ctx context.Context, userID int64, schedule NewSchedule) (*ScheduledActivity, error)
	MarkCompleted(ctx context.Context, userID, scheduleID int64, isCompleted bool) (int64, error)
	ListForDate(ctx context.Context, userID int64, date string) ([]ScheduledActivity, error)
	ListDue(ctx context.Context, now string) ([]ScheduledActivity, error)
	GetByID(ctx context.Context, userID, scheduleID int64) (*ScheduledActivity, error)
	ListForUser(ctx context.Context, userID int64) ([]ScheduledActivity, error)
	Delete(ctx context.Context, userID, scheduleID int64) (int64, error)
	ListUpcoming(ctx context.Context, userID int64, from, to string) ([]ScheduledActivity, error)
	WeeklyStats(ctx context.Context, userID int64, weekStart, weekEnd string) ([]TypeStats, error)
	CompletedDays(ctx context.Context, userID int64, since string) (int, error)
}

// NotificationRepository captures persistence operations over notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, userID int64, message, sendTime, notificationType string) (*Notification, error)
	ListDue(ctx context.Context, now string) ([]Notification, error)
	MarkRead(ctx context.Context, notificationID int64) error
	FindExisting(ctx context.Context, userID int64, sendTime, message, notificationType string) (*Notification, error)
}

const (
	defaultUpcomingWindow = time.Hour
	streakLookback        = 30 * 24 * time.Hour
)

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source used for "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates scheduling workflows.
type Service struct {
	schedules     ScheduleRepository
	notifications NotificationRepository
	validate      *validator.Validate
	now           func() time.Time
}

// NewService constructs a Service.
func NewService(schedules ScheduleRepository, notifications NotificationRepository, opts ...Option) *Service {
	s := &Service{
		schedules:     schedules,
		notifications: notifications,
		validate:      newValidator(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleInput is the payload accepted by ScheduleActivity.
type ScheduleInput struct {
	ScheduledDate   string `json:"scheduled_date" validate:"required"`
	ScheduledTime   string `json:"scheduled_time" validate:"required"`
	ActivityType    string `json:"activity_type" validate:"required,oneof=Exercise Meal Meditation Sleep"`
	ActivityDetails string `json:"activity_details"`
	Notes           string `json:"notes"`
	Notify          bool   `json:"notify"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ScheduleActivity validates and stores a new activity. When input.Notify is
// set a reminder is created immediately for the scheduled date and time.
// The two writes are independent: if the reminder insert fails the schedule
// stays stored and the error is returned. An existing identical reminder is
// not an error. Notes are echoed on the returned row and never persisted.
func (s *Service) ScheduleActivity(ctx context.Context, userID int64, input ScheduleInput) (*ScheduledActivity, error) {
	input.ScheduledDate = strings.TrimSpace(input.ScheduledDate)
	input.ScheduledTime = strings.TrimSpace(input.ScheduledTime)
	input.ActivityType = strings.TrimSpace(input.ActivityType)

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	date, err := normalizeDate(input.ScheduledDate)
	if err != nil {
		return nil, err
	}
	clock, err := normalizeTime(input.ScheduledTime)
	if err != nil {
		return nil, err
	}

	var details *string
	if d := strings.TrimSpace(input.ActivityDetails); d != "" {
		details = &d
	}

	created, err := s.schedules.Create(ctx, userID, NewSchedule{
		ScheduledDate:   date,
		ScheduledTime:   clock,
		ActivityType:    ActivityType(input.ActivityType),
		ActivityDetails: details,
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	created.Notes = strings.TrimSpace(input.Notes)

	if input.Notify {
		_, err := s.notifications.Insert(ctx, userID, created.ReminderMessage(), created.SendTime(), NotificationTypeReminder)
		if err != nil && !errors.Is(err, ErrDuplicateNotification) {
			return nil, fmt.Errorf("create reminder: %w", err)
		}
	}

	return created, nil
}

func (s *Service) validateInput(input ScheduleInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "Missing required field: %s", fe.Field())
	case "oneof":
		return invalid(fe.Field(), "Invalid activity_type. Allowed: %s", allowedTypes())
	}
	return invalid(fe.Field(), "%s failed %s validation", fe.Field(), fe.Tag())
}

func allowedTypes() string {
	names := make([]string, 0, len(ActivityTypes))
	for _, t := range ActivityTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func normalizeDate(value string) (string, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", invalid("scheduled_date", "scheduled_date must be formatted YYYY-MM-DD")
	}
	return parsed.Format(DateLayout), nil
}

func normalizeTime(value string) (string, error) {
	for _, layout := range []string{TimeLayout, "15:04"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(TimeLayout), nil
		}
	}
	return "", invalid("scheduled_time", "scheduled_time must be formatted HH:MM or HH:MM:SS")
}

// MarkCompleted sets the completion flag from a loosely typed value and returns the updated row.
func (s *Service) MarkCompleted(ctx context.Context, userID, scheduleID int64, raw any) (*ScheduledActivity, error) {
	isCompleted, err := ParseCompletion(raw)
	if err != nil {
		return nil, err
	}

	affected, err := s.schedules.MarkCompleted(ctx, userID, scheduleID, isCompleted)
	if err != nil {
		return nil, fmt.Errorf("mark schedule %d completed: %w", scheduleID, err)
	}
	if affected == 0 {
		return nil, ErrScheduleNotFound
	}
	return s.GetScheduleByID(ctx, userID, scheduleID)
}

// ToggleCompleted flips the completion flag of a schedule.
func (s *Service) ToggleCompleted(ctx context.Context, userID, scheduleID int64) (*ScheduledActivity, error) {
	current, err := s.schedules.GetByID(ctx, userID, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("get schedule %d: %w", scheduleID, err)
	}
	if current == nil {
		return nil, ErrScheduleNotFound
	}

	affected, err := s.schedules.MarkCompleted(ctx, userID, scheduleID, !current.IsCompleted)
	if err != nil {
		return nil, fmt.Errorf("toggle schedule %d: %w", scheduleID, err)
	}
	if affected == 0 {
		return nil, ErrToggleConflict
	}
	return s.GetScheduleByID(ctx, userID, scheduleID)
}

// GetScheduleByID fetches a schedule owned by userID.
func (s *Service) GetScheduleByID(ctx context.Context, userID, scheduleID int64) (*ScheduledActivity, error) {
	row, err := s.schedules.GetByID(ctx, userID, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("get schedule %d: %w", scheduleID, err)
	}
	if row == nil {
		return nil, ErrScheduleNotFound
	}
	return row, nil
}

// ListSchedulesForDate returns the user's schedules on date ordered by time.
func (s *Service) ListSchedulesForDate(ctx context.Context, userID int64, date string) ([]ScheduledActivity, error) {
	normalized, err := normalizeDate(strings.TrimSpace(date))
	if err != nil {
		return nil, err
	}
	return s.schedules.ListForDate(ctx, userID, normalized)
}

// ListSchedules returns every schedule of the user in chronological order.
func (s *Service) ListSchedules(ctx context.Context, userID int64) ([]ScheduledActivity, error) {
	return s.schedules.ListForUser(ctx, userID)
}

// DeleteSchedule removes a schedule owned by userID.
func (s *Service) DeleteSchedule(ctx context.Context, userID, scheduleID int64) error {
	affected, err := s.schedules.Delete(ctx, userID, scheduleID)
	if err != nil {
		return fmt.Errorf("delete schedule %d: %w", scheduleID, err)
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ListUpcoming returns incomplete schedules starting within window from now.
// A non-positive window falls back to one hour.
func (s *Service) ListUpcoming(ctx context.Context, userID int64, window time.Duration) ([]ScheduledActivity, error) {
	if window <= 0 {
		window = defaultUpcomingWindow
	}
	now := s.now()
	return s.schedules.ListUpcoming(ctx, userID, FormatTimestamp(now), FormatTimestamp(now.Add(window)))
}

// Stats summarises the current Monday-to-Sunday week and the 30 day completion streak.
func (s *Service) Stats(ctx context.Context, userID int64) (*ScheduleStats, error) {
	now := s.now()
	start := weekStart(now)
	end := start.AddDate(0, 0, 6)

	weekly, err := s.schedules.WeeklyStats(ctx, userID, start.Format(DateLayout), end.Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("weekly stats: %w", err)
	}
	streak, err := s.schedules.CompletedDays(ctx, userID, now.Add(-streakLookback).Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("completed days: %w", err)
	}
	if weekly == nil {
		weekly = []TypeStats{}
	}
	return &ScheduleStats{
		WeekStart:   start.Format(DateLayout),
		WeekEnd:     end.Format(DateLayout),
		WeeklyStats: weekly,
		StreakDays:  streak,
	}, nil
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ListDueNotifications returns unread notifications due at or before now.
// An empty now uses the service clock. Both the store layout and RFC 3339 are accepted.
func (s *Service) ListDueNotifications(ctx context.Context, now string) ([]Notification, error) {
	ts, err := s.resolveNow(now)
	if err != nil {
		return nil, err
	}
	return s.notifications.ListDue(ctx, ts)
}

func (s *Service) resolveNow(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FormatTimestamp(s.now()), nil
	}
	if parsed, err := ParseTimestamp(raw); err == nil {
		return FormatTimestamp(parsed), nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return FormatTimestamp(parsed.In(time.Local)), nil
	}
	return "", invalid("now", "now must be formatted YYYY-MM-DD HH:MM:SS")
}

// MarkNotificationRead flags a notification as read. rawID must be an integer.
func (s *Service) MarkNotificationRead(ctx context.Context, rawID string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return invalid("notification_id", "Invalid notification id. It must be a number.")
	}
	if err := s.notifications.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}
