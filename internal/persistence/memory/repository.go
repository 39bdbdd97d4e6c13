// Package memory provides in-process repositories for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/schedule/internal/domain"
)

// ScheduleRepository stores schedules in memory.
type ScheduleRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.ScheduledActivity
	now    func() time.Time
}

// NewScheduleRepository constructs an empty ScheduleRepository.
func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{rows: make(map[int64]domain.ScheduledActivity), now: time.Now}
}

// Create implements domain.ScheduleRepository.
func (r *ScheduleRepository) Create(ctx context.Context, userID int64, schedule domain.NewSchedule) (*domain.ScheduledActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	row := domain.ScheduledActivity{
		ID:              r.nextID,
		UserID:          userID,
		ScheduledDate:   schedule.ScheduledDate,
		ScheduledTime:   schedule.ScheduledTime,
		ActivityType:    schedule.ActivityType,
		ActivityDetails: copyString(schedule.ActivityDetails),
		CreatedAt:       r.now().UTC(),
	}
	r.rows[row.ID] = row
	out := row
	out.ActivityDetails = copyString(row.ActivityDetails)
	return &out, nil
}

// MarkCompleted implements domain.ScheduleRepository. Like the postgres
// repository it reports a matched row even when the value is unchanged.
func (r *ScheduleRepository) MarkCompleted(ctx context.Context, userID, scheduleID int64, isCompleted bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[scheduleID]
	if !ok || row.UserID != userID {
		return 0, nil
	}
	row.IsCompleted = isCompleted
	r.rows[scheduleID] = row
	return 1, nil
}

// ListForDate implements domain.ScheduleRepository.
func (r *ScheduleRepository) ListForDate(ctx context.Context, userID int64, date string) ([]domain.ScheduledActivity, error) {
	return r.filter(func(row domain.ScheduledActivity) bool {
		return row.UserID == userID && row.ScheduledDate == date
	}), nil
}

// ListDue implements domain.ScheduleRepository.
func (r *ScheduleRepository) ListDue(ctx context.Context, now string) ([]domain.ScheduledActivity, error) {
	return r.filter(func(row domain.ScheduledActivity) bool {
		return !row.IsCompleted && row.SendTime() <= now
	}), nil
}

// GetByID implements domain.ScheduleRepository.
func (r *ScheduleRepository) GetByID(ctx context.Context, userID, scheduleID int64) (*domain.ScheduledActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[scheduleID]
	if !ok || row.UserID != userID {
		return nil, nil
	}
	row.ActivityDetails = copyString(row.ActivityDetails)
	return &row, nil
}

// ListForUser implements domain.ScheduleRepository.
func (r *ScheduleRepository) ListForUser(ctx context.Context, userID int64) ([]domain.ScheduledActivity, error) {
	return r.filter(func(row domain.ScheduledActivity) bool {
		return row.UserID == userID
	}), nil
}

// Delete implements domain.ScheduleRepository.
func (r *ScheduleRepository) Delete(ctx context.Context, userID, scheduleID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[scheduleID]
	if !ok || row.UserID != userID {
		return 0, nil
	}
	delete(r.rows, scheduleID)
	return 1, nil
}

// ListUpcoming implements domain.ScheduleRepository.
func (r *ScheduleRepository) ListUpcoming(ctx context.Context, userID int64, from, to string) ([]domain.ScheduledActivity, error) {
	return r.filter(func(row domain.ScheduledActivity) bool {
		at := row.SendTime()
		return row.UserID == userID && !row.IsCompleted && at >= from && at <= to
	}), nil
}

// WeeklyStats implements domain.ScheduleRepository.
func (r *ScheduleRepository) WeeklyStats(ctx context.Context, userID int64, weekStart, weekEnd string) ([]domain.TypeStats, error) {
	rows := r.filter(func(row domain.ScheduledActivity) bool {
		return row.UserID == userID && row.ScheduledDate >= weekStart && row.ScheduledDate <= weekEnd
	})

	byType := make(map[domain.ActivityType]*domain.TypeStats)
	for _, row := range rows {
		stats, ok := byType[row.ActivityType]
		if !ok {
			stats = &domain.TypeStats{ActivityType: row.ActivityType}
			byType[row.ActivityType] = stats
		}
		stats.TotalScheduled++
		if row.IsCompleted {
			stats.Completed++
		}
	}

	out := make([]domain.TypeStats, 0, len(byType))
	for _, t := range domain.ActivityTypes {
		if stats, ok := byType[t]; ok {
			out = append(out, *stats)
		}
	}
	return out, nil
}

// CompletedDays implements domain.ScheduleRepository.
func (r *ScheduleRepository) CompletedDays(ctx context.Context, userID int64, since string) (int, error) {
	rows := r.filter(func(row domain.ScheduledActivity) bool {
		return row.UserID == userID && row.IsCompleted && row.ScheduledDate >= since
	})
	days := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		days[row.ScheduledDate] = struct{}{}
	}
	return len(days), nil
}

// filter returns matching rows ordered by date, time, then id.
func (r *ScheduleRepository) filter(match func(domain.ScheduledActivity) bool) []domain.ScheduledActivity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ScheduledActivity, 0)
	for _, row := range r.rows {
		if match(row) {
			row.ActivityDetails = copyString(row.ActivityDetails)
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].SendTime(), out[j].SendTime(); a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NotificationRepository stores notifications in memory. It enforces the same
// (user_id, send_time, message, type) uniqueness as the postgres index.
type NotificationRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.Notification
	now    func() time.Time
}

// NewNotificationRepository constructs an empty NotificationRepository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{rows: make(map[int64]domain.Notification), now: time.Now}
}

// Insert implements domain.NotificationRepository.
func (r *NotificationRepository) Insert(ctx context.Context, userID int64, message, sendTime, notificationType string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.UserID == userID && row.SendTime == sendTime && row.Message == message && row.Type == notificationType {
			return nil, domain.ErrDuplicateNotification
		}
	}

	r.nextID++
	row := domain.Notification{
		ID:        r.nextID,
		UserID:    userID,
		Message:   message,
		SendTime:  sendTime,
		Type:      notificationType,
		CreatedAt: r.now().UTC(),
	}
	r.rows[row.ID] = row
	out := row
	return &out, nil
}

// ListDue implements domain.NotificationRepository.
func (r *NotificationRepository) ListDue(ctx context.Context, now string) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Notification, 0)
	for _, row := range r.rows {
		if !row.IsRead && row.SendTime <= now {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SendTime != out[j].SendTime {
			return out[i].SendTime < out[j].SendTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MarkRead implements domain.NotificationRepository. Unknown ids are ignored.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[notificationID]; ok {
		row.IsRead = true
		r.rows[notificationID] = row
	}
	return nil
}

// FindExisting implements domain.NotificationRepository.
func (r *NotificationRepository) FindExisting(ctx context.Context, userID int64, sendTime, message, notificationType string) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Notification
	for _, row := range r.rows {
		if row.UserID == userID && row.SendTime == sendTime && row.Message == message && row.Type == notificationType {
			if found == nil || row.ID < found.ID {
				match := row
				found = &match
			}
		}
	}
	return found, nil
}

// All returns every stored notification ordered by id.
func (r *NotificationRepository) All() []domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Notification, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
