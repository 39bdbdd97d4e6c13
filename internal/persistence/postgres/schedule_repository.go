// Package postgres implements the schedule and notification repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/schedule/internal/domain"
	"example.com/schedule/internal/events"
	"example.com/schedule/internal/observability"
)

const scheduleColumns = `schedule_id, user_id, to_char(scheduled_date, 'YYYY-MM-DD'), to_char(scheduled_time, 'HH24:MI:SS'),
        activity_type::text, activity_details, is_completed, created_at`

// Option configures a repository.
type Option func(*options)

type options struct {
	publishEvents bool
}

// WithOutbox toggles recording of outbox events alongside each write.
func WithOutbox(enabled bool) Option {
	return func(o *options) {
		o.publishEvents = enabled
	}
}

func buildOptions(opts []Option) options {
	o := options{publishEvents: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ScheduleRepository provides Postgres-backed persistence for user_schedules.
// Every write is a single statement; outbox rows are appended by a CTE in the same statement.
type ScheduleRepository struct {
	pool *pgxpool.Pool
	opts options
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(pool *pgxpool.Pool, opts ...Option) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, opts: buildOptions(opts)}
}

// Create inserts an incomplete schedule and returns the stored row.
func (r *ScheduleRepository) Create(ctx context.Context, userID int64, schedule domain.NewSchedule) (*domain.ScheduledActivity, error) {
	const stmt = `WITH inserted AS (
            INSERT INTO user_schedules (user_id, scheduled_date, scheduled_time, activity_type, activity_details, is_completed)
            VALUES ($1, $2::date, $3::time, $4::activity_type, $5, FALSE)
            RETURNING *
        ), event AS (
            INSERT INTO schedule_outbox (user_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
            SELECT user_id, 'schedule', schedule_id, $6, $7, user_id::text,
                   jsonb_build_object(
                       'schedule_id', schedule_id,
                       'user_id', user_id,
                       'scheduled_date', to_char(scheduled_date, 'YYYY-MM-DD'),
                       'scheduled_time', to_char(scheduled_time, 'HH24:MI:SS'),
                       'activity_type', activity_type::text,
                       'activity_details', activity_details,
                       'occurred_at', created_at)
              FROM inserted
             WHERE $8::boolean
        )
        SELECT ` + scheduleColumns + ` FROM inserted`

	row := r.pool.QueryRow(ctx, stmt,
		userID,
		schedule.ScheduledDate,
		schedule.ScheduledTime,
		string(schedule.ActivityType),
		schedule.ActivityDetails,
		events.TypeScheduleCreated,
		events.TopicFor(events.TypeScheduleCreated),
		r.opts.publishEvents,
	)
	created, err := scanSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	observability.RecordSchedulePersisted(created.CreatedAt)
	return &created, nil
}

// MarkCompleted writes the completion flag and returns the number of rows matched.
// Zero means the schedule does not exist or is owned by someone else.
func (r *ScheduleRepository) MarkCompleted(ctx context.Context, userID, scheduleID int64, isCompleted bool) (int64, error) {
	const stmt = `WITH updated AS (
            UPDATE user_schedules SET is_completed = $3
             WHERE schedule_id = $1 AND user_id = $2
            RETURNING schedule_id, user_id, is_completed
        ), event AS (
            INSERT INTO schedule_outbox (user_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
            SELECT user_id, 'schedule', schedule_id, $4, $5, user_id::text,
                   jsonb_build_object(
                       'schedule_id', schedule_id,
                       'user_id', user_id,
                       'is_completed', is_completed,
                       'occurred_at', NOW())
              FROM updated
             WHERE $6::boolean
        )
        SELECT COUNT(*) FROM updated`

	var affected int64
	err := r.pool.QueryRow(ctx, stmt,
		scheduleID, userID, isCompleted,
		events.TypeScheduleCompletionChanged,
		events.TopicFor(events.TypeScheduleCompletionChanged),
		r.opts.publishEvents,
	).Scan(&affected)
	if err != nil {
		return 0, fmt.Errorf("update schedule %d: %w", scheduleID, err)
	}
	return affected, nil
}

// ListForDate returns the user's schedules on date ordered by time.
func (r *ScheduleRepository) ListForDate(ctx context.Context, userID int64, date string) ([]domain.ScheduledActivity, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM user_schedules
        WHERE user_id = $1 AND scheduled_date = $2::date
        ORDER BY scheduled_time ASC, schedule_id ASC`
	return r.list(ctx, query, userID, date)
}

// ListDue returns every incomplete schedule, across all users, whose date and time is at or before now.
func (r *ScheduleRepository) ListDue(ctx context.Context, now string) ([]domain.ScheduledActivity, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM user_schedules
        WHERE is_completed = FALSE AND (scheduled_date + scheduled_time) <= $1::timestamp
        ORDER BY scheduled_date ASC, scheduled_time ASC, schedule_id ASC`
	return r.list(ctx, query, now)
}

// GetByID fetches a schedule owned by userID. It returns nil when absent.
func (r *ScheduleRepository) GetByID(ctx context.Context, userID, scheduleID int64) (*domain.ScheduledActivity, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM user_schedules
        WHERE schedule_id = $1 AND user_id = $2`

	row, err := scanSchedule(r.pool.QueryRow(ctx, query, scheduleID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule %d: %w", scheduleID, err)
	}
	return &row, nil
}

// ListForUser returns every schedule of the user in chronological order.
func (r *ScheduleRepository) ListForUser(ctx context.Context, userID int64) ([]domain.ScheduledActivity, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM user_schedules
        WHERE user_id = $1
        ORDER BY scheduled_date ASC, scheduled_time ASC, schedule_id ASC`
	return r.list(ctx, query, userID)
}

// Delete removes a schedule owned by userID and returns the affected row count.
func (r *ScheduleRepository) Delete(ctx context.Context, userID, scheduleID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_schedules WHERE schedule_id = $1 AND user_id = $2`, scheduleID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete schedule %d: %w", scheduleID, err)
	}
	return tag.RowsAffected(), nil
}

// ListUpcoming returns incomplete schedules of the user between from and to inclusive.
func (r *ScheduleRepository) ListUpcoming(ctx context.Context, userID int64, from, to string) ([]domain.ScheduledActivity, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM user_schedules
        WHERE user_id = $1
          AND is_completed = FALSE
          AND (scheduled_date + scheduled_time) BETWEEN $2::timestamp AND $3::timestamp
        ORDER BY scheduled_date ASC, scheduled_time ASC, schedule_id ASC`
	return r.list(ctx, query, userID, from, to)
}

// WeeklyStats groups the user's schedules between weekStart and weekEnd by activity type.
func (r *ScheduleRepository) WeeklyStats(ctx context.Context, userID int64, weekStart, weekEnd string) ([]domain.TypeStats, error) {
	const query = `SELECT activity_type::text, COUNT(*), COUNT(*) FILTER (WHERE is_completed)
        FROM user_schedules
        WHERE user_id = $1 AND scheduled_date BETWEEN $2::date AND $3::date
        GROUP BY activity_type
        ORDER BY activity_type`

	rows, err := r.pool.Query(ctx, query, userID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("weekly stats: %w", err)
	}
	defer rows.Close()

	results := make([]domain.TypeStats, 0, len(domain.ActivityTypes))
	for rows.Next() {
		var stats domain.TypeStats
		var activityType string
		if err := rows.Scan(&activityType, &stats.TotalScheduled, &stats.Completed); err != nil {
			return nil, err
		}
		stats.ActivityType = domain.ActivityType(activityType)
		results = append(results, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// CompletedDays counts distinct dates since the given date with at least one completed schedule.
func (r *ScheduleRepository) CompletedDays(ctx context.Context, userID int64, since string) (int, error) {
	const query = `SELECT COUNT(DISTINCT scheduled_date)
        FROM user_schedules
        WHERE user_id = $1 AND is_completed = TRUE AND scheduled_date >= $2::date`

	var days int
	if err := r.pool.QueryRow(ctx, query, userID, since).Scan(&days); err != nil {
		return 0, fmt.Errorf("completed days: %w", err)
	}
	return days, nil
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]domain.ScheduledActivity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ScheduledActivity, 0)
	for rows.Next() {
		row, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanSchedule(row pgx.Row) (domain.ScheduledActivity, error) {
	var s domain.ScheduledActivity
	var activityType string
	if err := row.Scan(&s.ID, &s.UserID, &s.ScheduledDate, &s.ScheduledTime, &activityType, &s.ActivityDetails, &s.IsCompleted, &s.CreatedAt); err != nil {
		return domain.ScheduledActivity{}, err
	}
	s.ActivityType = domain.ActivityType(activityType)
	return s, nil
}
