// Package worker materialises reminder notifications for due schedules.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"example.com/schedule/internal/domain"
	"example.com/schedule/internal/logging"
)

// ErrTickInProgress is returned when a tick is requested while another one runs.
var ErrTickInProgress = errors.New("notification tick already in progress")

// TickResult summarises a single pass over due schedules.
type TickResult struct {
	Due     int
	Created int
	Skipped int
	Failed  int
}

// Option configures a NotificationWorker.
type Option func(*NotificationWorker)

// WithClock overrides the time source used for "now".
func WithClock(now func() time.Time) Option {
	return func(w *NotificationWorker) {
		w.now = now
	}
}

// WithInterval sets how often the worker ticks. Non-positive values keep the default.
func WithInterval(interval time.Duration) Option {
	return func(w *NotificationWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(w *NotificationWorker) {
		w.logger = logger
	}
}

// NotificationWorker periodically turns due, incomplete schedules into reminder notifications.
type NotificationWorker struct {
	schedules     domain.ScheduleRepository
	notifications domain.NotificationRepository
	interval      time.Duration
	now           func() time.Time
	logger        logrus.FieldLogger

	running atomic.Bool

	mu   sync.Mutex
	cron *cron.Cron
}

// NewNotificationWorker constructs a worker that ticks every minute by default.
func NewNotificationWorker(schedules domain.ScheduleRepository, notifications domain.NotificationRepository, opts ...Option) *NotificationWorker {
	w := &NotificationWorker{
		schedules:     schedules,
		notifications: notifications,
		interval:      time.Minute,
		now:           time.Now,
		logger:        logging.WithField("component", "notification_worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start schedules ticks in the background. Calling Start twice is a no-op.
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", w.interval)
	if _, err := c.AddFunc(spec, func() { w.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("schedule notification worker: %w", err)
	}
	c.Start()
	w.cron = c
	w.logger.WithField("interval", w.interval.String()).Info("notification worker started")
	return nil
}

// Stop halts scheduling and waits for a running tick to finish or ctx to expire.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop().Done()
	select {
	case <-done:
		w.logger.Info("notification worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.ProcessDueSchedules(ctx); err != nil {
		if errors.Is(err, ErrTickInProgress) {
			w.logger.Debug("previous notification tick still running; skipping")
			return
		}
		w.logger.WithError(err).Error("notification tick finished with errors")
	}
}

// ProcessDueSchedules creates one reminder per due, incomplete schedule that
// does not already have one. A failing row is logged and counted without
// aborting the rest of the batch; the returned error joins every row failure.
func (w *NotificationWorker) ProcessDueSchedules(ctx context.Context) (TickResult, error) {
	if !w.running.CompareAndSwap(false, true) {
		ticksSkippedCounter.Inc()
		return TickResult{}, ErrTickInProgress
	}
	defer w.running.Store(false)

	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	now := domain.FormatTimestamp(w.now())
	log := w.logger.WithFields(logrus.Fields{"tick_id": uuid.NewString(), "now": now})

	var result TickResult
	due, err := w.schedules.ListDue(ctx, now)
	if err != nil {
		tickFailuresCounter.Inc()
		return result, fmt.Errorf("list due schedules: %w", err)
	}
	result.Due = len(due)

	var errs []error
	for _, activity := range due {
		created, err := w.remind(ctx, activity)
		switch {
		case err != nil:
			result.Failed++
			remindersFailedCounter.Inc()
			errs = append(errs, fmt.Errorf("schedule %d: %w", activity.ID, err))
			log.WithError(err).WithField("schedule_id", activity.ID).Error("failed to create reminder")
		case created:
			result.Created++
			remindersCreatedCounter.Inc()
		default:
			result.Skipped++
			remindersSkippedCounter.Inc()
		}
	}

	log.WithFields(logrus.Fields{
		"due":     result.Due,
		"created": result.Created,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("notification tick complete")
	return result, errors.Join(errs...)
}

func (w *NotificationWorker) remind(ctx context.Context, activity domain.ScheduledActivity) (bool, error) {
	sendTime := activity.SendTime()
	message := activity.ReminderMessage()

	existing, err := w.notifications.FindExisting(ctx, activity.UserID, sendTime, message, domain.NotificationTypeReminder)
	if err != nil {
		return false, fmt.Errorf("find existing reminder: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	if _, err := w.notifications.Insert(ctx, activity.UserID, message, sendTime, domain.NotificationTypeReminder); err != nil {
		if errors.Is(err, domain.ErrDuplicateNotification) {
			return false, nil
		}
		return false, fmt.Errorf("insert reminder: %w", err)
	}
	return true, nil
}
