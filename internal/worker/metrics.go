package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	remindersCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schedule_service",
		Subsystem: "notification_worker",
		Name:      "reminders_created_total",
		Help:      "Number of reminder notifications created for due schedules.",
	})

	remindersSkippedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schedule_service",
		Subsystem: "notification_worker",
		Name:      "reminders_skipped_total",
		Help:      "Number of due schedules that already had a reminder.",
	})

	remindersFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schedule_service",
		Subsystem: "notification_worker",
		Name:      "reminders_failed_total",
		Help:      "Number of due schedules whose reminder could not be created.",
	})

	tickFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schedule_service",
		Subsystem: "notification_worker",
		Name:      "tick_failures_total",
		Help:      "Number of ticks that could not list due schedules.",
	})

	ticksSkippedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schedule_service",
		Subsystem: "notification_worker",
		Name:      "ticks_skipped_total",
		Help:      "Number of ticks skipped because the previous one was still running.",
	})

	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "schedule_service",
		Subsystem: "notification_worker",
		Name:      "tick_duration_seconds",
		Help:      "Time spent processing one batch of due schedules.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(remindersCreatedCounter, remindersSkippedCounter, remindersFailedCounter, tickFailuresCounter, ticksSkippedCounter, tickDuration)
}
