// Package metrics provides Prometheus metrics for the planner:
// slot scans, reschedule outcomes, detector sweeps and notifications.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Scanning ───────────────────────────────────────────────────────────────

// SlotsFound tracks free slots returned per day scanned.
var SlotsFound = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dayplanner",
	Name:      "slots_found",
	Help:      "Free slots found per scanned day.",
	Buckets:   []float64{0, 1, 2, 5, 10, 20, 34},
})

// ─── Rescheduling ───────────────────────────────────────────────────────────

// RescheduleAttempts counts reschedule attempts by strategy and outcome
// (success, no_slot, invalid_duration, invalid_state, persistence, conflict).
var RescheduleAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dayplanner",
	Name:      "reschedule_attempts_total",
	Help:      "Total reschedule attempts by strategy and outcome.",
}, []string{"strategy", "outcome"})

// RescheduleLatency tracks the duration of one reschedule attempt.
var RescheduleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "dayplanner",
	Name:      "reschedule_latency_seconds",
	Help:      "Reschedule attempt duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
}, []string{"strategy"})

// RescheduledDayOffset tracks how many days ahead successful reschedules land.
var RescheduledDayOffset = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dayplanner",
	Name:      "rescheduled_day_offset",
	Help:      "Days between today and the accepted slot.",
	Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
})

// ─── Detector ───────────────────────────────────────────────────────────────

// DetectorActions counts what periodic sweeps did to tasks
// (notified, missed, rescheduled, failed, reminded, generated).
var DetectorActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dayplanner",
	Name:      "detector_actions_total",
	Help:      "Task actions taken by periodic sweeps.",
}, []string{"action"})

// SweepDuration tracks one full sweep.
var SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dayplanner",
	Name:      "sweep_duration_seconds",
	Help:      "Duration of a periodic sweep in seconds.",
	Buckets:   prometheus.DefBuckets,
})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsEmitted counts notifications delivered per sink and kind.
var NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dayplanner",
	Name:      "notifications_emitted_total",
	Help:      "Notifications delivered by sink and kind.",
}, []string{"sink", "kind"})

// NotificationErrors counts failed deliveries per sink.
var NotificationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dayplanner",
	Name:      "notification_errors_total",
	Help:      "Failed notification deliveries by sink.",
}, []string{"sink"})
