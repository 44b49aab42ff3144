// Package metrics provides Prometheus metrics for the guardian service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "guardian"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"method", "route"},
	)
)

// Assessment metrics
var (
	// AssessmentsTotal counts finished assessments by status and source.
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "total",
			Help:      "Assessments by terminal status and source",
		},
		[]string{"status", "source"},
	)

	// OracleDuration tracks inference oracle latency by outcome.
	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "duration_seconds",
			Help:      "Inference oracle call latency in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2, 3, 5, 8},
		},
		[]string{"provider", "outcome"},
	)

	// ConfidenceAdjustment tracks the validator delta applied to oracle confidence.
	ConfidenceAdjustment = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "confidence_adjustment",
			Help:      "Confidence delta applied by the validator",
			Buckets:   prometheus.LinearBuckets(-0.5, 0.1, 11),
		},
	)
)

// Emergency metrics
var (
	// EventsTotal counts emergency event decisions by priority and outcome.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emergency",
			Name:      "events_total",
			Help:      "Emergency decisions by priority, created or deduplicated",
		},
		[]string{"priority", "outcome"},
	)

	// EventTransitionsTotal counts lifecycle transitions.
	EventTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emergency",
			Name:      "transitions_total",
			Help:      "Emergency event status transitions",
		},
		[]string{"to"},
	)

	// OpenEvents is refreshed by the aggregator.
	OpenEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "emergency",
			Name:      "open_events",
			Help:      "Emergency events not yet resolved or cancelled",
		},
		[]string{"status"},
	)
)

// Notification metrics
var (
	// NotificationAttemptsTotal counts send attempts by channel and resulting status.
	NotificationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "attempts_total",
			Help:      "Notification send attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	// FanoutDuration tracks how long a notification fan-out took to return.
	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "fanout_duration_seconds",
			Help:      "Time until the notification fan-out returned to the caller",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 15},
		},
	)

	// ReceiptsTotal counts provider delivery receipts.
	ReceiptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "receipts_total",
			Help:      "Provider delivery receipts by status",
		},
		[]string{"status"},
	)
)

// Tracking metrics
var (
	// LocationSamplesTotal counts location writes by outcome.
	LocationSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "samples_total",
			Help:      "Location sample writes by outcome",
		},
		[]string{"outcome"},
	)

	// ExpiredRowsDeleted counts rows removed by the TTL sweeper.
	ExpiredRowsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "expired_rows_deleted_total",
			Help:      "Rows deleted by the retention sweeper",
		},
		[]string{"table"},
	)

	// ActiveIncidents is refreshed by the aggregator.
	ActiveIncidents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "active_incidents",
			Help:      "Incidents still accepting location samples",
		},
	)
)
