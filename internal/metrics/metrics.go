// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	decisionsTotalCounter     *prometheus.CounterVec
	escalationsTotalCounter   prometheus.Counter
	notificationsTotalCounter *prometheus.CounterVec
	cacheInvalidationsCounter prometheus.Counter
	sweepDurationMetric       prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		decisionsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approval_decisions_total",
				Help: "Total number of recorded approval decisions by outcome.",
			},
			[]string{"entity_type", "decision"},
		)

		escalationsTotalCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "escalations_total",
				Help: "Total number of challenge escalations (manual and SLA-driven).",
			},
		)

		notificationsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Total number of notification delivery attempts by result.",
			},
			[]string{"result"},
		)

		cacheInvalidationsCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_invalidations_total",
				Help: "Total number of entity cache invalidations.",
			},
		)

		sweepDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "escalation_sweep_duration_seconds",
				Help:    "Duration of SLA escalation sweep passes in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			decisionsTotalCounter,
			escalationsTotalCounter,
			notificationsTotalCounter,
			cacheInvalidationsCounter,
			sweepDurationMetric,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, entityType := range []domain.EntityType{
			domain.EntityChallenge,
			domain.EntityPilot,
			domain.EntityProgram,
		} {
			for _, decision := range []domain.Decision{
				domain.DecisionApproved,
				domain.DecisionRejected,
			} {
				decisionsTotalCounter.WithLabelValues(string(entityType), string(decision))
			}
		}

		for _, result := range []string{"delivered", "failed"} {
			notificationsTotalCounter.WithLabelValues(result)
		}
	})
}

func IncDecision(entityType domain.EntityType, decision domain.Decision) {
	Init()
	decisionsTotalCounter.WithLabelValues(string(entityType), string(decision)).Inc()
}

func IncEscalation() {
	Init()
	escalationsTotalCounter.Inc()
}

func IncNotification(delivered bool) {
	Init()
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	notificationsTotalCounter.WithLabelValues(result).Inc()
}

func IncCacheInvalidation() {
	Init()
	cacheInvalidationsCounter.Inc()
}

func ObserveSweepDuration(d time.Duration) {
	Init()
	sweepDurationMetric.Observe(d.Seconds())
}
