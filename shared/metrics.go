package shared

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const metricsNamespace = "govdash"

// ServiceMetrics groups the Prometheus collectors of the aggregation layer.
type ServiceMetrics struct {
	CacheLookups       *prometheus.CounterVec
	CacheEntries       prometheus.Gauge
	Fallbacks          *prometheus.CounterVec
	UpstreamCalls      *prometheus.CounterVec
	UpstreamLatency    *prometheus.HistogramVec
	ValidationOutcomes *prometheus.CounterVec
}

// NewServiceMetrics creates the collectors and registers them on reg. A nil
// registerer leaves them unregistered, which tests rely on.
func NewServiceMetrics(reg prometheus.Registerer) *ServiceMetrics {
	m := &ServiceMetrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit or miss).",
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held by the cache.",
		}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Transitions from one backend to the next.",
		}, []string{"operation", "from", "to"}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Backend calls by outcome (ok, empty, error).",
		}, []string{"backend", "operation", "outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		ValidationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "metadata",
			Name:      "check_outcomes_total",
			Help:      "Metadata check outcomes by check and status.",
		}, []string{"check", "status"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.CacheLookups, m.CacheEntries, m.Fallbacks,
			m.UpstreamCalls, m.UpstreamLatency, m.ValidationOutcomes,
		} {
			if err := reg.Register(c); err != nil {
				logrus.WithField("component", "ServiceMetrics").WithError(err).Warn("Failed to register collector")
			}
		}
	}
	return m
}

// RecordCacheLookup counts one hit or miss.
func (m *ServiceMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordFallback counts one backend-to-backend transition.
func (m *ServiceMetrics) RecordFallback(operation, from, to string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(operation, from, to).Inc()
}

// RecordUpstreamCall counts one backend call and observes its latency.
func (m *ServiceMetrics) RecordUpstreamCall(backend, operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamCalls.WithLabelValues(backend, operation, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(backend, operation).Observe(seconds)
}

// RecordValidationOutcome counts one metadata check result.
func (m *ServiceMetrics) RecordValidationOutcome(check, status string) {
	if m == nil {
		return
	}
	m.ValidationOutcomes.WithLabelValues(check, status).Inc()
}

// RecordCacheSize sets the current entry count.
func (m *ServiceMetrics) RecordCacheSize(entries int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(entries))
}
