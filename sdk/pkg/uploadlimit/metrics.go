package uploadlimit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector receives admission-control events. Implementations must
// be safe for concurrent use; collection must never block the admission
// path.
type MetricsCollector interface {
	// RecordAdmission records a Check verdict. reason is empty on allow.
	RecordAdmission(tier Tier, allowed bool, reason string)

	// RecordSessionStarted records a session entering the registry.
	RecordSessionStarted(tier Tier)

	// RecordSessionEnded records a session leaving the registry normally.
	RecordSessionEnded(tier Tier, status SessionStatus, duration time.Duration)

	// RecordQueueDepth records the priority queue depth.
	RecordQueueDepth(depth int)

	// RecordActiveSessions records the size of the active session map.
	RecordActiveSessions(count int)

	// RecordReapedSessions records sessions force-removed by the idle reaper.
	RecordReapedSessions(count int)
}

// NoOpMetricsCollector discards all events. It is the default collector.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordAdmission(tier Tier, allowed bool, reason string)              {}
func (NoOpMetricsCollector) RecordSessionStarted(tier Tier)                                      {}
func (NoOpMetricsCollector) RecordSessionEnded(tier Tier, status SessionStatus, d time.Duration) {}
func (NoOpMetricsCollector) RecordQueueDepth(depth int)                                          {}
func (NoOpMetricsCollector) RecordActiveSessions(count int)                                      {}
func (NoOpMetricsCollector) RecordReapedSessions(count int)                                      {}

// PrometheusMetricsCollector implements MetricsCollector with Prometheus
// primitives.
type PrometheusMetricsCollector struct {
	namespace string

	admissions      *prometheus.CounterVec
	sessionsStarted *prometheus.CounterVec
	sessionsEnded   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	activeSessions  prometheus.Gauge
	reapedSessions  prometheus.Counter
}

// NewPrometheusMetricsCollector creates the collector; call Register to
// attach it to a registry.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	c := &PrometheusMetricsCollector{namespace: namespace}

	c.admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_admissions_total",
			Help:      "Upload admission decisions",
		},
		[]string{"tier", "allowed", "reason"},
	)

	c.sessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_sessions_started_total",
			Help:      "Upload sessions created",
		},
		[]string{"tier"},
	)

	c.sessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_sessions_ended_total",
			Help:      "Upload sessions ended, by final status",
		},
		[]string{"tier", "status"},
	)

	c.sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_session_duration_seconds",
			Help:      "Upload session duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"tier"},
	)

	c.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upload_queue_depth",
		Help:      "Sessions currently in the priority queue",
	})

	c.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upload_active_sessions",
		Help:      "Sessions currently in the active map",
	})

	c.reapedSessions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_reaped_sessions_total",
		Help:      "Sessions force-removed by the idle reaper",
	})

	return c
}

// Register attaches all metrics to the given registerer.
func (c *PrometheusMetricsCollector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.admissions, c.sessionsStarted, c.sessionsEnded,
		c.sessionDuration, c.queueDepth, c.activeSessions, c.reapedSessions,
	} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *PrometheusMetricsCollector) RecordAdmission(tier Tier, allowed bool, reason string) {
	c.admissions.WithLabelValues(tier.String(), strconv.FormatBool(allowed), reason).Inc()
}

func (c *PrometheusMetricsCollector) RecordSessionStarted(tier Tier) {
	c.sessionsStarted.WithLabelValues(tier.String()).Inc()
}

func (c *PrometheusMetricsCollector) RecordSessionEnded(tier Tier, status SessionStatus, duration time.Duration) {
	c.sessionsEnded.WithLabelValues(tier.String(), status.String()).Inc()
	c.sessionDuration.WithLabelValues(tier.String()).Observe(duration.Seconds())
}

func (c *PrometheusMetricsCollector) RecordQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

func (c *PrometheusMetricsCollector) RecordActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

func (c *PrometheusMetricsCollector) RecordReapedSessions(count int) {
	c.reapedSessions.Add(float64(count))
}
