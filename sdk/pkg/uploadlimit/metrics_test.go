package uploadlimit

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollectorRegister(t *testing.T) {
	c := NewPrometheusMetricsCollector("cosv5")
	reg := prometheus.NewRegistry()

	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg), "double registration is rejected")
}

func TestPrometheusCollectorRecords(t *testing.T) {
	c := NewPrometheusMetricsCollector("cosv5")
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))

	c.RecordAdmission(TierUser, false, ReasonMinuteLimit)
	c.RecordAdmission(TierUser, false, ReasonMinuteLimit)
	c.RecordSessionStarted(TierVIP)
	c.RecordSessionEnded(TierVIP, StatusCompleted, 3*time.Second)
	c.RecordQueueDepth(4)
	c.RecordActiveSessions(2)
	c.RecordReapedSessions(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		c.admissions.WithLabelValues("USER", "false", ReasonMinuteLimit)))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.sessionsStarted.WithLabelValues("VIP")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.sessionsEnded.WithLabelValues("VIP", "completed")))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.activeSessions))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.reapedSessions))
}

// recordingCollector captures events for behavioral assertions.
type recordingCollector struct {
	NoOpMetricsCollector
	admissions []string
	active     []int
	reaped     int
}

func (c *recordingCollector) RecordAdmission(tier Tier, allowed bool, reason string) {
	c.admissions = append(c.admissions, reason)
}

func (c *recordingCollector) RecordActiveSessions(count int) {
	c.active = append(c.active, count)
}

func (c *recordingCollector) RecordReapedSessions(count int) {
	c.reaped += count
}

func TestRegistryEmitsActiveSessionsGauge(t *testing.T) {
	rec := &recordingCollector{}
	// Long tick intervals keep the background tasks from interleaving their
	// own gauge updates with the ones under test.
	r := NewSessionRegistry(
		WithRegistryMetrics(rec),
		WithReaperInterval(time.Hour),
		WithHousekeeperInterval(time.Hour),
	)
	t.Cleanup(func() { _ = r.Close() })

	// The gauge must move immediately on create and end, not wait for the
	// next housekeeper tick.
	first := r.CreateSession("u1", TierUser, 2, mib, defaultTierQuotas()[TierUser], false)
	r.CreateSession("u1", TierUser, 2, mib, defaultTierQuotas()[TierUser], false)
	r.EndSession(first)

	require.GreaterOrEqual(t, len(rec.active), 3)
	assert.Equal(t, []int{1, 2, 1}, rec.active[:3])
}

func TestCheckerEmitsAdmissionMetrics(t *testing.T) {
	rec := &recordingCollector{}
	checker, registry, _ := newTestChecker(t, WithCheckerMetrics(rec))
	quota := defaultTierQuotas()[TierGuest]

	registry.CreateSession("g1", TierGuest, 1, mib, quota, false)

	checker.Check("g1", TierGuest, 1, mib) // denied on concurrency
	checker.Check("g2", TierGuest, 1, mib) // allowed

	require.Len(t, rec.admissions, 2)
	assert.Equal(t, ReasonMaxConcurrent, rec.admissions[0])
	assert.Empty(t, rec.admissions[1])
}
