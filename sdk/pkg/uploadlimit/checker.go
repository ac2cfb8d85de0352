package uploadlimit

import (
	"time"

	"github.com/DiDuV5/cosv5-core/sdk/pkg/logger"
)

// Denial reasons. These are machine-readable contract values; callers
// branch on Decision.Allowed and surface Reason to users.
const (
	ReasonInvalidRequest = "invalid upload request"
	ReasonIntakeThrottle = "upload intake rate exceeded"
	ReasonMaxConcurrent  = "max concurrent uploads exceeded"
	ReasonMinuteLimit    = "per-minute upload limit exceeded"
	ReasonHourLimit      = "hourly upload limit exceeded"
)

// Decision is the admission verdict. A denial is a normal value, never an
// error; RetryAfterSeconds and EstimatedWaitSeconds are hints, not
// reservations.
type Decision struct {
	Allowed              bool           `json:"allowed"`
	Reason               string         `json:"reason,omitempty"`
	RetryAfterSeconds    int            `json:"retryAfterSeconds,omitempty"`
	EstimatedWaitSeconds int            `json:"estimatedWaitSeconds,omitempty"`
	BatchPlan            *BatchPlan     `json:"batchPlan,omitempty"`
	CurrentLimits        LimitsSnapshot `json:"currentLimits"`
}

// LimitsSnapshot is the user's current standing against the effective
// limits. It is returned on every branch, allow or deny, for UI feedback;
// it carries no decision logic of its own.
type LimitsSnapshot struct {
	ActiveSessions       int   `json:"activeSessions"`
	MaxConcurrentUploads int   `json:"maxConcurrentUploads"`
	MinuteFiles          int   `json:"minuteFiles"`
	MaxFilesPerMinute    int   `json:"maxFilesPerMinute"`
	MinuteBytes          int64 `json:"minuteBytes"`
	MaxBytesPerMinute    int64 `json:"maxBytesPerMinute"`
	HourFiles            int   `json:"hourFiles"`
	MaxFilesPerHour      int   `json:"maxFilesPerHour"`
	HourBytes            int64 `json:"hourBytes"`
	MaxBytesPerHour      int64 `json:"maxBytesPerHour"`
}

const (
	// prioritySpeedThreshold marks the priority level at which uploads are
	// assumed to move faster (dedicated lanes upstream).
	prioritySpeedThreshold = 4
	prioritySpeedFactor    = 0.8
)

// AdmissionChecker decides whether an upload may begin. It is stateless: it
// only reads the tier provider and the registry and never mutates either.
type AdmissionChecker struct {
	tiers    *TierConfigProvider
	registry *SessionRegistry
	intake   *IntakeLimiter
	metrics  MetricsCollector
	now      func() time.Time
}

// CheckerOption configures an AdmissionChecker.
type CheckerOption func(*AdmissionChecker)

// WithIntakeLimiter installs a process-wide intake throttle, checked before
// any per-user limit.
func WithIntakeLimiter(il *IntakeLimiter) CheckerOption {
	return func(c *AdmissionChecker) { c.intake = il }
}

// WithCheckerMetrics injects a metrics collector.
func WithCheckerMetrics(mc MetricsCollector) CheckerOption {
	return func(c *AdmissionChecker) { c.metrics = mc }
}

// WithCheckerClock overrides the checker's time source, for tests.
func WithCheckerClock(now func() time.Time) CheckerOption {
	return func(c *AdmissionChecker) { c.now = now }
}

// NewAdmissionChecker creates a checker reading from the given provider and
// registry.
func NewAdmissionChecker(tiers *TierConfigProvider, registry *SessionRegistry, opts ...CheckerOption) *AdmissionChecker {
	c := &AdmissionChecker{
		tiers:    tiers,
		registry: registry,
		metrics:  NoOpMetricsCollector{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the admission checks in order, short-circuiting on the first
// failure: concurrency, minute window, hour window. On success it returns
// the recommended batch plan. Every branch carries a LimitsSnapshot.
func (c *AdmissionChecker) Check(userID string, tier Tier, fileCount int, totalBytes int64) Decision {
	now := c.now()
	quota := c.tiers.GetEffectiveQuota(tier)

	active := c.registry.GetUserActiveSessions(userID)
	activeCount := 0
	for _, s := range active {
		if s.Status == StatusActive {
			activeCount++
		}
	}

	usage, ok := c.registry.GetUserUsage(userID)
	if !ok {
		usage = UserUsage{}.rotated(now)
	}

	snapshot := LimitsSnapshot{
		ActiveSessions:       activeCount,
		MaxConcurrentUploads: quota.MaxConcurrentUploads,
		MinuteFiles:          usage.Minute.Count,
		MaxFilesPerMinute:    quota.MaxFilesPerMinute,
		MinuteBytes:          usage.Minute.Bytes,
		MaxBytesPerMinute:    quota.MaxBytesPerMinute,
		HourFiles:            usage.Hour.Count,
		MaxFilesPerHour:      quota.MaxFilesPerHour,
		HourBytes:            usage.Hour.Bytes,
		MaxBytesPerHour:      quota.MaxBytesPerHour,
	}

	if fileCount < 1 || totalBytes < 0 {
		return c.deny(tier, Decision{
			Reason:        ReasonInvalidRequest,
			CurrentLimits: snapshot,
		})
	}

	if c.intake != nil && !c.intake.Allow() {
		return c.deny(tier, Decision{
			Reason:            ReasonIntakeThrottle,
			RetryAfterSeconds: 1,
			CurrentLimits:     snapshot,
		})
	}

	if activeCount >= quota.MaxConcurrentUploads {
		return c.deny(tier, Decision{
			Reason:            ReasonMaxConcurrent,
			RetryAfterSeconds: estimateSoonestFinish(active, now),
			CurrentLimits:     snapshot,
		})
	}

	if usage.Minute.Count+fileCount > quota.MaxFilesPerMinute ||
		usage.Minute.Bytes+totalBytes > quota.MaxBytesPerMinute {
		elapsed := int(now.Sub(usage.Minute.WindowStart) / time.Second)
		return c.deny(tier, Decision{
			Reason:               ReasonMinuteLimit,
			RetryAfterSeconds:    60,
			EstimatedWaitSeconds: 60 - elapsed,
			CurrentLimits:        snapshot,
		})
	}

	if usage.Hour.Count+fileCount > quota.MaxFilesPerHour ||
		usage.Hour.Bytes+totalBytes > quota.MaxBytesPerHour {
		elapsed := int(now.Sub(usage.Hour.WindowStart) / time.Second)
		return c.deny(tier, Decision{
			Reason:               ReasonHourLimit,
			RetryAfterSeconds:    3600,
			EstimatedWaitSeconds: 3600 - elapsed,
			CurrentLimits:        snapshot,
		})
	}

	plan := computeBatchPlan(fileCount, totalBytes, quota)
	c.metrics.RecordAdmission(tier, true, "")
	return Decision{
		Allowed:       true,
		BatchPlan:     &plan,
		CurrentLimits: snapshot,
	}
}

func (c *AdmissionChecker) deny(tier Tier, d Decision) Decision {
	c.metrics.RecordAdmission(tier, false, d.Reason)
	logger.Debugf("uploadlimit: admission denied (tier=%s reason=%q retryAfter=%ds)",
		tier, d.Reason, d.RetryAfterSeconds)
	return d
}

// estimateSoonestFinish estimates seconds until the soonest-finishing
// active session frees a concurrency slot: per session, remaining time is
// max(0, fileCount·300ms·speedFactor − elapsed) with a 0.8 speed factor for
// high-priority sessions; the minimum across sessions wins. Never below 1s.
func estimateSoonestFinish(active []UploadSession, now time.Time) int {
	best := -1
	for _, s := range active {
		if s.Status != StatusActive {
			continue
		}
		factor := 1.0
		if s.PriorityLevel >= prioritySpeedThreshold {
			factor = prioritySpeedFactor
		}
		estimated := time.Duration(float64(s.FileCount) * float64(baselinePerFileTime) * factor)
		remaining := estimated - now.Sub(s.StartTime)
		if remaining < 0 {
			remaining = 0
		}
		secs := int((remaining + time.Second - 1) / time.Second)
		if best < 0 || secs < best {
			best = secs
		}
	}
	if best < 1 {
		best = 1
	}
	return best
}
