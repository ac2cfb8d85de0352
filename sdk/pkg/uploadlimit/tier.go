package uploadlimit

import (
	"strings"
	"time"
)

// Tier is a user's service level, the key into quota configuration.
type Tier string

const (
	TierGuest   Tier = "GUEST"
	TierUser    Tier = "USER"
	TierVIP     Tier = "VIP"
	TierCreator Tier = "CREATOR"
	TierAdmin   Tier = "ADMIN"
)

func (t Tier) String() string {
	return string(t)
}

// ParseTier maps a configuration string to a known tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierGuest:
		return TierGuest, true
	case TierUser:
		return TierUser, true
	case TierVIP:
		return TierVIP, true
	case TierCreator:
		return TierCreator, true
	case TierAdmin:
		return TierAdmin, true
	}
	return "", false
}

// TierQuota is the immutable per-tier quota template. Every numeric field
// must be positive; see TierConfigProvider.Validate.
type TierQuota struct {
	MaxConcurrentUploads int           `json:"maxConcurrentUploads" validate:"gt=0"`
	MaxFilesPerMinute    int           `json:"maxFilesPerMinute" validate:"gt=0"`
	MaxFilesPerHour      int           `json:"maxFilesPerHour" validate:"gt=0"`
	MaxBytesPerMinute    int64         `json:"maxBytesPerMinute" validate:"gt=0"`
	MaxBytesPerHour      int64         `json:"maxBytesPerHour" validate:"gt=0"`
	SessionTimeout       time.Duration `json:"sessionTimeout" validate:"gt=0"`
	BatchSize            int           `json:"batchSize" validate:"gt=0"`
	BatchInterval        time.Duration `json:"batchInterval" validate:"gt=0"`
	PriorityLevel        int           `json:"priorityLevel" validate:"gt=0"`

	// SkipExpensiveChecks is advisory to the surrounding upload pipeline
	// (content scanning lives outside this package); the admission
	// algorithm itself never reads it.
	SkipExpensiveChecks bool `json:"skipExpensiveChecks"`
}

// TierQuotaPatch is a partial quota update; nil fields keep the current
// value.
type TierQuotaPatch struct {
	MaxConcurrentUploads *int
	MaxFilesPerMinute    *int
	MaxFilesPerHour      *int
	MaxBytesPerMinute    *int64
	MaxBytesPerHour      *int64
	SessionTimeout       *time.Duration
	BatchSize            *int
	BatchInterval        *time.Duration
	PriorityLevel        *int
	SkipExpensiveChecks  *bool
}

func (p TierQuotaPatch) apply(q TierQuota) TierQuota {
	if p.MaxConcurrentUploads != nil {
		q.MaxConcurrentUploads = *p.MaxConcurrentUploads
	}
	if p.MaxFilesPerMinute != nil {
		q.MaxFilesPerMinute = *p.MaxFilesPerMinute
	}
	if p.MaxFilesPerHour != nil {
		q.MaxFilesPerHour = *p.MaxFilesPerHour
	}
	if p.MaxBytesPerMinute != nil {
		q.MaxBytesPerMinute = *p.MaxBytesPerMinute
	}
	if p.MaxBytesPerHour != nil {
		q.MaxBytesPerHour = *p.MaxBytesPerHour
	}
	if p.SessionTimeout != nil {
		q.SessionTimeout = *p.SessionTimeout
	}
	if p.BatchSize != nil {
		q.BatchSize = *p.BatchSize
	}
	if p.BatchInterval != nil {
		q.BatchInterval = *p.BatchInterval
	}
	if p.PriorityLevel != nil {
		q.PriorityLevel = *p.PriorityLevel
	}
	if p.SkipExpensiveChecks != nil {
		q.SkipExpensiveChecks = *p.SkipExpensiveChecks
	}
	return q
}

// VIPBonusRule boosts the quotas of eligible tiers. Applying the rule is
// part of GetEffectiveQuota and happens exactly once per lookup, so the
// bonus never compounds.
type VIPBonusRule struct {
	Enabled               bool    `json:"enabled"`
	EligibleTiers         []Tier  `json:"eligibleTiers"`
	ConcurrencyMultiplier float64 `json:"concurrencyMultiplier"`
	LimitMultiplier       float64 `json:"limitMultiplier"`
	PriorityBoost         int     `json:"priorityBoost"`
}

func (r VIPBonusRule) eligible(t Tier) bool {
	for _, e := range r.EligibleTiers {
		if e == t {
			return true
		}
	}
	return false
}

const (
	kib = int64(1) << 10
	mib = int64(1) << 20
	gib = int64(1) << 30
)

// defaultTierQuotas is the built-in quota table; configuration overrides
// individual fields per tier.
func defaultTierQuotas() map[Tier]TierQuota {
	return map[Tier]TierQuota{
		TierGuest: {
			MaxConcurrentUploads: 1,
			MaxFilesPerMinute:    3,
			MaxFilesPerHour:      20,
			MaxBytesPerMinute:    50 * mib,
			MaxBytesPerHour:      200 * mib,
			SessionTimeout:       10 * time.Minute,
			BatchSize:            3,
			BatchInterval:        2 * time.Second,
			PriorityLevel:        1,
		},
		TierUser: {
			MaxConcurrentUploads: 2,
			MaxFilesPerMinute:    10,
			MaxFilesPerHour:      100,
			MaxBytesPerMinute:    200 * mib,
			MaxBytesPerHour:      1 * gib,
			SessionTimeout:       30 * time.Minute,
			BatchSize:            5,
			BatchInterval:        time.Second,
			PriorityLevel:        2,
		},
		TierVIP: {
			MaxConcurrentUploads: 4,
			MaxFilesPerMinute:    30,
			MaxFilesPerHour:      300,
			MaxBytesPerMinute:    500 * mib,
			MaxBytesPerHour:      5 * gib,
			SessionTimeout:       time.Hour,
			BatchSize:            10,
			BatchInterval:        500 * time.Millisecond,
			PriorityLevel:        4,
		},
		TierCreator: {
			MaxConcurrentUploads: 6,
			MaxFilesPerMinute:    50,
			MaxFilesPerHour:      600,
			MaxBytesPerMinute:    1 * gib,
			MaxBytesPerHour:      10 * gib,
			SessionTimeout:       90 * time.Minute,
			BatchSize:            15,
			BatchInterval:        500 * time.Millisecond,
			PriorityLevel:        5,
			SkipExpensiveChecks:  true,
		},
		TierAdmin: {
			MaxConcurrentUploads: 10,
			MaxFilesPerMinute:    100,
			MaxFilesPerHour:      2000,
			MaxBytesPerMinute:    2 * gib,
			MaxBytesPerHour:      20 * gib,
			SessionTimeout:       2 * time.Hour,
			BatchSize:            20,
			BatchInterval:        200 * time.Millisecond,
			PriorityLevel:        6,
			SkipExpensiveChecks:  true,
		},
	}
}

func defaultVIPBonus() VIPBonusRule {
	return VIPBonusRule{
		Enabled:               true,
		EligibleTiers:         []Tier{TierVIP, TierCreator},
		ConcurrencyMultiplier: 1.5,
		LimitMultiplier:       2.0,
		PriorityBoost:         1,
	}
}
