package uploadlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEffectiveQuotaDefaults(t *testing.T) {
	p := NewTierConfigProvider()

	user := p.GetEffectiveQuota(TierUser)
	assert.Equal(t, 2, user.MaxConcurrentUploads)
	assert.Equal(t, 10, user.MaxFilesPerMinute)
	assert.Equal(t, 100, user.MaxFilesPerHour)
	assert.False(t, user.SkipExpensiveChecks)

	guest := p.GetEffectiveQuota(TierGuest)
	assert.Equal(t, 1, guest.MaxConcurrentUploads)
	assert.Equal(t, 3, guest.MaxFilesPerMinute)

	admin := p.GetEffectiveQuota(TierAdmin)
	assert.Equal(t, 10, admin.MaxConcurrentUploads)
	assert.True(t, admin.SkipExpensiveChecks)
}

func TestGetEffectiveQuotaUnknownTierFallsBack(t *testing.T) {
	p := NewTierConfigProvider()

	got := p.GetEffectiveQuota(Tier("PLATINUM"))
	want := p.GetEffectiveQuota(TierUser)
	assert.Equal(t, want, got)
}

func TestGetEffectiveQuotaVIPBonus(t *testing.T) {
	p := NewTierConfigProvider()

	base := defaultTierQuotas()[TierVIP]
	got := p.GetEffectiveQuota(TierVIP)

	// 4 * 1.5 = 6 concurrent, limits doubled, priority boosted by 1.
	assert.Equal(t, 6, got.MaxConcurrentUploads)
	assert.Equal(t, base.MaxFilesPerMinute*2, got.MaxFilesPerMinute)
	assert.Equal(t, base.MaxFilesPerHour*2, got.MaxFilesPerHour)
	assert.Equal(t, base.MaxBytesPerMinute*2, got.MaxBytesPerMinute)
	assert.Equal(t, base.MaxBytesPerHour*2, got.MaxBytesPerHour)
	assert.Equal(t, base.PriorityLevel+1, got.PriorityLevel)
	// The session timeout is never scaled.
	assert.Equal(t, base.SessionTimeout, got.SessionTimeout)
}

func TestGetEffectiveQuotaBonusNeverCompounds(t *testing.T) {
	p := NewTierConfigProvider()

	first := p.GetEffectiveQuota(TierVIP)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.GetEffectiveQuota(TierVIP))
	}
}

func TestGetEffectiveQuotaBonusIsMonotonic(t *testing.T) {
	p := NewTierConfigProvider()

	for _, tier := range []Tier{TierVIP, TierCreator} {
		base := defaultTierQuotas()[tier]
		got := p.GetEffectiveQuota(tier)

		assert.GreaterOrEqual(t, got.MaxConcurrentUploads, base.MaxConcurrentUploads, "tier %s", tier)
		assert.GreaterOrEqual(t, got.MaxFilesPerMinute, base.MaxFilesPerMinute, "tier %s", tier)
		assert.GreaterOrEqual(t, got.MaxFilesPerHour, base.MaxFilesPerHour, "tier %s", tier)
		assert.GreaterOrEqual(t, got.MaxBytesPerMinute, base.MaxBytesPerMinute, "tier %s", tier)
		assert.GreaterOrEqual(t, got.MaxBytesPerHour, base.MaxBytesPerHour, "tier %s", tier)
		assert.GreaterOrEqual(t, got.PriorityLevel, base.PriorityLevel, "tier %s", tier)
	}
}

func TestIsVIPEligible(t *testing.T) {
	p := NewTierConfigProvider()

	assert.True(t, p.IsVIPEligible(TierVIP))
	assert.True(t, p.IsVIPEligible(TierCreator))
	assert.False(t, p.IsVIPEligible(TierGuest))
	assert.False(t, p.IsVIPEligible(TierUser))
	assert.False(t, p.IsVIPEligible(TierAdmin))
}

func TestVIPBonusDisabledLeavesQuotaUntouched(t *testing.T) {
	p := NewTierConfigProvider(WithVIPBonus(VIPBonusRule{Enabled: false}))

	assert.Equal(t, defaultTierQuotas()[TierVIP], p.GetEffectiveQuota(TierVIP))
	assert.False(t, p.IsVIPEligible(TierVIP))
}

func TestUpdateTierQuotaMergesPatch(t *testing.T) {
	p := NewTierConfigProvider()

	conc := 5
	perMinute := 25
	err := p.UpdateTierQuota(TierUser, TierQuotaPatch{
		MaxConcurrentUploads: &conc,
		MaxFilesPerMinute:    &perMinute,
	})
	require.NoError(t, err)

	got := p.GetEffectiveQuota(TierUser)
	assert.Equal(t, 5, got.MaxConcurrentUploads)
	assert.Equal(t, 25, got.MaxFilesPerMinute)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100, got.MaxFilesPerHour)
}

func TestUpdateTierQuotaRejectsInvalidAndKeepsTable(t *testing.T) {
	p := NewTierConfigProvider()
	before := p.GetEffectiveQuota(TierUser)

	bad := -1
	err := p.UpdateTierQuota(TierUser, TierQuotaPatch{MaxConcurrentUploads: &bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxConcurrentUploads")

	assert.Equal(t, before, p.GetEffectiveQuota(TierUser))
}

func TestUpdateVIPBonusRejectsShrinkingMultipliers(t *testing.T) {
	p := NewTierConfigProvider()

	err := p.UpdateVIPBonus(VIPBonusRule{
		Enabled:               true,
		EligibleTiers:         []Tier{TierVIP},
		ConcurrencyMultiplier: 0.5,
		LimitMultiplier:       2,
	})
	require.Error(t, err)

	err = p.UpdateVIPBonus(VIPBonusRule{
		Enabled:               true,
		EligibleTiers:         []Tier{TierVIP},
		ConcurrencyMultiplier: 2,
		LimitMultiplier:       0.9,
	})
	require.Error(t, err)

	err = p.UpdateVIPBonus(VIPBonusRule{
		Enabled:               true,
		EligibleTiers:         []Tier{TierVIP},
		ConcurrencyMultiplier: 2,
		LimitMultiplier:       3,
		PriorityBoost:         2,
	})
	require.NoError(t, err)

	got := p.GetEffectiveQuota(TierVIP)
	base := defaultTierQuotas()[TierVIP]
	assert.Equal(t, base.MaxConcurrentUploads*2, got.MaxConcurrentUploads)
	assert.Equal(t, base.MaxFilesPerMinute*3, got.MaxFilesPerMinute)
	assert.Equal(t, base.PriorityLevel+2, got.PriorityLevel)
}

func TestValidateReportsEveryBadField(t *testing.T) {
	p := NewTierConfigProvider()

	errs := p.Validate(TierQuota{
		MaxConcurrentUploads: 0,
		MaxFilesPerMinute:    -3,
		MaxFilesPerHour:      10,
		MaxBytesPerMinute:    mib,
		MaxBytesPerHour:      gib,
		SessionTimeout:       time.Minute,
		BatchSize:            5,
		BatchInterval:        time.Second,
		PriorityLevel:        1,
	})
	require.Len(t, errs, 2)
	assert.ErrorContains(t, errs[0], "MaxConcurrentUploads")
	assert.ErrorContains(t, errs[1], "MaxFilesPerMinute")

	assert.Nil(t, p.Validate(defaultTierQuotas()[TierUser]))
}

func TestProviderOptionsSeedTable(t *testing.T) {
	custom := TierQuota{
		MaxConcurrentUploads: 3,
		MaxFilesPerMinute:    7,
		MaxFilesPerHour:      70,
		MaxBytesPerMinute:    10 * mib,
		MaxBytesPerHour:      100 * mib,
		SessionTimeout:       5 * time.Minute,
		BatchSize:            2,
		BatchInterval:        time.Second,
		PriorityLevel:        1,
	}
	p := NewTierConfigProvider(
		WithTierQuota(TierGuest, custom),
		WithVIPBonus(VIPBonusRule{Enabled: false}),
	)

	assert.Equal(t, custom, p.GetEffectiveQuota(TierGuest))
}
