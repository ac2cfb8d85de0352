package uploadlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiDuV5/cosv5-core/sdk/config"
	jxtjson "github.com/DiDuV5/cosv5-core/sdk/pkg/json"
)

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	m := NewManager(append([]ManagerOption{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(func() { _ = m.Close() })
	return m, clock
}

func TestManagerUploadLifecycle(t *testing.T) {
	m, clock := newTestManager(t)

	d := m.Check("u1", TierUser, 10, 20*mib)
	require.True(t, d.Allowed)

	first := m.CreateSession("u1", TierUser, 10, 20*mib)
	require.NotEmpty(t, first)
	second := m.CreateSession("u1", TierUser, 2, mib)

	// USER allows two concurrent uploads; a third is denied.
	d = m.Check("u1", TierUser, 1, mib)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "concurrent")

	clock.Advance(30 * time.Second)
	m.UpdateProgress(first, 10, 20*mib)
	m.UpdateStatus(first, StatusCompleted)
	m.EndSession(first)

	usage, ok := m.GetUserUsage("u1")
	require.True(t, ok)
	assert.Equal(t, 10, usage.Minute.Count)

	sessions := m.GetUserActiveSessions("u1")
	require.Len(t, sessions, 1)
	assert.Equal(t, second, sessions[0].SessionID)

	// One slot is free again; the minute window (10/10) now gates instead.
	d = m.Check("u1", TierUser, 1, mib)
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonMinuteLimit, d.Reason)
}

func TestManagerVIPSessionCarriesBoostedPriority(t *testing.T) {
	m, _ := newTestManager(t)

	id := m.CreateSession("v1", TierVIP, 5, 10*mib)
	sessions := m.GetUserActiveSessions("v1")
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].SessionID)
	assert.True(t, sessions[0].IsVIP)
	// VIP base priority 4 plus the bonus boost.
	assert.Equal(t, 5, sessions[0].PriorityLevel)
}

func TestManagerQuotaAdministration(t *testing.T) {
	m, _ := newTestManager(t)

	conc := 7
	require.NoError(t, m.UpdateTierQuota(TierUser, TierQuotaPatch{MaxConcurrentUploads: &conc}))
	assert.Equal(t, 7, m.GetEffectiveQuota(TierUser).MaxConcurrentUploads)

	bad := 0
	require.Error(t, m.UpdateTierQuota(TierUser, TierQuotaPatch{BatchSize: &bad}))

	require.NoError(t, m.UpdateVIPBonus(VIPBonusRule{Enabled: false}))
	assert.False(t, m.IsVIPEligible(TierVIP))
}

func TestGenerateLimitReport(t *testing.T) {
	m, clock := newTestManager(t)

	done := m.CreateSession("u1", TierUser, 4, 8*mib)
	m.EndSession(done)

	id := m.CreateSession("u1", TierUser, 10, 10*mib)
	m.UpdateProgress(id, 5, 5*mib)

	rep := m.GenerateLimitReport("u1", TierUser)
	assert.Equal(t, clock.Now(), rep.GeneratedAt)
	assert.Equal(t, "u1", rep.UserID)
	assert.Equal(t, TierUser, rep.Tier)
	assert.False(t, rep.VIP)
	assert.Equal(t, 4, rep.Usage.Minute.Count)
	require.Len(t, rep.ActiveSessions, 1)
	assert.Equal(t, id, rep.ActiveSessions[0].SessionID)
	assert.Equal(t, 50, rep.ActiveSessions[0].Percent)

	text := rep.String()
	assert.Contains(t, text, "user u1")
	assert.Contains(t, text, "Minute window: 4/10 files")
	assert.Contains(t, text, id)

	raw, err := rep.ToJSON()
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, jxtjson.UnmarshalFromString(raw, &decoded))
	assert.Equal(t, rep.UserID, decoded.UserID)
	assert.Equal(t, rep.Usage, decoded.Usage)
}

func TestGenerateLimitReportUnknownUser(t *testing.T) {
	m, _ := newTestManager(t)

	rep := m.GenerateLimitReport("nobody", TierGuest)
	assert.Equal(t, 0, rep.Usage.Minute.Count)
	assert.Empty(t, rep.ActiveSessions)
	assert.Contains(t, rep.String(), "0/3 files")
}

func TestFromConfigOverridesDefaults(t *testing.T) {
	uc := &config.UploadConfig{
		Tiers: map[string]config.TierQuotaSetting{
			"user":    {MaxConcurrentUploads: 4, MaxFilesPerMinute: 20},
			"unknown": {MaxConcurrentUploads: 1},
		},
		VIPBonus: &config.VIPBonusSetting{
			Enabled:               true,
			EligibleTiers:         []string{"vip"},
			ConcurrencyMultiplier: 2,
			LimitMultiplier:       2,
			PriorityBoost:         1,
		},
		IdleSessionTimeout: 10 * time.Minute,
	}

	m, err := FromConfig(uc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	user := m.GetEffectiveQuota(TierUser)
	assert.Equal(t, 4, user.MaxConcurrentUploads)
	assert.Equal(t, 20, user.MaxFilesPerMinute)
	assert.Equal(t, 100, user.MaxFilesPerHour, "unset fields keep tier defaults")

	assert.True(t, m.IsVIPEligible(TierVIP))
	assert.False(t, m.IsVIPEligible(TierCreator), "config replaces the eligible set")
	assert.Equal(t, 8, m.GetEffectiveQuota(TierVIP).MaxConcurrentUploads)
}

func TestFromConfigRejectsInvalidQuota(t *testing.T) {
	uc := &config.UploadConfig{
		Tiers: map[string]config.TierQuotaSetting{
			"guest": {MaxConcurrentUploads: -1},
		},
	}

	_, err := FromConfig(uc)
	require.Error(t, err)
}

func TestFromConfigRejectsShrinkingVIPBonus(t *testing.T) {
	uc := &config.UploadConfig{
		VIPBonus: &config.VIPBonusSetting{
			Enabled:               true,
			EligibleTiers:         []string{"vip"},
			ConcurrencyMultiplier: 0.5,
			LimitMultiplier:       0.5,
		},
	}

	// A sub-1 multiplier would put eligible tiers below their base quota,
	// so construction must fail the same way UpdateVIPBonus does.
	_, err := FromConfig(uc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrencyMultiplier")
}

func TestFromConfigNil(t *testing.T) {
	m, err := FromConfig(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, 2, m.GetEffectiveQuota(TierUser).MaxConcurrentUploads)
}
