package uploadlimit

import (
	"time"

	"github.com/DiDuV5/cosv5-core/sdk/config"
	"github.com/DiDuV5/cosv5-core/sdk/pkg/logger"
)

// Manager is the composition root for the admission-control core. It owns
// the provider, the registry and the checker, and exposes the library's
// public surface. Construct one per process (never a global) and Close it
// on shutdown.
type Manager struct {
	tiers    *TierConfigProvider
	registry *SessionRegistry
	checker  *AdmissionChecker
}

type managerConfig struct {
	providerOpts []ProviderOption
	registryOpts []RegistryOption
	checkerOpts  []CheckerOption
	metrics      MetricsCollector
	clock        func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// WithProviderOptions forwards options to the tier provider.
func WithProviderOptions(opts ...ProviderOption) ManagerOption {
	return func(c *managerConfig) { c.providerOpts = append(c.providerOpts, opts...) }
}

// WithRegistryOptions forwards options to the session registry.
func WithRegistryOptions(opts ...RegistryOption) ManagerOption {
	return func(c *managerConfig) { c.registryOpts = append(c.registryOpts, opts...) }
}

// WithIntakeLimit installs a process-wide intake throttle.
func WithIntakeLimit(cfg IntakeLimitConfig) ManagerOption {
	return func(c *managerConfig) {
		c.checkerOpts = append(c.checkerOpts, WithIntakeLimiter(NewIntakeLimiter(cfg)))
	}
}

// WithMetrics injects a metrics collector into both the registry and the
// checker.
func WithMetrics(mc MetricsCollector) ManagerOption {
	return func(c *managerConfig) { c.metrics = mc }
}

// WithClock overrides the time source of every component, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(c *managerConfig) { c.clock = now }
}

// NewManager builds the three components and starts the registry's
// background tasks.
func NewManager(opts ...ManagerOption) *Manager {
	cfg := &managerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.metrics != nil {
		cfg.registryOpts = append(cfg.registryOpts, WithRegistryMetrics(cfg.metrics))
		cfg.checkerOpts = append(cfg.checkerOpts, WithCheckerMetrics(cfg.metrics))
	}
	if cfg.clock != nil {
		cfg.registryOpts = append(cfg.registryOpts, WithRegistryClock(cfg.clock))
		cfg.checkerOpts = append(cfg.checkerOpts, WithCheckerClock(cfg.clock))
	}

	tiers := NewTierConfigProvider(cfg.providerOpts...)
	registry := NewSessionRegistry(cfg.registryOpts...)
	checker := NewAdmissionChecker(tiers, registry, cfg.checkerOpts...)

	return &Manager{
		tiers:    tiers,
		registry: registry,
		checker:  checker,
	}
}

// FromConfig builds a Manager from the upload section of the application
// configuration. Unknown tier names are skipped with a warning; invalid
// quota values fail construction.
func FromConfig(uc *config.UploadConfig) (*Manager, error) {
	if uc == nil {
		return NewManager(), nil
	}
	uc.ApplyDefaults()

	var opts []ManagerOption

	defaults := defaultTierQuotas()
	var providerOpts []ProviderOption
	for name, setting := range uc.Tiers {
		tier, ok := ParseTier(name)
		if !ok {
			logger.Warnf("uploadlimit: skipping unknown tier %q in configuration", name)
			continue
		}
		providerOpts = append(providerOpts, WithTierQuota(tier, quotaFromSetting(defaults[tier], setting)))
	}
	if uc.VIPBonus != nil {
		rule := vipRuleFromSetting(*uc.VIPBonus)
		if err := validateVIPBonus(rule); err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, WithVIPBonus(rule))
	}
	if len(providerOpts) > 0 {
		opts = append(opts, WithProviderOptions(providerOpts...))
	}

	opts = append(opts, WithRegistryOptions(
		WithIdleTimeout(uc.IdleSessionTimeout),
		WithReaperInterval(uc.ReaperInterval),
		WithHousekeeperInterval(uc.HousekeeperInterval),
	))

	if uc.Intake != nil && uc.Intake.Enabled {
		opts = append(opts, WithIntakeLimit(IntakeLimitConfig{
			Enabled:       true,
			RatePerSecond: uc.Intake.RatePerSecond,
			BurstSize:     uc.Intake.BurstSize,
		}))
	}

	m := NewManager(opts...)

	// Validate the merged tables up front so a bad config file fails fast.
	for name := range uc.Tiers {
		tier, ok := ParseTier(name)
		if !ok {
			continue
		}
		if errs := m.tiers.Validate(m.tiers.GetEffectiveQuota(tier)); len(errs) > 0 {
			_ = m.Close()
			return nil, errs[0]
		}
	}

	return m, nil
}

// quotaFromSetting overlays set (non-zero) configuration fields onto the
// built-in tier defaults. Negative values are kept so validation can reject
// them instead of silently ignoring a bad file.
func quotaFromSetting(base TierQuota, s config.TierQuotaSetting) TierQuota {
	if s.MaxConcurrentUploads != 0 {
		base.MaxConcurrentUploads = s.MaxConcurrentUploads
	}
	if s.MaxFilesPerMinute != 0 {
		base.MaxFilesPerMinute = s.MaxFilesPerMinute
	}
	if s.MaxFilesPerHour != 0 {
		base.MaxFilesPerHour = s.MaxFilesPerHour
	}
	if s.MaxBytesPerMinute != 0 {
		base.MaxBytesPerMinute = s.MaxBytesPerMinute
	}
	if s.MaxBytesPerHour != 0 {
		base.MaxBytesPerHour = s.MaxBytesPerHour
	}
	if s.SessionTimeout != 0 {
		base.SessionTimeout = s.SessionTimeout
	}
	if s.BatchSize != 0 {
		base.BatchSize = s.BatchSize
	}
	if s.BatchInterval != 0 {
		base.BatchInterval = s.BatchInterval
	}
	if s.PriorityLevel != 0 {
		base.PriorityLevel = s.PriorityLevel
	}
	base.SkipExpensiveChecks = s.SkipExpensiveChecks
	return base
}

func vipRuleFromSetting(s config.VIPBonusSetting) VIPBonusRule {
	rule := VIPBonusRule{
		Enabled:               s.Enabled,
		ConcurrencyMultiplier: s.ConcurrencyMultiplier,
		LimitMultiplier:       s.LimitMultiplier,
		PriorityBoost:         s.PriorityBoost,
	}
	for _, name := range s.EligibleTiers {
		if tier, ok := ParseTier(name); ok {
			rule.EligibleTiers = append(rule.EligibleTiers, tier)
		} else {
			logger.Warnf("uploadlimit: skipping unknown VIP-eligible tier %q in configuration", name)
		}
	}
	return rule
}

// GetEffectiveQuota returns the tier's quota with the VIP bonus applied.
func (m *Manager) GetEffectiveQuota(tier Tier) TierQuota {
	return m.tiers.GetEffectiveQuota(tier)
}

// IsVIPEligible reports whether the tier receives the VIP bonus.
func (m *Manager) IsVIPEligible(tier Tier) bool {
	return m.tiers.IsVIPEligible(tier)
}

// UpdateTierQuota applies an administrative quota update; see
// TierConfigProvider.UpdateTierQuota.
func (m *Manager) UpdateTierQuota(tier Tier, patch TierQuotaPatch) error {
	return m.tiers.UpdateTierQuota(tier, patch)
}

// UpdateVIPBonus replaces the VIP bonus rule.
func (m *Manager) UpdateVIPBonus(rule VIPBonusRule) error {
	return m.tiers.UpdateVIPBonus(rule)
}

// Check runs the admission decision for a prospective upload.
func (m *Manager) Check(userID string, tier Tier, fileCount int, totalBytes int64) Decision {
	return m.checker.Check(userID, tier, fileCount, totalBytes)
}

// CreateSession registers an approved upload and returns its session ID.
// Callers are expected to call Check first; this method does not repeat the
// admission checks.
func (m *Manager) CreateSession(userID string, tier Tier, fileCount int, totalBytes int64) string {
	quota := m.tiers.GetEffectiveQuota(tier)
	isVIP := m.tiers.IsVIPEligible(tier)
	return m.registry.CreateSession(userID, tier, fileCount, totalBytes, quota, isVIP)
}

// UpdateProgress records upload progress for a session.
func (m *Manager) UpdateProgress(sessionID string, uploadedFiles int, uploadedBytes int64) {
	m.registry.UpdateProgress(sessionID, uploadedFiles, uploadedBytes)
}

// UpdateStatus transitions a session's lifecycle state.
func (m *Manager) UpdateStatus(sessionID string, status SessionStatus) {
	m.registry.UpdateStatus(sessionID, status)
}

// EndSession finalizes a session and folds its totals into the user's
// usage windows.
func (m *Manager) EndSession(sessionID string) {
	m.registry.EndSession(sessionID)
}

// GetUserActiveSessions returns copies of the user's active sessions.
func (m *Manager) GetUserActiveSessions(userID string) []UploadSession {
	return m.registry.GetUserActiveSessions(userID)
}

// GetUserUsage returns the user's current-window usage counters.
func (m *Manager) GetUserUsage(userID string) (UserUsage, bool) {
	return m.registry.GetUserUsage(userID)
}

// GenerateLimitReport builds a diagnostic usage/limit summary for a user.
func (m *Manager) GenerateLimitReport(userID string, tier Tier) Report {
	return buildLimitReport(m.tiers, m.registry, userID, tier, m.checker.now())
}

// Close stops the registry's background tasks.
func (m *Manager) Close() error {
	return m.registry.Close()
}
