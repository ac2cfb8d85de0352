package uploadlimit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/DiDuV5/cosv5-core/sdk/pkg/logger"
)

// fallbackTier is used when an unknown tier is requested: the lowest
// non-guest tier, so a bad caller neither fails nor gets guest throttling.
const fallbackTier = TierUser

// tierTable is an immutable snapshot of the quota configuration. Updates
// build a new table and swap it in atomically.
type tierTable struct {
	quotas map[Tier]TierQuota
	vip    VIPBonusRule
}

// TierConfigProvider resolves the effective quota for a tier. Lookups are
// lock-free against an atomically published snapshot; administrative
// updates are serialized and copy-on-write.
type TierConfigProvider struct {
	data     atomic.Value // *tierTable
	mu       sync.Mutex   // serializes administrative updates
	validate *validator.Validate
}

// ProviderOption configures the initial quota table.
type ProviderOption func(*tierTable)

// WithTierQuota overrides a tier's base quota template.
func WithTierQuota(tier Tier, quota TierQuota) ProviderOption {
	return func(t *tierTable) {
		t.quotas[tier] = quota
	}
}

// WithVIPBonus overrides the VIP bonus rule.
func WithVIPBonus(rule VIPBonusRule) ProviderOption {
	return func(t *tierTable) {
		t.vip = rule
	}
}

// NewTierConfigProvider creates a provider seeded with the built-in quota
// table and VIP bonus rule.
func NewTierConfigProvider(opts ...ProviderOption) *TierConfigProvider {
	table := &tierTable{
		quotas: defaultTierQuotas(),
		vip:    defaultVIPBonus(),
	}
	for _, opt := range opts {
		opt(table)
	}

	p := &TierConfigProvider{
		validate: validator.New(),
	}
	p.data.Store(table)
	return p
}

// GetEffectiveQuota returns the tier's quota with the VIP bonus applied
// exactly once if the tier is eligible. An unknown tier falls back to the
// USER quota and logs a warning; the caller is never failed.
func (p *TierConfigProvider) GetEffectiveQuota(tier Tier) TierQuota {
	table := p.data.Load().(*tierTable)

	quota, ok := table.quotas[tier]
	if !ok {
		logger.Warnf("uploadlimit: unknown tier %q, falling back to %s quota", tier, fallbackTier)
		quota = table.quotas[fallbackTier]
	}

	if table.vip.Enabled && table.vip.eligible(tier) {
		quota = applyVIPBonus(quota, table.vip)
	}
	return quota
}

// IsVIPEligible reports whether the tier receives the VIP bonus.
func (p *TierConfigProvider) IsVIPEligible(tier Tier) bool {
	table := p.data.Load().(*tierTable)
	return table.vip.Enabled && table.vip.eligible(tier)
}

// VIPBonus returns the current VIP bonus rule.
func (p *TierConfigProvider) VIPBonus() VIPBonusRule {
	return p.data.Load().(*tierTable).vip
}

// applyVIPBonus scales the base quota by the bonus rule. Multiplied integer
// fields are floored; the session timeout is deliberately untouched.
func applyVIPBonus(q TierQuota, r VIPBonusRule) TierQuota {
	q.MaxConcurrentUploads = int(float64(q.MaxConcurrentUploads) * r.ConcurrencyMultiplier)
	q.MaxFilesPerMinute = int(float64(q.MaxFilesPerMinute) * r.LimitMultiplier)
	q.MaxFilesPerHour = int(float64(q.MaxFilesPerHour) * r.LimitMultiplier)
	q.MaxBytesPerMinute = int64(float64(q.MaxBytesPerMinute) * r.LimitMultiplier)
	q.MaxBytesPerHour = int64(float64(q.MaxBytesPerHour) * r.LimitMultiplier)
	q.PriorityLevel += r.PriorityBoost
	return q
}

// UpdateTierQuota merges a partial update into the tier's base quota. The
// merged result is validated before it is published; on validation failure
// the table is left unchanged. Updating a tier that has no entry yet starts
// from the fallback tier's template.
func (p *TierConfigProvider) UpdateTierQuota(tier Tier, patch TierQuotaPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.data.Load().(*tierTable)

	base, ok := current.quotas[tier]
	if !ok {
		base = current.quotas[fallbackTier]
	}
	merged := patch.apply(base)

	if errs := p.Validate(merged); len(errs) > 0 {
		return fmt.Errorf("uploadlimit: invalid quota for tier %s: %w", tier, errors.Join(errs...))
	}

	next := current.copy()
	next.quotas[tier] = merged
	p.data.Store(next)

	logger.Infof("uploadlimit: tier %s quota updated", tier)
	return nil
}

// validateVIPBonus rejects rules that would shrink an eligible tier's
// quota: the effective quota must stay field-wise >= the base quota.
func validateVIPBonus(rule VIPBonusRule) error {
	if !rule.Enabled {
		return nil
	}
	if rule.ConcurrencyMultiplier < 1 {
		return fmt.Errorf("uploadlimit: concurrencyMultiplier must be >= 1, got %v", rule.ConcurrencyMultiplier)
	}
	if rule.LimitMultiplier < 1 {
		return fmt.Errorf("uploadlimit: limitMultiplier must be >= 1, got %v", rule.LimitMultiplier)
	}
	if rule.PriorityBoost < 0 {
		return fmt.Errorf("uploadlimit: priorityBoost must be >= 0, got %d", rule.PriorityBoost)
	}
	return nil
}

// UpdateVIPBonus replaces the VIP bonus rule. Multipliers below 1 are
// rejected so the effective quota is always field-wise >= the base quota.
func (p *TierConfigProvider) UpdateVIPBonus(rule VIPBonusRule) error {
	if err := validateVIPBonus(rule); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.data.Load().(*tierTable).copy()
	next.vip = rule
	p.data.Store(next)

	logger.Infof("uploadlimit: VIP bonus rule updated (enabled=%v)", rule.Enabled)
	return nil
}

// Validate checks a quota template; every numeric field must be positive.
// It returns one error per offending field.
func (p *TierConfigProvider) Validate(quota TierQuota) []error {
	err := p.validate.Struct(quota)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}

	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Errorf("%s must be greater than zero", fe.Field()))
	}
	return out
}

func (t *tierTable) copy() *tierTable {
	next := &tierTable{
		quotas: make(map[Tier]TierQuota, len(t.quotas)),
		vip:    t.vip,
	}
	for tier, quota := range t.quotas {
		next.quotas[tier] = quota
	}
	return next
}
