package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// TierQuotaSetting mirrors the per-tier quota template for configuration
// files. Zero-valued fields fall back to the built-in tier defaults.
type TierQuotaSetting struct {
	MaxConcurrentUploads int           `mapstructure:"maxConcurrentUploads"`
	MaxFilesPerMinute    int           `mapstructure:"maxFilesPerMinute"`
	MaxFilesPerHour      int           `mapstructure:"maxFilesPerHour"`
	MaxBytesPerMinute    int64         `mapstructure:"maxBytesPerMinute"`
	MaxBytesPerHour      int64         `mapstructure:"maxBytesPerHour"`
	SessionTimeout       time.Duration `mapstructure:"sessionTimeout"`
	BatchSize            int           `mapstructure:"batchSize"`
	BatchInterval        time.Duration `mapstructure:"batchInterval"`
	PriorityLevel        int           `mapstructure:"priorityLevel"`
	SkipExpensiveChecks  bool          `mapstructure:"skipExpensiveChecks"`
}

// VIPBonusSetting configures the quota bonus applied to VIP-eligible tiers.
type VIPBonusSetting struct {
	Enabled               bool     `mapstructure:"enabled"`
	EligibleTiers         []string `mapstructure:"eligibleTiers"`
	ConcurrencyMultiplier float64  `mapstructure:"concurrencyMultiplier"`
	LimitMultiplier       float64  `mapstructure:"limitMultiplier"`
	PriorityBoost         int      `mapstructure:"priorityBoost"`
}

// IntakeSetting configures the optional process-wide admission throttle.
type IntakeSetting struct {
	Enabled       bool    `mapstructure:"enabled"`
	RatePerSecond float64 `mapstructure:"ratePerSecond"`
	BurstSize     int     `mapstructure:"burstSize"`
}

// UploadConfig is the admission-control section of the configuration tree.
type UploadConfig struct {
	Tiers    map[string]TierQuotaSetting `mapstructure:"tiers"`
	VIPBonus *VIPBonusSetting            `mapstructure:"vipBonus"`
	Intake   *IntakeSetting              `mapstructure:"intake"`

	IdleSessionTimeout  time.Duration `mapstructure:"idleSessionTimeout"`
	ReaperInterval      time.Duration `mapstructure:"reaperInterval"`
	HousekeeperInterval time.Duration `mapstructure:"housekeeperInterval"`

	MetricsNamespace string `mapstructure:"metricsNamespace"`
}

var UploadConfigInstance = new(UploadConfig)

// ApplyDefaults fills operational knobs that the config file left unset.
func (c *UploadConfig) ApplyDefaults() {
	if c.IdleSessionTimeout == 0 {
		c.IdleSessionTimeout = 30 * time.Minute
	}
	if c.ReaperInterval == 0 {
		c.ReaperInterval = time.Minute
	}
	if c.HousekeeperInterval == 0 {
		c.HousekeeperInterval = time.Second
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "cosv5"
	}
}

// ApplyEnvOverrides lets operators tune timers without editing the config
// file. Values are parsed leniently; unparsable input keeps the file value.
func (c *UploadConfig) ApplyEnvOverrides() {
	if v := os.Getenv("UPLOAD_IDLE_SESSION_TIMEOUT"); v != "" {
		if d := cast.ToDuration(v); d > 0 {
			c.IdleSessionTimeout = d
		}
	}
	if v := os.Getenv("UPLOAD_REAPER_INTERVAL"); v != "" {
		if d := cast.ToDuration(v); d > 0 {
			c.ReaperInterval = d
		}
	}
	if v := os.Getenv("UPLOAD_HOUSEKEEPER_INTERVAL"); v != "" {
		if d := cast.ToDuration(v); d > 0 {
			c.HousekeeperInterval = d
		}
	}
	if v := os.Getenv("UPLOAD_INTAKE_RATE_PER_SECOND"); v != "" {
		if r := cast.ToFloat64(v); r > 0 {
			if c.Intake == nil {
				c.Intake = &IntakeSetting{Enabled: true, BurstSize: 1}
			}
			c.Intake.RatePerSecond = r
		}
	}
}
