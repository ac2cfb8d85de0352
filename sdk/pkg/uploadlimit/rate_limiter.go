package uploadlimit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DiDuV5/cosv5-core/sdk/pkg/logger"
)

// IntakeLimitConfig configures the optional process-wide admission
// throttle. The throttle is a coarse back-pressure valve across all users;
// per-user fairness stays with the quota checks.
type IntakeLimitConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	RatePerSecond float64 `mapstructure:"ratePerSecond"`
	BurstSize     int     `mapstructure:"burstSize"`
}

// IntakeLimiter is a token-bucket throttle on admission checks.
type IntakeLimiter struct {
	limiter   *rate.Limiter
	rateLimit rate.Limit
	burstSize int
	enabled   bool
	logger    *zap.Logger
}

// NewIntakeLimiter creates an intake limiter. A disabled config yields a
// passthrough limiter that always allows.
func NewIntakeLimiter(config IntakeLimitConfig) *IntakeLimiter {
	if !config.Enabled {
		return &IntakeLimiter{
			enabled: false,
			logger:  logger.Logger,
		}
	}

	rateLimit := rate.Limit(config.RatePerSecond)
	return &IntakeLimiter{
		limiter:   rate.NewLimiter(rateLimit, config.BurstSize),
		rateLimit: rateLimit,
		burstSize: config.BurstSize,
		enabled:   true,
		logger:    logger.Logger,
	}
}

// Allow reports whether one admission may proceed right now (non-blocking).
func (il *IntakeLimiter) Allow() bool {
	if !il.enabled {
		return true
	}
	return il.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled. Not
// used on the admission hot path; provided for batch/backfill callers.
func (il *IntakeLimiter) Wait(ctx context.Context) error {
	if !il.enabled {
		return nil
	}

	start := time.Now()
	if err := il.limiter.Wait(ctx); err != nil {
		il.logger.Error("intake limiter wait failed", zap.Error(err))
		return err
	}

	if waitTime := time.Since(start); waitTime > 100*time.Millisecond {
		il.logger.Warn("intake limiter caused significant delay",
			zap.Duration("waitTime", waitTime),
			zap.Float64("rateLimit", float64(il.rateLimit)),
			zap.Int("burstSize", il.burstSize))
	}
	return nil
}

// SetLimit adjusts the sustained rate at runtime.
func (il *IntakeLimiter) SetLimit(ratePerSecond float64) {
	if !il.enabled {
		return
	}

	newLimit := rate.Limit(ratePerSecond)
	il.limiter.SetLimit(newLimit)
	il.rateLimit = newLimit

	il.logger.Info("intake rate limit updated",
		zap.Float64("newRateLimit", float64(newLimit)),
		zap.Int("burstSize", il.burstSize))
}

// SetBurst adjusts the burst capacity at runtime.
func (il *IntakeLimiter) SetBurst(burstSize int) {
	if !il.enabled {
		return
	}

	il.limiter.SetBurst(burstSize)
	il.burstSize = burstSize

	il.logger.Info("intake burst size updated",
		zap.Float64("rateLimit", float64(il.rateLimit)),
		zap.Int("newBurstSize", burstSize))
}

// IntakeLimiterStats is a point-in-time view of the throttle.
type IntakeLimiterStats struct {
	Enabled         bool    `json:"enabled"`
	RateLimit       float64 `json:"rateLimit"`
	BurstSize       int     `json:"burstSize"`
	TokensAvailable float64 `json:"tokensAvailable"`
}

// Stats returns the current throttle state.
func (il *IntakeLimiter) Stats() IntakeLimiterStats {
	if !il.enabled {
		return IntakeLimiterStats{Enabled: false}
	}
	return IntakeLimiterStats{
		Enabled:         true,
		RateLimit:       float64(il.rateLimit),
		BurstSize:       il.burstSize,
		TokensAvailable: il.limiter.Tokens(),
	}
}
