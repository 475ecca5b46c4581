package referral

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxLevelDepth bounds the number of ancestor levels that can share a
	// reward. Every graph traversal is capped at this depth.
	MaxLevelDepth = 3
	// DefaultDecimals is the conventional basis-point denominator (100.00%).
	DefaultDecimals = 10_000
)

// Config is the validated, immutable referral program configuration. Values
// are only obtainable through NewConfig.
type Config struct {
	levelRates                []Rate
	referralBonusRate         Rate
	decimals                  uint64
	secondsUntilInactive      uint64
	onlyRewardActiveReferrers bool
	tiers                     *RateTierTable
}

// NewConfig validates the supplied parameters and returns the immutable
// configuration. No instance is produced when any check fails.
func NewConfig(levelRates []Rate, referralBonusRate Rate, decimals, secondsUntilInactive uint64, onlyRewardActiveReferrers bool, rateTiers []RateTier) (*Config, error) {
	if decimals == 0 {
		return nil, ErrInvalidDecimals
	}
	if len(levelRates) == 0 {
		return nil, ErrMissingLevelRates
	}
	if len(levelRates) > MaxLevelDepth {
		return nil, fmt.Errorf("%w: %d levels, max %d", ErrExceedsMaxLevelDepth, len(levelRates), MaxLevelDepth)
	}
	total, ok := sumRates(levelRates)
	if !ok || total > decimals {
		return nil, fmt.Errorf("%w: sum exceeds %d", ErrTotalLevelRateOverflow, decimals)
	}
	if !referralBonusRate.Within(decimals) {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrReferralRateOverflow, referralBonusRate, decimals)
	}
	tiers, err := newRateTierTable(rateTiers, decimals)
	if err != nil {
		return nil, err
	}
	return &Config{
		levelRates:                append([]Rate(nil), levelRates...),
		referralBonusRate:         referralBonusRate,
		decimals:                  decimals,
		secondsUntilInactive:      secondsUntilInactive,
		onlyRewardActiveReferrers: onlyRewardActiveReferrers,
		tiers:                     tiers,
	}, nil
}

// LevelRates returns a copy of the per-level rates, level 0 being the direct
// referrer.
func (c *Config) LevelRates() []Rate {
	return append([]Rate(nil), c.levelRates...)
}

// Depth is the number of ancestor levels rewarded.
func (c *Config) Depth() int { return len(c.levelRates) }

func (c *Config) ReferralBonusRate() Rate { return c.referralBonusRate }

func (c *Config) Decimals() uint64 { return c.decimals }

func (c *Config) SecondsUntilInactive() uint64 { return c.secondsUntilInactive }

// InactivityWindow returns the activity window as a duration, saturating at
// the largest representable duration.
func (c *Config) InactivityWindow() time.Duration {
	if c.secondsUntilInactive > uint64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(c.secondsUntilInactive) * time.Second
}

func (c *Config) OnlyRewardActiveReferrers() bool { return c.onlyRewardActiveReferrers }

// RateTiers exposes the referee bonus rate table.
func (c *Config) RateTiers() *RateTierTable { return c.tiers }

// activeAt applies the activity rule: active iff now - lastActive <= window.
// Timestamps in the future relative to now count as active.
func (c *Config) activeAt(lastActive, now uint64) bool {
	if now <= lastActive {
		return true
	}
	return now-lastActive <= c.secondsUntilInactive
}
