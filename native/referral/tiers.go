package referral

import (
	"fmt"
	"math/big"
	"sort"
)

// RateTier maps every amount at or above Threshold (up to the next tier) to
// Rate.
type RateTier struct {
	Threshold *big.Int
	Rate      Rate
}

// RateTierTable resolves an amount to the referee bonus rate of the highest
// tier whose threshold does not exceed it.
type RateTierTable struct {
	tiers []RateTier
}

func newRateTierTable(tiers []RateTier, decimals uint64) (*RateTierTable, error) {
	table := &RateTierTable{tiers: make([]RateTier, 0, len(tiers))}
	for i, tier := range tiers {
		if tier.Threshold == nil || tier.Threshold.Sign() < 0 {
			return nil, fmt.Errorf("%w: tier %d threshold must be non-negative", ErrInvalidRateTier, i)
		}
		if !tier.Rate.Within(decimals) {
			return nil, fmt.Errorf("%w: tier %d rate %d exceeds %d", ErrInvalidRateTier, i, tier.Rate, decimals)
		}
		if i > 0 && tier.Threshold.Cmp(tiers[i-1].Threshold) <= 0 {
			return nil, fmt.Errorf("%w: tier %d threshold %s not above %s", ErrInvalidRateTier, i, tier.Threshold, tiers[i-1].Threshold)
		}
		table.tiers = append(table.tiers, RateTier{Threshold: new(big.Int).Set(tier.Threshold), Rate: tier.Rate})
	}
	return table, nil
}

// RateFor returns the rate of the greatest threshold <= amount, or zero when
// the amount sits below every threshold. A nil amount is treated as zero.
func (t *RateTierTable) RateFor(amount *big.Int) Rate {
	if t == nil || len(t.tiers) == 0 {
		return 0
	}
	if amount == nil {
		amount = new(big.Int)
	}
	idx := sort.Search(len(t.tiers), func(i int) bool {
		return t.tiers[i].Threshold.Cmp(amount) > 0
	})
	if idx == 0 {
		return 0
	}
	return t.tiers[idx-1].Rate
}

// Len returns the number of configured tiers.
func (t *RateTierTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tiers)
}

// Tiers returns a deep copy of the configured tiers in ascending order.
func (t *RateTierTable) Tiers() []RateTier {
	if t == nil {
		return nil
	}
	out := make([]RateTier, len(t.tiers))
	for i, tier := range t.tiers {
		out[i] = RateTier{Threshold: new(big.Int).Set(tier.Threshold), Rate: tier.Rate}
	}
	return out
}
