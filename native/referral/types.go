package referral

import "math/big"

// Account is the persisted referral record of a single address.
type Account struct {
	Referrer      [20]byte
	HasReferrer   bool
	ReferredCount uint64
	// LastActive is a unix timestamp in seconds, meaningful only when
	// HasActivity is set.
	LastActive  uint64
	HasActivity bool
	TotalReward *big.Int
}

// Clone produces a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return emptyAccount()
	}
	clone := *a
	clone.TotalReward = cloneBigInt(a.TotalReward)
	return &clone
}

func emptyAccount() *Account {
	return &Account{TotalReward: big.NewInt(0)}
}

// AccountUpdate pairs an address with the record to persist for it.
type AccountUpdate struct {
	Address [20]byte
	Account *Account
}

// Payout is a single credit of a payout plan.
type Payout struct {
	Recipient [20]byte
	Level     int
	Amount    *big.Int
}

// Forfeit records a level whose referrer was skipped for inactivity.
type Forfeit struct {
	Referrer [20]byte
	Level    int
	Amount   *big.Int
}

// PayoutPlan is the outcome of one distribution.
type PayoutPlan struct {
	Referee          [20]byte
	RewardBase       *big.Int
	RefereeBonusRate Rate
	Pool             *big.Int
	Payouts          []Payout
	Forfeited        []Forfeit
	// Residual stays with the referee: the reward base minus every credited
	// share.
	Residual *big.Int
}

// TotalPaid sums the credited shares.
func (p *PayoutPlan) TotalPaid() *big.Int {
	total := big.NewInt(0)
	if p == nil {
		return total
	}
	for _, payout := range p.Payouts {
		if payout.Amount != nil {
			total.Add(total, payout.Amount)
		}
	}
	return total
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
