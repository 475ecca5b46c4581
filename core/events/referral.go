package events

import (
	"math/big"
	"strconv"
	"strings"

	"refledger/core/types"
	"refledger/crypto"
)

const (
	// TypeReferrerRegistered is emitted when a referee binds itself to a
	// referrer.
	TypeReferrerRegistered = "referral.referrer.registered"
	// TypeRewardDistributed is emitted once a payout plan has been applied.
	TypeRewardDistributed = "referral.reward.distributed"
)

// ReferrerRegistered records a new referee → referrer edge.
type ReferrerRegistered struct {
	Referee  [20]byte
	Referrer [20]byte
}

// EventType implements the Event interface.
func (ReferrerRegistered) EventType() string { return TypeReferrerRegistered }

func (e ReferrerRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeReferrerRegistered,
		Attributes: map[string]string{
			"referee":  formatAddress(e.Referee),
			"referrer": formatAddress(e.Referrer),
		},
	}
}

// RewardPayout is one (recipient, amount) entry of a distribution.
type RewardPayout struct {
	Recipient [20]byte
	Level     int
	Amount    *big.Int
}

// RewardDistributed summarises an applied payout plan.
type RewardDistributed struct {
	Referee    [20]byte
	RewardBase *big.Int
	Payouts    []RewardPayout
	Residual   *big.Int
}

// EventType implements the Event interface.
func (RewardDistributed) EventType() string { return TypeRewardDistributed }

// Event flattens the payouts into indexed attributes:
// payout.<i>.recipient, payout.<i>.level and payout.<i>.amount.
func (e RewardDistributed) Event() *types.Event {
	attrs := map[string]string{
		"referee":    formatAddress(e.Referee),
		"rewardBase": formatAmount(e.RewardBase),
		"residual":   formatAmount(e.Residual),
		"payouts":    strconv.Itoa(len(e.Payouts)),
	}
	for i, payout := range e.Payouts {
		prefix := "payout." + strconv.Itoa(i) + "."
		attrs[prefix+"recipient"] = formatAddress(payout.Recipient)
		attrs[prefix+"level"] = strconv.Itoa(payout.Level)
		attrs[prefix+"amount"] = formatAmount(payout.Amount)
	}
	return &types.Event{Type: TypeRewardDistributed, Attributes: attrs}
}

func formatAddress(addr [20]byte) string {
	return strings.ToLower(crypto.MustNewAddress(crypto.RefPrefix, addr[:]).Hex())
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
