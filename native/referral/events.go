package referral

import "refledger/core/events"

func newRewardDistributedEvent(plan *PayoutPlan) events.RewardDistributed {
	payouts := make([]events.RewardPayout, 0, len(plan.Payouts))
	for _, payout := range plan.Payouts {
		payouts = append(payouts, events.RewardPayout{
			Recipient: payout.Recipient,
			Level:     payout.Level,
			Amount:    cloneBigInt(payout.Amount),
		})
	}
	return events.RewardDistributed{
		Referee:    plan.Referee,
		RewardBase: cloneBigInt(plan.RewardBase),
		Payouts:    payouts,
		Residual:   cloneBigInt(plan.Residual),
	}
}
