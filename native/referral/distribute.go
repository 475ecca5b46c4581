package referral

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	nativecommon "refledger/native/common"
)

// Distribute splits rewardBase between referee and its ancestor referrers and
// applies the resulting activity and reward bookkeeping atomically. The
// returned plan lists every credited share in level order; Residual is what
// the referee keeps.
func (e *Engine) Distribute(referee [20]byte, rewardBase *big.Int, now time.Time) (*PayoutPlan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		e.metrics.ObserveDistribution("paused")
		return nil, err
	}
	plan, updates, err := e.planLocked(referee, rewardBase, now)
	if err != nil {
		e.metrics.ObserveDistribution("rejected")
		return nil, err
	}
	if plan.RefereeBonusRate == 0 {
		e.metrics.ObserveDistribution("no_tier")
		return plan, nil
	}
	if err := e.st.PutReferralAccounts(updates); err != nil {
		e.metrics.ObserveDistribution("failed")
		e.logger.Warn("persist referral payouts",
			"referee", hex.EncodeToString(referee[:]),
			"error", err)
		return nil, err
	}

	e.metrics.ObserveDistribution("distributed")
	for _, payout := range plan.Payouts {
		e.metrics.ObservePayout(payout.Level)
	}
	for _, forfeit := range plan.Forfeited {
		e.metrics.ObserveForfeit(forfeit.Level)
	}
	residual, _ := new(big.Float).SetInt(plan.Residual).Float64()
	e.metrics.SetResidual(residual)
	e.logger.Debug("referral reward distributed",
		"referee", hex.EncodeToString(referee[:]),
		"rewardBase", plan.RewardBase.String(),
		"payouts", len(plan.Payouts),
		"forfeited", len(plan.Forfeited))
	e.emit(newRewardDistributedEvent(plan))
	return plan, nil
}

// Preview computes the payout plan Distribute would produce without writing
// any state or emitting events.
func (e *Engine) Preview(referee [20]byte, rewardBase *big.Int, now time.Time) (*PayoutPlan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	plan, _, err := e.planLocked(referee, rewardBase, now)
	return plan, err
}

func (e *Engine) planLocked(referee [20]byte, rewardBase *big.Int, now time.Time) (*PayoutPlan, []AccountUpdate, error) {
	base, err := toUint256(rewardBase)
	if err != nil {
		return nil, nil, err
	}
	plan := &PayoutPlan{
		Referee:    referee,
		RewardBase: base.ToBig(),
		Pool:       big.NewInt(0),
		Residual:   base.ToBig(),
	}
	plan.RefereeBonusRate = e.cfg.tiers.RateFor(plan.RewardBase)
	if plan.RefereeBonusRate == 0 {
		return plan, nil, nil
	}

	decimals := e.cfg.decimals
	pool, err := mulDiv(base, e.cfg.referralBonusRate, decimals)
	if err != nil {
		return nil, nil, err
	}
	plan.Pool = pool.ToBig()

	chain, err := e.ancestorChainLocked(referee, e.cfg.Depth())
	if err != nil {
		return nil, nil, err
	}
	ts := unixSeconds(now)
	staged := make(map[[20]byte]*Account, len(chain))
	order := make([][20]byte, 0, len(chain))
	paid := new(uint256.Int)
	for level, referrer := range chain {
		share, err := mulDiv(pool, e.cfg.levelRates[level], decimals)
		if err != nil {
			return nil, nil, err
		}
		account, ok := staged[referrer]
		if !ok {
			account, err = e.st.ReferralAccount(referrer)
			if err != nil {
				return nil, nil, err
			}
		}
		if e.cfg.onlyRewardActiveReferrers && !e.isActiveAccount(account, ts) {
			plan.Forfeited = append(plan.Forfeited, Forfeit{Referrer: referrer, Level: level, Amount: share.ToBig()})
			continue
		}
		var overflow bool
		paid, overflow = paid.AddOverflow(paid, share)
		if overflow || paid.Gt(pool) {
			return nil, nil, fmt.Errorf("%w: level shares exceed pool", ErrArithmeticOverflow)
		}
		account.LastActive = ts
		account.HasActivity = true
		account.TotalReward = new(big.Int).Add(cloneBigInt(account.TotalReward), share.ToBig())
		if !ok {
			staged[referrer] = account
			order = append(order, referrer)
		}
		plan.Payouts = append(plan.Payouts, Payout{Recipient: referrer, Level: level, Amount: share.ToBig()})
	}
	if paid.Gt(base) {
		return nil, nil, fmt.Errorf("%w: payouts exceed reward base", ErrArithmeticOverflow)
	}
	plan.Residual = new(uint256.Int).Sub(base, paid).ToBig()

	updates := make([]AccountUpdate, 0, len(order))
	for _, addr := range order {
		updates = append(updates, AccountUpdate{Address: addr, Account: staged[addr]})
	}
	return plan, updates, nil
}
