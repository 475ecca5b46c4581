package referral

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"refledger/core/events"
	nativecommon "refledger/native/common"
)

var zeroAddress [20]byte

// Register records referrer as the referrer of referee. The edge is
// write-once: any later attempt for the same referee fails, whichever
// referrer it names.
func (e *Engine) Register(referee, referrer [20]byte) (events.ReferrerRegistered, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	evt, err := e.registerLocked(referee, referrer)
	if err != nil {
		e.metrics.ObserveRegistration("rejected")
		return events.ReferrerRegistered{}, err
	}
	e.metrics.ObserveRegistration("registered")
	e.logger.Debug("referrer registered",
		"referee", hex.EncodeToString(referee[:]),
		"referrer", hex.EncodeToString(referrer[:]))
	e.emit(evt)
	return evt, nil
}

func (e *Engine) registerLocked(referee, referrer [20]byte) (events.ReferrerRegistered, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return events.ReferrerRegistered{}, err
	}
	if referrer == zeroAddress {
		return events.ReferrerRegistered{}, fmt.Errorf("%w: zero address", ErrInvalidReferrer)
	}
	if referee == zeroAddress {
		return events.ReferrerRegistered{}, fmt.Errorf("%w: zero referee", ErrInvalidReferrer)
	}
	refereeAccount, err := e.st.ReferralAccount(referee)
	if err != nil {
		return events.ReferrerRegistered{}, err
	}
	if refereeAccount.HasReferrer {
		return events.ReferrerRegistered{}, ErrDoubleRegisterReferrer
	}
	if referrer == referee {
		return events.ReferrerRegistered{}, fmt.Errorf("%w: self referral", ErrInvalidReferrer)
	}
	upline, err := e.isUpline(referee, referrer)
	if err != nil {
		return events.ReferrerRegistered{}, err
	}
	if upline {
		return events.ReferrerRegistered{}, fmt.Errorf("%w: referee is an upline of referrer", ErrInvalidReferrer)
	}

	referrerAccount, err := e.st.ReferralAccount(referrer)
	if err != nil {
		return events.ReferrerRegistered{}, err
	}
	refereeAccount.Referrer = referrer
	refereeAccount.HasReferrer = true
	referrerAccount.ReferredCount++
	if !referrerAccount.HasActivity {
		referrerAccount.LastActive = unixSeconds(e.clock())
		referrerAccount.HasActivity = true
	}
	updates := []AccountUpdate{
		{Address: referee, Account: refereeAccount},
		{Address: referrer, Account: referrerAccount},
	}
	if err := e.st.PutReferralAccounts(updates); err != nil {
		e.logger.Warn("persist referral registration", "error", err)
		return events.ReferrerRegistered{}, err
	}
	return events.ReferrerRegistered{Referee: referee, Referrer: referrer}, nil
}

// isUpline reports whether candidate appears among the ancestors of start.
// Referee roots have no referrer, so the walk ends at a root of the forest;
// the visited set keeps it finite even if stored state were cyclic.
func (e *Engine) isUpline(candidate, start [20]byte) (bool, error) {
	visited := map[[20]byte]struct{}{}
	current := start
	for {
		if current == candidate {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			return false, nil
		}
		visited[current] = struct{}{}
		account, err := e.st.ReferralAccount(current)
		if err != nil {
			return false, err
		}
		if !account.HasReferrer || account.Referrer == zeroAddress {
			return false, nil
		}
		current = account.Referrer
	}
}

// ReferrerOf returns the referrer recorded for referee, if any.
func (e *Engine) ReferrerOf(referee [20]byte) ([20]byte, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	account, err := e.st.ReferralAccount(referee)
	if err != nil {
		return zeroAddress, false, err
	}
	if !account.HasReferrer {
		return zeroAddress, false, nil
	}
	return account.Referrer, true, nil
}

// HasReferrer reports whether addr has registered a referrer.
func (e *Engine) HasReferrer(addr [20]byte) (bool, error) {
	_, ok, err := e.ReferrerOf(addr)
	return ok, err
}

// AncestorChain returns up to maxDepth referrers above referee, nearest
// first. The walk never exceeds MaxLevelDepth steps.
func (e *Engine) AncestorChain(referee [20]byte, maxDepth int) ([][20]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ancestorChainLocked(referee, maxDepth)
}

func (e *Engine) ancestorChainLocked(referee [20]byte, maxDepth int) ([][20]byte, error) {
	if maxDepth > MaxLevelDepth {
		maxDepth = MaxLevelDepth
	}
	if maxDepth <= 0 {
		return nil, nil
	}
	chain := make([][20]byte, 0, maxDepth)
	current := referee
	for step := 0; step < maxDepth; step++ {
		account, err := e.st.ReferralAccount(current)
		if err != nil {
			return nil, err
		}
		if !account.HasReferrer || account.Referrer == zeroAddress {
			break
		}
		chain = append(chain, account.Referrer)
		current = account.Referrer
	}
	return chain, nil
}

// IsActive reports whether referrer was active within the inactivity window
// ending at now. Addresses that never had activity recorded are inactive.
func (e *Engine) IsActive(referrer [20]byte, now time.Time) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	account, err := e.st.ReferralAccount(referrer)
	if err != nil {
		return false, err
	}
	return e.isActiveAccount(account, unixSeconds(now)), nil
}

func (e *Engine) isActiveAccount(account *Account, now uint64) bool {
	if account == nil || !account.HasActivity {
		return false
	}
	return e.cfg.activeAt(account.LastActive, now)
}

// Touch marks addr as active at now, for callers whose policy refreshes a
// referrer whenever one of its referees transacts. Timestamps never move
// backwards.
func (e *Engine) Touch(addr [20]byte, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if addr == zeroAddress {
		return fmt.Errorf("%w: zero address", ErrInvalidReferrer)
	}
	account, err := e.st.ReferralAccount(addr)
	if err != nil {
		return err
	}
	ts := unixSeconds(now)
	if account.HasActivity && account.LastActive >= ts {
		return nil
	}
	account.LastActive = ts
	account.HasActivity = true
	return e.st.PutReferralAccounts([]AccountUpdate{{Address: addr, Account: account}})
}

// Account returns a copy of the stored record of addr.
func (e *Engine) Account(addr [20]byte) (*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	account, err := e.st.ReferralAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// ReferredCount returns the number of referees registered directly under addr.
func (e *Engine) ReferredCount(addr [20]byte) (uint64, error) {
	account, err := e.Account(addr)
	if err != nil {
		return 0, err
	}
	return account.ReferredCount, nil
}

// TotalReward returns the cumulative amount credited to addr as a referrer.
func (e *Engine) TotalReward(addr [20]byte) (*big.Int, error) {
	account, err := e.Account(addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(account.TotalReward), nil
}
