package referral

import "errors"

var (
	ErrMissingLevelRates      = errors.New("referral: missing level rates")
	ErrExceedsMaxLevelDepth   = errors.New("referral: exceeds max level depth")
	ErrTotalLevelRateOverflow = errors.New("referral: total level rate overflow")
	ErrReferralRateOverflow   = errors.New("referral: referral bonus rate overflow")
	ErrInvalidRateTier        = errors.New("referral: invalid rate tier")
	ErrInvalidDecimals        = errors.New("referral: decimals must be positive")
	ErrInvalidReferrer        = errors.New("referral: invalid referrer")
	ErrDoubleRegisterReferrer = errors.New("referral: referrer already registered")
	ErrArithmeticOverflow     = errors.New("referral: arithmetic overflow")
	ErrInvalidAmount          = errors.New("referral: invalid amount")
	ErrNilState               = errors.New("referral: nil state")
	ErrNilConfig              = errors.New("referral: nil config")
)
