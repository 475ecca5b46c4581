package referral

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/holiman/uint256"
)

// Rate is a fixed-point fraction: the value is interpreted as Rate/decimals.
type Rate uint64

// Within reports whether the rate lies in [0, decimals].
func (r Rate) Within(decimals uint64) bool {
	return uint64(r) <= decimals
}

// mulDiv returns floor(amount * rate / decimals). Overflow of the intermediate
// product is reported instead of wrapping.
func mulDiv(amount *uint256.Int, rate Rate, decimals uint64) (*uint256.Int, error) {
	if decimals == 0 {
		return nil, ErrInvalidDecimals
	}
	if amount == nil {
		return new(uint256.Int), nil
	}
	product, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(uint64(rate)))
	if overflow {
		return nil, fmt.Errorf("%w: %s * %d", ErrArithmeticOverflow, amount.Dec(), rate)
	}
	return product.Div(product, uint256.NewInt(decimals)), nil
}

// sumRates adds the supplied rates. The boolean is false when the sum does not
// fit in 64 bits.
func sumRates(rates []Rate) (uint64, bool) {
	var total uint64
	for _, r := range rates {
		var carry uint64
		total, carry = bits.Add64(total, uint64(r), 0)
		if carry != 0 {
			return 0, false
		}
	}
	return total, true
}

// toUint256 converts a non-negative big integer into its 256-bit form.
func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, v.String())
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: %s exceeds 256 bits", ErrArithmeticOverflow, v.String())
	}
	return out, nil
}
