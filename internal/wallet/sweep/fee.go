package sweep

import (
	"math/big"
)

const DefaultFeeBumpPercent int64 = 20

// Bump raises fee by percent, and by at least one unit.
func Bump(fee *big.Int, percent int64) *big.Int {
	if fee == nil {
		return nil
	}

	inc := new(big.Int).Mul(fee, big.NewInt(max(percent, 0)))
	inc.Quo(inc, big.NewInt(100))
	if inc.Sign() <= 0 {
		inc.SetInt64(1)
	}

	return new(big.Int).Add(fee, inc)
}

// ChooseFee returns the fee parameter of an attempt. Without a prior attempt the
// suggestion is used; "same" reuses the prior fee and "higher" is strictly above it.
func ChooseFee(prior *big.Int, option FeeOption, suggested *big.Int, percent int64) *big.Int {
	if prior == nil || prior.Sign() <= 0 {
		return new(big.Int).Set(suggested)
	}

	switch option {
	case FeeSame:
		return new(big.Int).Set(prior)
	case FeeHigher:
		bumped := Bump(prior, percent)
		if suggested != nil && suggested.Cmp(bumped) > 0 {
			return new(big.Int).Set(suggested)
		}
		return bumped
	default:
		return new(big.Int).Set(suggested)
	}
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
