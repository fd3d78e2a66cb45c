package fixedmath

import (
	sdkmath "cosmossdk.io/math"
)

// Signed WAD arithmetic for the rate math, truncating toward zero. The
// explicit Down/Up variants above reject negative inputs; these accept them.

// WMulTrunc returns a*b/WAD truncated toward zero.
func WMulTrunc(a, b sdkmath.Int) sdkmath.Int {
	return a.Mul(b).Quo(Wad)
}

// WDivTrunc returns a*WAD/b truncated toward zero.
func WDivTrunc(a, b sdkmath.Int) (sdkmath.Int, error) {
	if b.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroDivisor
	}
	return a.Mul(Wad).Quo(b), nil
}
