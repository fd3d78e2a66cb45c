/*
Fixed-point arithmetic on 18-decimal (WAD) quantities backed by
cosmossdk.io/math integers. Every division carries an explicit rounding
direction; rounding always favors the protocol at the call sites, so the
helpers here only provide the primitives, never pick a direction themselves.
*/

package fixedmath

import (
	"errors"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Sentinel errors for the numeric domain. These are the "invariant violation"
// class of failures: a value the math cannot safely operate on.
var (
	ErrNegativeInput = errors.New("fixedmath: negative input")
	ErrZeroDivisor   = errors.New("fixedmath: division by zero")
	ErrLnNonPositive = errors.New("fixedmath: ln input must be positive")
	ErrExpOutOfRange = errors.New("fixedmath: exp input outside supported domain")
)

var (
	// Wad is 1e18, the internal unit of all scale and rate values.
	Wad = sdkmath.NewIntFromUint64(1e18)
	// TwoWad is 2e18.
	TwoWad = sdkmath.NewIntFromUint64(2e18)
	// Ln2Wad is ln(2) in WAD precision.
	Ln2Wad = sdkmath.NewInt(693147180559945309)

	// MaxExpInputWad bounds ExpWad above: e^135.30... already exceeds any
	// quantity this system prices. Inputs beyond it are rejected, not clamped.
	MaxExpInputWad = mustInt("135305999368893231589")
	// MinExpInputWad bounds ExpWad below: e^-41.44... rounds to zero WAD, so
	// anything smaller returns exactly zero.
	MinExpInputWad = mustInt("-41446531673892822312")
)

func mustInt(s string) sdkmath.Int {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		panic("fixedmath: bad integer literal " + s)
	}
	return v
}

// MulDivDown returns floor(a * b / c) for non-negative a, b and positive c.
func MulDivDown(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if a.IsNegative() || b.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeInput
	}
	if !c.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroDivisor
	}
	return a.Mul(b).Quo(c), nil
}

// MulDivUp returns ceil(a * b / c) for non-negative a, b and positive c.
func MulDivUp(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if a.IsNegative() || b.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeInput
	}
	if !c.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroDivisor
	}
	prod := a.Mul(b)
	if prod.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	// ceil(p/c) == floor((p-1)/c) + 1 for p > 0
	return prod.SubRaw(1).Quo(c).AddRaw(1), nil
}

// WMulDown returns floor(a * b / 1e18).
func WMulDown(a, b sdkmath.Int) (sdkmath.Int, error) {
	return MulDivDown(a, b, Wad)
}

// WMulUp returns ceil(a * b / 1e18).
func WMulUp(a, b sdkmath.Int) (sdkmath.Int, error) {
	return MulDivUp(a, b, Wad)
}

// WDivDown returns floor(a * 1e18 / b).
func WDivDown(a, b sdkmath.Int) (sdkmath.Int, error) {
	return MulDivDown(a, Wad, b)
}

// WDivUp returns ceil(a * 1e18 / b).
func WDivUp(a, b sdkmath.Int) (sdkmath.Int, error) {
	return MulDivUp(a, Wad, b)
}

// SqrtInt returns floor(sqrt(x)). x must be non-negative.
func SqrtInt(x sdkmath.Int) (sdkmath.Int, error) {
	if x.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeInput
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(x.BigInt())), nil
}

// MinInt returns the smaller of a and b.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	if a.LT(b) {
		return a
	}
	return b
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b sdkmath.Int) sdkmath.Int {
	if a.GT(b) {
		return a
	}
	return b
}
