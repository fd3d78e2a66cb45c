/*
Pure accrual math for the scale/yield engine. Nothing in this package touches
ledger state; the tranche state machine feeds it scales and balances and
applies the results. Rounding always favors the protocol: the user's share
count at the old scale rounds down, at the new scale rounds up, so accrued
yield can only be understated, never overstated.
*/

package accrual

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/fixedmath"
)

// ErrZeroScale is returned when a scale that must be positive is zero. A
// series in this state cannot be priced.
var ErrZeroScale = errors.New("accrual: scale must be positive")

// basis points per unit
const bpsDenom = 10_000

// SharesAtScale converts a principal amount (18-decimal underlying face
// value) to target shares at the given scale, with explicit rounding.
func SharesAtScale(amount, scale sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	if !scale.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroScale
	}
	if roundUp {
		return fixedmath.WDivUp(amount, scale)
	}
	return fixedmath.WDivDown(amount, scale)
}

// AccruedYield returns the yield, in target shares, earned by `amount` of
// principal between an account's last observed scale and the current
// reference scale. The subtraction is clamped to zero: a negative result can
// only come from precision loss, not from true negative yield.
func AccruedYield(amount, lscale, refScale sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	before, err := SharesAtScale(amount, lscale, false)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	after, err := SharesAtScale(amount, refScale, true)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if after.GT(before) {
		return sdkmath.ZeroInt(), nil
	}
	return before.Sub(after), nil
}

// SettlementSplit computes the post-maturity division of one PT/YT pair's
// face value between the principal side and the yield side, in target shares
// at the settlement scale.
//
// The "sunny day" condition holds when the settled scale did not fall more
// than the tilt margin below its historical maximum; the principal side then
// receives its full tilt-discounted face value. Otherwise the principal side
// is capped at face value priced at the historical maximum and the yield side
// takes the residual.
//
// For any inputs, ptShares + ytShares <= pyAmount/mscale (full face value in
// shares); the sub-wei difference is rounding in the protocol's favor.
func SettlementSplit(pyAmount, mscale, maxscale sdkmath.Int, tiltBps uint32) (ptShares, ytShares sdkmath.Int, err error) {
	zero := sdkmath.ZeroInt()
	if !mscale.IsPositive() || !maxscale.IsPositive() {
		return zero, zero, ErrZeroScale
	}

	tilt := fixedmath.Wad.MulRaw(int64(tiltBps)).QuoRaw(bpsDenom)
	zShare := fixedmath.Wad.Sub(tilt)

	ratio, err := fixedmath.WDivDown(mscale, maxscale)
	if err != nil {
		return zero, zero, err
	}

	if ratio.GTE(zShare) {
		// Sunny day: PT redeems at face value minus the tilt fraction, YT
		// keeps the tilt fraction. Both price at the settlement scale.
		ptShares, err = fixedmath.MulDivDown(pyAmount, zShare, mscale)
		if err != nil {
			return zero, zero, err
		}
		ytShares, err = fixedmath.MulDivDown(pyAmount, tilt, mscale)
		if err != nil {
			return zero, zero, err
		}
		return ptShares, ytShares, nil
	}

	// Not sunny: PT is capped at face value priced at the historical maximum
	// scale; YT takes whatever of the full face value remains.
	ptShares, err = fixedmath.WDivDown(pyAmount, maxscale)
	if err != nil {
		return zero, zero, err
	}
	full, err := fixedmath.WDivDown(pyAmount, mscale)
	if err != nil {
		return zero, zero, err
	}
	ytShares = full.Sub(ptShares)
	if ytShares.IsNegative() {
		ytShares = zero
	}
	return ptShares, ytShares, nil
}
