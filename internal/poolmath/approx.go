/*
Bounded approximation helpers for single-sided liquidity. Each finds the
trade size that leaves the depositor's (or withdrawer's) remaining amounts
matching the post-trade pool proportion, by bisection over the trade size.
Non-convergence within the configured budget is a hard ErrApproxFail from the
solver, never a best-effort result.
*/

package poolmath

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/fixedmath"
)

// hugeWad is the objective stand-in for "x is past the feasible region":
// far larger than any real proportion mismatch, so bisection steps back
// inside the domain instead of aborting.
var hugeWad = fixedmath.Wad.Mul(fixedmath.Wad)

// oversize reports whether a trade failed only because the probed size is
// too large for the current reserves, which the solver treats as an
// overshoot rather than a fault.
func oversize(err error) bool {
	return errors.Is(err, ErrTradeTooLarge) ||
		errors.Is(err, ErrProportionOutOfRange) ||
		errors.Is(err, ErrRateBelowOne) ||
		errors.Is(err, fixedmath.ErrExpOutOfRange)
}

// PtToSwapForAdd finds how much of ptIn to sell to the pool so that the
// asset received and the PT kept match the post-swap pool proportion,
// enabling a single-sided PT deposit.
func PtToSwapForAdd(m MarketState, ptIn sdkmath.Int, cfg fixedmath.SolverConfig) (sdkmath.Int, error) {
	if !ptIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroTrade
	}

	objective := func(x sdkmath.Int) (sdkmath.Int, error) {
		res, err := CalcTrade(m, x.Neg())
		if err != nil {
			if oversize(err) {
				return hugeWad, nil
			}
			return sdkmath.ZeroInt(), err
		}
		poolProp, err := fixedmath.WDivDown(res.NewState.TotalPt, res.NewState.TotalAsset)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		assetOut := res.NetAssetToAccount
		if !assetOut.IsPositive() {
			// No asset out yet: the user side is all PT, maximally below
			// the target proportion.
			return hugeWad.Neg(), nil
		}
		userProp, err := fixedmath.WDivDown(ptIn.Sub(x), assetOut)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		return poolProp.Sub(userProp), nil
	}

	return fixedmath.Bisect(objective, sdkmath.OneInt(), ptIn, cfg)
}

// AssetToSwapForAdd finds how much PT to buy with part of assetIn so that
// the PT received and the asset kept match the post-swap pool proportion,
// enabling a single-sided underlying deposit. Returns the PT amount to buy.
func AssetToSwapForAdd(m MarketState, assetIn sdkmath.Int, cfg fixedmath.SolverConfig) (sdkmath.Int, error) {
	if !assetIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroTrade
	}

	objective := func(x sdkmath.Int) (sdkmath.Int, error) {
		res, err := CalcTrade(m, x)
		if err != nil {
			if oversize(err) {
				return hugeWad, nil
			}
			return sdkmath.ZeroInt(), err
		}
		paid := res.NetAssetToAccount.Neg()
		if paid.GTE(assetIn) {
			return hugeWad, nil
		}
		poolProp, err := fixedmath.WDivDown(res.NewState.TotalPt, res.NewState.TotalAsset)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		userProp, err := fixedmath.WDivDown(x, assetIn.Sub(paid))
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		return userProp.Sub(poolProp), nil
	}

	return fixedmath.Bisect(objective, sdkmath.OneInt(), m.TotalPt, cfg)
}

// PtForExactAssetIn finds the PT amount whose purchase costs exactly assetIn
// (within the solver tolerance), used when converting a withdrawn underlying
// amount into PT.
func PtForExactAssetIn(m MarketState, assetIn sdkmath.Int, cfg fixedmath.SolverConfig) (sdkmath.Int, error) {
	if !assetIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroTrade
	}

	objective := func(x sdkmath.Int) (sdkmath.Int, error) {
		res, err := CalcTrade(m, x)
		if err != nil {
			if oversize(err) {
				return hugeWad, nil
			}
			return sdkmath.ZeroInt(), err
		}
		return res.NetAssetToAccount.Neg().Sub(assetIn), nil
	}

	return fixedmath.Bisect(objective, sdkmath.OneInt(), m.TotalPt, cfg)
}
