package fixedmath

import (
	"errors"

	sdkmath "cosmossdk.io/math"
)

// ErrApproxFail is returned when the bounded solver exhausts its iteration
// budget without converging. The true answer may exist; callers may retry
// with adjusted parameters, but no automatic retry happens here.
var ErrApproxFail = errors.New("fixedmath: approximation did not converge within iteration budget")

// ErrBadBracket is returned when the objective does not change sign over the
// search interval, so no root can be bracketed at all.
var ErrBadBracket = errors.New("fixedmath: objective has no root in the search interval")

// SolverConfig bounds the iterative approximation used by single-sided
// liquidity operations. Both values are explicit configuration rather than
// constants so the convergence boundary can be tested directly.
type SolverConfig struct {
	// MaxIterations is the hard cap on bisection steps.
	MaxIterations int
	// EpsWad is the absolute tolerance on the objective value, in WAD.
	EpsWad sdkmath.Int
}

// DefaultSolverConfig converges for every pool state the AMM accepts while
// leaving generous headroom: a full-range bisection over 96-bit quantities
// needs fewer than 100 steps.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		MaxIterations: 256,
		EpsWad:        sdkmath.NewInt(100_000_000), // 1e-10 in WAD terms
	}
}

// Objective is the function whose root the solver searches for. It must be
// monotonically non-decreasing over the search interval. An error aborts the
// search immediately.
type Objective func(x sdkmath.Int) (sdkmath.Int, error)

// Bisect finds x in [lo, hi] with |f(x)| <= cfg.EpsWad by interval halving.
// It returns ErrBadBracket if f has the same sign at both endpoints and
// ErrApproxFail if the iteration budget runs out first.
func Bisect(f Objective, lo, hi sdkmath.Int, cfg SolverConfig) (sdkmath.Int, error) {
	if lo.GT(hi) {
		lo, hi = hi, lo
	}
	flo, err := f(lo)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if flo.Abs().LTE(cfg.EpsWad) {
		return lo, nil
	}
	fhi, err := f(hi)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if fhi.Abs().LTE(cfg.EpsWad) {
		return hi, nil
	}
	if flo.IsPositive() == fhi.IsPositive() {
		return sdkmath.ZeroInt(), ErrBadBracket
	}

	two := sdkmath.NewInt(2)
	for i := 0; i < cfg.MaxIterations; i++ {
		mid := lo.Add(hi).Quo(two)
		fm, err := f(mid)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		if fm.Abs().LTE(cfg.EpsWad) {
			return mid, nil
		}
		if fm.IsPositive() {
			hi = mid
		} else {
			lo = mid
		}
		if hi.Sub(lo).LTE(sdkmath.OneInt()) {
			// Interval collapsed to adjacent integers without meeting the
			// tolerance; treat as non-convergence rather than best effort.
			return sdkmath.ZeroInt(), ErrApproxFail
		}
	}
	return sdkmath.ZeroInt(), ErrApproxFail
}
