/*
Pure pricing core of the implied-rate AMM.

The market prices PT (denominated in base-pool LP units times the number of
pooled PTs) against an underlying-denominated asset unit. The exchange rate
for a trade moving netPtToAccount out of the pool is

	proportion   = (totalPt - netPtToAccount) / (totalPt + totalAsset)
	exchangeRate = ln(proportion / (1 - proportion)) / rateScalar + rateAnchor

where rateScalar = scalarRoot * year / timeToExpiry grows as expiry nears,
flattening the curve, and rateAnchor is re-derived at the start of every
operation from lastLnImpliedRate so the quoted rate is continuous across
trades. At expiry the model is not evaluated at all; the pool layer gates it.

Everything here is pure: functions take a MarketState and return results plus
the successor state, and the caller commits.
*/

package poolmath

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/fixedmath"
)

var (
	// ErrExpired: the rate model is undefined at or after maturity.
	ErrExpired = errors.New("poolmath: market is expired")
	// ErrInsufficientLiquidity: one or both reserves are empty.
	ErrInsufficientLiquidity = errors.New("poolmath: reserves must be positive")
	// ErrProportionOutOfRange: the pool proportion left the open interval
	// (0, 1); the curve cannot price a degenerate pool.
	ErrProportionOutOfRange = errors.New("poolmath: proportion outside (0, 1)")
	// ErrRateBelowOne: the exchange rate fell below 1.0, which would price PT
	// above par.
	ErrRateBelowOne = errors.New("poolmath: exchange rate below one")
	// ErrRateScalarZero: scalarRoot * year / timeToExpiry truncated to zero.
	ErrRateScalarZero = errors.New("poolmath: rate scalar truncated to zero")
	// ErrTradeTooLarge: the trade would exhaust a reserve.
	ErrTradeTooLarge = errors.New("poolmath: trade exceeds available reserves")
	// ErrZeroTrade is returned for a zero-size trade.
	ErrZeroTrade = errors.New("poolmath: trade size must be non-zero")
)

// SecondsPerYear normalizes time-to-expiry in the implied-rate exponent.
const SecondsPerYear int64 = 365 * 24 * 60 * 60

const bpsDenom = 10_000

// MarketState is the pure-math view of the pool. TotalPt is the base-LP
// reserve scaled by the number of pooled PTs; TotalAsset is the underlying
// reserve. Both are 18-decimal.
type MarketState struct {
	TotalPt           sdkmath.Int
	TotalAsset        sdkmath.Int
	ScalarRoot        sdkmath.Int // WAD
	LnFeeRateRoot     sdkmath.Int // WAD, >= 0
	ProtocolFeeBps    uint32
	LastLnImpliedRate sdkmath.Int // WAD, > 0
	TimeToExpiry      int64       // seconds, > 0 while tradable
}

// PreCompute holds the per-operation curve constants: they are derived once
// from the state at the start of an operation and frozen for its duration,
// so sequential quotes inside one operation observe a consistent curve.
type PreCompute struct {
	RateScalar sdkmath.Int
	RateAnchor sdkmath.Int
	FeeRate    sdkmath.Int // exp(lnFeeRateRoot * t / year), >= WAD
}

// TradeResult is one executed trade against the curve. NetAssetToAccount is
// signed: positive means the account receives asset. Fees are non-negative
// asset amounts; FeeToProtocol is carved out of FeeTotal, the remainder
// stays in the reserves for LPs.
type TradeResult struct {
	NetPtToAccount    sdkmath.Int
	NetAssetToAccount sdkmath.Int
	FeeTotal          sdkmath.Int
	FeeToProtocol     sdkmath.Int
	NewState          MarketState
}

// Precompute derives the frozen curve constants for one operation.
func Precompute(m MarketState) (PreCompute, error) {
	if m.TimeToExpiry <= 0 {
		return PreCompute{}, ErrExpired
	}
	if !m.TotalPt.IsPositive() || !m.TotalAsset.IsPositive() {
		return PreCompute{}, ErrInsufficientLiquidity
	}

	rs := m.ScalarRoot.MulRaw(SecondsPerYear).QuoRaw(m.TimeToExpiry)
	if !rs.IsPositive() {
		return PreCompute{}, ErrRateScalarZero
	}

	anchor, err := rateAnchor(m, rs)
	if err != nil {
		return PreCompute{}, err
	}

	feeRate, err := expOverPeriod(m.LnFeeRateRoot, m.TimeToExpiry)
	if err != nil {
		return PreCompute{}, err
	}

	return PreCompute{RateScalar: rs, RateAnchor: anchor, FeeRate: feeRate}, nil
}

// expOverPeriod computes exp(lnRate * t / year) in WAD.
func expOverPeriod(lnRate sdkmath.Int, timeToExpiry int64) (sdkmath.Int, error) {
	x := lnRate.MulRaw(timeToExpiry).QuoRaw(SecondsPerYear)
	return fixedmath.ExpWad(x)
}

// logitProportion returns ln(p / (1 - p)) for p = numPt / total, both WAD
// quantities derived from reserves.
func logitProportion(numPt, total sdkmath.Int) (sdkmath.Int, error) {
	p, err := fixedmath.WDivDown(numPt, total)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !p.IsPositive() || p.GTE(fixedmath.Wad) {
		return sdkmath.ZeroInt(), ErrProportionOutOfRange
	}
	ratio, err := fixedmath.WDivDown(p, fixedmath.Wad.Sub(p))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !ratio.IsPositive() {
		return sdkmath.ZeroInt(), ErrProportionOutOfRange
	}
	return fixedmath.LnWad(ratio)
}

// rateAnchor positions the curve so that the rate at netPt = 0 matches the
// continuously-compounded lastLnImpliedRate over the remaining period.
func rateAnchor(m MarketState, rateScalar sdkmath.Int) (sdkmath.Int, error) {
	er0, err := expOverPeriod(m.LastLnImpliedRate, m.TimeToExpiry)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if er0.LT(fixedmath.Wad) {
		return sdkmath.ZeroInt(), ErrRateBelowOne
	}
	logit0, err := logitProportion(m.TotalPt, m.TotalPt.Add(m.TotalAsset))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	adj, err := fixedmath.WDivTrunc(logit0, rateScalar)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return er0.Sub(adj), nil
}

// ExchangeRate quotes the marginal rate for moving netPtToAccount out of the
// pool (negative = PT flowing in).
func ExchangeRate(m MarketState, comp PreCompute, netPtToAccount sdkmath.Int) (sdkmath.Int, error) {
	newPt := m.TotalPt.Sub(netPtToAccount)
	if !newPt.IsPositive() {
		return sdkmath.ZeroInt(), ErrTradeTooLarge
	}
	logit, err := logitProportion(newPt, m.TotalPt.Add(m.TotalAsset))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	slope, err := fixedmath.WDivTrunc(logit, comp.RateScalar)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	er := slope.Add(comp.RateAnchor)
	if er.LT(fixedmath.Wad) {
		return sdkmath.ZeroInt(), ErrRateBelowOne
	}
	return er, nil
}

// LnImpliedRate reads the annualized log rate off the curve at netPt = 0 for
// the given (possibly post-trade) reserves.
func LnImpliedRate(m MarketState, comp PreCompute) (sdkmath.Int, error) {
	er, err := ExchangeRate(m, comp, sdkmath.ZeroInt())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	lnEr, err := fixedmath.LnWad(er)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	rate := lnEr.MulRaw(SecondsPerYear).QuoRaw(m.TimeToExpiry)
	if !rate.IsPositive() {
		// A zero implied rate cannot anchor the next operation's curve.
		return sdkmath.ZeroInt(), ErrRateBelowOne
	}
	return rate, nil
}

// CalcTrade executes one trade of netPtToAccount (positive: account receives
// PT and pays asset; negative: account sells PT) against the curve, charges
// the time-decayed fee and returns the successor state with reserves and
// lastLnImpliedRate updated together.
func CalcTrade(m MarketState, netPtToAccount sdkmath.Int) (TradeResult, error) {
	if netPtToAccount.IsZero() {
		return TradeResult{}, ErrZeroTrade
	}
	comp, err := Precompute(m)
	if err != nil {
		return TradeResult{}, err
	}

	er, err := ExchangeRate(m, comp, netPtToAccount)
	if err != nil {
		return TradeResult{}, err
	}

	preFeeAsset, err := fixedmath.WDivTrunc(netPtToAccount, er)
	if err != nil {
		return TradeResult{}, err
	}
	preFeeAsset = preFeeAsset.Neg()

	var fee sdkmath.Int
	if netPtToAccount.IsPositive() {
		// Account buys PT: the post-fee rate must still price PT below par.
		postFeeEr, derr := fixedmath.WDivTrunc(er, comp.FeeRate)
		if derr != nil {
			return TradeResult{}, derr
		}
		if postFeeEr.LT(fixedmath.Wad) {
			return TradeResult{}, ErrRateBelowOne
		}
		// preFeeAsset < 0 and (1 - feeRate) <= 0, so fee >= 0.
		fee = fixedmath.WMulTrunc(preFeeAsset, fixedmath.Wad.Sub(comp.FeeRate))
	} else {
		// Account sells PT: fee comes out of the asset proceeds.
		fee = preFeeAsset.Mul(fixedmath.Wad.Sub(comp.FeeRate)).Quo(comp.FeeRate).Neg()
	}
	if fee.IsNegative() {
		fee = sdkmath.ZeroInt()
	}

	feeToProtocol := fee.MulRaw(int64(m.ProtocolFeeBps)).QuoRaw(bpsDenom)
	netAsset := preFeeAsset.Sub(fee)

	newPt := m.TotalPt.Sub(netPtToAccount)
	newAsset := m.TotalAsset.Sub(netAsset).Sub(feeToProtocol)
	if !newPt.IsPositive() || !newAsset.IsPositive() {
		return TradeResult{}, ErrTradeTooLarge
	}

	next := m
	next.TotalPt = newPt
	next.TotalAsset = newAsset
	lir, err := LnImpliedRate(next, comp)
	if err != nil {
		return TradeResult{}, err
	}
	next.LastLnImpliedRate = lir

	return TradeResult{
		NetPtToAccount:    netPtToAccount,
		NetAssetToAccount: netAsset,
		FeeTotal:          fee,
		FeeToProtocol:     feeToProtocol,
		NewState:          next,
	}, nil
}

// SwapExactPtForAsset sells ptIn to the pool and returns the executed trade;
// NetAssetToAccount is the (positive) asset amount out.
func SwapExactPtForAsset(m MarketState, ptIn sdkmath.Int) (TradeResult, error) {
	if !ptIn.IsPositive() {
		return TradeResult{}, ErrZeroTrade
	}
	return CalcTrade(m, ptIn.Neg())
}

// SwapAssetForExactPt buys exactly ptOut from the pool; the (negative)
// NetAssetToAccount is the asset amount the account pays.
func SwapAssetForExactPt(m MarketState, ptOut sdkmath.Int) (TradeResult, error) {
	if !ptOut.IsPositive() {
		return TradeResult{}, ErrZeroTrade
	}
	return CalcTrade(m, ptOut)
}
