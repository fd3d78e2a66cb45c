/*

AMM-side state types. PoolState is the single struct mutated atomically by the
pool's commit step; quotes and trades never observe a partially updated view.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolState is the complete reserve and rate state of the AMM.
type PoolState struct {
	// TotalUnderlying18 is the underlying reserve in 18-decimal units.
	TotalUnderlying18 sdkmath.Int `json:"total_underlying_18"`
	// TotalBaseLptTimesN is the base-pool LP reserve scaled by the number of
	// principal tokens the base pool aggregates; it plays the "PT side" role
	// in the pricing model.
	TotalBaseLptTimesN sdkmath.Int `json:"total_base_lpt_times_n"`
	// LnFeeRateRoot is the per-year log fee rate, WAD.
	LnFeeRateRoot sdkmath.Int `json:"ln_fee_rate_root"`
	// ProtocolFeeBps is the protocol's share of trade fees in basis points.
	ProtocolFeeBps uint32 `json:"protocol_fee_bps"`
	// ScalarRoot controls curve steepness at one year to expiry, WAD.
	ScalarRoot sdkmath.Int `json:"scalar_root"`
	// Maturity freezes the rate oracle and disables swaps when reached.
	Maturity time.Time `json:"maturity"`
	// LastLnImpliedRate is the rate-oracle anchor, WAD; frozen at maturity.
	LastLnImpliedRate sdkmath.Int `json:"last_ln_implied_rate"`
	// ProtocolFees18 is the accumulated protocol fee reserve in 18-decimal
	// underlying units, excluded from tradable reserves.
	ProtocolFees18 sdkmath.Int `json:"protocol_fees_18"`
}

// Expired reports whether the pool has reached maturity.
func (p *PoolState) Expired(now time.Time) bool {
	return !now.Before(p.Maturity)
}

// TimeToExpiry returns seconds until maturity, clamped to zero.
func (p *PoolState) TimeToExpiry(now time.Time) int64 {
	if p.Expired(now) {
		return 0
	}
	return int64(p.Maturity.Sub(now).Seconds())
}
