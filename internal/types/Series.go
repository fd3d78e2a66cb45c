/*

Core ledger types for the tranche side of the system: series metadata, the
global scale pair, and per-account yield state.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Account identifies a holder on the internal ledger. The empty string is the
// zero account and is never a valid recipient.
type Account string

// ZeroAccount is the forbidden empty recipient.
const ZeroAccount Account = ""

// SeriesID is the handle allocated by the factory for one tranche series.
// Identifiers are opaque; nothing is derived from them.
type SeriesID string

// SeriesPhase is the lifecycle state of a series.
type SeriesPhase int

const (
	// PhaseActive: before maturity; issuance and yield accrual run normally.
	PhaseActive SeriesPhase = iota
	// PhaseMatured: maturity timestamp passed but the settlement scale has
	// not been captured yet (no interaction since maturity).
	PhaseMatured
	// PhaseSettled: first post-maturity interaction captured mscale; PT and
	// YT claims are now fixed by the settlement split.
	PhaseSettled
)

func (p SeriesPhase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseMatured:
		return "matured"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Series holds the per-deployment tranche configuration and its mutable scale
// state. Everything except Mscale and Maxscale is immutable after creation.
type Series struct {
	ID                 SeriesID    `json:"id"`
	Underlying         string      `json:"underlying"`          // e.g. "WETH"
	Target             string      `json:"target"`              // e.g. "stETH"
	UnderlyingDecimals int         `json:"underlying_decimals"` // native token precision
	Maturity           time.Time   `json:"maturity"`
	TiltBps            uint32      `json:"tilt_bps"`         // [0, 10000)
	IssuanceFeeBps     uint32      `json:"issuance_fee_bps"` // [0, 500]
	Mscale             sdkmath.Int `json:"mscale"`           // zero until settled
	Maxscale           sdkmath.Int `json:"maxscale"`         // running max of observed scales
}

// Phase reports the series lifecycle state as of now.
func (s Series) Phase(now time.Time) SeriesPhase {
	if now.Before(s.Maturity) {
		return PhaseActive
	}
	if s.Mscale.IsNil() || s.Mscale.IsZero() {
		return PhaseMatured
	}
	return PhaseSettled
}

// GlobalScales is the packed view of the series scale state read by
// integration harnesses. It always mirrors the Series fields.
type GlobalScales struct {
	Mscale   sdkmath.Int `json:"mscale"`
	Maxscale sdkmath.Int `json:"maxscale"`
}

// AccountYieldState is the lazily-maintained per-holder accrual state.
// Lscale == 0 is the "never interacted" sentinel.
type AccountYieldState struct {
	// Lscale is the reference scale observed at the account's last
	// yield-affecting action.
	Lscale sdkmath.Int `json:"lscale"`
	// UnclaimedYield is accrued-but-uncollected yield in target shares
	// (18-decimal internal units).
	UnclaimedYield sdkmath.Int `json:"unclaimed_yield"`
	// Settled records that the one-time post-maturity YT settlement credit
	// has been applied to this account.
	Settled bool `json:"settled"`
}
