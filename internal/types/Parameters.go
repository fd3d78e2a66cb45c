package types

import "time"

// EngineParameters bounds configuration-time inputs and tunes the numeric
// solver. Loaded once at startup; a series or pool created with values
// outside these bounds is rejected at construction, never per call.
type EngineParameters struct {
	// MaxIssuanceFeeBps caps the per-series issuance fee (500 = 5%).
	MaxIssuanceFeeBps uint32 `json:"max_issuance_fee_bps"`
	// SolverMaxIterations is the hard cap for single-sided liquidity
	// approximation.
	SolverMaxIterations int `json:"solver_max_iterations"`
	// SolverEpsWad is the solver's absolute objective tolerance in WAD.
	SolverEpsWad int64 `json:"solver_eps_wad"`
	// DriftToleranceWei is the accepted band for negative solvency drift.
	DriftToleranceWei int64 `json:"drift_tolerance_wei"`
	// SnapshotInterval is the settlement daemon's cycle interval.
	SnapshotInterval time.Duration `json:"snapshot_interval"`
}
