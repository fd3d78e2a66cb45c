/*
Display-side derivations: the implied APY shown for the rate market and the
solvency report computed for each series snapshot. Everything here is
read-only; float64 values never flow back into ledger math.
*/

package analytics

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/types"
	"github.com/stripfi/ysm/internal/utils"
)

// ImpliedAPY converts the rate oracle's ln implied rate (WAD, continuous
// compounding per year) into the annual percentage yield displayed to users:
// e^rate - 1.
func ImpliedAPY(lastLnImpliedRate sdkmath.Int) (float64, error) {
	growth, err := fixedmath.ExpWad(lastLnImpliedRate)
	if err != nil {
		return 0, err
	}
	return utils.SignedIntToFloat64(growth.Sub(fixedmath.Wad), 18)
}

// SolvencyReport compares a series' target custody against its outstanding
// liabilities. A small negative drift is rounding residue from the
// protocol-favoring division directions, not an insolvency.
type SolvencyReport struct {
	SeriesID      types.SeriesID `json:"series_id"`
	Timestamp     time.Time      `json:"timestamp"`
	TargetBalance sdkmath.Int    `json:"target_balance"`
	Liabilities   sdkmath.Int    `json:"liabilities"`
	// Drift is TargetBalance minus Liabilities; negative means under.
	Drift sdkmath.Int `json:"drift"`
	// WithinTolerance is false only when Drift is below -toleranceWei.
	WithinTolerance bool `json:"within_tolerance"`
}

// Solvency builds the report for one series. toleranceWei bounds how negative
// the drift may go before the report is flagged; positive drift is always in
// tolerance.
func Solvency(seriesID types.SeriesID, targetBalance, liabilities sdkmath.Int, toleranceWei int64, now time.Time) SolvencyReport {
	drift := targetBalance.Sub(liabilities)
	return SolvencyReport{
		SeriesID:        seriesID,
		Timestamp:       now,
		TargetBalance:   targetBalance,
		Liabilities:     liabilities,
		Drift:           drift,
		WithinTolerance: drift.GTE(sdkmath.NewInt(-toleranceWei)),
	}
}

// PoolSnapshotFrom assembles the persisted pool view from live state. The
// implied APY is derived here so every snapshot row carries the display value
// alongside the exact rate.
func PoolSnapshotFrom(st types.PoolState, lpSupply sdkmath.Int, now time.Time) (types.PoolSnapshot, error) {
	apy, err := ImpliedAPY(st.LastLnImpliedRate)
	if err != nil {
		return types.PoolSnapshot{}, err
	}
	return types.PoolSnapshot{
		Timestamp:         now,
		TotalUnderlying:   st.TotalUnderlying18,
		TotalBaseLpt:      st.TotalBaseLptTimesN,
		LastLnImpliedRate: st.LastLnImpliedRate,
		LpSupply:          lpSupply,
		ProtocolFees:      st.ProtocolFees18,
		ImpliedAPY:        apy,
	}, nil
}
