package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// OperationKind labels a ledger operation for receipts and indexers.
type OperationKind string

const (
	OpIssue           OperationKind = "ISSUE"
	OpCollect         OperationKind = "COLLECT"
	OpRedeem          OperationKind = "REDEEM"
	OpRedeemWithYT    OperationKind = "REDEEM_WITH_YT"
	OpWithdraw        OperationKind = "WITHDRAW"
	OpClaimFees       OperationKind = "CLAIM_FEES"
	OpSwap            OperationKind = "SWAP"
	OpAddLiquidity    OperationKind = "ADD_LIQUIDITY"
	OpRemoveLiquidity OperationKind = "REMOVE_LIQUIDITY"
	OpSettle          OperationKind = "SETTLE"
)

// OperationReceipt is the audit record written for every completed ledger
// operation. Indexers may rely on this shape.
type OperationReceipt struct {
	ID        string        `json:"id"` // UUID
	Kind      OperationKind `json:"kind"`
	SeriesID  SeriesID      `json:"series_id,omitempty"`
	Account   Account       `json:"account,omitempty"`
	AmountIn  sdkmath.Int   `json:"amount_in"`
	AmountOut sdkmath.Int   `json:"amount_out"`
	// Fee is the total fee charged by the operation, in the operation's
	// natural unit (target shares for issuance, underlying for swaps).
	Fee sdkmath.Int `json:"fee"`
	// ProtocolFee is the portion of Fee accruing to the protocol reserve.
	ProtocolFee sdkmath.Int `json:"protocol_fee"`
	Timestamp   time.Time   `json:"timestamp"`
}

// SeriesSnapshot is the periodic persisted view of one series.
type SeriesSnapshot struct {
	SeriesID      SeriesID    `json:"series_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Phase         string      `json:"phase"`
	Mscale        sdkmath.Int `json:"mscale"`
	Maxscale      sdkmath.Int `json:"maxscale"`
	PTSupply      sdkmath.Int `json:"pt_supply"`
	YTSupply      sdkmath.Int `json:"yt_supply"`
	IssuanceFees  sdkmath.Int `json:"issuance_fees"`
	TargetBalance sdkmath.Int `json:"target_balance"`
	// SolvencyDrift is target balance minus (unclaimed liabilities + fees).
	// Small negative values are an accepted rounding residue, not an error.
	SolvencyDrift sdkmath.Int `json:"solvency_drift"`
}

/// SettlementRun records one pass of the settlement daemon: which series were
// settled and how many snapshots were written.
type SettlementRun struct {
	RunID            string    `json:"run_id"` // UUID
	RunNumber        int       `json:"run_number"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	SeriesSettled    int       `json:"series_settled"`
	SnapshotsWritten int       `json:"snapshots_written"`
	Success          bool      `json:"success"`
	Message          string    `json:"message,omitempty"`
}

// PoolSnapshot is the periodic persisted view of the AMM.
type PoolSnapshot struct {
	Timestamp         time.Time   `json:"timestamp"`
	TotalUnderlying   sdkmath.Int `json:"total_underlying"`
	TotalBaseLpt      sdkmath.Int `json:"total_base_lpt"`
	LastLnImpliedRate sdkmath.Int `json:"last_ln_implied_rate"`
	LpSupply          sdkmath.Int `json:"lp_supply"`
	ProtocolFees      sdkmath.Int `json:"protocol_fees"`
	// ImpliedAPY is a display-only derivation of LastLnImpliedRate.
	ImpliedAPY float64 `json:"implied_apy"`
}
