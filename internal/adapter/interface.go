package adapter

import (
	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/types"
)

// YieldAdapter abstracts the external yield source holding custody of the
// tranche's target shares. Amounts are 18-decimal internal units.
//
// The prefunded methods follow a transfer-then-call discipline: the caller
// first moves value in with TransferUnderlyingIn / TransferSharesIn, then the
// conversion consumes the entire pending balance. An adapter leaves zero
// residual after each prefunded call.
//
// Scale is the target/underlying exchange rate in WAD. It is expected to
// trend upward but callers must tolerate decreases.
type YieldAdapter interface {
	// Scale returns the current target-per-underlying exchange rate in WAD.
	Scale() (sdkmath.Int, error)

	// TransferUnderlyingIn moves underlying into the adapter ahead of a
	// PrefundedDeposit call.
	TransferUnderlyingIn(amount sdkmath.Int) error

	// TransferSharesIn moves target shares into the adapter ahead of a
	// PrefundedRedeem call.
	TransferSharesIn(amount sdkmath.Int) error

	// PrefundedDeposit converts the pending underlying balance to target
	// shares, returning the underlying consumed and the shares minted.
	PrefundedDeposit() (underlyingUsed, sharesMinted sdkmath.Int, err error)

	// PrefundedRedeem converts the pending share balance back to underlying
	// and pays it to the given account, returning the underlying withdrawn
	// and the shares redeemed.
	PrefundedRedeem(to types.Account) (underlyingWithdrawn, sharesRedeemed sdkmath.Int, err error)
}
