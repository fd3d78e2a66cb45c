/*
Base-pool abstraction: the external AMM aggregating the pooled principal
tokens into one LP unit that the rate market trades against underlying. The
core consumes it through this narrow interface only.
*/

package basepool

import (
	"errors"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrIndexOutOfRange = errors.New("basepool: coin index out of range")
	ErrZeroAmount      = errors.New("basepool: amount must be positive")
	ErrSlippage        = errors.New("basepool: output below minimum")
	ErrInsufficient    = errors.New("basepool: insufficient balance or supply")
)

// BasePool is the venue holding the N pooled principal tokens. All amounts
// are 18-decimal.
type BasePool interface {
	// NumAssets returns N, the number of pooled principal tokens.
	NumAssets() int

	// Exchange swaps dx of coin i for coin j, enforcing minDy.
	Exchange(i, j int, dx, minDy sdkmath.Int) (sdkmath.Int, error)

	// AddLiquidity deposits amounts (length NumAssets) and mints LP,
	// enforcing minMint.
	AddLiquidity(amounts []sdkmath.Int, minMint sdkmath.Int) (sdkmath.Int, error)

	// RemoveLiquidity burns lpAmount and returns all coins proportionally.
	RemoveLiquidity(lpAmount sdkmath.Int) ([]sdkmath.Int, error)

	// RemoveLiquidityOne burns lpAmount for coin i only, enforcing minOut.
	RemoveLiquidityOne(lpAmount sdkmath.Int, i int, minOut sdkmath.Int) (sdkmath.Int, error)

	// GetDy quotes Exchange without executing it.
	GetDy(i, j int, dx sdkmath.Int) (sdkmath.Int, error)

	// Balances returns the reserve of coin i.
	Balances(i int) (sdkmath.Int, error)

	// TotalSupply returns the LP supply.
	TotalSupply() sdkmath.Int
}
