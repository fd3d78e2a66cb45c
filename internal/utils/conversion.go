/*
This file contains conversion helpers between native token precision, the
18-decimal internal accounting unit, and float64 for display surfaces.
All ledger math stays on sdkmath.Int; float64 is display-only.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrPrecisionLoss    = errors.New("conversion would lose precision")
	ErrConversionFailed = errors.New("conversion failed")
)

// internalDecimals is the precision of the internal accounting unit.
const internalDecimals = 18

func pow10(n int) sdkmath.Int {
	factor := sdkmath.OneInt()
	ten := sdkmath.NewInt(10)
	for i := 0; i < n; i++ {
		factor = factor.Mul(ten)
	}
	return factor
}

// To18Decimals scales an amount expressed with the given token decimals up to
// the 18-decimal internal unit. The scaling is exact: for any non-negative
// amount and decimals in [0, 18], From18Decimals(To18Decimals(v)) == v.
func To18Decimals(amount sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > internalDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return amount.Mul(pow10(internalDecimals - decimals)), nil
}

// From18Decimals scales an 18-decimal internal amount back down to the given
// token decimals. Amounts that are not a whole multiple of the target
// precision are rejected rather than silently truncated.
func From18Decimals(amount sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > internalDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	factor := pow10(internalDecimals - decimals)
	if !amount.Mod(factor).IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s is not a multiple of 10^%d",
			ErrPrecisionLoss, amount, internalDecimals-decimals)
	}
	return amount.Quo(factor), nil
}

// From18DecimalsTrunc is the lossy variant used for payout paths where the
// residual dust (always below one native unit) stays with the protocol.
func From18DecimalsTrunc(amount sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > internalDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return amount.Quo(pow10(internalDecimals - decimals)), nil
}

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision
// handling. Display-only: never feed the result back into ledger math.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > internalDecimals {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDecFromInt(pow10(precision))

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// SignedIntToFloat64 is SDKIntToFloat64 for values that may legitimately be
// negative (implied rates, solvency drift).
func SignedIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		v, err := SDKIntToFloat64(amount.Neg(), precision)
		return -v, err
	}
	return SDKIntToFloat64(amount, precision)
}
