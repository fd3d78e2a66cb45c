package utils

import (
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestTo18DecimalsScaling(t *testing.T) {
	t.Parallel()

	// 1.5 USDC (6 decimals) becomes 1.5e18 internally.
	got, err := To18Decimals(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	require.Equal(t, "1500000000000000000", got.String())

	// 18-decimal input is a no-op.
	got, err = To18Decimals(sdkmath.NewInt(42), 18)
	require.NoError(t, err)
	require.Equal(t, "42", got.String())
}

func TestFrom18DecimalsExactness(t *testing.T) {
	t.Parallel()

	got, err := From18Decimals(sdkmath.NewInt(1_500_000_000_000_000_000), 6)
	require.NoError(t, err)
	require.Equal(t, "1500000", got.String())

	// A value with dust below the native precision is rejected.
	_, err = From18Decimals(sdkmath.NewInt(1_500_000_000_000_000_001), 6)
	require.ErrorIs(t, err, ErrPrecisionLoss)

	// The truncating variant drops the dust instead.
	got, err = From18DecimalsTrunc(sdkmath.NewInt(1_500_000_000_000_000_001), 6)
	require.NoError(t, err)
	require.Equal(t, "1500000", got.String())
}

func TestDecimalRoundTrip(t *testing.T) {
	t.Parallel()

	// For all values up to 2^96-1 and decimals in [6, 18] the round trip is
	// exact.
	rng := rand.New(rand.NewSource(7))
	maxUint96 := sdkmath.NewIntFromUint64(1).MulRaw(1 << 62).MulRaw(1 << 34).SubRaw(1)

	for decimals := 6; decimals <= 18; decimals++ {
		for i := 0; i < 200; i++ {
			v := sdkmath.NewIntFromUint64(rng.Uint64())
			if v.GT(maxUint96) {
				v = v.Mod(maxUint96)
			}
			up, err := To18Decimals(v, decimals)
			require.NoError(t, err)
			down, err := From18Decimals(up, decimals)
			require.NoError(t, err)
			require.Equal(t, v.String(), down.String(), "decimals=%d", decimals)
		}
		// Boundary value.
		up, err := To18Decimals(maxUint96, decimals)
		require.NoError(t, err)
		down, err := From18Decimals(up, decimals)
		require.NoError(t, err)
		require.Equal(t, maxUint96.String(), down.String())
	}
}

func TestConversionValidation(t *testing.T) {
	t.Parallel()

	_, err := To18Decimals(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = To18Decimals(sdkmath.NewInt(-1), 6)
	require.ErrorIs(t, err, ErrAmountNegative)
	_, err = From18Decimals(sdkmath.NewInt(1), -1)
	require.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = To18Decimals(sdkmath.Int{}, 6)
	require.ErrorIs(t, err, ErrAmountNil)
}

func TestSDKIntToFloat64(t *testing.T) {
	t.Parallel()

	v, err := SDKIntToFloat64(sdkmath.NewInt(1_500_000_000_000_000_000), 18)
	require.NoError(t, err)
	require.InDelta(t, 1.5, v, 1e-12)

	neg, err := SignedIntToFloat64(sdkmath.NewInt(-2_500_000_000_000_000_000), 18)
	require.NoError(t, err)
	require.InDelta(t, -2.5, neg, 1e-12)

	_, err = SDKIntToFloat64(sdkmath.NewInt(-1), 18)
	require.ErrorIs(t, err, ErrAmountNegative)
}
