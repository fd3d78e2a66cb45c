package fixedmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestMulDivRounding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		a, b, c    int64
		down, up   int64
	}{
		{"exact", 10, 10, 4, 25, 25},
		{"truncating", 10, 10, 3, 33, 34},
		{"one wei", 1, 1, 3, 0, 1},
		{"zero numerator", 0, 5, 3, 0, 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a, b, c := sdkmath.NewInt(tc.a), sdkmath.NewInt(tc.b), sdkmath.NewInt(tc.c)
			down, err := MulDivDown(a, b, c)
			require.NoError(t, err)
			require.Equal(t, tc.down, down.Int64())
			up, err := MulDivUp(a, b, c)
			require.NoError(t, err)
			require.Equal(t, tc.up, up.Int64())
		})
	}
}

func TestMulDivErrors(t *testing.T) {
	t.Parallel()

	_, err := MulDivDown(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrZeroDivisor)
	_, err = MulDivUp(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrZeroDivisor)
	_, err = MulDivDown(sdkmath.NewInt(-1), sdkmath.NewInt(1), sdkmath.NewInt(1))
	require.ErrorIs(t, err, ErrNegativeInput)
}

func TestWadHelpers(t *testing.T) {
	t.Parallel()

	// 1.5 * 2 == 3 in WAD
	a := sdkmath.NewInt(1_500_000_000_000_000_000)
	b := sdkmath.NewInt(2_000_000_000_000_000_000)
	got, err := WMulDown(a, b)
	require.NoError(t, err)
	require.Equal(t, "3000000000000000000", got.String())

	// 1 / 3 rounds differently per direction
	down, err := WDivDown(Wad, sdkmath.NewInt(3_000_000_000_000_000_000))
	require.NoError(t, err)
	up, err := WDivUp(Wad, sdkmath.NewInt(3_000_000_000_000_000_000))
	require.NoError(t, err)
	require.Equal(t, "333333333333333333", down.String())
	require.Equal(t, "333333333333333334", up.String())
}

func TestSqrtInt(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"0", "0"},
		{"1", "1"},
		{"1000000000000000000", "1000000000"},
		{"1000000000000000000000000000000000000", "1000000000000000000"},
		{"2", "1"},
	}
	for _, tc := range cases {
		in, ok := sdkmath.NewIntFromString(tc.in)
		require.True(t, ok)
		got, err := SqrtInt(in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got.String())
	}

	_, err := SqrtInt(sdkmath.NewInt(-4))
	require.ErrorIs(t, err, ErrNegativeInput)
}

// requireWithinWei asserts |got - want| <= tol wei.
func requireWithinWei(t *testing.T, want, got sdkmath.Int, tol int64) {
	t.Helper()
	diff := got.Sub(want).Abs()
	require.True(t, diff.LTE(sdkmath.NewInt(tol)),
		"want %s got %s (diff %s > %d wei)", want, got, diff, tol)
}

func TestLnWadKnownValues(t *testing.T) {
	t.Parallel()

	got, err := LnWad(Wad)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	got, err = LnWad(TwoWad)
	require.NoError(t, err)
	require.Equal(t, Ln2Wad.String(), got.String())

	// ln(e) == 1
	e := sdkmath.NewInt(2_718_281_828_459_045_235)
	got, err = LnWad(e)
	require.NoError(t, err)
	requireWithinWei(t, Wad, got, 100)

	// ln(0.5) == -ln(2)
	got, err = LnWad(sdkmath.NewInt(500_000_000_000_000_000))
	require.NoError(t, err)
	requireWithinWei(t, Ln2Wad.Neg(), got, 100)
}

func TestLnWadDomain(t *testing.T) {
	t.Parallel()

	_, err := LnWad(sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrLnNonPositive)
	_, err = LnWad(sdkmath.NewInt(-1))
	require.ErrorIs(t, err, ErrLnNonPositive)
}

func TestExpWadKnownValues(t *testing.T) {
	t.Parallel()

	got, err := ExpWad(sdkmath.ZeroInt())
	require.NoError(t, err)
	require.Equal(t, Wad.String(), got.String())

	got, err = ExpWad(Ln2Wad)
	require.NoError(t, err)
	requireWithinWei(t, TwoWad, got, 10)

	got, err = ExpWad(Wad)
	require.NoError(t, err)
	requireWithinWei(t, sdkmath.NewInt(2_718_281_828_459_045_235), got, 100)

	got, err = ExpWad(Wad.Neg())
	require.NoError(t, err)
	requireWithinWei(t, sdkmath.NewInt(367_879_441_171_442_321), got, 100)
}

func TestExpWadDomain(t *testing.T) {
	t.Parallel()

	_, err := ExpWad(MaxExpInputWad.AddRaw(1))
	require.ErrorIs(t, err, ErrExpOutOfRange)

	// Deep negative inputs underflow to exactly zero rather than erroring.
	got, err := ExpWad(MinExpInputWad.SubRaw(1))
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestLnExpRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []int64{
		1,                          // 1e-18
		250_000_000_000_000_000,    // 0.25
		1_000_000_000_000_000_000,  // 1
		3_141_592_653_589_793_238, // pi
		8_000_000_000_000_000_000, // 8
	}
	for _, v := range inputs {
		x := sdkmath.NewInt(v)
		ex, err := ExpWad(x)
		require.NoError(t, err)
		back, err := LnWad(ex)
		require.NoError(t, err)
		requireWithinWei(t, x, back, 1000)
	}
}

func TestBisectLinear(t *testing.T) {
	t.Parallel()

	target := sdkmath.NewInt(12_345_678_987)
	f := func(x sdkmath.Int) (sdkmath.Int, error) {
		return x.Sub(target), nil
	}
	root, err := Bisect(f, sdkmath.ZeroInt(), sdkmath.NewInt(1e18), DefaultSolverConfig())
	require.NoError(t, err)
	requireWithinWei(t, target, root, 100_000_000)
}

func TestBisectBadBracket(t *testing.T) {
	t.Parallel()

	f := func(x sdkmath.Int) (sdkmath.Int, error) {
		return x.AddRaw(1_000_000_000), nil // positive over the whole interval
	}
	_, err := Bisect(f, sdkmath.ZeroInt(), sdkmath.NewInt(1e12), DefaultSolverConfig())
	require.ErrorIs(t, err, ErrBadBracket)
}

func TestBisectIterationBudget(t *testing.T) {
	t.Parallel()

	target := sdkmath.NewInt(999_999_999_999_999_999)
	f := func(x sdkmath.Int) (sdkmath.Int, error) {
		return x.Sub(target), nil
	}
	cfg := SolverConfig{MaxIterations: 3, EpsWad: sdkmath.OneInt()}
	_, err := Bisect(f, sdkmath.ZeroInt(), sdkmath.NewInt(1e18), cfg)
	require.ErrorIs(t, err, ErrApproxFail)

	// The same problem converges once the budget is realistic.
	cfg.MaxIterations = 128
	root, err := Bisect(f, sdkmath.ZeroInt(), sdkmath.NewInt(1e18), cfg)
	require.NoError(t, err)
	requireWithinWei(t, target, root, 1)
}
