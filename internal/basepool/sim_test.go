package basepool

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).MulRaw(1_000_000_000_000_000_000)
}

func seeded(t *testing.T) *SimPool {
	t.Helper()
	p, err := NewSim(3, 10) // 0.1% fee
	require.NoError(t, err)
	_, err = p.AddLiquidity([]sdkmath.Int{amt(100), amt(100), amt(100)}, sdkmath.ZeroInt())
	require.NoError(t, err)
	return p
}

func TestAddLiquidityBootstrapAndProportional(t *testing.T) {
	p, err := NewSim(3, 10)
	require.NoError(t, err)

	// One LP is a three-PT basket: a balanced 300-face deposit mints 100.
	minted, err := p.AddLiquidity([]sdkmath.Int{amt(100), amt(100), amt(100)}, sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, minted.Equal(amt(100)))

	again, err := p.AddLiquidity([]sdkmath.Int{amt(30), sdkmath.ZeroInt(), sdkmath.ZeroInt()}, sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, again.Equal(amt(10)))
	assert.True(t, p.TotalSupply().Equal(amt(110)))
}

func TestExchangeChargesFee(t *testing.T) {
	p := seeded(t)

	dy, err := p.Exchange(0, 1, amt(10), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, dy.LT(amt(10)))
	assert.True(t, dy.Equal(amt(10).MulRaw(9990).QuoRaw(10000)))

	_, err = p.Exchange(0, 1, amt(10), amt(10))
	assert.ErrorIs(t, err, ErrSlippage)

	_, err = p.Exchange(0, 0, amt(1), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestRemoveLiquidityProportional(t *testing.T) {
	p := seeded(t)

	out, err := p.RemoveLiquidity(amt(30))
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, o := range out {
		assert.True(t, o.Equal(amt(30)))
	}
	assert.True(t, p.TotalSupply().Equal(amt(70)))

	_, err = p.RemoveLiquidity(amt(1000))
	assert.ErrorIs(t, err, ErrInsufficient)
}

func TestRemoveLiquidityOne(t *testing.T) {
	p := seeded(t)

	// 30 LP of a 100-supply pool holding 300 face is worth 90, minus fee.
	out, err := p.RemoveLiquidityOne(amt(30), 1, sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, out.Equal(amt(90).MulRaw(9990).QuoRaw(10000)))

	bal, err := p.Balances(1)
	require.NoError(t, err)
	assert.True(t, bal.Equal(amt(100).Sub(out)))
}
