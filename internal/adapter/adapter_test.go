package adapter

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/types"
)

const payee types.Account = "payee"

func wadInt(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(fixedmath.Wad)
}

func TestMockRejectsNonPositiveScale(t *testing.T) {
	_, err := NewMock(sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrScaleNotPositive)

	m, err := NewMock(fixedmath.Wad)
	require.NoError(t, err)
	assert.ErrorIs(t, m.SetScale(sdkmath.NewInt(-1)), ErrScaleNotPositive)
}

func TestMockDepositMintsSharesAtScale(t *testing.T) {
	m, err := NewMock(wadInt(2))
	require.NoError(t, err)

	require.NoError(t, m.TransferUnderlyingIn(wadInt(100)))
	used, shares, err := m.PrefundedDeposit()
	require.NoError(t, err)

	assert.True(t, used.Equal(wadInt(100)))
	assert.True(t, shares.Equal(wadInt(50)))

	// The pending balance is consumed; a second call is a zero conversion.
	used, shares, err = m.PrefundedDeposit()
	require.NoError(t, err)
	assert.True(t, used.IsZero())
	assert.True(t, shares.IsZero())
}

func TestMockRedeemPaysUnderlyingAtScale(t *testing.T) {
	m, err := NewMock(fixedmath.Wad)
	require.NoError(t, err)

	require.NoError(t, m.TransferUnderlyingIn(wadInt(100)))
	_, shares, err := m.PrefundedDeposit()
	require.NoError(t, err)

	m.GrowScaleBps(1000) // +10%

	require.NoError(t, m.TransferSharesIn(shares))
	underlying, redeemed, err := m.PrefundedRedeem(payee)
	require.NoError(t, err)

	assert.True(t, redeemed.Equal(shares))
	assert.True(t, underlying.Equal(wadInt(110)))
	assert.True(t, m.PayoutOf(payee).Equal(wadInt(110)))
}

func TestMockScaleDecreaseTolerated(t *testing.T) {
	m, err := NewMock(wadInt(2))
	require.NoError(t, err)

	require.NoError(t, m.SetScale(fixedmath.Wad))
	s, err := m.Scale()
	require.NoError(t, err)
	assert.True(t, s.Equal(fixedmath.Wad))
}

func fixedRate(s sdkmath.Int) RateSource {
	return func() (sdkmath.Int, error) { return s, nil }
}

func TestLstRedeemRequiresBuffer(t *testing.T) {
	l := NewLst(fixedRate(fixedmath.Wad))

	require.NoError(t, l.TransferSharesIn(wadInt(10)))
	_, _, err := l.PrefundedRedeem(payee)
	assert.ErrorIs(t, err, ErrInsufficientBuffer)

	// The failed redeem must not consume the pending shares.
	id, err := l.RequestWithdrawal(wadInt(10))
	require.NoError(t, err)
	require.NoError(t, l.ClaimWithdrawal(id))
	require.True(t, l.BufferEth().Equal(wadInt(10)))

	underlying, redeemed, err := l.PrefundedRedeem(payee)
	require.NoError(t, err)
	assert.True(t, underlying.Equal(wadInt(10)))
	assert.True(t, redeemed.Equal(wadInt(10)))
	assert.True(t, l.BufferEth().IsZero())
}

func TestLstSingleOutstandingRequest(t *testing.T) {
	l := NewLst(fixedRate(fixedmath.Wad))

	id, err := l.RequestWithdrawal(wadInt(5))
	require.NoError(t, err)

	_, err = l.RequestWithdrawal(wadInt(5))
	assert.ErrorIs(t, err, ErrRequestPending)

	assert.ErrorIs(t, l.ClaimWithdrawal(id+1), ErrUnknownRequest)
	require.NoError(t, l.ClaimWithdrawal(id))
	assert.ErrorIs(t, l.ClaimWithdrawal(id), ErrNoRequest)

	// The queue is drained into the buffer and a new request may start.
	assert.True(t, l.QueueEth().IsZero())
	assert.True(t, l.BufferEth().Equal(wadInt(5)))
	next, err := l.RequestWithdrawal(wadInt(3))
	require.NoError(t, err)
	assert.NotEqual(t, id, next)
}

func TestLstDepositUsesLiveRate(t *testing.T) {
	rate := wadInt(2)
	l := NewLst(func() (sdkmath.Int, error) { return rate, nil })

	require.NoError(t, l.TransferUnderlyingIn(wadInt(100)))
	used, shares, err := l.PrefundedDeposit()
	require.NoError(t, err)
	assert.True(t, used.Equal(wadInt(100)))
	assert.True(t, shares.Equal(wadInt(50)))

	rate = sdkmath.ZeroInt()
	_, err = l.Scale()
	assert.ErrorIs(t, err, ErrScaleNotPositive)
}
