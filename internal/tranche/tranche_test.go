package tranche

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripfi/ysm/internal/adapter"
	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/types"
)

const (
	alice    types.Account = "alice"
	bob      types.Account = "bob"
	treasury types.Account = "treasury"
)

func wadInt(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(fixedmath.Wad)
}

// scaleOf builds a WAD scale of num/den, e.g. scaleOf(11, 10) = 1.1.
func scaleOf(num, den int64) sdkmath.Int {
	return sdkmath.NewInt(num).Mul(fixedmath.Wad).QuoRaw(den)
}

func requireWithinWei(t *testing.T, expected, actual sdkmath.Int, tolWei int64) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	require.True(t, diff.LTE(sdkmath.NewInt(tolWei)),
		"expected %s within %d wei of %s (diff %s)", actual, tolWei, expected, diff)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type memRecorder struct {
	receipts []types.OperationReceipt
}

func (m *memRecorder) Record(r types.OperationReceipt) {
	m.receipts = append(m.receipts, r)
}

func (m *memRecorder) kinds() []types.OperationKind {
	out := make([]types.OperationKind, 0, len(m.receipts))
	for _, r := range m.receipts {
		out = append(out, r.Kind)
	}
	return out
}

type fixture struct {
	tranche  *Tranche
	adapter  *adapter.MockAdapter
	clock    *testClock
	recorder *memRecorder
}

func newFixture(t *testing.T, tiltBps, feeBps uint32) *fixture {
	t.Helper()
	mock, err := adapter.NewMock(fixedmath.Wad)
	require.NoError(t, err)
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &memRecorder{}

	tr, err := New(Config{
		Underlying:         "WETH",
		Target:             "stETH",
		UnderlyingDecimals: 18,
		Maturity:           clock.now.Add(30 * 24 * time.Hour),
		TiltBps:            tiltBps,
		IssuanceFeeBps:     feeBps,
		Adapter:            mock,
		Params:             types.EngineParameters{MaxIssuanceFeeBps: 500},
		Recorder:           rec,
		Clock:              clock.Now,
	})
	require.NoError(t, err)
	return &fixture{tranche: tr, adapter: mock, clock: clock, recorder: rec}
}

func (f *fixture) mature() {
	f.clock.Advance(31 * 24 * time.Hour)
}

func TestNewRejectsBadParameters(t *testing.T) {
	mock, err := adapter.NewMock(fixedmath.Wad)
	require.NoError(t, err)
	base := Config{
		UnderlyingDecimals: 18,
		Maturity:           time.Now().Add(time.Hour),
		Adapter:            mock,
		Params:             types.EngineParameters{MaxIssuanceFeeBps: 500},
	}

	cfg := base
	cfg.TiltBps = 10_000
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrParamOutOfBounds)

	cfg = base
	cfg.IssuanceFeeBps = 501
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrParamOutOfBounds)

	cfg = base
	cfg.Maturity = time.Now().Add(-time.Hour)
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrParamOutOfBounds)

	cfg = base
	cfg.UnderlyingDecimals = 19
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrParamOutOfBounds)
}

func TestIssueMintsEqualPrincipalAndYield(t *testing.T) {
	f := newFixture(t, 0, 0)

	issued, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	assert.True(t, issued.Equal(wadInt(100)), "issued %s", issued)
	assert.True(t, f.tranche.PTBalanceOf(alice).Equal(wadInt(100)))
	assert.True(t, f.tranche.YTBalanceOf(alice).Equal(wadInt(100)))
	assert.True(t, f.tranche.TotalSupplyPT().Equal(f.tranche.TotalSupplyYT()))
	assert.True(t, f.tranche.GlobalScales().Maxscale.Equal(fixedmath.Wad))
	assert.True(t, f.tranche.TargetBalance().Equal(wadInt(100)))
}

func TestIssueChargesProtocolFee(t *testing.T) {
	f := newFixture(t, 0, 100) // 1%

	issued, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	assert.True(t, issued.Equal(wadInt(99)), "issued %s", issued)
	assert.True(t, f.tranche.IssuanceFees().Equal(wadInt(1)))

	out, err := f.tranche.ClaimIssuanceFees(treasury)
	require.NoError(t, err)
	assert.True(t, out.Equal(wadInt(1)), "fee payout %s", out)
	assert.True(t, f.tranche.IssuanceFees().IsZero())
	assert.True(t, f.adapter.PayoutOf(treasury).Equal(wadInt(1)))
}

func TestIssueInputValidation(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(types.ZeroAccount, wadInt(1))
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = f.tranche.Issue(alice, sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrZeroAmount)

	f.mature()
	_, err = f.tranche.Issue(alice, wadInt(1))
	assert.ErrorIs(t, err, ErrTrancheMatured)
}

func TestIssueRejectsDust(t *testing.T) {
	mock, err := adapter.NewMock(fixedmath.Wad.Mul(fixedmath.Wad))
	require.NoError(t, err)
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr, err := New(Config{
		UnderlyingDecimals: 18,
		Maturity:           clock.now.Add(time.Hour),
		Adapter:            mock,
		Params:             types.EngineParameters{MaxIssuanceFeeBps: 500},
		Clock:              clock.Now,
	})
	require.NoError(t, err)

	// Half a unit against a 1e18 scale converts to zero shares.
	_, err = tr.Issue(alice, fixedmath.Wad.QuoRaw(2))
	assert.ErrorIs(t, err, ErrIssuanceTooSmall)
}

func TestIssueReinvestsUnclaimedYield(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(11, 10)))

	// 110 underlying at scale 1.1 is 100 shares; the ~9.09 shares of accrued
	// yield are folded into the new principal at maxscale 1.1.
	issued, err := f.tranche.Issue(alice, wadInt(110))
	require.NoError(t, err)
	requireWithinWei(t, wadInt(120), issued, 2)
	assert.True(t, f.tranche.UnclaimedYieldOf(alice).IsZero())
	requireWithinWei(t, wadInt(220), f.tranche.PTBalanceOf(alice), 2)
}

func TestCollectPaysAccruedYield(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(11, 10)))

	out, err := f.tranche.Collect(alice)
	require.NoError(t, err)
	requireWithinWei(t, wadInt(10), out, 2)
	assert.True(t, f.adapter.PayoutOf(alice).Equal(out))

	// Nothing left immediately after.
	again, err := f.tranche.Collect(alice)
	require.NoError(t, err)
	assert.True(t, again.IsZero())
}

func TestCollectNeverInteractedIsNoop(t *testing.T) {
	f := newFixture(t, 0, 0)

	out, err := f.tranche.Collect(bob)
	require.NoError(t, err)
	assert.True(t, out.IsZero())
	assert.True(t, f.tranche.LscaleOf(bob).IsZero())
}

func TestCollectParityBetweenEqualHolders(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)
	_, err = f.tranche.Issue(bob, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(117, 100)))

	outA, err := f.tranche.Collect(alice)
	require.NoError(t, err)
	outB, err := f.tranche.Collect(bob)
	require.NoError(t, err)
	requireWithinWei(t, outA, outB, 1)
}

func TestYieldTokenTransferPreservesAccrual(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(11, 10)))

	require.NoError(t, f.tranche.TransferYT(alice, bob, wadInt(100)))

	// The transfer accrued alice's yield against her pre-transfer balance and
	// anchored bob at the transfer scale with nothing accrued.
	assert.True(t, f.tranche.UnclaimedYieldOf(alice).IsPositive())
	assert.True(t, f.tranche.UnclaimedYieldOf(bob).IsZero())
	assert.True(t, f.tranche.LscaleOf(bob).Equal(scaleOf(11, 10)))

	require.NoError(t, f.adapter.SetScale(scaleOf(121, 100)))

	// Alice keeps the pre-transfer yield, revalued at the current rate; bob
	// earns only the post-transfer leg.
	outA, err := f.tranche.Collect(alice)
	require.NoError(t, err)
	requireWithinWei(t, wadInt(11), outA, 3)

	outB, err := f.tranche.Collect(bob)
	require.NoError(t, err)
	requireWithinWei(t, wadInt(10), outB, 5)
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(10))
	require.NoError(t, err)

	assert.ErrorIs(t, f.tranche.TransferPT(alice, types.ZeroAccount, wadInt(1)), ErrZeroAddress)
	assert.ErrorIs(t, f.tranche.TransferYT(alice, bob, sdkmath.ZeroInt()), ErrZeroAmount)
	assert.ErrorIs(t, f.tranche.TransferPT(alice, bob, wadInt(11)), ErrInsufficientBalance)

	require.NoError(t, f.tranche.TransferPT(alice, bob, wadInt(4)))
	assert.True(t, f.tranche.PTBalanceOf(alice).Equal(wadInt(6)))
	assert.True(t, f.tranche.PTBalanceOf(bob).Equal(wadInt(4)))
	assert.True(t, f.tranche.TotalSupplyPT().Equal(wadInt(10)))
}

func TestRedeemWithYTBeforeMaturity(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(11, 10)))

	out, err := f.tranche.RedeemWithYT(alice, alice, wadInt(50))
	require.NoError(t, err)
	requireWithinWei(t, wadInt(50), out, 2)
	assert.True(t, f.tranche.PTBalanceOf(alice).Equal(wadInt(50)))
	assert.True(t, f.tranche.YTBalanceOf(alice).Equal(wadInt(50)))
	assert.True(t, f.tranche.TotalSupplyPT().Equal(f.tranche.TotalSupplyYT()))
}

func TestMaturityGates(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	_, err = f.tranche.Redeem(alice, alice, wadInt(10))
	assert.ErrorIs(t, err, ErrNotMatured)

	_, err = f.tranche.Withdraw(alice, alice, wadInt(10))
	assert.ErrorIs(t, err, ErrNotMatured)
}

func TestSettlementSunnyDayWithTilt(t *testing.T) {
	f := newFixture(t, 1000, 0) // 10% tilt

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(12, 10)))
	f.mature()

	// Settlement scale equals the historical maximum, so the day is sunny:
	// principal redeems at 90% of face, the yield side keeps the 10% tilt.
	out, err := f.tranche.Redeem(alice, alice, wadInt(100))
	require.NoError(t, err)
	requireWithinWei(t, wadInt(90), out, 2)

	scales := f.tranche.GlobalScales()
	assert.True(t, scales.Mscale.Equal(scaleOf(12, 10)))
	assert.True(t, scales.Maxscale.Equal(scaleOf(12, 10)))

	// Accrued yield 1.0 -> 1.2 plus the settled tilt share of principal.
	collected, err := f.tranche.Collect(alice)
	require.NoError(t, err)
	requireWithinWei(t, wadInt(30), collected, 3)
	assert.True(t, f.tranche.YTBalanceOf(alice).IsZero(), "settled collect burns YT")

	again, err := f.tranche.Collect(alice)
	require.NoError(t, err)
	assert.True(t, again.IsZero())

	assert.Contains(t, f.recorder.kinds(), types.OpSettle)
}

func TestSettlementNotSunnyCapsPrincipal(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	// Push maxscale to 1.2 while active, then drop back to 1.0 by maturity.
	require.NoError(t, f.adapter.SetScale(scaleOf(12, 10)))
	require.NoError(t, f.tranche.Settle())
	require.NoError(t, f.adapter.SetScale(fixedmath.Wad))
	f.mature()
	require.NoError(t, f.tranche.Settle())

	scales := f.tranche.GlobalScales()
	assert.True(t, scales.Mscale.Equal(fixedmath.Wad))
	assert.True(t, scales.Maxscale.Equal(scaleOf(12, 10)))

	// Principal is capped at face priced at the historical maximum:
	// 100 / 1.2 shares at scale 1.0 is ~83.33 underlying.
	out, err := f.tranche.Redeem(alice, alice, wadInt(100))
	require.NoError(t, err)
	requireWithinWei(t, wadInt(250).QuoRaw(3), out, 2)

	// The yield side takes the residual of full face value.
	collected, err := f.tranche.Collect(alice)
	require.NoError(t, err)
	requireWithinWei(t, wadInt(100).QuoRaw(3), collected, 3)
}

func TestSettleCapturesScaleOnce(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(11, 10)))
	f.mature()
	require.NoError(t, f.tranche.Settle())
	require.True(t, f.tranche.GlobalScales().Mscale.Equal(scaleOf(11, 10)))

	// Later scale movement does not reopen settlement.
	require.NoError(t, f.adapter.SetScale(scaleOf(15, 10)))
	require.NoError(t, f.tranche.Settle())
	assert.True(t, f.tranche.GlobalScales().Mscale.Equal(scaleOf(11, 10)))
	assert.True(t, f.tranche.GlobalScales().Maxscale.Equal(scaleOf(11, 10)))
}

func TestWithdrawBurnsPrincipalForRequestedUnderlying(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(12, 10)))
	f.mature()

	burned, err := f.tranche.Withdraw(alice, alice, wadInt(12))
	require.NoError(t, err)
	requireWithinWei(t, wadInt(12), burned, 2)
	requireWithinWei(t, wadInt(12), f.adapter.PayoutOf(alice), 3)
	requireWithinWei(t, wadInt(88), f.tranche.PTBalanceOf(alice), 3)
}

func TestRedeemInsufficientBalance(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.tranche.Issue(alice, wadInt(10))
	require.NoError(t, err)
	f.mature()

	_, err = f.tranche.Redeem(alice, alice, wadInt(11))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = f.tranche.RedeemWithYT(alice, alice, wadInt(11))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestReceiptsRecorded(t *testing.T) {
	f := newFixture(t, 0, 100)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)
	_, err = f.tranche.ClaimIssuanceFees(treasury)
	require.NoError(t, err)

	kinds := f.recorder.kinds()
	assert.Contains(t, kinds, types.OpIssue)
	assert.Contains(t, kinds, types.OpClaimFees)
	for _, r := range f.recorder.receipts {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, f.tranche.Series().ID, r.SeriesID)
		assert.False(t, r.Timestamp.IsZero())
	}
}

func TestLiabilitiesCoveredByCustody(t *testing.T) {
	f := newFixture(t, 0, 50)

	_, err := f.tranche.Issue(alice, wadInt(100))
	require.NoError(t, err)
	_, err = f.tranche.Issue(bob, wadInt(40))
	require.NoError(t, err)

	require.NoError(t, f.adapter.SetScale(scaleOf(13, 10)))
	require.NoError(t, f.tranche.Settle()) // refresh maxscale
	_, err = f.tranche.Collect(alice)
	require.NoError(t, err)

	// Custody always covers outstanding yield liabilities plus fees.
	assert.True(t, f.tranche.TargetBalance().GTE(f.tranche.Liabilities()))
}
