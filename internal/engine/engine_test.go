package engine

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripfi/ysm/internal/adapter"
	"github.com/stripfi/ysm/internal/basepool"
	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/pool"
	"github.com/stripfi/ysm/internal/tranche"
	"github.com/stripfi/ysm/internal/types"
)

const alice types.Account = "alice"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testParams() types.EngineParameters {
	return types.EngineParameters{
		MaxIssuanceFeeBps:   500,
		SolverMaxIterations: 256,
		SolverEpsWad:        100_000_000,
		DriftToleranceWei:   1_000,
		SnapshotInterval:    time.Minute,
	}
}

func newEngine(t *testing.T) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(testParams(), WithClock(clock.Now)), clock
}

func newSeries(t *testing.T, e *Engine, clock *testClock, maturity time.Duration) *tranche.Tranche {
	t.Helper()
	mock, err := adapter.NewMock(fixedmath.Wad)
	require.NoError(t, err)
	tr, err := e.CreateSeries(tranche.Config{
		Underlying:         "WETH",
		Target:             "stETH",
		UnderlyingDecimals: 18,
		Maturity:           clock.now.Add(maturity),
		TiltBps:            0,
		IssuanceFeeBps:     0,
		Adapter:            mock,
	})
	require.NoError(t, err)
	return tr
}

func TestCreateSeriesRegistersIt(t *testing.T) {
	e, clock := newEngine(t)
	tr := newSeries(t, e, clock, 30*24*time.Hour)

	id := tr.Series().ID
	assert.Same(t, tr, e.Tranche(id))
	assert.Equal(t, []types.SeriesID{id}, e.SeriesIDs())
	assert.Nil(t, e.Tranche("missing"))
}

func TestRunOnceSettlesMaturedSeries(t *testing.T) {
	e, clock := newEngine(t)
	tr := newSeries(t, e, clock, time.Hour)

	_, err := tr.Issue(alice, sdkmath.NewInt(100).Mul(fixedmath.Wad))
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	run := e.RunOnce(context.Background())

	assert.True(t, run.Success)
	assert.Equal(t, 1, run.SeriesSettled)
	assert.Equal(t, 1, run.SnapshotsWritten)
	assert.Equal(t, types.PhaseSettled, tr.Series().Phase(clock.Now()))

	// Already settled; nothing to do on the next pass.
	run = e.RunOnce(context.Background())
	assert.Equal(t, 0, run.SeriesSettled)
}

func TestRunOnceSkipsActiveSeries(t *testing.T) {
	e, clock := newEngine(t)
	tr := newSeries(t, e, clock, 30*24*time.Hour)

	run := e.RunOnce(context.Background())
	assert.True(t, run.Success)
	assert.Equal(t, 0, run.SeriesSettled)
	assert.Equal(t, types.PhaseActive, tr.Series().Phase(clock.Now()))
}

func TestSeriesSnapshotCarriesSolvency(t *testing.T) {
	e, clock := newEngine(t)
	tr := newSeries(t, e, clock, 30*24*time.Hour)

	_, err := tr.Issue(alice, sdkmath.NewInt(100).Mul(fixedmath.Wad))
	require.NoError(t, err)

	snap := e.SeriesSnapshotOf(tr)
	assert.Equal(t, tr.Series().ID, snap.SeriesID)
	assert.Equal(t, "active", snap.Phase)
	assert.True(t, snap.PTSupply.Equal(snap.YTSupply))
	assert.True(t, snap.PTSupply.IsPositive())
	// Custody covers liabilities; drift must not be negative beyond rounding.
	assert.True(t, snap.SolvencyDrift.GTE(sdkmath.NewInt(-2)))
}

func TestAttachPoolOnlyOnce(t *testing.T) {
	e, clock := newEngine(t)

	sim, err := basepool.NewSim(3, 10)
	require.NoError(t, err)
	cfg := pool.Config{
		Base:                 sim,
		ScalarRoot:           sdkmath.NewInt(76).Mul(fixedmath.Wad),
		LnFeeRateRoot:        sdkmath.NewInt(995_000_000_000_000),
		ProtocolFeeBps:       8000,
		Maturity:             clock.now.Add(365 * 24 * time.Hour),
		InitialLnImpliedRate: sdkmath.NewInt(50_000_000_000_000_000),
	}

	p, err := e.AttachPool(cfg)
	require.NoError(t, err)
	assert.Same(t, p, e.Pool())

	_, err = e.AttachPool(cfg)
	assert.Error(t, err)
}

func TestRunOnceSnapshotsPool(t *testing.T) {
	e, clock := newEngine(t)
	newSeries(t, e, clock, 30*24*time.Hour)

	sim, err := basepool.NewSim(2, 10)
	require.NoError(t, err)
	_, err = e.AttachPool(pool.Config{
		Base:                 sim,
		ScalarRoot:           sdkmath.NewInt(76).Mul(fixedmath.Wad),
		LnFeeRateRoot:        sdkmath.NewInt(995_000_000_000_000),
		ProtocolFeeBps:       8000,
		Maturity:             clock.now.Add(365 * 24 * time.Hour),
		InitialLnImpliedRate: sdkmath.NewInt(50_000_000_000_000_000),
	})
	require.NoError(t, err)

	run := e.RunOnce(context.Background())
	assert.True(t, run.Success)
	// One series snapshot plus the pool snapshot.
	assert.Equal(t, 2, run.SnapshotsWritten)
}
