/*
The engine owns the live protocol objects: every tranche series, the rate
market, and the settlement daemon that captures post-maturity scales and
persists periodic snapshots. It is also the audit sink; receipts recorded by
the tranches and the pool flow through Record into the database.

Persistence is optional. Without a database the engine runs fully in memory,
which is what the test suites and simulation mode use.
*/

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stripfi/ysm/internal/analytics"
	"github.com/stripfi/ysm/internal/logger"
	"github.com/stripfi/ysm/internal/pool"
	"github.com/stripfi/ysm/internal/state"
	"github.com/stripfi/ysm/internal/tranche"
	"github.com/stripfi/ysm/internal/types"
)

// Engine coordinates tranches, the pool and the settlement daemon.
type Engine struct {
	mu sync.Mutex

	logger  zerolog.Logger
	params  types.EngineParameters
	clock   func() time.Time
	persist bool

	tranches map[types.SeriesID]*tranche.Tranche
	order    []types.SeriesID // creation order, for stable iteration
	market   *pool.Pool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersistence enables database writes for receipts, snapshots and
// settlement runs. Requires state.InitDB to have been called.
func WithPersistence() Option {
	return func(e *Engine) { e.persist = true }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New creates an engine with the given tuning parameters.
func New(params types.EngineParameters, opts ...Option) *Engine {
	e := &Engine{
		logger:   logger.GetForComponent("engine"),
		params:   params,
		clock:    time.Now,
		tranches: make(map[types.SeriesID]*tranche.Tranche),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSeries constructs a new tranche series wired to the engine's clock,
// parameters and audit sink.
func (e *Engine) CreateSeries(cfg tranche.Config) (*tranche.Tranche, error) {
	cfg.Params = e.params
	cfg.Recorder = e
	cfg.Clock = e.clock

	t, err := tranche.New(cfg)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	id := t.Series().ID
	e.tranches[id] = t
	e.order = append(e.order, id)
	return t, nil
}

// AttachPool constructs the rate market wired to the engine's audit sink.
// Only one pool is supported.
func (e *Engine) AttachPool(cfg pool.Config) (*pool.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.market != nil {
		return nil, fmt.Errorf("engine: pool already attached")
	}

	cfg.Recorder = e
	cfg.Clock = e.clock
	if cfg.Solver.MaxIterations == 0 {
		cfg.Solver.MaxIterations = e.params.SolverMaxIterations
		cfg.Solver.EpsWad = sdkmath.NewInt(e.params.SolverEpsWad)
	}

	p, err := pool.New(cfg)
	if err != nil {
		return nil, err
	}
	e.market = p
	return p, nil
}

// Tranche returns the series with the given id, or nil.
func (e *Engine) Tranche(id types.SeriesID) *tranche.Tranche {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tranches[id]
}

// SeriesIDs lists all series in creation order.
func (e *Engine) SeriesIDs() []types.SeriesID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]types.SeriesID, len(e.order))
	copy(ids, e.order)
	return ids
}

// Pool returns the attached rate market, or nil.
func (e *Engine) Pool() *pool.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.market
}

// Record implements the audit sink for tranches and the pool. A failed
// database write is logged and dropped; audit persistence never blocks or
// fails a ledger operation.
func (e *Engine) Record(r types.OperationReceipt) {
	e.logger.Debug().
		Str("op_id", r.ID).
		Str("kind", string(r.Kind)).
		Str("series_id", string(r.SeriesID)).
		Msg("Operation recorded")

	if !e.persist {
		return
	}
	if _, err := state.SaveOperationReceipt(r); err != nil {
		e.logger.Error().Err(err).Str("op_id", r.ID).Msg("Failed to persist operation receipt")
	}
}

// RunOnce performs one settlement daemon pass: settle every matured-unsettled
// series, then snapshot everything. The returned run record is persisted when
// the engine runs with a database.
func (e *Engine) RunOnce(ctx context.Context) types.SettlementRun {
	run := types.SettlementRun{
		RunID:     uuid.New().String(),
		StartedAt: e.clock(),
		Success:   true,
	}

	if e.persist {
		if n, err := state.IncrementRunNumber(); err != nil {
			e.logger.Error().Err(err).Msg("Failed to increment run counter")
			run.Success = false
			run.Message = err.Error()
		} else {
			run.RunNumber = n
		}
	}

	for _, id := range e.SeriesIDs() {
		if ctx.Err() != nil {
			run.Success = false
			run.Message = ctx.Err().Error()
			break
		}
		t := e.Tranche(id)
		if t == nil {
			continue
		}

		now := e.clock()
		series := t.Series()
		if series.Phase(now) == types.PhaseMatured {
			if err := t.Settle(); err != nil {
				e.logger.Error().Err(err).Str("series_id", string(id)).Msg("Settlement failed")
				run.Success = false
				run.Message = err.Error()
			} else {
				run.SeriesSettled++
			}
		}

		if e.snapshotSeries(t) {
			run.SnapshotsWritten++
		}
	}

	if e.snapshotPool() {
		run.SnapshotsWritten++
	}

	run.FinishedAt = e.clock()
	if e.persist {
		if err := state.SaveSettlementRun(run); err != nil {
			e.logger.Error().Err(err).Str("run_id", run.RunID).Msg("Failed to persist settlement run")
		}
	}

	e.logger.Info().
		Str("run_id", run.RunID).
		Int("series_settled", run.SeriesSettled).
		Int("snapshots", run.SnapshotsWritten).
		Bool("success", run.Success).
		Msg("Settlement run complete")
	return run
}

// RunLoop drives RunOnce on the snapshot interval until the context is
// cancelled.
func (e *Engine) RunLoop(ctx context.Context) {
	interval := e.params.SnapshotInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", interval).Msg("Settlement daemon started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Settlement daemon stopped")
			return
		case <-ticker.C:
			e.RunOnce(ctx)
		}
	}
}

// SeriesSnapshotOf builds the persisted view of one series, including the
// solvency drift.
func (e *Engine) SeriesSnapshotOf(t *tranche.Tranche) types.SeriesSnapshot {
	now := e.clock()
	series := t.Series()
	scales := t.GlobalScales()
	report := analytics.Solvency(series.ID, t.TargetBalance(), t.Liabilities(), e.params.DriftToleranceWei, now)
	if !report.WithinTolerance {
		e.logger.Warn().
			Str("series_id", string(series.ID)).
			Str("drift", report.Drift.String()).
			Msg("Solvency drift outside tolerance")
	}

	return types.SeriesSnapshot{
		SeriesID:      series.ID,
		Timestamp:     now,
		Phase:         series.Phase(now).String(),
		Mscale:        scales.Mscale,
		Maxscale:      scales.Maxscale,
		PTSupply:      t.TotalSupplyPT(),
		YTSupply:      t.TotalSupplyYT(),
		IssuanceFees:  t.IssuanceFees(),
		TargetBalance: t.TargetBalance(),
		SolvencyDrift: report.Drift,
	}
}

func (e *Engine) snapshotSeries(t *tranche.Tranche) bool {
	snap := e.SeriesSnapshotOf(t)
	if !e.persist {
		return true
	}
	if _, err := state.SaveSeriesSnapshot(snap); err != nil {
		e.logger.Error().Err(err).Str("series_id", string(snap.SeriesID)).Msg("Failed to persist series snapshot")
		return false
	}
	return true
}

func (e *Engine) snapshotPool() bool {
	p := e.Pool()
	if p == nil {
		return false
	}
	snap, err := analytics.PoolSnapshotFrom(p.State(), p.LpTotalSupply(), e.clock())
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to derive pool snapshot")
		return false
	}
	if !e.persist {
		return true
	}
	if _, err := state.SavePoolSnapshot(snap); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist pool snapshot")
		return false
	}
	return true
}
