/*
Reserve orchestration for the rate market. The Pool owns the LP share book
and the PoolState reserves, delegates principal-token custody to the external
base pool, and prices every trade through the pure poolmath core.

Operation discipline mirrors the tranche side: read state, compute with pure
math, interact with the base pool, then commit reserves and the rate oracle
anchor together through a single commit step. A base-pool failure aborts the
operation before any internal state changes.
*/

package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stripfi/ysm/internal/basepool"
	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/logger"
	"github.com/stripfi/ysm/internal/poolmath"
	"github.com/stripfi/ysm/internal/types"
)

var (
	ErrZeroAddress        = errors.New("pool: zero address recipient")
	ErrZeroAmount         = errors.New("pool: amount must be positive")
	ErrPoolExpired        = errors.New("pool: matured pools accept proportional liquidity only")
	ErrInsufficientShares = errors.New("pool: insufficient LP shares")
	ErrParamOutOfBounds   = errors.New("pool: parameter outside allowed bounds")
	ErrBadPtIndex         = errors.New("pool: principal token index out of range")
)

const bpsDenom = 10_000

// Recorder receives an audit receipt for every completed operation.
type Recorder interface {
	Record(receipt types.OperationReceipt)
}

// Config assembles a Pool around an existing base pool.
type Config struct {
	Base                 basepool.BasePool
	ScalarRoot           sdkmath.Int // WAD, > 0
	LnFeeRateRoot        sdkmath.Int // WAD, >= 0
	ProtocolFeeBps       uint32
	Maturity             time.Time
	InitialLnImpliedRate sdkmath.Int // WAD, > 0
	Solver               fixedmath.SolverConfig
	Recorder             Recorder         // optional
	Clock                func() time.Time // optional, defaults to time.Now
}

// Pool wraps the base pool with the implied-rate market and LP accounting.
type Pool struct {
	mu sync.Mutex

	logger   zerolog.Logger
	state    types.PoolState
	base     basepool.BasePool
	n        int64
	solver   fixedmath.SolverConfig
	recorder Recorder
	clock    func() time.Time

	lpBalances map[types.Account]sdkmath.Int
	lpSupply   sdkmath.Int
}

// New validates the configuration once; nothing is re-checked per call.
func New(cfg Config) (*Pool, error) {
	if cfg.Base == nil {
		return nil, fmt.Errorf("pool: base pool is required")
	}
	if !cfg.ScalarRoot.IsPositive() {
		return nil, fmt.Errorf("%w: scalar root must be positive", ErrParamOutOfBounds)
	}
	if cfg.LnFeeRateRoot.IsNegative() {
		return nil, fmt.Errorf("%w: ln fee rate root must be non-negative", ErrParamOutOfBounds)
	}
	if cfg.ProtocolFeeBps > bpsDenom {
		return nil, fmt.Errorf("%w: protocol fee %d bps", ErrParamOutOfBounds, cfg.ProtocolFeeBps)
	}
	if !cfg.InitialLnImpliedRate.IsPositive() {
		return nil, fmt.Errorf("%w: initial implied rate must be positive", ErrParamOutOfBounds)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if !cfg.Maturity.After(clock()) {
		return nil, fmt.Errorf("%w: maturity must be in the future", ErrParamOutOfBounds)
	}
	solver := cfg.Solver
	if solver.MaxIterations == 0 {
		solver = fixedmath.DefaultSolverConfig()
	}

	return &Pool{
		logger: logger.GetForComponent("pool"),
		state: types.PoolState{
			TotalUnderlying18:  sdkmath.ZeroInt(),
			TotalBaseLptTimesN: sdkmath.ZeroInt(),
			LnFeeRateRoot:      cfg.LnFeeRateRoot,
			ProtocolFeeBps:     cfg.ProtocolFeeBps,
			ScalarRoot:         cfg.ScalarRoot,
			Maturity:           cfg.Maturity,
			LastLnImpliedRate:  cfg.InitialLnImpliedRate,
			ProtocolFees18:     sdkmath.ZeroInt(),
		},
		base:       cfg.Base,
		n:          int64(cfg.Base.NumAssets()),
		solver:     solver,
		recorder:   cfg.Recorder,
		clock:      clock,
		lpBalances: make(map[types.Account]sdkmath.Int),
		lpSupply:   sdkmath.ZeroInt(),
	}, nil
}

// market builds the pure-math view of the current state.
func (p *Pool) market(now time.Time) poolmath.MarketState {
	return poolmath.MarketState{
		TotalPt:           p.state.TotalBaseLptTimesN,
		TotalAsset:        p.state.TotalUnderlying18,
		ScalarRoot:        p.state.ScalarRoot,
		LnFeeRateRoot:     p.state.LnFeeRateRoot,
		ProtocolFeeBps:    p.state.ProtocolFeeBps,
		LastLnImpliedRate: p.state.LastLnImpliedRate,
		TimeToExpiry:      p.state.TimeToExpiry(now),
	}
}

// commit is the single point where reserves and the rate anchor change.
func (p *Pool) commit(ms poolmath.MarketState, protocolFee sdkmath.Int) {
	p.state.TotalUnderlying18 = ms.TotalAsset
	p.state.TotalBaseLptTimesN = ms.TotalPt
	p.state.LastLnImpliedRate = ms.LastLnImpliedRate
	if protocolFee.IsPositive() {
		p.state.ProtocolFees18 = p.state.ProtocolFees18.Add(protocolFee)
	}
}

func (p *Pool) lpBalanceOf(a types.Account) sdkmath.Int {
	if v, ok := p.lpBalances[a]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (p *Pool) mintLp(to types.Account, amount sdkmath.Int) {
	p.lpBalances[to] = p.lpBalanceOf(to).Add(amount)
	p.lpSupply = p.lpSupply.Add(amount)
}

func (p *Pool) burnLp(from types.Account, amount sdkmath.Int) error {
	bal := p.lpBalanceOf(from)
	if bal.LT(amount) {
		return ErrInsufficientShares
	}
	p.lpBalances[from] = bal.Sub(amount)
	p.lpSupply = p.lpSupply.Sub(amount)
	return nil
}

func (p *Pool) record(r types.OperationReceipt) {
	if p.recorder == nil {
		return
	}
	r.ID = uuid.New().String()
	r.Timestamp = p.clock()
	if r.Fee.IsNil() {
		r.Fee = sdkmath.ZeroInt()
	}
	if r.ProtocolFee.IsNil() {
		r.ProtocolFee = sdkmath.ZeroInt()
	}
	p.recorder.Record(r)
}

// AddLiquidity deposits both sides. The bootstrap deposit mints
// sqrt(underlyingIn * baseLptIn) shares since no price reference exists yet;
// afterwards minting is proportional, capped by the scarcer side, so a
// skewed deposit donates its excess to existing LPs.
func (p *Pool) AddLiquidity(to types.Account, underlyingIn, baseLptIn sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !underlyingIn.IsPositive() || !baseLptIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	var lpOut sdkmath.Int
	var err error
	if p.lpSupply.IsZero() {
		lpOut, err = fixedmath.SqrtInt(underlyingIn.Mul(baseLptIn))
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	} else {
		byUnderlying, derr := fixedmath.MulDivDown(underlyingIn, p.lpSupply, p.state.TotalUnderlying18)
		if derr != nil {
			return sdkmath.ZeroInt(), derr
		}
		byBaseLpt, derr := fixedmath.MulDivDown(baseLptIn.MulRaw(p.n), p.lpSupply, p.state.TotalBaseLptTimesN)
		if derr != nil {
			return sdkmath.ZeroInt(), derr
		}
		lpOut = fixedmath.MinInt(byUnderlying, byBaseLpt)
	}
	if !lpOut.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	p.state.TotalUnderlying18 = p.state.TotalUnderlying18.Add(underlyingIn)
	p.state.TotalBaseLptTimesN = p.state.TotalBaseLptTimesN.Add(baseLptIn.MulRaw(p.n))
	p.mintLp(to, lpOut)

	p.logger.Debug().
		Str("account", string(to)).
		Str("underlying_in", underlyingIn.String()).
		Str("base_lpt_in", baseLptIn.String()).
		Str("lp_out", lpOut.String()).
		Msg("Liquidity added")
	p.record(types.OperationReceipt{
		Kind:      types.OpAddLiquidity,
		Account:   to,
		AmountIn:  underlyingIn,
		AmountOut: lpOut,
	})
	return lpOut, nil
}

// RemoveLiquidity burns LP shares and returns both reserves strictly
// proportionally. Works before and after maturity.
func (p *Pool) RemoveLiquidity(from types.Account, lpIn sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if from == types.ZeroAccount {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !lpIn.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrZeroAmount
	}
	if p.lpBalanceOf(from).LT(lpIn) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrInsufficientShares
	}

	underlyingOut, err := fixedmath.MulDivDown(p.state.TotalUnderlying18, lpIn, p.lpSupply)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	baseLptTimesNOut, err := fixedmath.MulDivDown(p.state.TotalBaseLptTimesN, lpIn, p.lpSupply)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	baseLptOut := baseLptTimesNOut.QuoRaw(p.n)

	if err := p.burnLp(from, lpIn); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	p.state.TotalUnderlying18 = p.state.TotalUnderlying18.Sub(underlyingOut)
	p.state.TotalBaseLptTimesN = p.state.TotalBaseLptTimesN.Sub(baseLptOut.MulRaw(p.n))

	p.record(types.OperationReceipt{
		Kind:      types.OpRemoveLiquidity,
		Account:   from,
		AmountIn:  lpIn,
		AmountOut: underlyingOut,
	})
	return underlyingOut, baseLptOut, nil
}

// SwapPtForUnderlying deposits ptIn of the indexed principal token into the
// base pool and sells the resulting LP position to the market, paying out
// underlying.
func (p *Pool) SwapPtForUnderlying(account types.Account, ptIndex int, ptIn sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.state.Expired(now) {
		return sdkmath.ZeroInt(), ErrPoolExpired
	}
	if !ptIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if ptIndex < 0 || ptIndex >= int(p.n) {
		return sdkmath.ZeroInt(), ErrBadPtIndex
	}

	amounts := make([]sdkmath.Int, p.n)
	for i := range amounts {
		amounts[i] = sdkmath.ZeroInt()
	}
	amounts[ptIndex] = ptIn
	baseLptIn, err := p.base.AddLiquidity(amounts, sdkmath.ZeroInt())
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pool: base deposit: %w", err)
	}

	res, err := poolmath.SwapExactPtForAsset(p.market(now), baseLptIn.MulRaw(p.n))
	if err != nil {
		// Unwind the base deposit so the failed swap leaves no residue.
		if _, uerr := p.base.RemoveLiquidityOne(baseLptIn, ptIndex, sdkmath.ZeroInt()); uerr != nil {
			p.logger.Error().Err(uerr).Msg("Failed to unwind base deposit after rejected swap")
		}
		return sdkmath.ZeroInt(), err
	}

	p.commit(res.NewState, res.FeeToProtocol)
	p.record(types.OperationReceipt{
		Kind:        types.OpSwap,
		Account:     account,
		AmountIn:    ptIn,
		AmountOut:   res.NetAssetToAccount,
		Fee:         res.FeeTotal,
		ProtocolFee: res.FeeToProtocol,
	})
	return res.NetAssetToAccount, nil
}

// SwapUnderlyingForPt buys baseLptOut worth of LP from the market and
// unwraps it into the indexed principal token. Returns the PT paid out and
// the underlying charged.
func (p *Pool) SwapUnderlyingForPt(account types.Account, ptIndex int, baseLptOut sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.state.Expired(now) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrPoolExpired
	}
	if !baseLptOut.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrZeroAmount
	}
	if ptIndex < 0 || ptIndex >= int(p.n) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrBadPtIndex
	}

	res, err := poolmath.SwapAssetForExactPt(p.market(now), baseLptOut.MulRaw(p.n))
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	ptOut, err := p.base.RemoveLiquidityOne(baseLptOut, ptIndex, sdkmath.ZeroInt())
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("pool: base withdrawal: %w", err)
	}

	underlyingIn := res.NetAssetToAccount.Neg()
	p.commit(res.NewState, res.FeeToProtocol)
	p.record(types.OperationReceipt{
		Kind:        types.OpSwap,
		Account:     account,
		AmountIn:    underlyingIn,
		AmountOut:   ptOut,
		Fee:         res.FeeTotal,
		ProtocolFee: res.FeeToProtocol,
	})
	return ptOut, underlyingIn, nil
}

// AddLiquidityOneUnderlying deposits underlying single-sided: part of it
// buys PT off the curve so the remainder can be added proportionally. All
// flows are internal; the base pool is untouched.
func (p *Pool) AddLiquidityOneUnderlying(to types.Account, underlyingIn sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.state.Expired(now) {
		return sdkmath.ZeroInt(), ErrPoolExpired
	}
	if to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !underlyingIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	ms := p.market(now)
	x, err := poolmath.AssetToSwapForAdd(ms, underlyingIn, p.solver)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	res, err := poolmath.CalcTrade(ms, x)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	paid := res.NetAssetToAccount.Neg()
	remaining := underlyingIn.Sub(paid)
	if !remaining.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	lpOut, err := p.proportionalMint(res.NewState, remaining, x)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	final := res.NewState
	final.TotalAsset = final.TotalAsset.Add(remaining)
	final.TotalPt = final.TotalPt.Add(x)
	p.commit(final, res.FeeToProtocol)
	p.mintLp(to, lpOut)

	p.record(types.OperationReceipt{
		Kind:        types.OpAddLiquidity,
		Account:     to,
		AmountIn:    underlyingIn,
		AmountOut:   lpOut,
		Fee:         res.FeeTotal,
		ProtocolFee: res.FeeToProtocol,
	})
	return lpOut, nil
}

// AddLiquidityOnePt deposits the indexed principal token single-sided: it is
// wrapped into base LP, part is sold for underlying, and the rest is added
// proportionally.
func (p *Pool) AddLiquidityOnePt(to types.Account, ptIndex int, ptIn sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.state.Expired(now) {
		return sdkmath.ZeroInt(), ErrPoolExpired
	}
	if to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !ptIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if ptIndex < 0 || ptIndex >= int(p.n) {
		return sdkmath.ZeroInt(), ErrBadPtIndex
	}

	amounts := make([]sdkmath.Int, p.n)
	for i := range amounts {
		amounts[i] = sdkmath.ZeroInt()
	}
	amounts[ptIndex] = ptIn
	baseLptIn, err := p.base.AddLiquidity(amounts, sdkmath.ZeroInt())
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pool: base deposit: %w", err)
	}
	b := baseLptIn.MulRaw(p.n)

	ms := p.market(now)
	lpOut, res, remPt, err := p.splitPtForAdd(ms, b)
	if err != nil {
		if _, uerr := p.base.RemoveLiquidityOne(baseLptIn, ptIndex, sdkmath.ZeroInt()); uerr != nil {
			p.logger.Error().Err(uerr).Msg("Failed to unwind base deposit after rejected add")
		}
		return sdkmath.ZeroInt(), err
	}

	final := res.NewState
	final.TotalAsset = final.TotalAsset.Add(res.NetAssetToAccount)
	final.TotalPt = final.TotalPt.Add(remPt)
	p.commit(final, res.FeeToProtocol)
	p.mintLp(to, lpOut)

	p.record(types.OperationReceipt{
		Kind:        types.OpAddLiquidity,
		Account:     to,
		AmountIn:    ptIn,
		AmountOut:   lpOut,
		Fee:         res.FeeTotal,
		ProtocolFee: res.FeeToProtocol,
	})
	return lpOut, nil
}

// splitPtForAdd solves for the PT portion to sell and computes the
// proportional LP mint for the remainder.
func (p *Pool) splitPtForAdd(ms poolmath.MarketState, b sdkmath.Int) (sdkmath.Int, poolmath.TradeResult, sdkmath.Int, error) {
	x, err := poolmath.PtToSwapForAdd(ms, b, p.solver)
	if err != nil {
		return sdkmath.ZeroInt(), poolmath.TradeResult{}, sdkmath.ZeroInt(), err
	}
	res, err := poolmath.CalcTrade(ms, x.Neg())
	if err != nil {
		return sdkmath.ZeroInt(), poolmath.TradeResult{}, sdkmath.ZeroInt(), err
	}
	remPt := b.Sub(x)
	lpOut, err := p.proportionalMint(res.NewState, res.NetAssetToAccount, remPt)
	if err != nil {
		return sdkmath.ZeroInt(), poolmath.TradeResult{}, sdkmath.ZeroInt(), err
	}
	return lpOut, res, remPt, nil
}

// proportionalMint computes the LP shares for adding (assetIn, ptIn) against
// the given reserves, capped by the scarcer side.
func (p *Pool) proportionalMint(ms poolmath.MarketState, assetIn, ptIn sdkmath.Int) (sdkmath.Int, error) {
	byAsset, err := fixedmath.MulDivDown(assetIn, p.lpSupply, ms.TotalAsset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	byPt, err := fixedmath.MulDivDown(ptIn, p.lpSupply, ms.TotalPt)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	lpOut := fixedmath.MinInt(byAsset, byPt)
	if !lpOut.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	return lpOut, nil
}

// RemoveLiquidityOneUnderlying burns LP shares and pays the whole position
// out as underlying, selling the PT side back to the curve.
func (p *Pool) RemoveLiquidityOneUnderlying(from types.Account, lpIn sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.state.Expired(now) {
		return sdkmath.ZeroInt(), ErrPoolExpired
	}
	if from == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !lpIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if p.lpBalanceOf(from).LT(lpIn) {
		return sdkmath.ZeroInt(), ErrInsufficientShares
	}

	u, err := fixedmath.MulDivDown(p.state.TotalUnderlying18, lpIn, p.lpSupply)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	bN, err := fixedmath.MulDivDown(p.state.TotalBaseLptTimesN, lpIn, p.lpSupply)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	ms := p.market(now)
	ms.TotalAsset = ms.TotalAsset.Sub(u)
	ms.TotalPt = ms.TotalPt.Sub(bN)
	res, err := poolmath.SwapExactPtForAsset(ms, bN)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := p.burnLp(from, lpIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.commit(res.NewState, res.FeeToProtocol)

	out := u.Add(res.NetAssetToAccount)
	p.record(types.OperationReceipt{
		Kind:        types.OpRemoveLiquidity,
		Account:     from,
		AmountIn:    lpIn,
		AmountOut:   out,
		Fee:         res.FeeTotal,
		ProtocolFee: res.FeeToProtocol,
	})
	return out, nil
}

// RemoveLiquidityOnePt burns LP shares and pays the whole position out as
// the indexed principal token, buying PT off the curve with the underlying
// side.
func (p *Pool) RemoveLiquidityOnePt(from types.Account, ptIndex int, lpIn sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.state.Expired(now) {
		return sdkmath.ZeroInt(), ErrPoolExpired
	}
	if from == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !lpIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if ptIndex < 0 || ptIndex >= int(p.n) {
		return sdkmath.ZeroInt(), ErrBadPtIndex
	}
	if p.lpBalanceOf(from).LT(lpIn) {
		return sdkmath.ZeroInt(), ErrInsufficientShares
	}

	u, err := fixedmath.MulDivDown(p.state.TotalUnderlying18, lpIn, p.lpSupply)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	bN, err := fixedmath.MulDivDown(p.state.TotalBaseLptTimesN, lpIn, p.lpSupply)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	ms := p.market(now)
	ms.TotalAsset = ms.TotalAsset.Sub(u)
	ms.TotalPt = ms.TotalPt.Sub(bN)

	x, err := poolmath.PtForExactAssetIn(ms, u, p.solver)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	res, err := poolmath.CalcTrade(ms, x)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	baseLptOut := bN.Add(x).QuoRaw(p.n)
	ptOut, err := p.base.RemoveLiquidityOne(baseLptOut, ptIndex, sdkmath.ZeroInt())
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pool: base withdrawal: %w", err)
	}

	if err := p.burnLp(from, lpIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.commit(res.NewState, res.FeeToProtocol)

	p.record(types.OperationReceipt{
		Kind:        types.OpRemoveLiquidity,
		Account:     from,
		AmountIn:    lpIn,
		AmountOut:   ptOut,
		Fee:         res.FeeTotal,
		ProtocolFee: res.FeeToProtocol,
	})
	return ptOut, nil
}

// CollectProtocolFees pays out and zeroes the protocol fee reserve.
func (p *Pool) CollectProtocolFees(to types.Account) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	fees := p.state.ProtocolFees18
	p.state.ProtocolFees18 = sdkmath.ZeroInt()
	if fees.IsPositive() {
		p.record(types.OperationReceipt{
			Kind:      types.OpClaimFees,
			Account:   to,
			AmountIn:  fees,
			AmountOut: fees,
		})
	}
	return fees, nil
}

// State returns a copy of the pool state.
func (p *Pool) State() types.PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LpBalanceOf returns an account's LP share balance.
func (p *Pool) LpBalanceOf(a types.Account) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lpBalanceOf(a)
}

// LpTotalSupply returns the LP share supply.
func (p *Pool) LpTotalSupply() sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lpSupply
}
