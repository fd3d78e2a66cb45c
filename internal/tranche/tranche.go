/*
The tranche issuance/redemption state machine. One Tranche instance manages
one series: its PT/YT ledgers, per-account yield accrual, issuance fees and
post-maturity settlement.

Every operation follows the same shape: observe external state (adapter
scale), compute results with pure math, interact with the adapter, and only
then commit internal state. An adapter failure aborts the operation with no
internal state change. All operations on one Tranche are serialized by a
mutex; adapters are called with the lock held and must never call back into
the tranche.
*/

package tranche

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stripfi/ysm/internal/accrual"
	"github.com/stripfi/ysm/internal/adapter"
	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/logger"
	"github.com/stripfi/ysm/internal/types"
	"github.com/stripfi/ysm/internal/utils"
)

// Precondition and state-machine errors. All are returned before any state
// change; no operation ever leaves a partial effect behind.
var (
	ErrZeroAddress          = errors.New("tranche: zero address recipient")
	ErrZeroAmount           = errors.New("tranche: amount must be positive")
	ErrTrancheMatured       = errors.New("tranche: series has matured")
	ErrNotMatured           = errors.New("tranche: series has not matured yet")
	ErrIssuanceTooSmall     = errors.New("tranche: deposit too small to issue")
	ErrSeriesNotInitialized = errors.New("tranche: series not initialized")
	ErrParamOutOfBounds     = errors.New("tranche: parameter outside allowed bounds")
	ErrAdapterZeroResult    = errors.New("tranche: adapter returned zero where a result was required")
)

const bpsDenom = 10_000

// Recorder receives an audit receipt for every completed operation.
type Recorder interface {
	Record(receipt types.OperationReceipt)
}

// Config assembles a Tranche. Parameter bounds are checked here, once, never
// per call.
type Config struct {
	Underlying         string
	Target             string
	UnderlyingDecimals int
	Maturity           time.Time
	TiltBps            uint32
	IssuanceFeeBps     uint32

	Adapter  adapter.YieldAdapter
	Params   types.EngineParameters
	Recorder Recorder         // optional
	Clock    func() time.Time // optional, defaults to time.Now
}

// Tranche is the state machine for one series.
type Tranche struct {
	mu sync.Mutex

	logger   zerolog.Logger
	series   types.Series
	adapter  adapter.YieldAdapter
	clock    func() time.Time
	recorder Recorder

	pt       *ledger
	yt       *ledger
	accounts map[types.Account]*types.AccountYieldState

	issuanceFees  sdkmath.Int // target shares owed to the protocol
	targetBalance sdkmath.Int // target shares in custody (adapter-held)
}

// New validates the configuration, reads the initial scale from the adapter
// and constructs the series.
func New(cfg Config) (*Tranche, error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("tranche: adapter is required")
	}
	if cfg.TiltBps >= bpsDenom {
		return nil, fmt.Errorf("%w: tilt %d bps not in [0, 10000)", ErrParamOutOfBounds, cfg.TiltBps)
	}
	maxFee := cfg.Params.MaxIssuanceFeeBps
	if maxFee == 0 {
		maxFee = 500
	}
	if cfg.IssuanceFeeBps > maxFee {
		return nil, fmt.Errorf("%w: issuance fee %d bps exceeds cap %d", ErrParamOutOfBounds, cfg.IssuanceFeeBps, maxFee)
	}
	if cfg.UnderlyingDecimals < 0 || cfg.UnderlyingDecimals > 18 {
		return nil, fmt.Errorf("%w: underlying decimals %d", ErrParamOutOfBounds, cfg.UnderlyingDecimals)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if !cfg.Maturity.After(clock()) {
		return nil, fmt.Errorf("%w: maturity must be in the future", ErrParamOutOfBounds)
	}

	initialScale, err := cfg.Adapter.Scale()
	if err != nil {
		return nil, fmt.Errorf("tranche: reading initial scale: %w", err)
	}
	if !initialScale.IsPositive() {
		return nil, ErrSeriesNotInitialized
	}

	t := &Tranche{
		logger: logger.GetForComponent("tranche"),
		series: types.Series{
			ID:                 types.SeriesID(uuid.New().String()),
			Underlying:         cfg.Underlying,
			Target:             cfg.Target,
			UnderlyingDecimals: cfg.UnderlyingDecimals,
			Maturity:           cfg.Maturity,
			TiltBps:            cfg.TiltBps,
			IssuanceFeeBps:     cfg.IssuanceFeeBps,
			Mscale:             sdkmath.ZeroInt(),
			Maxscale:           initialScale,
		},
		adapter:       cfg.Adapter,
		clock:         clock,
		recorder:      cfg.Recorder,
		accounts:      make(map[types.Account]*types.AccountYieldState),
		issuanceFees:  sdkmath.ZeroInt(),
		targetBalance: sdkmath.ZeroInt(),
	}
	t.pt = newLedger("PT", t.accrualHook)
	t.yt = newLedger("YT", t.accrualHook)

	t.logger.Info().
		Str("series_id", string(t.series.ID)).
		Str("underlying", cfg.Underlying).
		Str("target", cfg.Target).
		Time("maturity", cfg.Maturity).
		Uint32("tilt_bps", cfg.TiltBps).
		Uint32("issuance_fee_bps", cfg.IssuanceFeeBps).
		Msg("Series created")
	return t, nil
}

// scaleView is the observed external state for one operation, fixed for the
// call's duration.
type scaleView struct {
	now        time.Time
	scale      sdkmath.Int // adapter scale at observation
	maxscale   sdkmath.Int // running max including this observation
	mscale     sdkmath.Int // non-zero once settled
	phase      types.SeriesPhase
	settledNow bool
}

// observe reads the adapter scale and resolves the series phase, performing
// the one-time settlement capture when maturity has passed. Nothing is
// committed; commitScales applies the view.
func (t *Tranche) observe() (scaleView, error) {
	now := t.clock()
	s, err := t.adapter.Scale()
	if err != nil {
		return scaleView{}, fmt.Errorf("tranche: reading scale: %w", err)
	}
	if !s.IsPositive() {
		return scaleView{}, ErrSeriesNotInitialized
	}

	v := scaleView{now: now, scale: s, mscale: t.series.Mscale, maxscale: t.series.Maxscale}
	switch t.series.Phase(now) {
	case types.PhaseActive:
		v.phase = types.PhaseActive
		v.maxscale = fixedmath.MaxInt(v.maxscale, s)
	case types.PhaseMatured:
		// First interaction at/after maturity captures the settlement scale.
		v.mscale = s
		v.maxscale = fixedmath.MaxInt(v.maxscale, s)
		v.phase = types.PhaseSettled
		v.settledNow = true
	case types.PhaseSettled:
		// Accrual reference is frozen; the live scale only matters for
		// share-to-underlying conversion inside the adapter.
		v.scale = t.series.Mscale
		v.phase = types.PhaseSettled
	}
	return v, nil
}

// commitScales applies an observed view to the series.
func (t *Tranche) commitScales(v scaleView) {
	t.series.Maxscale = v.maxscale
	if v.settledNow {
		t.series.Mscale = v.mscale
		t.logger.Info().
			Str("series_id", string(t.series.ID)).
			Str("mscale", v.mscale.String()).
			Str("maxscale", v.maxscale.String()).
			Msg("Series settled")
		t.record(types.OperationReceipt{
			Kind:      types.OpSettle,
			SeriesID:  t.series.ID,
			AmountIn:  sdkmath.ZeroInt(),
			AmountOut: sdkmath.ZeroInt(),
			Fee:       sdkmath.ZeroInt(),
		})
	}
}

// stateOf returns a copy of the account's accrual state.
func (t *Tranche) stateOf(a types.Account) types.AccountYieldState {
	if st, ok := t.accounts[a]; ok {
		return *st
	}
	return types.AccountYieldState{
		Lscale:         sdkmath.ZeroInt(),
		UnclaimedYield: sdkmath.ZeroInt(),
	}
}

// nextAccountState applies one accrual event to a copy of the account state,
// using the account's pre-mutation YT balance. It never touches the ledger.
func (t *Tranche) nextAccountState(st types.AccountYieldState, ytBal sdkmath.Int, v scaleView) (types.AccountYieldState, error) {
	ref := v.maxscale
	if st.Lscale.IsNil() || st.Lscale.IsZero() {
		// Never interacted: nothing to accrue, just initialize the anchor.
		st.Lscale = ref
	} else {
		earned, err := accrual.AccruedYield(ytBal, st.Lscale, ref)
		if err != nil {
			return st, err
		}
		st.UnclaimedYield = st.UnclaimedYield.Add(earned)
		st.Lscale = ref
	}

	if v.phase == types.PhaseSettled && !st.Settled {
		// One-time settlement credit: the yield side of the tilt split for
		// the balance held at settlement.
		if ytBal.IsPositive() {
			_, ytShares, err := accrual.SettlementSplit(ytBal, v.mscale, v.maxscale, t.series.TiltBps)
			if err != nil {
				return st, err
			}
			st.UnclaimedYield = st.UnclaimedYield.Add(ytShares)
		}
		st.Settled = true
	}
	return st, nil
}

// accrualHook runs before any PT/YT transfer so that already-accrued yield is
// invariant under transfers: both sides accrue against their pre-transfer
// balances, then the balances move.
func (t *Tranche) accrualHook(from, to types.Account, _ sdkmath.Int) error {
	v, err := t.observe()
	if err != nil {
		return err
	}
	fromSt, err := t.nextAccountState(t.stateOf(from), t.yt.balanceOf(from), v)
	if err != nil {
		return err
	}
	toSt, err := t.nextAccountState(t.stateOf(to), t.yt.balanceOf(to), v)
	if err != nil {
		return err
	}
	t.commitScales(v)
	t.accounts[from] = &fromSt
	t.accounts[to] = &toSt
	return nil
}

// UpdateUnclaimedYield applies accrual to both parties of a YT transfer
// before the balance change becomes visible. It is exposed for companion
// token surfaces; TransferYT calls it implicitly through the ledger hook.
func (t *Tranche) UpdateUnclaimedYield(from, to types.Account, value sdkmath.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accrualHook(from, to, value)
}

// Issue pulls underlyingAmount (native precision), deposits it through the
// adapter and mints equal PT and YT to the recipient. Pre-existing unclaimed
// yield of the recipient is reinvested into the newly issued principal.
func (t *Tranche) Issue(to types.Account, underlyingAmount sdkmath.Int) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !underlyingAmount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	v, err := t.observe()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if v.phase != types.PhaseActive {
		return sdkmath.ZeroInt(), ErrTrancheMatured
	}

	u18, err := utils.To18Decimals(underlyingAmount, t.series.UnderlyingDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Dust check against the observed scale before moving any funds.
	estShares, err := fixedmath.WDivDown(u18, v.scale)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	estFee, err := t.issuanceFeeOn(estShares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	estIssued, err := fixedmath.WMulDown(estShares.Sub(estFee), v.maxscale)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if estIssued.IsZero() {
		return sdkmath.ZeroInt(), ErrIssuanceTooSmall
	}

	// Interact: pull underlying, convert to target shares.
	if err := t.adapter.TransferUnderlyingIn(u18); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("tranche: funding deposit: %w", err)
	}
	_, shares, err := t.adapter.PrefundedDeposit()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("tranche: prefunded deposit: %w", err)
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), ErrAdapterZeroResult
	}

	fee, err := t.issuanceFeeOn(shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	st, err := t.nextAccountState(t.stateOf(to), t.yt.balanceOf(to), v)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	reinvested := st.UnclaimedYield
	st.UnclaimedYield = sdkmath.ZeroInt()

	issued, err := fixedmath.WMulDown(shares.Sub(fee).Add(reinvested), v.maxscale)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if issued.IsZero() {
		return sdkmath.ZeroInt(), ErrIssuanceTooSmall
	}

	// Commit.
	t.commitScales(v)
	t.accounts[to] = &st
	t.issuanceFees = t.issuanceFees.Add(fee)
	t.targetBalance = t.targetBalance.Add(shares)
	t.pt.mint(to, issued)
	t.yt.mint(to, issued)

	t.logger.Debug().
		Str("series_id", string(t.series.ID)).
		Str("account", string(to)).
		Str("underlying_in", underlyingAmount.String()).
		Str("issued", issued.String()).
		Str("fee_shares", fee.String()).
		Msg("Issued PT/YT")
	t.record(types.OperationReceipt{
		Kind:      types.OpIssue,
		SeriesID:  t.series.ID,
		Account:   to,
		AmountIn:  underlyingAmount,
		AmountOut: issued,
		Fee:       fee,
	})
	return issued, nil
}

// issuanceFeeOn computes the protocol-favoring (round up) issuance fee.
func (t *Tranche) issuanceFeeOn(shares sdkmath.Int) (sdkmath.Int, error) {
	if t.series.IssuanceFeeBps == 0 {
		return sdkmath.ZeroInt(), nil
	}
	return fixedmath.MulDivUp(shares, sdkmath.NewInt(int64(t.series.IssuanceFeeBps)), sdkmath.NewInt(bpsDenom))
}

// Collect pays out the caller's accrued yield as underlying (native
// precision). After settlement it also burns the caller's YT, whose tilt
// share was credited by the settlement accrual. Accounts that never
// interacted collect nothing; this is a no-op, not an error.
func (t *Tranche) Collect(caller types.Account) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	prior := t.stateOf(caller)
	if prior.Lscale.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	v, err := t.observe()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	ytBal := t.yt.balanceOf(caller)
	st, err := t.nextAccountState(prior, ytBal, v)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	payout := st.UnclaimedYield
	st.UnclaimedYield = sdkmath.ZeroInt()

	var underlyingOut sdkmath.Int
	if payout.IsPositive() {
		underlyingOut, err = t.redeemShares(payout, caller)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	} else {
		underlyingOut = sdkmath.ZeroInt()
	}

	// Commit.
	t.commitScales(v)
	t.accounts[caller] = &st
	if payout.IsPositive() {
		t.targetBalance = t.targetBalance.Sub(payout)
	}
	if v.phase == types.PhaseSettled && ytBal.IsPositive() {
		if err := t.yt.burn(caller, ytBal); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	out, err := utils.From18DecimalsTrunc(underlyingOut, t.series.UnderlyingDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.record(types.OperationReceipt{
		Kind:      types.OpCollect,
		SeriesID:  t.series.ID,
		Account:   caller,
		AmountIn:  sdkmath.ZeroInt(),
		AmountOut: out,
		Fee:       sdkmath.ZeroInt(),
	})
	return out, nil
}

// RedeemWithYT burns equal amounts of PT and YT from `from` and pays the
// combined value to `to` (native precision). Before maturity the pair is
// worth its face value priced at the historical maximum scale; after
// settlement only the principal side of the tilt split flows through this
// path, the yield side having been credited to unclaimed yield already.
func (t *Tranche) RedeemWithYT(from, to types.Account, pyAmount sdkmath.Int) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if from == types.ZeroAccount || to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !pyAmount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if t.pt.balanceOf(from).LT(pyAmount) || t.yt.balanceOf(from).LT(pyAmount) {
		return sdkmath.ZeroInt(), ErrInsufficientBalance
	}

	v, err := t.observe()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	st, err := t.nextAccountState(t.stateOf(from), t.yt.balanceOf(from), v)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	var shares sdkmath.Int
	if v.phase == types.PhaseActive {
		shares, err = fixedmath.WDivDown(pyAmount, v.maxscale)
	} else {
		shares, _, err = accrual.SettlementSplit(pyAmount, v.mscale, v.maxscale, t.series.TiltBps)
	}
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	underlyingOut, err := t.redeemShares(shares, to)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Commit.
	t.commitScales(v)
	t.accounts[from] = &st
	if err := t.pt.burn(from, pyAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := t.yt.burn(from, pyAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.targetBalance = t.targetBalance.Sub(shares)

	out, err := utils.From18DecimalsTrunc(underlyingOut, t.series.UnderlyingDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.record(types.OperationReceipt{
		Kind:      types.OpRedeemWithYT,
		SeriesID:  t.series.ID,
		Account:   from,
		AmountIn:  pyAmount,
		AmountOut: out,
		Fee:       sdkmath.ZeroInt(),
	})
	return out, nil
}

// Redeem burns principal tokens after maturity and pays the principal side
// of the settlement split to `to` (native precision).
func (t *Tranche) Redeem(from, to types.Account, principalAmount sdkmath.Int) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.redeemLocked(from, to, principalAmount, types.OpRedeem)
}

// Withdraw burns however much principal is needed (rounded against the
// caller) to pay out the requested underlying amount (native precision)
// after maturity. Returns the principal burned.
func (t *Tranche) Withdraw(from, to types.Account, underlyingAmount sdkmath.Int) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if from == types.ZeroAccount || to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !underlyingAmount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	v, err := t.observe()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if v.phase != types.PhaseSettled {
		return sdkmath.ZeroInt(), ErrNotMatured
	}

	u18, err := utils.To18Decimals(underlyingAmount, t.series.UnderlyingDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	principal, err := t.principalForUnderlying(u18, v)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if _, err := t.redeemLocked(from, to, principal, types.OpWithdraw); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return principal, nil
}

// principalForUnderlying inverts the settlement payout formula, rounding the
// principal burned up so the protocol never overpays.
func (t *Tranche) principalForUnderlying(u18 sdkmath.Int, v scaleView) (sdkmath.Int, error) {
	tilt := fixedmath.Wad.MulRaw(int64(t.series.TiltBps)).QuoRaw(bpsDenom)
	zShare := fixedmath.Wad.Sub(tilt)
	ratio, err := fixedmath.WDivDown(v.mscale, v.maxscale)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if ratio.GTE(zShare) {
		// underlying = principal * zShare / WAD
		return fixedmath.MulDivUp(u18, fixedmath.Wad, zShare)
	}
	// underlying = principal * mscale / maxscale
	return fixedmath.MulDivUp(u18, v.maxscale, v.mscale)
}

// redeemLocked is the shared maturity-gated PT redemption path. The caller
// holds the lock.
func (t *Tranche) redeemLocked(from, to types.Account, principalAmount sdkmath.Int, kind types.OperationKind) (sdkmath.Int, error) {
	if from == types.ZeroAccount || to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if !principalAmount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if t.pt.balanceOf(from).LT(principalAmount) {
		return sdkmath.ZeroInt(), ErrInsufficientBalance
	}

	v, err := t.observe()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if v.phase != types.PhaseSettled {
		return sdkmath.ZeroInt(), ErrNotMatured
	}

	st, err := t.nextAccountState(t.stateOf(from), t.yt.balanceOf(from), v)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	ptShares, _, err := accrual.SettlementSplit(principalAmount, v.mscale, v.maxscale, t.series.TiltBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	underlyingOut, err := t.redeemShares(ptShares, to)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Commit.
	t.commitScales(v)
	t.accounts[from] = &st
	if err := t.pt.burn(from, principalAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.targetBalance = t.targetBalance.Sub(ptShares)

	out, err := utils.From18DecimalsTrunc(underlyingOut, t.series.UnderlyingDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.record(types.OperationReceipt{
		Kind:      kind,
		SeriesID:  t.series.ID,
		Account:   from,
		AmountIn:  principalAmount,
		AmountOut: out,
		Fee:       sdkmath.ZeroInt(),
	})
	return out, nil
}

// redeemShares funnels target shares through the adapter to `to`, returning
// the underlying withdrawn (18-decimal). Interact-phase helper.
func (t *Tranche) redeemShares(shares sdkmath.Int, to types.Account) (sdkmath.Int, error) {
	if err := t.adapter.TransferSharesIn(shares); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("tranche: funding redemption: %w", err)
	}
	underlying, _, err := t.adapter.PrefundedRedeem(to)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("tranche: prefunded redeem: %w", err)
	}
	return underlying, nil
}

// ClaimIssuanceFees pays the accumulated protocol fees to `to` (native
// precision) and zeroes the accumulator.
func (t *Tranche) ClaimIssuanceFees(to types.Account) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if to == types.ZeroAccount {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	fees := t.issuanceFees
	if fees.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	underlyingOut, err := t.redeemShares(fees, to)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.issuanceFees = sdkmath.ZeroInt()
	t.targetBalance = t.targetBalance.Sub(fees)

	out, err := utils.From18DecimalsTrunc(underlyingOut, t.series.UnderlyingDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.record(types.OperationReceipt{
		Kind:      types.OpClaimFees,
		SeriesID:  t.series.ID,
		Account:   to,
		AmountIn:  fees,
		AmountOut: out,
		Fee:       sdkmath.ZeroInt(),
	})
	return out, nil
}

// TransferPT moves principal tokens. Accrual runs for both parties first.
func (t *Tranche) TransferPT(from, to types.Account, amount sdkmath.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if from == types.ZeroAccount || to == types.ZeroAccount {
		return ErrZeroAddress
	}
	if !amount.IsPositive() {
		return ErrZeroAmount
	}
	return t.pt.transfer(from, to, amount)
}

// TransferYT moves yield tokens. Accrual runs for both parties against their
// pre-transfer balances, so unclaimed yield is transfer-invariant.
func (t *Tranche) TransferYT(from, to types.Account, amount sdkmath.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if from == types.ZeroAccount || to == types.ZeroAccount {
		return ErrZeroAddress
	}
	if !amount.IsPositive() {
		return ErrZeroAmount
	}
	return t.yt.transfer(from, to, amount)
}

// Settle performs the post-maturity settlement capture without any other
// effect. Safe to call repeatedly; used by the settlement daemon.
func (t *Tranche) Settle() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.observe()
	if err != nil {
		return err
	}
	t.commitScales(v)
	return nil
}

func (t *Tranche) record(r types.OperationReceipt) {
	if t.recorder == nil {
		return
	}
	r.ID = uuid.New().String()
	r.Timestamp = t.clock()
	if r.ProtocolFee.IsNil() {
		r.ProtocolFee = sdkmath.ZeroInt()
	}
	t.recorder.Record(r)
}

// --- Read surface ---

// Series returns a copy of the series metadata and scale state.
func (t *Tranche) Series() types.Series {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.series
}

// GlobalScales returns the packed scale pair mirroring series state.
func (t *Tranche) GlobalScales() types.GlobalScales {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.GlobalScales{Mscale: t.series.Mscale, Maxscale: t.series.Maxscale}
}

// PTBalanceOf returns the principal token balance of an account.
func (t *Tranche) PTBalanceOf(a types.Account) sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pt.balanceOf(a)
}

// YTBalanceOf returns the yield token balance of an account.
func (t *Tranche) YTBalanceOf(a types.Account) sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.yt.balanceOf(a)
}

// TotalSupplyPT returns the principal token supply.
func (t *Tranche) TotalSupplyPT() sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pt.totalSupply()
}

// TotalSupplyYT returns the yield token supply.
func (t *Tranche) TotalSupplyYT() sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.yt.totalSupply()
}

// UnclaimedYieldOf returns the account's accrued-but-uncollected yield in
// target shares, as of the last accrual event.
func (t *Tranche) UnclaimedYieldOf(a types.Account) sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateOf(a).UnclaimedYield
}

// LscaleOf returns the account's accrual anchor scale (zero = never
// interacted).
func (t *Tranche) LscaleOf(a types.Account) sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateOf(a).Lscale
}

// IssuanceFees returns the protocol fee accumulator in target shares.
func (t *Tranche) IssuanceFees() sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issuanceFees
}

// TargetBalance returns the target shares held in custody for this series.
func (t *Tranche) TargetBalance() sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.targetBalance
}

// Liabilities returns the sum of all unclaimed yield plus unclaimed fees, in
// target shares. Input to the solvency report.
func (t *Tranche) Liabilities() sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := t.issuanceFees
	for _, st := range t.accounts {
		total = total.Add(st.UnclaimedYield)
	}
	return total
}
