package adapter

import (
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/types"
)

var (
	// ErrRequestPending: the unstaking queue allows a single outstanding
	// request; a second one must wait for the first to be claimed.
	ErrRequestPending = errors.New("adapter: a withdrawal request is already pending")
	// ErrNoRequest is returned when claiming with no request outstanding.
	ErrNoRequest = errors.New("adapter: no withdrawal request outstanding")
	// ErrUnknownRequest is returned for a claim with the wrong request id.
	ErrUnknownRequest = errors.New("adapter: unknown withdrawal request id")
	// ErrInsufficientBuffer: the immediate-payout buffer cannot cover the
	// redemption; a withdrawal request has to move funds out of the queue
	// first.
	ErrInsufficientBuffer = errors.New("adapter: redemption exceeds available buffer")
)

// RateSource supplies the staked-asset exchange rate (WAD) for the LST
// adapter.
type RateSource func() (sdkmath.Int, error)

// LstAdapter models a liquid-staking yield source whose exits go through an
// asynchronous unstaking queue. Redemptions are served from an ETH buffer;
// refilling the buffer requires requesting a withdrawal from the queue and
// claiming it once processed. At most one request is outstanding at a time.
type LstAdapter struct {
	mu sync.Mutex

	rate RateSource

	pendingUnderlying sdkmath.Int
	pendingShares     sdkmath.Int

	bufferEth          sdkmath.Int
	withdrawalQueueEth sdkmath.Int
	requestID          uint64 // 0 = no request outstanding
	nextRequestID      uint64

	payouts map[types.Account]sdkmath.Int
}

// NewLst creates an LST adapter reading its exchange rate from the given
// source.
func NewLst(rate RateSource) *LstAdapter {
	return &LstAdapter{
		rate:               rate,
		pendingUnderlying:  sdkmath.ZeroInt(),
		pendingShares:      sdkmath.ZeroInt(),
		bufferEth:          sdkmath.ZeroInt(),
		withdrawalQueueEth: sdkmath.ZeroInt(),
		nextRequestID:      1,
		payouts:            make(map[types.Account]sdkmath.Int),
	}
}

func (l *LstAdapter) Scale() (sdkmath.Int, error) {
	s, err := l.rate()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !s.IsPositive() {
		return sdkmath.ZeroInt(), ErrScaleNotPositive
	}
	return s, nil
}

func (l *LstAdapter) TransferUnderlyingIn(amount sdkmath.Int) error {
	if amount.IsNegative() {
		return fixedmath.ErrNegativeInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pendingUnderlying = l.pendingUnderlying.Add(amount)
	return nil
}

func (l *LstAdapter) TransferSharesIn(amount sdkmath.Int) error {
	if amount.IsNegative() {
		return fixedmath.ErrNegativeInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pendingShares = l.pendingShares.Add(amount)
	return nil
}

// PrefundedDeposit stakes the pending underlying: shares are minted at the
// current rate and the underlying enters the staking position (not the
// buffer).
func (l *LstAdapter) PrefundedDeposit() (sdkmath.Int, sdkmath.Int, error) {
	scale, err := l.Scale()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	used := l.pendingUnderlying
	shares, err := fixedmath.WDivDown(used, scale)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	l.pendingUnderlying = sdkmath.ZeroInt()
	return used, shares, nil
}

// PrefundedRedeem pays the share value out of the buffer. If the buffer
// cannot cover it the whole operation fails; the pending shares are left
// intact so the caller's abort semantics hold.
func (l *LstAdapter) PrefundedRedeem(to types.Account) (sdkmath.Int, sdkmath.Int, error) {
	scale, err := l.Scale()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	redeemed := l.pendingShares
	underlying, err := fixedmath.WMulDown(redeemed, scale)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if underlying.GT(l.bufferEth) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrInsufficientBuffer
	}
	l.pendingShares = sdkmath.ZeroInt()
	l.bufferEth = l.bufferEth.Sub(underlying)
	prev, ok := l.payouts[to]
	if !ok {
		prev = sdkmath.ZeroInt()
	}
	l.payouts[to] = prev.Add(underlying)
	return underlying, redeemed, nil
}

// RequestWithdrawal asks the unstaking queue to release the given amount of
// ETH toward the buffer. Only one request may be outstanding.
func (l *LstAdapter) RequestWithdrawal(amount sdkmath.Int) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fixedmath.ErrNegativeInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.requestID != 0 {
		return 0, ErrRequestPending
	}
	l.requestID = l.nextRequestID
	l.nextRequestID++
	l.withdrawalQueueEth = l.withdrawalQueueEth.Add(amount)
	return l.requestID, nil
}

// ClaimWithdrawal completes a processed request, moving the queued ETH into
// the immediate buffer.
func (l *LstAdapter) ClaimWithdrawal(requestID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.requestID == 0 {
		return ErrNoRequest
	}
	if requestID != l.requestID {
		return ErrUnknownRequest
	}
	l.bufferEth = l.bufferEth.Add(l.withdrawalQueueEth)
	l.withdrawalQueueEth = sdkmath.ZeroInt()
	l.requestID = 0
	return nil
}

// BufferEth reports the immediately available payout buffer.
func (l *LstAdapter) BufferEth() sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bufferEth
}

// QueueEth reports the ETH waiting in the unstaking queue.
func (l *LstAdapter) QueueEth() sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdrawalQueueEth
}
