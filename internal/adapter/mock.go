package adapter

import (
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/types"
)

// ErrScaleNotPositive is returned when an adapter is configured with a
// non-positive exchange rate.
var ErrScaleNotPositive = errors.New("adapter: scale must be positive")

// MockAdapter is an in-memory yield source with a settable scale. It backs
// simulation mode and the test suites; the conversion math matches what a
// real share-based yield source does.
type MockAdapter struct {
	mu sync.Mutex

	scale             sdkmath.Int
	pendingUnderlying sdkmath.Int
	pendingShares     sdkmath.Int
	sharesOutstanding sdkmath.Int
	payouts           map[types.Account]sdkmath.Int
}

// NewMock creates a mock adapter at the given initial scale (WAD).
func NewMock(initialScale sdkmath.Int) (*MockAdapter, error) {
	if !initialScale.IsPositive() {
		return nil, ErrScaleNotPositive
	}
	return &MockAdapter{
		scale:             initialScale,
		pendingUnderlying: sdkmath.ZeroInt(),
		pendingShares:     sdkmath.ZeroInt(),
		sharesOutstanding: sdkmath.ZeroInt(),
		payouts:           make(map[types.Account]sdkmath.Int),
	}, nil
}

// SetScale replaces the exchange rate. Decreases are allowed; the accounting
// engine tolerates them.
func (m *MockAdapter) SetScale(scale sdkmath.Int) error {
	if !scale.IsPositive() {
		return ErrScaleNotPositive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scale = scale
	return nil
}

// GrowScaleBps multiplies the scale by (1 + bps/10000), simulating yield.
func (m *MockAdapter) GrowScaleBps(bps int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scale = m.scale.MulRaw(10_000 + bps).QuoRaw(10_000)
}

func (m *MockAdapter) Scale() (sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scale, nil
}

func (m *MockAdapter) TransferUnderlyingIn(amount sdkmath.Int) error {
	if amount.IsNegative() {
		return fixedmath.ErrNegativeInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingUnderlying = m.pendingUnderlying.Add(amount)
	return nil
}

func (m *MockAdapter) TransferSharesIn(amount sdkmath.Int) error {
	if amount.IsNegative() {
		return fixedmath.ErrNegativeInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingShares = m.pendingShares.Add(amount)
	return nil
}

func (m *MockAdapter) PrefundedDeposit() (sdkmath.Int, sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.pendingUnderlying
	shares, err := fixedmath.WDivDown(used, m.scale)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	m.pendingUnderlying = sdkmath.ZeroInt()
	m.sharesOutstanding = m.sharesOutstanding.Add(shares)
	return used, shares, nil
}

func (m *MockAdapter) PrefundedRedeem(to types.Account) (sdkmath.Int, sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	redeemed := m.pendingShares
	underlying, err := fixedmath.WMulDown(redeemed, m.scale)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	m.pendingShares = sdkmath.ZeroInt()
	m.sharesOutstanding = m.sharesOutstanding.Sub(redeemed)
	prev, ok := m.payouts[to]
	if !ok {
		prev = sdkmath.ZeroInt()
	}
	m.payouts[to] = prev.Add(underlying)
	return underlying, redeemed, nil
}

// PayoutOf reports the cumulative underlying paid to an account. Test and
// simulation surface only.
func (m *MockAdapter) PayoutOf(a types.Account) sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.payouts[a]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}
