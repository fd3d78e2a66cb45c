package basepool

import (
	"sync"

	sdkmath "cosmossdk.io/math"
)

const bpsDenom = 10_000

// SimPool is an in-memory base pool for tests and simulation mode. The
// pooled principal tokens share a maturity and trade near par, so a flat
// rate with a small exchange fee is an adequate stand-in for the external
// venue's curve.
type SimPool struct {
	mu       sync.Mutex
	balances []sdkmath.Int
	supply   sdkmath.Int
	feeBps   int64
}

// NewSim creates a simulator holding n principal tokens with the given
// exchange fee.
func NewSim(n int, feeBps int64) (*SimPool, error) {
	if n < 2 {
		return nil, ErrIndexOutOfRange
	}
	if feeBps < 0 || feeBps >= bpsDenom {
		return nil, ErrZeroAmount
	}
	balances := make([]sdkmath.Int, n)
	for i := range balances {
		balances[i] = sdkmath.ZeroInt()
	}
	return &SimPool{balances: balances, supply: sdkmath.ZeroInt(), feeBps: feeBps}, nil
}

func (s *SimPool) NumAssets() int {
	return len(s.balances)
}

func (s *SimPool) checkIndex(i int) error {
	if i < 0 || i >= len(s.balances) {
		return ErrIndexOutOfRange
	}
	return nil
}

func (s *SimPool) sumBalancesLocked() sdkmath.Int {
	sum := sdkmath.ZeroInt()
	for _, b := range s.balances {
		sum = sum.Add(b)
	}
	return sum
}

func (s *SimPool) GetDy(i, j int, dx sdkmath.Int) (sdkmath.Int, error) {
	if err := s.checkIndex(i); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := s.checkIndex(j); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if i == j {
		return sdkmath.ZeroInt(), ErrIndexOutOfRange
	}
	if !dx.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	return dx.MulRaw(bpsDenom - s.feeBps).QuoRaw(bpsDenom), nil
}

func (s *SimPool) Exchange(i, j int, dx, minDy sdkmath.Int) (sdkmath.Int, error) {
	dy, err := s.GetDy(i, j, dx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dy.GT(s.balances[j]) {
		return sdkmath.ZeroInt(), ErrInsufficient
	}
	if dy.LT(minDy) {
		return sdkmath.ZeroInt(), ErrSlippage
	}
	s.balances[i] = s.balances[i].Add(dx)
	s.balances[j] = s.balances[j].Sub(dy)
	return dy, nil
}

func (s *SimPool) AddLiquidity(amounts []sdkmath.Int, minMint sdkmath.Int) (sdkmath.Int, error) {
	if len(amounts) != len(s.balances) {
		return sdkmath.ZeroInt(), ErrIndexOutOfRange
	}
	sumIn := sdkmath.ZeroInt()
	for _, a := range amounts {
		if a.IsNegative() {
			return sdkmath.ZeroInt(), ErrZeroAmount
		}
		sumIn = sumIn.Add(a)
	}
	if !sumIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// One LP unit represents a basket of all N principal tokens, so the
	// bootstrap mint is the deposit's face value divided by N.
	var minted sdkmath.Int
	if s.supply.IsZero() {
		minted = sumIn.QuoRaw(int64(len(s.balances)))
	} else {
		minted = sumIn.Mul(s.supply).Quo(s.sumBalancesLocked())
	}
	if minted.LT(minMint) {
		return sdkmath.ZeroInt(), ErrSlippage
	}
	for i, a := range amounts {
		s.balances[i] = s.balances[i].Add(a)
	}
	s.supply = s.supply.Add(minted)
	return minted, nil
}

func (s *SimPool) RemoveLiquidity(lpAmount sdkmath.Int) ([]sdkmath.Int, error) {
	if !lpAmount.IsPositive() {
		return nil, ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lpAmount.GT(s.supply) {
		return nil, ErrInsufficient
	}

	out := make([]sdkmath.Int, len(s.balances))
	for i, b := range s.balances {
		out[i] = b.Mul(lpAmount).Quo(s.supply)
		s.balances[i] = b.Sub(out[i])
	}
	s.supply = s.supply.Sub(lpAmount)
	return out, nil
}

func (s *SimPool) RemoveLiquidityOne(lpAmount sdkmath.Int, i int, minOut sdkmath.Int) (sdkmath.Int, error) {
	if err := s.checkIndex(i); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !lpAmount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lpAmount.GT(s.supply) {
		return sdkmath.ZeroInt(), ErrInsufficient
	}

	value := s.sumBalancesLocked().Mul(lpAmount).Quo(s.supply)
	out := value.MulRaw(bpsDenom - s.feeBps).QuoRaw(bpsDenom)
	if out.GT(s.balances[i]) {
		return sdkmath.ZeroInt(), ErrInsufficient
	}
	if out.LT(minOut) {
		return sdkmath.ZeroInt(), ErrSlippage
	}
	s.balances[i] = s.balances[i].Sub(out)
	s.supply = s.supply.Sub(lpAmount)
	return out, nil
}

func (s *SimPool) Balances(i int) (sdkmath.Int, error) {
	if err := s.checkIndex(i); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[i], nil
}

func (s *SimPool) TotalSupply() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supply
}
