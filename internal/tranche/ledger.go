package tranche

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/stripfi/ysm/internal/types"
)

// ErrInsufficientBalance is returned when a burn or transfer exceeds the
// holder's balance.
var ErrInsufficientBalance = errors.New("tranche: insufficient token balance")

// transferHook runs before a transfer's balance change becomes visible, with
// both accounts still at their pre-transfer balances.
type transferHook func(from, to types.Account, amount sdkmath.Int) error

// ledger is a minimal internal fungible-token balance book for PT and YT.
// It is not safe for concurrent use; the owning Tranche serializes access.
type ledger struct {
	symbol   string
	balances map[types.Account]sdkmath.Int
	supply   sdkmath.Int
	hook     transferHook
}

func newLedger(symbol string, hook transferHook) *ledger {
	return &ledger{
		symbol:   symbol,
		balances: make(map[types.Account]sdkmath.Int),
		supply:   sdkmath.ZeroInt(),
		hook:     hook,
	}
}

func (l *ledger) balanceOf(a types.Account) sdkmath.Int {
	if v, ok := l.balances[a]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (l *ledger) totalSupply() sdkmath.Int {
	return l.supply
}

func (l *ledger) mint(to types.Account, amount sdkmath.Int) {
	l.balances[to] = l.balanceOf(to).Add(amount)
	l.supply = l.supply.Add(amount)
}

func (l *ledger) burn(from types.Account, amount sdkmath.Int) error {
	bal := l.balanceOf(from)
	if bal.LT(amount) {
		return ErrInsufficientBalance
	}
	l.balances[from] = bal.Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *ledger) transfer(from, to types.Account, amount sdkmath.Int) error {
	if l.balanceOf(from).LT(amount) {
		return ErrInsufficientBalance
	}
	if l.hook != nil {
		if err := l.hook(from, to, amount); err != nil {
			return err
		}
	}
	l.balances[from] = l.balanceOf(from).Sub(amount)
	l.balances[to] = l.balanceOf(to).Add(amount)
	return nil
}
