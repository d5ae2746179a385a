// Package claims is an in-memory share ledger for a pool.
package claims

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("claims: insufficient balance")
	ErrZeroAddress         = errors.New("claims: zero address")
	ErrSupplyOverflow      = errors.New("claims: supply overflow")
)

// Ledger tracks share balances and total supply.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*uint256.Int),
		supply:   new(uint256.Int),
	}
}

func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	l.supply = supply
	l.balances[to] = new(uint256.Int).Add(l.balanceLocked(to), amount)
	return nil
}

func (l *Ledger) Burn(from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balanceLocked(from)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	next := new(uint256.Int).Sub(balance, amount)
	if next.IsZero() {
		delete(l.balances, from)
	} else {
		l.balances[from] = next
	}
	l.supply = new(uint256.Int).Sub(l.supply, amount)
	return nil
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.supply)
}

func (l *Ledger) BalanceOf(owner common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.balanceLocked(owner))
}

// Holders returns the number of accounts with a non-zero balance.
func (l *Ledger) Holders() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.balances)
}

func (l *Ledger) balanceLocked(owner common.Address) *uint256.Int {
	if b, ok := l.balances[owner]; ok {
		return b
	}
	return new(uint256.Int)
}
