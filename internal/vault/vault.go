// Package vault is an in-memory multi-asset token ledger standing in for
// the asset contracts a pool pulls from and pushes to.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/devtooligan/singularity-v2/internal/wad"
)

var ErrInsufficientFunds = errors.New("vault: insufficient funds")

// Transfer describes one completed movement of an asset.
type Transfer struct {
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Hook runs after every transfer, outside the vault lock, the way a token
// callback would. A hook error reverts the transfer.
type Hook func(ctx context.Context, t Transfer) error

type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*uint256.Int
	hook     Hook
}

func New() *Vault {
	return &Vault{balances: make(map[common.Address]map[common.Address]*uint256.Int)}
}

// SetHook installs h, or removes the hook when h is nil.
func (v *Vault) SetHook(h Hook) {
	v.mu.Lock()
	v.hook = h
	v.mu.Unlock()
}

// Fund credits owner with amount of asset out of thin air.
func (v *Vault) Fund(asset, owner common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	next, overflow := new(uint256.Int).AddOverflow(v.balanceLocked(asset, owner), amount)
	if overflow {
		return fmt.Errorf("fund %s: balance overflow", owner.Hex())
	}
	v.setLocked(asset, owner, next)
	return nil
}

func (v *Vault) BalanceOf(asset, owner common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(uint256.Int).Set(v.balanceLocked(asset, owner))
}

// Transfer moves amount of asset from one owner to another.
func (v *Vault) Transfer(ctx context.Context, asset, from, to common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	if err := v.moveLocked(asset, from, to, amount); err != nil {
		v.mu.Unlock()
		return err
	}
	hook := v.hook
	v.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, Transfer{Asset: asset, From: from, To: to, Amount: new(uint256.Int).Set(amount)}); err != nil {
		v.mu.Lock()
		revertErr := v.moveLocked(asset, to, from, amount)
		v.mu.Unlock()
		if revertErr != nil {
			return fmt.Errorf("transfer hook: %w (revert failed: %v)", err, revertErr)
		}
		return fmt.Errorf("transfer hook: %w", err)
	}
	return nil
}

func (v *Vault) moveLocked(asset, from, to common.Address, amount *uint256.Int) error {
	fromBal := v.balanceLocked(asset, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), wad.String(fromBal), wad.String(amount))
	}
	toBal := v.balanceLocked(asset, to)
	if from == to {
		return nil
	}
	v.setLocked(asset, from, new(uint256.Int).Sub(fromBal, amount))
	v.setLocked(asset, to, new(uint256.Int).Add(toBal, amount))
	return nil
}

func (v *Vault) balanceLocked(asset, owner common.Address) *uint256.Int {
	if byOwner, ok := v.balances[asset]; ok {
		if b, ok := byOwner[owner]; ok {
			return b
		}
	}
	return new(uint256.Int)
}

func (v *Vault) setLocked(asset, owner common.Address, amount *uint256.Int) {
	byOwner, ok := v.balances[asset]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		v.balances[asset] = byOwner
	}
	byOwner[owner] = amount
}

// Custody is the pool's side of the vault: it pulls into and pushes out of
// a single custodian account.
type Custody struct {
	vault     *Vault
	custodian common.Address
}

func NewCustody(v *Vault, custodian common.Address) *Custody {
	return &Custody{vault: v, custodian: custodian}
}

func (c *Custody) Pull(ctx context.Context, asset, from common.Address, amount *uint256.Int) error {
	return c.vault.Transfer(ctx, asset, from, c.custodian, amount)
}

func (c *Custody) Push(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	return c.vault.Transfer(ctx, asset, c.custodian, to, amount)
}

// Balance is the custodian's holding of asset.
func (c *Custody) Balance(asset common.Address) *uint256.Int {
	return c.vault.BalanceOf(asset, c.custodian)
}
