// Package ledger holds the reserve and liability accounting of a single-asset
// pool. Mutations use checked arithmetic and never wrap.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/devtooligan/singularity-v2/internal/wad"
)

var (
	ErrAssetsExceeded = errors.New("pool: assets exceeded")
	ErrCapExceeded    = errors.New("pool: deposit cap exceeded")
	ErrInvalidFee     = errors.New("pool: invalid fee")
	ErrMathOverflow   = errors.New("pool: math overflow")
)

// Params fixes the immutable identity of a pool plus its initial settings.
type Params struct {
	Asset        common.Address
	Decimals     uint8
	IsStablecoin bool
	BaseFee      *uint256.Int
	// DepositCap nil means uncapped.
	DepositCap *uint256.Int
}

// PoolState is the accounting record of one pool. Assets is the tracked
// backing for liabilities; protocol fees sit in custody next to it.
type PoolState struct {
	Asset        common.Address
	Decimals     uint8
	IsStablecoin bool
	Paused       bool
	DepositCap   *uint256.Int
	Assets       *uint256.Int
	Liabilities  *uint256.Int
	BaseFee      *uint256.Int
	ProtocolFees *uint256.Int
}

// New creates an empty pool state.
func New(p Params) (*PoolState, error) {
	if p.Asset == (common.Address{}) {
		return nil, fmt.Errorf("asset address is required")
	}
	baseFee := new(uint256.Int)
	if p.BaseFee != nil {
		if err := CheckBaseFee(p.BaseFee); err != nil {
			return nil, err
		}
		baseFee.Set(p.BaseFee)
	}
	depositCap := wad.Max()
	if p.DepositCap != nil {
		depositCap.Set(p.DepositCap)
	}
	return &PoolState{
		Asset:        p.Asset,
		Decimals:     p.Decimals,
		IsStablecoin: p.IsStablecoin,
		DepositCap:   depositCap,
		Assets:       new(uint256.Int),
		Liabilities:  new(uint256.Int),
		BaseFee:      baseFee,
		ProtocolFees: new(uint256.Int),
	}, nil
}

// CheckBaseFee rejects fee rates of 100% or more.
func CheckBaseFee(fee *uint256.Int) error {
	if fee == nil || fee.Cmp(wad.One()) >= 0 {
		return ErrInvalidFee
	}
	return nil
}

// Clone returns a deep copy that can be mutated without touching s.
func (s *PoolState) Clone() *PoolState {
	out := *s
	out.DepositCap = new(uint256.Int).Set(s.DepositCap)
	out.Assets = new(uint256.Int).Set(s.Assets)
	out.Liabilities = new(uint256.Int).Set(s.Liabilities)
	out.BaseFee = new(uint256.Int).Set(s.BaseFee)
	out.ProtocolFees = new(uint256.Int).Set(s.ProtocolFees)
	return &out
}

// Equal reports whether both states hold the same values.
func (s *PoolState) Equal(o *PoolState) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Asset == o.Asset &&
		s.Decimals == o.Decimals &&
		s.IsStablecoin == o.IsStablecoin &&
		s.Paused == o.Paused &&
		s.DepositCap.Eq(o.DepositCap) &&
		s.Assets.Eq(o.Assets) &&
		s.Liabilities.Eq(o.Liabilities) &&
		s.BaseFee.Eq(o.BaseFee) &&
		s.ProtocolFees.Eq(o.ProtocolFees)
}

// CollateralizationRatio is assets/liabilities in wad, 1e18 for an empty pool.
func (s *PoolState) CollateralizationRatio() (*uint256.Int, error) {
	return Ratio(s.Assets, s.Liabilities)
}

// Ratio is assets/liabilities rounded down, 1e18 when liabilities are zero.
func Ratio(assets, liabilities *uint256.Int) (*uint256.Int, error) {
	if liabilities.IsZero() {
		return wad.One(), nil
	}
	r, err := wad.DivWadDown(assets, liabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: ratio: %v", ErrMathOverflow, err)
	}
	return r, nil
}

// PricePerShare is liabilities/supply in wad, 1e18 when no claims exist.
func (s *PoolState) PricePerShare(supply *uint256.Int) (*uint256.Int, error) {
	if supply == nil || supply.IsZero() {
		return wad.One(), nil
	}
	pps, err := wad.DivWadDown(s.Liabilities, supply)
	if err != nil {
		return nil, fmt.Errorf("%w: price per share: %v", ErrMathOverflow, err)
	}
	return pps, nil
}

// CheckDepositCap fails when liabilities+amount would exceed the cap.
func (s *PoolState) CheckDepositCap(amount *uint256.Int) error {
	after, overflow := new(uint256.Int).AddOverflow(s.Liabilities, amount)
	if overflow || after.Gt(s.DepositCap) {
		return ErrCapExceeded
	}
	return nil
}

// Credit books a deposit of amount: assets and liabilities grow together.
func (s *PoolState) Credit(amount *uint256.Int) error {
	if err := s.AddAssets(amount); err != nil {
		return err
	}
	return s.AddLiabilities(amount)
}

// Debit books a withdrawal of amount from both sides.
func (s *PoolState) Debit(amount *uint256.Int) error {
	if err := s.RemoveAssets(amount); err != nil {
		return err
	}
	next, ok := wad.Sub(s.Liabilities, amount)
	if !ok {
		return fmt.Errorf("%w: liabilities underflow", ErrMathOverflow)
	}
	s.Liabilities = next
	return nil
}

func (s *PoolState) AddAssets(amount *uint256.Int) error {
	next, err := wad.Add(s.Assets, amount)
	if err != nil {
		return fmt.Errorf("%w: assets", ErrMathOverflow)
	}
	s.Assets = next
	return nil
}

func (s *PoolState) RemoveAssets(amount *uint256.Int) error {
	next, ok := wad.Sub(s.Assets, amount)
	if !ok {
		return ErrAssetsExceeded
	}
	s.Assets = next
	return nil
}

func (s *PoolState) AddLiabilities(amount *uint256.Int) error {
	next, err := wad.Add(s.Liabilities, amount)
	if err != nil {
		return fmt.Errorf("%w: liabilities", ErrMathOverflow)
	}
	s.Liabilities = next
	return nil
}

// AccrueProtocolFee adds fee to the protocol balance.
func (s *PoolState) AccrueProtocolFee(fee *uint256.Int) error {
	next, err := wad.Add(s.ProtocolFees, fee)
	if err != nil {
		return fmt.Errorf("%w: protocol fees", ErrMathOverflow)
	}
	s.ProtocolFees = next
	return nil
}

// SkimProtocolFee moves fee from tracked assets into the protocol balance.
func (s *PoolState) SkimProtocolFee(fee *uint256.Int) error {
	if err := s.RemoveAssets(fee); err != nil {
		return err
	}
	return s.AccrueProtocolFee(fee)
}

// TakeProtocolFees zeroes the protocol balance and returns what it held.
func (s *PoolState) TakeProtocolFees() *uint256.Int {
	out := s.ProtocolFees
	s.ProtocolFees = new(uint256.Int)
	return out
}

// Custody is the asset balance the pool must hold: assets plus protocol fees.
func (s *PoolState) Custody() (*uint256.Int, error) {
	total, err := wad.Add(s.Assets, s.ProtocolFees)
	if err != nil {
		return nil, fmt.Errorf("%w: custody", ErrMathOverflow)
	}
	return total, nil
}
