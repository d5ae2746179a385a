// Package registry holds the global parameters a pool reads from its factory.
package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Params are the factory-wide settings shared by every pool.
type Params struct {
	Router  common.Address
	Factory common.Address
	Oracle  common.Address
	// ProtocolFeeShare is the percentage (0-100) of trading fees kept by the protocol.
	ProtocolFeeShare uint64
	// OracleSens is the quote age in seconds after which trading fees double.
	OracleSens uint64
	Tranche    string
}

func (p Params) Validate() error {
	if p.Router == (common.Address{}) {
		return fmt.Errorf("router address is required")
	}
	if p.Factory == (common.Address{}) {
		return fmt.Errorf("factory address is required")
	}
	if p.ProtocolFeeShare > 100 {
		return fmt.Errorf("protocol fee share %d exceeds 100", p.ProtocolFeeShare)
	}
	return nil
}

// Static is a registry with fixed parameters. It is safe for concurrent
// use because nothing writes params after construction.
type Static struct {
	params Params
}

func NewStatic(p Params) (*Static, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Static{params: p}, nil
}

func (s *Static) Params() Params {
	return s.params
}

// PoolName is the display name of a pool's claim token.
func (s *Static) PoolName(symbol string) string {
	return fmt.Sprintf("Singularity %s Pool (%s)", symbol, s.Params().Tranche)
}

// PoolSymbol is the ticker of a pool's claim token.
func (s *Static) PoolSymbol(symbol string) string {
	return fmt.Sprintf("SPT-%s (%s)", symbol, s.Params().Tranche)
}
