package pool

import (
	"errors"
	"fmt"

	"github.com/devtooligan/singularity-v2/internal/curve"
	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/oracle"
)

var (
	ErrZeroAmount            = errors.New("pool: zero amount")
	ErrPaused                = errors.New("pool: paused")
	ErrUnauthorized          = errors.New("pool: unauthorized")
	ErrStaleOracle           = errors.New("pool: stale oracle")
	ErrSlippageExceedsAmount = errors.New("pool: slippage exceeds amount")
	ErrReentrant             = errors.New("pool: reentrant call")

	ErrCapExceeded        = ledger.ErrCapExceeded
	ErrAssetsExceeded     = ledger.ErrAssetsExceeded
	ErrInvalidFee         = ledger.ErrInvalidFee
	ErrMathOverflow       = ledger.ErrMathOverflow
	ErrFeeExceedsAmount   = curve.ErrFeeExceedsAmount
	ErrInvalidOraclePrice = oracle.ErrInvalidPrice
)

func overflow(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMathOverflow, what, err)
}
