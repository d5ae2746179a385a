package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	asset = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	pool  = common.HexToAddress("0x0000000000000000000000000000000000000f00")
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func TestCustodyPullPush(t *testing.T) {
	v := New()
	require.NoError(t, v.Fund(asset, alice, uint256.NewInt(1000)))
	c := NewCustody(v, pool)

	require.NoError(t, c.Pull(context.Background(), asset, alice, uint256.NewInt(400)))
	require.Equal(t, uint64(400), c.Balance(asset).Uint64())
	require.Equal(t, uint64(600), v.BalanceOf(asset, alice).Uint64())

	require.NoError(t, c.Push(context.Background(), asset, alice, uint256.NewInt(100)))
	require.Equal(t, uint64(300), c.Balance(asset).Uint64())

	err := c.Push(context.Background(), asset, alice, uint256.NewInt(301))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(300), c.Balance(asset).Uint64())
}

func TestHookErrorRevertsTransfer(t *testing.T) {
	v := New()
	require.NoError(t, v.Fund(asset, alice, uint256.NewInt(10)))

	boom := errors.New("rejected")
	var seen []Transfer
	v.SetHook(func(_ context.Context, tr Transfer) error {
		seen = append(seen, tr)
		return boom
	})

	err := v.Transfer(context.Background(), asset, alice, pool, uint256.NewInt(10))
	require.ErrorIs(t, err, boom)
	require.Len(t, seen, 1)
	require.Equal(t, uint64(10), v.BalanceOf(asset, alice).Uint64())
	require.True(t, v.BalanceOf(asset, pool).IsZero())

	v.SetHook(nil)
	require.NoError(t, v.Transfer(context.Background(), asset, alice, pool, uint256.NewInt(10)))
	require.Equal(t, uint64(10), v.BalanceOf(asset, pool).Uint64())
}

func TestHookMayReenterVault(t *testing.T) {
	v := New()
	require.NoError(t, v.Fund(asset, alice, uint256.NewInt(10)))
	v.SetHook(func(ctx context.Context, tr Transfer) error {
		// Reading balances from inside a hook must not deadlock.
		_ = v.BalanceOf(tr.Asset, tr.To)
		return nil
	})
	require.NoError(t, v.Transfer(context.Background(), asset, alice, pool, uint256.NewInt(3)))
}
