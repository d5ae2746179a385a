package pool

import (
	"context"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/devtooligan/singularity-v2/internal/curve"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

func TestPricePerShareNeverDecreases(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 1500, 1000, 1000)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	prev, err := h.engine.PricePerShare()
	require.NoError(t, err)

	check := func(step int) {
		pps, err := h.engine.PricePerShare()
		require.NoError(t, err)
		floor := wad.SubOrZero(prev, uint256.NewInt(1))
		require.Truef(t, pps.Cmp(floor) >= 0, "step %d: price per share fell from %s to %s", step, prev, pps)
		prev = pps
	}

	for step := 0; step < 60; step++ {
		switch rng.Intn(4) {
		case 0, 1:
			who := alice
			if rng.Intn(2) == 0 {
				who = bob
			}
			_, err = h.engine.Deposit(ctx, who, units(uint64(1+rng.Intn(400))), who)
			require.NoError(t, err)
		case 2:
			who := alice
			if rng.Intn(2) == 0 {
				who = bob
			}
			balance := h.claims.BalanceOf(who)
			if balance.IsZero() {
				continue
			}
			shares := new(uint256.Int).Div(balance, uint256.NewInt(uint64(2+rng.Intn(3))))
			if shares.IsZero() {
				continue
			}
			_, err = h.engine.Withdraw(ctx, who, shares, who)
			require.NoError(t, err)
		case 3:
			_, err = h.engine.SwapIn(ctx, routerAddr, units(uint64(1+rng.Intn(50))))
			require.NoError(t, err)
		}
		check(step)
		h.requireCustodyMatchesLedger(t)
	}
}

func TestFeesStayBelowAmount(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		snap := curve.Snapshot{
			Assets:      units(uint64(rng.Intn(5000))),
			Liabilities: units(uint64(1 + rng.Intn(5000))),
			BaseFee:     uint256.NewInt(4e14),
		}
		amount := units(uint64(1 + rng.Intn(1000)))

		fee, err := snap.DepositFee(amount)
		if err == nil {
			require.True(t, fee.Lt(amount))
		} else {
			require.ErrorIs(t, err, ErrFeeExceedsAmount)
		}

		fee, err = snap.WithdrawalFee(amount)
		if err == nil {
			require.True(t, fee.Lt(amount))
			if amount.Cmp(snap.Liabilities) >= 0 {
				require.True(t, fee.IsZero())
			}
		} else {
			require.ErrorIs(t, err, ErrFeeExceedsAmount)
		}
	}
}
