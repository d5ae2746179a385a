package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/chain"
	"github.com/devtooligan/singularity-v2/internal/config"
	"github.com/devtooligan/singularity-v2/internal/curve"
	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/oracle"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadQuote(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	asset, err := config.ParseAddress("asset", cfg.Asset)
	if err != nil {
		return err
	}
	feed, err := config.ParseAddress("feed", cfg.Feed)
	if err != nil {
		return err
	}
	baseFee, err := config.ParseWad("base fee", cfg.BaseFee)
	if err != nil {
		return err
	}
	if err := ledger.CheckBaseFee(baseFee); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	decimals := cfg.Decimals
	if decimals == 0 {
		meta, err := chain.FetchTokenMeta(ctx, client, asset, logger)
		if err != nil {
			return err
		}
		decimals = meta.Decimals
		logger.Info("token meta", zap.String("symbol", meta.Symbol), zap.Uint8("decimals", decimals))
	}

	assets, err := requiredUnits("assets", cfg.Assets, decimals)
	if err != nil {
		return err
	}
	liabilities, err := requiredUnits("liabilities", cfg.Liabilities, decimals)
	if err != nil {
		return err
	}
	amount, err := requiredUnits("amount", cfg.Amount, decimals)
	if err != nil {
		return err
	}

	gateway := oracle.NewGateway(oracle.NewChainlinkFeed(client, map[common.Address]common.Address{asset: feed}, logger))
	q, err := gateway.Quote(ctx, asset)
	if err != nil {
		return err
	}
	now, err := chain.NewBlockClock(client).Now(ctx)
	if err != nil {
		return err
	}

	snap := curve.Snapshot{
		Assets:           assets,
		Liabilities:      liabilities,
		BaseFee:          baseFee,
		IsStablecoin:     cfg.Stablecoin,
		ProtocolFeeShare: cfg.ProtocolFeeShare,
		OracleSens:       cfg.OracleSens,
		OracleUpdatedAt:  q.UpdatedAt,
		Now:              now,
	}
	printQuote(cmd.OutOrStdout(), snap, q, amount, decimals)
	return nil
}

func requiredUnits(name, input string, decimals uint8) (*uint256.Int, error) {
	value, err := config.ParseUnits(name, input, decimals)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("%s is required", name)
	}
	return value, nil
}

func printQuote(w io.Writer, snap curve.Snapshot, q oracle.Quote, amount *uint256.Int, decimals uint8) {
	fmt.Fprintf(w, "price:          %s (%s, updated %d, block time %d)\n", wad.Format(q.Price), q.Source, q.UpdatedAt, snap.Now)

	ratio, err := ledger.Ratio(snap.Assets, snap.Liabilities)
	if err != nil {
		fmt.Fprintf(w, "ratio:          error: %v\n", err)
	} else {
		fmt.Fprintf(w, "ratio:          %s\n", wad.Format(ratio))
		fmt.Fprintf(w, "g(ratio):       %s\n", wad.Format(curve.G(ratio)))
	}

	rate := snap.TradingFeeRate()
	if wad.IsMax(rate) {
		fmt.Fprintln(w, "trading fee:    stale")
	} else {
		fmt.Fprintf(w, "trading fee:    %s\n", wad.Format(rate))
	}

	printAmount(w, "deposit fee", decimals)(snap.DepositFee(amount))
	printAmount(w, "withdrawal fee", decimals)(snap.WithdrawalFee(amount))
	printAmount(w, "slippage in", decimals)(snap.SlippageIn(amount))
	printAmount(w, "slippage out", decimals)(snap.SlippageOut(amount))

	fees, err := snap.TradingFees(amount)
	switch {
	case err != nil:
		fmt.Fprintf(w, "trading fees:   error: %v\n", err)
	case fees.Stale():
		fmt.Fprintln(w, "trading fees:   stale")
	default:
		fmt.Fprintf(w, "trading fees:   %s (protocol %s, lp %s)\n",
			wad.FormatUnits(fees.Total, decimals),
			wad.FormatUnits(fees.Protocol, decimals),
			wad.FormatUnits(fees.LP, decimals))
	}
}

func printAmount(w io.Writer, label string, decimals uint8) func(*uint256.Int, error) {
	return func(value *uint256.Int, err error) {
		if err != nil {
			fmt.Fprintf(w, "%-15s error: %v\n", label+":", err)
			return
		}
		fmt.Fprintf(w, "%-15s %s\n", label+":", wad.FormatUnits(value, decimals))
	}
}
