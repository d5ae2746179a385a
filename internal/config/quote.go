package config

import "github.com/spf13/pflag"

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	RPCURL           string
	Feed             string
	Asset            string
	Decimals         uint8
	Stablecoin       bool
	Assets           string
	Liabilities      string
	BaseFee          string
	ProtocolFeeShare uint64
	OracleSens       uint64
	Amount           string
	Logging          Logging
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"base-fee":           "0.0004",
		"protocol-fee-share": uint64(10),
		"oracle-sens":        uint64(3600),
		"log-level":          "warn",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		RPCURL:           v.GetString("rpc"),
		Feed:             v.GetString("feed"),
		Asset:            v.GetString("asset"),
		Decimals:         uint8(v.GetUint("decimals")),
		Stablecoin:       v.GetBool("stablecoin"),
		Assets:           v.GetString("assets"),
		Liabilities:      v.GetString("liabilities"),
		BaseFee:          v.GetString("base-fee"),
		ProtocolFeeShare: v.GetUint64("protocol-fee-share"),
		OracleSens:       v.GetUint64("oracle-sens"),
		Amount:           v.GetString("amount"),
		Logging:          loadLogging(v),
	}, nil
}
