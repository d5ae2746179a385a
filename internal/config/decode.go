package config

import "github.com/spf13/pflag"

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	In      string
	Out     string
	Errors  string
	Logging Logging
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":    "./data/pool_events.jsonl",
		"errors": "./data/decode_errors.jsonl",
	})
	if err != nil {
		return DecodeConfig{}, err
	}
	return DecodeConfig{
		In:      v.GetString("in"),
		Out:     v.GetString("out"),
		Errors:  v.GetString("errors"),
		Logging: loadLogging(v),
	}, nil
}
