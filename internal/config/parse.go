package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/devtooligan/singularity-v2/internal/wad"
)

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

// ParseAddress validates a hex address; name is used in the error.
func ParseAddress(name, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("%s address is required", name)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, input)
	}
	return common.HexToAddress(input), nil
}

// ParseOptionalAddress is ParseAddress that maps "" to the zero address.
func ParseOptionalAddress(name, input string) (common.Address, error) {
	if strings.TrimSpace(input) == "" {
		return common.Address{}, nil
	}
	return ParseAddress(name, input)
}

// ParseWad reads a human decimal such as "0.0004" as a wad.
func ParseWad(name, input string) (*uint256.Int, error) {
	value, err := wad.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

// ParseUnits reads a human decimal amount in units of the given decimals.
// An empty input yields nil.
func ParseUnits(name, input string, decimals uint8) (*uint256.Int, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	value, err := wad.ParseUnits(input, decimals)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
