package model

import "time"

// PoolWindowMetrics stores aggregated activity for one pool window.
// Amounts are base-10 integers in asset units, values are wad integers.
type PoolWindowMetrics struct {
	ChainID         uint64
	PoolAddress     string
	WindowSizeSecs  int64
	WindowStart     time.Time
	WindowEnd       time.Time
	SwapInCount     uint64
	SwapOutCount    uint64
	AmountIn        string
	AmountOut       string
	ValueIn         string
	ValueOut        string
	DepositCount    uint64
	WithdrawCount   uint64
	Deposited       string
	Withdrawn       string
	FeesCollected   string
	NetFlow         string
	AdminEventCount uint64
}
