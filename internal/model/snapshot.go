package model

// PoolSnapshot is a point-in-time view of a pool's ledger. Amounts are
// base-10 integers in asset units, rates are wad integers.
type PoolSnapshot struct {
	Pool                   string `json:"pool"`
	Asset                  string `json:"asset"`
	Decimals               uint8  `json:"decimals"`
	IsStablecoin           bool   `json:"is_stablecoin"`
	Paused                 bool   `json:"paused"`
	DepositCap             string `json:"deposit_cap"`
	Assets                 string `json:"assets"`
	Liabilities            string `json:"liabilities"`
	BaseFee                string `json:"base_fee"`
	ProtocolFees           string `json:"protocol_fees"`
	TotalSupply            string `json:"total_supply"`
	PricePerShare          string `json:"price_per_share"`
	CollateralizationRatio string `json:"collateralization_ratio"`
	Sequence               uint64 `json:"sequence"`
	Timestamp              uint64 `json:"timestamp"`
}
