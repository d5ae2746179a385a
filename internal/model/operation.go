package model

// Operation kinds accepted by the replay runner.
const (
	OpDeposit       = "deposit"
	OpWithdraw      = "withdraw"
	OpSwapIn        = "swap_in"
	OpSwapOut       = "swap_out"
	OpCollectFees   = "collect_fees"
	OpSetDepositCap = "set_deposit_cap"
	OpSetBaseFee    = "set_base_fee"
	OpSetPaused     = "set_paused"
	OpSetPrice      = "set_price"
	OpAdvance       = "advance"
	OpFund          = "fund"
)

// Operation is one line of a replay script. Amount and Value are base-10
// integers (asset units and wad value respectively); Price and Fee are
// human decimals such as "1.0002".
type Operation struct {
	Op        string `json:"op"`
	Caller    string `json:"caller,omitempty"`
	To        string `json:"to,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Value     string `json:"value,omitempty"`
	Price     string `json:"price,omitempty"`
	Fee       string `json:"fee,omitempty"`
	Paused    *bool  `json:"paused,omitempty"`
	UpdatedAt uint64 `json:"updated_at,omitempty"`
	Seconds   uint64 `json:"seconds,omitempty"`
}
