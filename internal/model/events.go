package model

// Pool event names, as emitted by the engine and encoded in logs.
const (
	EventDeposit       = "Deposit"
	EventWithdraw      = "Withdraw"
	EventSwapIn        = "SwapIn"
	EventSwapOut       = "SwapOut"
	EventCollectFees   = "CollectFees"
	EventSetDepositCap = "SetDepositCap"
	EventSetBaseFee    = "SetBaseFee"
	EventSetPaused     = "SetPaused"
)

// DepositEventData is the Deposit event payload.
type DepositEventData struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
	Minted string `json:"minted"`
	To     string `json:"to"`
}

// WithdrawEventData is the Withdraw event payload.
type WithdrawEventData struct {
	Caller    string `json:"caller"`
	Shares    string `json:"shares"`
	Withdrawn string `json:"withdrawn"`
	To        string `json:"to"`
}

// SwapInEventData is the SwapIn event payload.
type SwapInEventData struct {
	Caller   string `json:"caller"`
	AmountIn string `json:"amount_in"`
	ValueOut string `json:"value_out"`
}

// SwapOutEventData is the SwapOut event payload.
type SwapOutEventData struct {
	Caller    string `json:"caller"`
	ValueIn   string `json:"value_in"`
	AmountOut string `json:"amount_out"`
	To        string `json:"to"`
}

// CollectFeesEventData is the CollectFees event payload.
type CollectFeesEventData struct {
	Amount string `json:"amount"`
}

// SetValueEventData carries the old and new value of an admin setting.
type SetValueEventData struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// SetPausedEventData is the SetPaused event payload.
type SetPausedEventData struct {
	Old bool `json:"old"`
	New bool `json:"new"`
}
