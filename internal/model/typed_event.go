package model

// PoolEvent is one event emitted by a pool, with its decoded payload.
type PoolEvent struct {
	ID        string      `json:"id"`
	ChainID   uint64      `json:"chain_id"`
	Sequence  uint64      `json:"sequence"`
	Pool      string      `json:"pool"`
	Asset     string      `json:"asset"`
	EventName string      `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Decoded   interface{} `json:"decoded"`
	Raw       *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef points back to the encoded log a decoded event came from.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
