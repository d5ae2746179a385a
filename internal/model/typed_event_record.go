package model

import "encoding/json"

// PoolEventRecord is the JSON form of PoolEvent read back for aggregation.
type PoolEventRecord struct {
	ID        string          `json:"id"`
	ChainID   uint64          `json:"chain_id"`
	Sequence  uint64          `json:"sequence"`
	Pool      string          `json:"pool"`
	Asset     string          `json:"asset"`
	EventName string          `json:"event_name"`
	Timestamp uint64          `json:"timestamp"`
	Decoded   json.RawMessage `json:"decoded"`
	Raw       *RawLogRef      `json:"raw,omitempty"`
}

// Record converts an in-memory event to its record form.
func (e PoolEvent) Record() (PoolEventRecord, error) {
	decoded, err := json.Marshal(e.Decoded)
	if err != nil {
		return PoolEventRecord{}, err
	}
	return PoolEventRecord{
		ID:        e.ID,
		ChainID:   e.ChainID,
		Sequence:  e.Sequence,
		Pool:      e.Pool,
		Asset:     e.Asset,
		EventName: e.EventName,
		Timestamp: e.Timestamp,
		Decoded:   decoded,
		Raw:       e.Raw,
	}, nil
}
