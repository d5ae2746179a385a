package events

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/devtooligan/singularity-v2/internal/chain"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

// Codec converts pool events to and from EVM log records.
type Codec struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewCodec builds a codec over the pool event ABI.
func NewCodec() (*Codec, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string, len(poolABI.Events))
	for name, event := range poolABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	return &Codec{poolABI: poolABI, topicToName: topicToName}, nil
}

// Topic0 returns the log topic of a named event.
func (c *Codec) Topic0(name string) (string, bool) {
	event, ok := c.poolABI.Events[name]
	if !ok {
		return "", false
	}
	return event.ID.Hex(), true
}

// CanDecode checks if the topic0 is a pool event.
func (c *Codec) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := c.topicToName[strings.ToLower(topic0)]
	return ok
}

// Encode packs an event the way the pool contract would log it. The
// sequence number stands in for the block number and the keccak of the
// event ID for the transaction hash.
func (c *Codec) Encode(ev model.PoolEvent) (model.LogRecord, error) {
	event, ok := c.poolABI.Events[ev.EventName]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event name: %s", ev.EventName)
	}

	indexed, values, err := encodeArgs(ev.Decoded)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("encode %s: %w", ev.EventName, err)
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", ev.EventName, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, event.ID.Hex())
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()).Hex())
	}

	return model.LogRecord{
		ChainID:     ev.ChainID,
		BlockNumber: ev.Sequence,
		TxHash:      crypto.Keccak256Hash([]byte(ev.ID)).Hex(),
		Address:     ev.Pool,
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   ev.Timestamp,
	}, nil
}

func encodeArgs(decoded interface{}) ([]common.Address, []interface{}, error) {
	switch d := decoded.(type) {
	case model.DepositEventData:
		return addressesAnd(d.Caller, d.To, d.Amount, d.Minted)
	case model.WithdrawEventData:
		return addressesAnd(d.Caller, d.To, d.Shares, d.Withdrawn)
	case model.SwapOutEventData:
		return addressesAnd(d.Caller, d.To, d.ValueIn, d.AmountOut)
	case model.SwapInEventData:
		sender, err := parseAddress(d.Caller)
		if err != nil {
			return nil, nil, err
		}
		values, err := bigValues(d.AmountIn, d.ValueOut)
		if err != nil {
			return nil, nil, err
		}
		return []common.Address{sender}, values, nil
	case model.CollectFeesEventData:
		values, err := bigValues(d.Amount)
		return nil, values, err
	case model.SetValueEventData:
		values, err := bigValues(d.Old, d.New)
		return nil, values, err
	case model.SetPausedEventData:
		return nil, []interface{}{d.Old, d.New}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported payload %T", decoded)
	}
}

func addressesAnd(sender, to string, amounts ...string) ([]common.Address, []interface{}, error) {
	from, err := parseAddress(sender)
	if err != nil {
		return nil, nil, err
	}
	recipient, err := parseAddress(to)
	if err != nil {
		return nil, nil, err
	}
	values, err := bigValues(amounts...)
	if err != nil {
		return nil, nil, err
	}
	return []common.Address{from, recipient}, values, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address: %q", value)
	}
	return common.HexToAddress(value), nil
}

func bigValues(amounts ...string) ([]interface{}, error) {
	out := make([]interface{}, 0, len(amounts))
	for _, amount := range amounts {
		v, err := wad.ParseInt(amount)
		if err != nil {
			return nil, err
		}
		out = append(out, v.ToBig())
	}
	return out, nil
}

// Decode converts a log record back into a pool event. The event ID is
// the record's transaction hash; the asset is not carried by logs.
func (c *Codec) Decode(log model.LogRecord) (*model.PoolEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := c.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	event := c.poolABI.Events[name]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if len(indexedTopics) > 0 {
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case model.EventDeposit, model.EventWithdraw, model.EventSwapOut, model.EventSwapIn:
		amounts, err := bigStrings(values, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		decoded = tradePayload(name, indexed.Sender.Hex(), indexed.To.Hex(), amounts[0], amounts[1])
	case model.EventCollectFees:
		amounts, err := bigStrings(values, 1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		decoded = model.CollectFeesEventData{Amount: amounts[0]}
	case model.EventSetDepositCap, model.EventSetBaseFee:
		amounts, err := bigStrings(values, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		decoded = model.SetValueEventData{Old: amounts[0], New: amounts[1]}
	case model.EventSetPaused:
		if len(values) != 2 {
			return nil, fmt.Errorf("unexpected %s values: %d", name, len(values))
		}
		oldState, ok1 := values[0].(bool)
		newState, ok2 := values[1].(bool)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unexpected %s value types", name)
		}
		decoded = model.SetPausedEventData{Old: oldState, New: newState}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}

	return &model.PoolEvent{
		ID:        log.TxHash,
		ChainID:   log.ChainID,
		Sequence:  log.BlockNumber,
		Pool:      common.HexToAddress(log.Address).Hex(),
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
		Raw:       &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func tradePayload(name, sender, to, first, second string) interface{} {
	switch name {
	case model.EventDeposit:
		return model.DepositEventData{Caller: sender, Amount: first, Minted: second, To: to}
	case model.EventWithdraw:
		return model.WithdrawEventData{Caller: sender, Shares: first, Withdrawn: second, To: to}
	case model.EventSwapOut:
		return model.SwapOutEventData{Caller: sender, ValueIn: first, AmountOut: second, To: to}
	default:
		return model.SwapInEventData{Caller: sender, AmountIn: first, ValueOut: second}
	}
}

func bigStrings(values []interface{}, want int) ([]string, error) {
	if len(values) != want {
		return nil, fmt.Errorf("unexpected values: %d", len(values))
	}
	out := make([]string, 0, want)
	for _, value := range values {
		v, err := chain.AsBigInt(value)
		if err != nil {
			return nil, err
		}
		out = append(out, v.String())
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
