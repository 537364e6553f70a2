package decode

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// UnknownEventName marks logs whose topic0 has no match in the index.
const UnknownEventName = "unknown"

// Log is one raw log entry plus optional correlation fields that pass
// through decoding unchanged.
type Log struct {
	Address     string
	Topics      []string
	Data        string
	TxHash      string
	BlockNumber uint64
	TxnFrom     string
	TxnTo       string
}

// DecodedEvent is the result of decoding a single log entry. RawTopics
// and RawData are preserved only when the event is unknown, so the log
// can be re-processed later against a richer ABI.
type DecodedEvent struct {
	Address     string                                      `json:"address"`
	EventName   string                                      `json:"event_name"`
	Parameters  *orderedmap.OrderedMap[string, interface{}] `json:"parameters"`
	Topic0      string                                      `json:"topic0"`
	IsUnknown   bool                                        `json:"is_unknown"`
	RawTopics   []string                                    `json:"raw_topics,omitempty"`
	RawData     string                                      `json:"raw_data,omitempty"`
	TxHash      string                                      `json:"transaction_hash,omitempty"`
	BlockNumber uint64                                      `json:"block_number,omitempty"`
	TxnFrom     string                                      `json:"txn_from,omitempty"`
	TxnTo       string                                      `json:"txn_to,omitempty"`
}

// EventDecoder decodes raw logs against one contract ABI (or a merged
// proxy+implementation ABI). The event index is immutable after
// construction; the strategy field is the only mutable state, so use
// one decoder per goroutine or synchronize SetStrategy externally.
type EventDecoder struct {
	index    map[string]EventDefinition
	strategy Strategy
}

// NewEventDecoder builds the event index from ABI entries. Entries
// whose type is not "event" are ignored; malformed event entries are
// a configuration error.
func NewEventDecoder(entries []Entry, strategy Strategy) (*EventDecoder, error) {
	index, err := BuildEventIndex(entries)
	if err != nil {
		return nil, err
	}
	return &EventDecoder{index: index, strategy: strategy}, nil
}

// Strategy returns the currently selected decoding strategy.
func (d *EventDecoder) Strategy() Strategy {
	return d.strategy
}

// SetStrategy switches the decoding strategy for subsequent calls.
func (d *EventDecoder) SetStrategy(strategy Strategy) {
	d.strategy = strategy
}

// Definition looks up the event definition for a topic0 hash.
func (d *EventDecoder) Definition(topic0 string) (EventDefinition, bool) {
	def, ok := d.index[strings.ToLower(topic0)]
	return def, ok
}

// Events returns the number of indexed event definitions.
func (d *EventDecoder) Events() int {
	return len(d.index)
}

// Decode decodes a log entry with the current strategy. An unmatched
// topic0 is not an error: it yields an unknown event with the raw
// inputs preserved.
func (d *EventDecoder) Decode(log Log) DecodedEvent {
	return d.decodeWith(log, d.strategy)
}

// DecodeWithFallback decodes with the current strategy and, when the
// result is unknown under Basic, retries once with TupleAware. The
// retry is local: the selected strategy is unchanged afterwards.
func (d *EventDecoder) DecodeWithFallback(log Log) DecodedEvent {
	event := d.decodeWith(log, d.strategy)
	if event.IsUnknown && d.strategy == StrategyBasic {
		return d.decodeWith(log, StrategyTupleAware)
	}
	return event
}

func (d *EventDecoder) decodeWith(log Log, strategy Strategy) DecodedEvent {
	if len(log.Topics) == 0 {
		return unknownEvent(log, "")
	}

	topic0 := log.Topics[0]
	def, ok := d.index[strings.ToLower(topic0)]
	if !ok {
		return unknownEvent(log, topic0)
	}

	return DecodedEvent{
		Address:     log.Address,
		EventName:   def.Name,
		Parameters:  decodeEvent(def, log.Topics, log.Data, strategy),
		Topic0:      topic0,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		TxnFrom:     log.TxnFrom,
		TxnTo:       log.TxnTo,
	}
}

func unknownEvent(log Log, topic0 string) DecodedEvent {
	return DecodedEvent{
		Address:     log.Address,
		EventName:   UnknownEventName,
		Parameters:  orderedmap.New[string, interface{}](),
		Topic0:      topic0,
		IsUnknown:   true,
		RawTopics:   log.Topics,
		RawData:     log.Data,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		TxnFrom:     log.TxnFrom,
		TxnTo:       log.TxnTo,
	}
}
