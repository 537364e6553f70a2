package model

import "encoding/json"

// DecodedEventRecord is the storage row for one decoded log: the
// decoded payload joined with chain/block/log identity and protocol.
// Parameters is the ordered decoded parameter map, pre-marshaled so
// the row is sink-agnostic (JSONL line or Postgres jsonb).
type DecodedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	Protocol    string          `json:"protocol"`
	EventName   string          `json:"event_name"`
	Topic0      string          `json:"topic0"`
	IsUnknown   bool            `json:"is_unknown"`
	Parameters  json.RawMessage `json:"parameters"`
	RawTopics   []string        `json:"raw_topics,omitempty"`
	RawData     string          `json:"raw_data,omitempty"`
	TxnFrom     string          `json:"txn_from,omitempty"`
	TxnTo       string          `json:"txn_to,omitempty"`
	Timestamp   uint64          `json:"timestamp"`
	IngestedAt  string          `json:"ingested_at"`
}
