package model

// DecodeError records a decode failure for a log line, including the
// strategy that was in effect so re-runs can try the other one.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Strategy    string `json:"strategy,omitempty"`
	Error       string `json:"error"`
}
