package decode

import (
	"encoding/json"
	"fmt"
)

// Parameter describes one event input from a contract ABI.
type Parameter struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Indexed    bool        `json:"indexed"`
	Components []Parameter `json:"components,omitempty"`
}

// Entry is a single item from a contract ABI definition.
type Entry struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Inputs    []Parameter `json:"inputs"`
	Anonymous bool        `json:"anonymous"`
}

// ParseABI decodes a raw ABI JSON document.
func ParseABI(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return entries, nil
}

// MergeABI concatenates a proxy ABI with its implementation ABI,
// proxy entries first, so one event index covers both contracts.
func MergeABI(proxy, implementation []Entry) []Entry {
	merged := make([]Entry, 0, len(proxy)+len(implementation))
	merged = append(merged, proxy...)
	merged = append(merged, implementation...)
	return merged
}
