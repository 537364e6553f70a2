package decode

import (
	"fmt"
	"strings"
)

// EventDefinition is a resolved ABI event ready for log decoding.
// Definitions are immutable once built and safe to share across
// concurrent decode calls.
type EventDefinition struct {
	Name          string
	Signature     string
	Topic0        string
	Inputs        []Parameter
	IndexedInputs []Parameter
	DataInputs    []Parameter
}

// BuildEventIndex maps lowercase topic0 hashes to event definitions,
// one per ABI entry with type "event". Malformed event entries fail
// here rather than surfacing as unknown events at decode time.
func BuildEventIndex(entries []Entry) (map[string]EventDefinition, error) {
	index := make(map[string]EventDefinition)
	for i, entry := range entries {
		if entry.Type != "event" {
			continue
		}
		def, err := buildEventDefinition(entry)
		if err != nil {
			return nil, fmt.Errorf("abi entry %d: %w", i, err)
		}
		index[strings.ToLower(def.Topic0)] = def
	}
	return index, nil
}

func buildEventDefinition(entry Entry) (EventDefinition, error) {
	if entry.Name == "" {
		return EventDefinition{}, fmt.Errorf("event entry missing name")
	}
	if entry.Inputs == nil {
		return EventDefinition{}, fmt.Errorf("event %s missing inputs", entry.Name)
	}
	for _, input := range entry.Inputs {
		if input.Type == "" {
			return EventDefinition{}, fmt.Errorf("event %s: input %q missing type", entry.Name, input.Name)
		}
	}

	signature := EventSignature(entry)
	def := EventDefinition{
		Name:      entry.Name,
		Signature: signature,
		Topic0:    Topic0(signature),
		Inputs:    entry.Inputs,
	}
	for _, input := range entry.Inputs {
		if input.Indexed {
			def.IndexedInputs = append(def.IndexedInputs, input)
		} else {
			def.DataInputs = append(def.DataInputs, input)
		}
	}
	return def, nil
}
