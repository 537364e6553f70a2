package decode

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Strategy selects how non-indexed event data is decoded. The set is
// closed, so dispatch is a switch rather than runtime polymorphism.
type Strategy int

const (
	// StrategyBasic walks contiguous 32-byte slots and understands
	// statically-sized scalar types only.
	StrategyBasic Strategy = iota
	// StrategyTupleAware extends the slot walk with recursive decoding
	// of tuple parameters.
	StrategyTupleAware
)

func (s Strategy) String() string {
	switch s {
	case StrategyBasic:
		return "basic"
	case StrategyTupleAware:
		return "tuple_aware"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy resolves a strategy from its config/CLI name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "basic", "":
		return StrategyBasic, nil
	case "tuple_aware", "tuple-aware":
		return StrategyTupleAware, nil
	default:
		return StrategyBasic, fmt.Errorf("unknown decoding strategy: %s", name)
	}
}

func decodeEvent(def EventDefinition, topics []string, data string, strategy Strategy) *orderedmap.OrderedMap[string, interface{}] {
	params := orderedmap.New[string, interface{}]()
	decodeIndexedTopics(def, topics, params)

	if isEmptyHex(data) || len(def.DataInputs) == 0 {
		return params
	}

	hexData := normalizeHex(data)
	switch strategy {
	case StrategyTupleAware:
		decoded, _ := decodeComplexData(def.DataInputs, hexData, 0)
		for pair := decoded.Oldest(); pair != nil; pair = pair.Next() {
			params.Set(pair.Key, pair.Value)
		}
	default:
		decodeBasicData(def.DataInputs, hexData, params)
	}
	return params
}

// decodeIndexedTopics walks inputs in declaration order, consuming one
// topic per indexed parameter starting at topics[1]. Truncated topic
// lists decode the available prefix only.
func decodeIndexedTopics(def EventDefinition, topics []string, out *orderedmap.OrderedMap[string, interface{}]) {
	topicIndex := 1
	for _, param := range def.Inputs {
		if !param.Indexed {
			continue
		}
		if topicIndex >= len(topics) {
			break
		}
		out.Set(param.Name, decodeParameter(param.Type, topics[topicIndex]))
		topicIndex++
	}
}

// decodeBasicData treats data as contiguous 32-byte slots, one per
// static non-indexed parameter. Dynamic string/bytes parameters are
// skipped without advancing the slot walk; the head/tail indirection
// scheme used by real dynamic ABI encoding is not implemented here.
func decodeBasicData(params []Parameter, hexData string, out *orderedmap.OrderedMap[string, interface{}]) {
	offset := 0
	for _, param := range params {
		if isDynamicType(param.Type) {
			continue
		}
		end := offset + slotHexLen
		if end > len(hexData) {
			continue
		}
		out.Set(param.Name, decodeParameter(param.Type, "0x"+hexData[offset:end]))
		offset = end
	}
}

// decodeComplexData decodes params against hexData starting at offset
// and reports how many hex characters were consumed, so a parent tuple
// walk can resume after a nested tuple. Arrays and dynamic types are
// not decoded: the walk advances a fixed one-slot placeholder for them
// and produces no value.
func decodeComplexData(params []Parameter, hexData string, offset int) (*orderedmap.OrderedMap[string, interface{}], int) {
	decoded := orderedmap.New[string, interface{}]()
	current := offset

	for _, param := range params {
		switch {
		case isArrayType(param.Type):
			current += slotHexLen
		case isTupleType(param.Type):
			value, consumed := decodeComplexData(param.Components, hexData, current)
			decoded.Set(param.Name, value)
			current += consumed
		case isDynamicType(param.Type):
			current += slotHexLen
		default:
			end := current + slotHexLen
			if end > len(hexData) {
				return decoded, current - offset
			}
			decoded.Set(param.Name, decodeParameter(param.Type, "0x"+hexData[current:end]))
			current = end
		}
	}
	return decoded, current - offset
}
