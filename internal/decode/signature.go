package decode

import (
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// EventSignature renders the canonical Solidity signature for an event
// entry: name(type1,type2,...), tuples expanded recursively. The hash
// derived from it is sensitive to every character, so no whitespace or
// parameter names appear.
func EventSignature(entry Entry) string {
	types := make([]string, 0, len(entry.Inputs))
	for _, input := range entry.Inputs {
		types = append(types, canonicalType(input))
	}
	return entry.Name + "(" + strings.Join(types, ",") + ")"
}

func canonicalType(param Parameter) string {
	baseType := param.Type
	if strings.HasPrefix(baseType, "contract ") {
		baseType = "address"
	}

	if len(param.Components) > 0 && strings.HasPrefix(param.Type, "tuple") {
		parts := make([]string, 0, len(param.Components))
		for _, component := range param.Components {
			parts = append(parts, canonicalType(component))
		}
		canonical := "(" + strings.Join(parts, ",") + ")"
		if strings.HasSuffix(param.Type, "[]") {
			return canonical + "[]"
		}
		return canonical
	}

	return baseType
}

// Topic0 returns the Keccak-256 hash of a canonical signature,
// hex-encoded with a 0x prefix.
func Topic0(signature string) string {
	return crypto.Keccak256Hash([]byte(signature)).Hex()
}
