package decode

import (
	"math/big"
	"strings"
	"testing"
)

func slot(suffix string) string {
	return "0x" + strings.Repeat("0", slotHexLen-len(suffix)) + suffix
}

func TestDecodeParameterScalars(t *testing.T) {
	allF := "0x" + strings.Repeat("f", slotHexLen)

	tests := []struct {
		name      string
		paramType string
		value     string
		want      interface{}
	}{
		{"empty string", "uint256", "", nil},
		{"empty 0x", "address", "0x", nil},
		{"uint256", "uint256", slot("2a"), big.NewInt(42)},
		{"uint bare", "uint", slot("ff"), big.NewInt(255)},
		{"int8 negative one", "int8", allF, big.NewInt(-1)},
		{"int256 negative one", "int256", allF, big.NewInt(-1)},
		{"int24 positive", "int24", slot("0f"), big.NewInt(15)},
		{"bool true", "bool", slot("01"), true},
		{"bool false", "bool", slot("00"), false},
		{"bool nonzero", "bool", slot("2a"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeParameter(tt.paramType, tt.value)
			switch want := tt.want.(type) {
			case nil:
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
			case *big.Int:
				value, ok := got.(*big.Int)
				if !ok {
					t.Fatalf("expected *big.Int, got %T", got)
				}
				if value.Cmp(want) != 0 {
					t.Fatalf("value mismatch: %s != %s", value, want)
				}
			case bool:
				if got != want {
					t.Fatalf("value mismatch: %v != %v", got, want)
				}
			}
		})
	}
}

func TestDecodeParameterAddress(t *testing.T) {
	value := slot("DEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEF")
	got := decodeParameter("address", value)
	want := "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	if got != want {
		t.Fatalf("address mismatch: %v != %s", got, want)
	}
}

func TestDecodeParameterBytesAndFallback(t *testing.T) {
	raw := strings.Repeat("ab", 32)

	got := decodeParameter("bytes32", "0x"+raw)
	if got != "0x"+raw {
		t.Fatalf("bytes32 should pass through raw hex: %v", got)
	}

	// Unrecognized types fall back to the raw hex, never an error.
	got = decodeParameter("fixed128x18", "0x"+raw)
	if got != "0x"+raw {
		t.Fatalf("fallback should return raw hex: %v", got)
	}
}

func TestDecodeParameterIntRoundTrip(t *testing.T) {
	// -15 in 24-bit two's complement, sign-extended over the slot.
	value := "0x" + strings.Repeat("f", slotHexLen-2) + "f1"
	got, ok := decodeParameter("int24", value).(*big.Int)
	if !ok {
		t.Fatalf("expected *big.Int")
	}
	if got.Int64() != -15 {
		t.Fatalf("int24 mismatch: %s", got)
	}
}
