package decode

import "strings"

// slotHexLen is one 32-byte ABI slot in hex characters.
const slotHexLen = 64

func normalizeHex(value string) string {
	return strings.TrimPrefix(value, "0x")
}

func isEmptyHex(value string) bool {
	return value == "" || value == "0x"
}

// extractAddress returns the low-order 20 bytes of a slot as a
// lowercase 0x-prefixed address.
func extractAddress(hexValue string) string {
	if len(hexValue) > 40 {
		hexValue = hexValue[len(hexValue)-40:]
	}
	return "0x" + strings.ToLower(hexValue)
}
