package decode

import "math/big"

// decodeParameter decodes one 32-byte slot according to its ABI type.
// It is total over well-formed slots: unrecognized types fall back to
// the raw 0x-prefixed hex, empty payloads decode to nil.
func decodeParameter(paramType, value string) interface{} {
	if isEmptyHex(value) {
		return nil
	}
	hexValue := normalizeHex(value)

	switch {
	case isAddressType(paramType):
		return extractAddress(hexValue)
	case isUnsignedType(paramType):
		v, ok := new(big.Int).SetString(hexValue, 16)
		if !ok {
			return "0x" + hexValue
		}
		return v
	case isSignedType(paramType):
		v, ok := new(big.Int).SetString(hexValue, 16)
		if !ok {
			return "0x" + hexValue
		}
		return twosComplement(v, bitSize(paramType))
	case isBoolType(paramType):
		v, ok := new(big.Int).SetString(hexValue, 16)
		if !ok {
			return "0x" + hexValue
		}
		return v.Sign() != 0
	case isBytesType(paramType):
		return "0x" + hexValue
	default:
		return "0x" + hexValue
	}
}

// twosComplement reinterprets an unsigned big-endian value as a signed
// bits-wide integer. The slot is reduced to the declared width first,
// since narrow negative values arrive sign-extended across the full
// 32-byte slot; values at or above 2^(bits-1) then wrap negative.
func twosComplement(v *big.Int, bits int) *big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	mask.Sub(mask, big.NewInt(1))
	v.And(v, mask)

	half := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	if v.Cmp(half) >= 0 {
		return v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
	}
	return v
}
