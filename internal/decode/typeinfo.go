package decode

import (
	"strconv"
	"strings"
)

func isAddressType(paramType string) bool {
	return paramType == "address"
}

func isBoolType(paramType string) bool {
	return paramType == "bool"
}

func isBytesType(paramType string) bool {
	return strings.HasPrefix(paramType, "bytes")
}

func isUnsignedType(paramType string) bool {
	return strings.HasPrefix(paramType, "uint")
}

func isSignedType(paramType string) bool {
	return strings.HasPrefix(paramType, "int")
}

func isTupleType(paramType string) bool {
	return paramType == "tuple"
}

func isArrayType(paramType string) bool {
	return strings.HasSuffix(paramType, "[]")
}

func isDynamicType(paramType string) bool {
	return paramType == "string" || isBytesType(paramType)
}

// bitSize extracts the declared width of an integer type. A bare
// "uint" or "int" means 256 bits, as does anything unparseable.
func bitSize(paramType string) int {
	var suffix string
	switch {
	case isUnsignedType(paramType):
		suffix = paramType[len("uint"):]
	case isSignedType(paramType):
		suffix = paramType[len("int"):]
	default:
		return 256
	}

	if suffix == "" {
		return 256
	}
	bits, err := strconv.Atoi(suffix)
	if err != nil || bits <= 0 || bits > 256 {
		return 256
	}
	return bits
}
