package identity

import (
	"fmt"
	"math/big"
	"strings"
)

// CanonicalAddress lowercases an EVM hex address and ensures the 0x prefix.
// Values that are not hex are returned trimmed but otherwise unchanged.
func CanonicalAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return ""
	}
	withoutPrefix := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if withoutPrefix == "" {
		return trimmed
	}
	if IsHexString(withoutPrefix) {
		return "0x" + strings.ToLower(withoutPrefix)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		return "0x" + strings.ToLower(withoutPrefix)
	}
	return trimmed
}

// CanonicalHash normalises a transaction hash or round id the same way as
// addresses; an empty input stays empty.
func CanonicalHash(hash string) string {
	if strings.TrimSpace(hash) == "" {
		return ""
	}
	return CanonicalAddress(hash)
}

// IsHexString reports whether v consists solely of hexadecimal characters.
func IsHexString(v string) bool {
	for _, ch := range v {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}

// CanonicalAmount parses a base-10 or 0x-prefixed integer amount and returns
// its base-10 form, so "0010" and "0xa" both become "10".
func CanonicalAmount(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "0", nil
	}
	var n big.Int
	base := 10
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
		base = 16
	}
	if _, ok := n.SetString(trimmed, base); !ok {
		return "", fmt.Errorf("invalid integer amount: %s", value)
	}
	return n.String(), nil
}
