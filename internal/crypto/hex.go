package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// DecodeHex parses a wire-format hex string. The 0x prefix is optional.
func DecodeHex(s string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid hex: %w", domain.ErrInvalidInput)
	}
	return b, nil
}

// EncodeHex renders b in wire format: 0x followed by lowercase hex.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// IsHex reports whether s is a non-empty 0x-prefixed hex string.
func IsHex(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) == 2 {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}
