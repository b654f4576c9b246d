package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// NormalizeIdentity canonicalizes a party or account identifier. 0x-prefixed
// 20-byte hex addresses are rewritten in EIP-55 checksum form so that
// differently cased spellings of one address map to the same entry. Other
// identifiers are trimmed and kept as given.
func NormalizeIdentity(id string) (string, error) {
	p := strings.TrimSpace(id)
	if p == "" {
		return "", fmt.Errorf("crypto: empty identity: %w", domain.ErrInvalidInput)
	}
	if common.IsHexAddress(p) && strings.HasPrefix(strings.ToLower(p), "0x") {
		return common.HexToAddress(p).Hex(), nil
	}
	return p, nil
}
