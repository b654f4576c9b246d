package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

const (
	SchemeECIES = "ecies"
	SchemeXOR   = "xor"
)

// ECIES encrypts to a secp256k1 public key with go-ethereum's ECIES
// (ECDH + AES-128-CTR + HMAC-SHA256), so ciphertexts are authenticated.
// Public keys are 65-byte uncompressed or 33-byte compressed points; private
// keys are 32-byte scalars.
type ECIES struct{}

func (ECIES) Encrypt(plaintext, publicKey []byte) ([]byte, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), plaintext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecies encrypt: %w", err)
	}
	return ct, nil
}

func (ECIES) Decrypt(ciphertext, privateKey []byte) ([]byte, error) {
	prv, err := ethcrypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", domain.ErrInvalidInput)
	}
	pt, err := ecies.ImportECDSA(prv).Decrypt(ciphertext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecies decrypt: %w", domain.ErrInvalidInput)
	}
	return pt, nil
}

func (ECIES) Scheme() string { return SchemeECIES }

func parsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	switch len(b) {
	case 33:
		pub, err := ethcrypto.DecompressPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("crypto: invalid compressed public key: %w", domain.ErrInvalidInput)
		}
		return pub, nil
	case 65:
		pub, err := ethcrypto.UnmarshalPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("crypto: invalid public key: %w", domain.ErrInvalidInput)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("crypto: public key must be 33 or 65 bytes, got %d: %w", len(b), domain.ErrInvalidInput)
	}
}

// NewCipher returns the cipher for scheme.
func NewCipher(scheme string) (domain.Cipher, error) {
	switch scheme {
	case "", SchemeECIES:
		return ECIES{}, nil
	case SchemeXOR:
		return XOR{}, nil
	default:
		return nil, fmt.Errorf("crypto: unknown scheme %q", scheme)
	}
}

var (
	_ domain.Cipher = XOR{}
	_ domain.Cipher = ECIES{}
)
