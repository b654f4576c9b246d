// Package crypto implements the submission ciphers, the hex wire codec and
// storage of the escrow key used to open revealed submissions.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keyFileVersion   = 1
)

// sealedKey is the on-disk format for a password-protected escrow key.
type sealedKey struct {
	Version    int    `json:"version"`
	Address    string `json:"address,omitempty"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource tells LoadEscrowKey where the escrow private key lives.
type KeySource struct {
	// RawPrivateKey is a hex scalar, 0x prefix optional. Takes precedence.
	RawPrivateKey string
	// EncryptedKeyPath points at a file written by SealKey.
	EncryptedKeyPath string
	KeyPassword      string
}

// Configured reports whether any key source is set.
func (s KeySource) Configured() bool {
	return s.RawPrivateKey != "" || s.EncryptedKeyPath != ""
}

// EscrowKey is a secp256k1 key pair. Submitters encrypt to PublicKey; the
// engine holds PrivateKey and only uses it for revealed submissions.
type EscrowKey struct {
	PrivateKey []byte
	PublicKey  []byte
	Address    common.Address
}

// GenerateEscrowKey creates a fresh random key pair.
func GenerateEscrowKey() (EscrowKey, error) {
	prv, err := ethcrypto.GenerateKey()
	if err != nil {
		return EscrowKey{}, fmt.Errorf("crypto: generate key: %w", err)
	}
	return escrowFromScalar(ethcrypto.FromECDSA(prv))
}

func escrowFromScalar(scalar []byte) (EscrowKey, error) {
	prv, err := ethcrypto.ToECDSA(scalar)
	if err != nil {
		return EscrowKey{}, fmt.Errorf("crypto: invalid private key: %w", err)
	}
	return EscrowKey{
		PrivateKey: ethcrypto.FromECDSA(prv),
		PublicKey:  ethcrypto.FromECDSAPub(&prv.PublicKey),
		Address:    ethcrypto.PubkeyToAddress(prv.PublicKey),
	}, nil
}

// SealKey encrypts a hex private key under password with PBKDF2-HMAC-SHA256
// and AES-256-GCM, returning the JSON to write to disk.
func SealKey(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	ek, err := escrowFromScalar(keyBytes)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := sealedKey{
		Version:    keyFileVersion,
		Address:    ek.Address.Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, ek.PrivateKey, nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// OpenKey decrypts a blob produced by SealKey and returns the private key as
// hex without prefix.
func OpenKey(sealed []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}
	var stored sealedKey
	if err := json.Unmarshal(sealed, &stored); err != nil {
		return "", fmt.Errorf("crypto: parsing key file: %w", err)
	}
	if stored.Version != keyFileVersion {
		return "", fmt.Errorf("crypto: unsupported key file version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	return hex.EncodeToString(plaintext), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// LoadEscrowKey resolves the escrow key from src. A raw key wins over an
// encrypted file.
func LoadEscrowKey(src KeySource) (EscrowKey, error) {
	var keyHex string
	switch {
	case src.RawPrivateKey != "":
		keyHex = strings.TrimPrefix(src.RawPrivateKey, "0x")
	case src.EncryptedKeyPath != "":
		data, err := os.ReadFile(src.EncryptedKeyPath)
		if err != nil {
			return EscrowKey{}, fmt.Errorf("crypto: reading key file: %w", err)
		}
		keyHex, err = OpenKey(data, src.KeyPassword)
		if err != nil {
			return EscrowKey{}, err
		}
	default:
		return EscrowKey{}, errors.New("crypto: no escrow key source configured")
	}

	scalar, err := hex.DecodeString(keyHex)
	if err != nil {
		return EscrowKey{}, fmt.Errorf("crypto: escrow key is not valid hex: %w", err)
	}
	return escrowFromScalar(scalar)
}
