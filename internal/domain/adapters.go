package domain

import "context"

// Ledger moves value between accounts. It is owned by the host chain; the
// engine only consumes it. Debit returns ErrInsufficientFunds when the
// account cannot cover amount.
type Ledger interface {
	Credit(ctx context.Context, account string, amount uint64) error
	Debit(ctx context.Context, account string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
}

// Cipher encrypts and decrypts raw byte strings.
type Cipher interface {
	Encrypt(plaintext, publicKey []byte) ([]byte, error)
	Decrypt(ciphertext, privateKey []byte) ([]byte, error)
	Scheme() string
}

// Clock is the logical clock (block height or seconds) that resolution
// times are compared against.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}
