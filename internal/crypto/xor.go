package crypto

// XOR is the legacy placeholder cipher: data and key are combined byte for
// byte over the longer of the two, the shorter operand zero-extended.
// Encryption and decryption are the same operation. It offers no secrecy and
// exists only for clients that still speak the old wire contract.
type XOR struct{}

func (XOR) Encrypt(plaintext, key []byte) ([]byte, error) {
	return xorBytes(plaintext, key), nil
}

func (XOR) Decrypt(ciphertext, key []byte) ([]byte, error) {
	return xorBytes(ciphertext, key), nil
}

func (XOR) Scheme() string { return SchemeXOR }

func xorBytes(a, b []byte) []byte {
	n := max(len(a), len(b))
	out := make([]byte, n)
	for i := range out {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		out[i] = x ^ y
	}
	return out
}
