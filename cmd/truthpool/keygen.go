package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/truthpool/internal/crypto"
)

// keyPasswordEnv supplies the key file password without putting it on the
// command line.
const keyPasswordEnv = "TRUTHPOOL_CRYPTO_KEY_PASSWORD"

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an escrow key pair and seal the private key to a file",
		Long: "Generates a secp256k1 escrow key, encrypts the private key with the password\n" +
			"from " + keyPasswordEnv + " and writes it to --out. Submitters encrypt to the\n" +
			"printed public key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv(keyPasswordEnv)
			if password == "" {
				return errors.New(keyPasswordEnv + " must be set")
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			}

			key, err := crypto.GenerateEscrowKey()
			if err != nil {
				return err
			}
			sealed, err := crypto.SealKey(hex.EncodeToString(key.PrivateKey), password)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, sealed, 0o600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "key file:   %s\n", out)
			fmt.Fprintf(w, "address:    %s\n", key.Address.Hex())
			fmt.Fprintf(w, "public key: %s\n", crypto.EncodeHex(key.PublicKey))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "escrow-key.json", "where to write the sealed key")
	return cmd
}
