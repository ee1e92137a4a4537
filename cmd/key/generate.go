package key

import (
	"crypto/ecdsa"

	"github.com/dream-factory-code/go-tolar/internal/ledger/credentials"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func ecdsaPublicKey(key *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSAPub(&key.PublicKey)
}

func newGenerate() *cobra.Command {
	var (
		fromMnemonic bool
		dir          string
		passwordFile string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generates a key and stores it as an encrypted key file",
		Long: `Generates a new secp256k1 key and writes it to the key store directory
as a version 3 JSON key file. With --mnemonic the key is derived from a fresh
BIP-39 mnemonic, which is printed once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, profile, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var (
				key      *ecdsa.PrivateKey
				mnemonic string
			)

			if fromMnemonic {
				if mnemonic, err = credentials.NewMnemonic(); err != nil {
					return err
				}

				if key, err = credentials.FromMnemonic(mnemonic, "", cfg.KeyStore.Derivation); err != nil {
					return err
				}
			} else if key, err = crypto.GenerateKey(); err != nil {
				return errors.Wrap(err, "failed to generate key")
			}

			keys := command.KeyFlags{PasswordFile: passwordFile}

			password, err := keys.Password(cmd, "New key file password: ")
			if err != nil {
				return err
			}

			if passwordFile == "" {
				confirm, err := command.ReadPassword(cmd, "Repeat password: ")
				if err != nil {
					return err
				}

				if confirm != password {
					return errors.New("passwords do not match")
				}
			}

			params := credentials.StandardScryptParams()
			if cfg.KeyStore.LightKDF {
				params = credentials.LightScryptParams()
			}

			if dir == "" {
				dir = cfg.KeyStore.Dir
			}

			path, err := credentials.WriteKeyFile(dir, key, password, params, profile)
			if err != nil {
				return err
			}

			out, err := addresses(key, profile)
			if err != nil {
				return err
			}
			out.KeyFile = path

			if mnemonic != "" {
				out.Mnemonic = mnemonic
				out.Path = cfg.KeyStore.Derivation
			}

			log.Info().Str("address", out.Address.String()).Str("key_file", path).Msg("Key generated")

			return writeJSON(cmd, out)
		},
	}

	cmd.Flags().BoolVar(&fromMnemonic, "mnemonic", false, "derive the key from a new mnemonic")
	cmd.Flags().StringVar(&dir, "dir", "", "key store directory; defaults to TOLAR_KEYSTORE_DIR")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting")

	return cmd
}

func newMnemonic() *cobra.Command {
	return &cobra.Command{
		Use:   "mnemonic",
		Short: "Prints a new BIP-39 mnemonic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mnemonic, err := credentials.NewMnemonic()
			if err != nil {
				return err
			}

			return writeJSON(cmd, struct {
				Mnemonic string `json:"mnemonic"`
			}{mnemonic})
		},
	}
}
