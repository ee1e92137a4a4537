package command

import (
	"bufio"
	"crypto/ecdsa"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/ledger/credentials"
	"github.com/dream-factory-code/go-tolar/internal/ledger/signer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	keyFlag          = "key"
	keyFileFlag      = "keyfile"
	mnemonicFlag     = "mnemonic"
	derivationFlag   = "derivation-path"
	passwordFileFlag = "password-file"
	profileFlag      = "profile"
)

// KeyFlags select the local signing key of a command.
type KeyFlags struct {
	Hex          string
	File         string
	Mnemonic     string
	Derivation   string
	PasswordFile string
}

// Register adds the key selection flags to cmd.
func (k *KeyFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&k.Hex, keyFlag, "", "hex encoded private key")
	cmd.Flags().StringVar(&k.File, keyFileFlag, "", "path to an encrypted JSON key file")
	cmd.Flags().StringVar(&k.Mnemonic, mnemonicFlag, "", "BIP-39 mnemonic to derive the key from")
	cmd.Flags().StringVar(&k.Derivation, derivationFlag, "", "BIP-32 derivation path used with --mnemonic")
	cmd.Flags().StringVar(&k.PasswordFile, passwordFileFlag, "", "read the key file password from this file instead of prompting")
}

// IsSet reports whether any key source was given.
func (k *KeyFlags) IsSet() bool {
	return k.Hex != "" || k.File != "" || k.Mnemonic != ""
}

// Load resolves the selected key source.
func (k *KeyFlags) Load(cmd *cobra.Command, cfg config.KeyStore) (*ecdsa.PrivateKey, error) {
	switch {
	case k.Hex != "":
		return signer.ParsePrivateKey(k.Hex)
	case k.File != "":
		password, err := k.Password(cmd, "Key file password: ")
		if err != nil {
			return nil, err
		}

		return credentials.LoadKeyFile(k.File, password)
	case k.Mnemonic != "":
		path := k.Derivation
		if path == "" {
			path = cfg.Derivation
		}

		return credentials.FromMnemonic(k.Mnemonic, "", path)
	default:
		return nil, errors.Errorf("one of --%s, --%s or --%s is required", keyFlag, keyFileFlag, mnemonicFlag)
	}
}

// Password reads a password from --password-file or the terminal.
func (k *KeyFlags) Password(cmd *cobra.Command, prompt string) (string, error) {
	if k.PasswordFile != "" {
		raw, err := os.ReadFile(k.PasswordFile)
		if err != nil {
			return "", errors.Wrap(err, "failed to read password file")
		}

		return strings.TrimRight(string(raw), "\r\n"), nil
	}

	return ReadPassword(cmd, prompt)
}

// ReadPassword prompts on the terminal without echo. Piped input is read
// up to the first newline.
func ReadPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", errors.Wrap(err, "failed to read password")
		}

		return string(raw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "failed to read password")
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// RegisterProfileFlag adds the persistent --profile flag to the root command.
func RegisterProfileFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String(profileFlag, "", "TOML chain profile overlaid on the environment configuration")
}

// LoadConfig reads the environment configuration and applies the --profile
// file when given.
func LoadConfig(cmd *cobra.Command) (config.Client, error) {
	cfg := config.DefaultClientConfigFromEnv()

	path, err := cmd.Flags().GetString(profileFlag)
	if err != nil || path == "" {
		return cfg, nil //nolint:nilerr // the flag is optional
	}

	profile, err := config.LoadProfile(path)
	if err != nil {
		return cfg, err
	}

	cfg.ApplyProfile(profile)

	return cfg, nil
}
