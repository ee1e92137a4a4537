package key

import (
	"crypto/ecdsa"
	"encoding/json"

	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("key",
		newGenerate(),
		newAddress(),
		newMnemonic(),
	)
}

type keyOutput struct {
	Address  ledger.Address `json:"address"`
	EVM      ledger.Address `json:"evmAddress"`
	KeyFile  string         `json:"keyFile,omitempty"`
	Mnemonic string         `json:"mnemonic,omitempty"`
	Path     string         `json:"derivationPath,omitempty"`
}

func loadConfig(cmd *cobra.Command) (config.Client, ledger.AddressProfile, error) {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return cfg, ledger.ProfileEVM, err
	}

	util.ConfigureLogger(command.LoggerConfig(cfg.Logger))

	profile, err := ledger.ParseAddressProfile(cfg.Chain.AddressProfile)
	if err != nil {
		return cfg, ledger.ProfileEVM, err
	}

	return cfg, profile, nil
}

func addresses(key *ecdsa.PrivateKey, profile ledger.AddressProfile) (*keyOutput, error) {
	pub := ecdsaPublicKey(key)

	addr, err := ledger.AddressFromPublicKey(pub, profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive address")
	}

	evm, err := ledger.AddressFromPublicKey(pub, ledger.ProfileEVM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive address")
	}

	return &keyOutput{Address: addr, EVM: evm}, nil
}

func writeJSON(cmd *cobra.Command, out any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func newAddress() *cobra.Command {
	var keys command.KeyFlags

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Prints the address of a key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, profile, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			key, err := keys.Load(cmd, cfg.KeyStore)
			if err != nil {
				return err
			}

			out, err := addresses(key, profile)
			if err != nil {
				return err
			}

			return writeJSON(cmd, out)
		},
	}

	keys.Register(cmd)

	return cmd
}
