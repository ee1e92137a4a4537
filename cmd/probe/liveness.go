package probe

import (
	"fmt"

	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLiveness() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Checks that the configuration resolves to a usable chain profile",
		Long: `Checks the configuration without contacting a node: the address
profile is known, every method the client needs is named and at least one
node URL is configured. Exits non-zero otherwise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if err := checkConfig(cfg); err != nil {
				return err
			}

			if verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Profile %q with %d node URL(s) is live.\n", cfg.Chain.Profile, len(cfg.Node.URLs))
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

func checkConfig(cfg config.Client) error {
	if len(cfg.Node.URLs) == 0 {
		return errors.New("no node URL configured")
	}

	if _, err := ledger.ParseAddressProfile(cfg.Chain.AddressProfile); err != nil {
		return err
	}

	required := map[string]string{
		"nonce":     cfg.Chain.Methods.Nonce,
		"gas_price": cfg.Chain.Methods.GasPrice,
		"send_raw":  cfg.Chain.Methods.SendRaw,
		"receipt":   cfg.Chain.Methods.Receipt,
	}

	for name, method := range required {
		if method == "" {
			return errors.Errorf("chain profile %q names no %s method", cfg.Chain.Profile, name)
		}
	}

	return nil
}
