package env

import (
	"encoding/json"
	"fmt"

	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Prints the effective configuration as JSON",
		Long: `Prints the configuration resolved from ENV and --profile as JSON.
Useful to check which node methods a chain profile selects.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			c, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to marshal config")
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(c))

			return nil
		},
	}
}
