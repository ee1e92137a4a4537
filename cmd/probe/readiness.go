package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const timeoutFlag = "timeout"

func newReadiness() *cobra.Command {
	var (
		verbose bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Checks that every configured node answers",
		Long: `Queries the gas price on every configured node URL in parallel.
Exits non-zero if any node fails to answer within --timeout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if err := checkConfig(cfg); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			results, err := probeNodes(ctx, cfg)

			if verbose {
				for _, r := range results {
					fmt.Fprintln(cmd.OutOrStdout(), r)
				}
			}

			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, verboseFlag, "v", false, "Show verbose output.")
	cmd.Flags().DurationVar(&timeout, timeoutFlag, 10*time.Second, "Overall probe timeout.")

	return cmd
}

// probeNodes asks each node on its own so a failover cannot hide a dead one.
func probeNodes(ctx context.Context, cfg config.Client) ([]string, error) {
	results := make([]string, len(cfg.Node.URLs))

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range cfg.Node.URLs {
		i, url := i, url
		g.Go(func() error {
			start := time.Now()

			err := probeNode(gctx, cfg, url)
			if err != nil {
				results[i] = fmt.Sprintf("%s: %v", url, err)
				log.Warn().Err(err).Str("url", url).Msg("Node is not ready")

				return errors.Wrapf(err, "node %s is not ready", url)
			}

			results[i] = fmt.Sprintf("%s: ready in %s", url, time.Since(start).Round(time.Millisecond))

			return nil
		})
	}

	return results, g.Wait()
}

func probeNode(ctx context.Context, cfg config.Client, url string) error {
	c, err := node.Dial(ctx, node.Config{URLs: []string{url}, Timeout: cfg.Node.Timeout}, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	var price ledger.Quantity

	return c.Call(ctx, &price, cfg.Chain.Methods.GasPrice)
}
