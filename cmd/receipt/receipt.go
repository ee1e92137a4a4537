package receipt

import (
	"context"
	"encoding/json"

	"github.com/dream-factory-code/go-tolar/internal/client"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	waitFlag        = "wait"
	concurrencyFlag = "concurrency"
)

type receiptOutput struct {
	Hash    ledger.Hash     `json:"hash"`
	Found   bool            `json:"found"`
	Receipt *ledger.Receipt `json:"receipt,omitempty"`
}

func New() *cobra.Command {
	var (
		wait        bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "receipt <hash>...",
		Short: "Fetches transaction receipts",
		Long: `Fetches the receipt of each given transaction hash.
With --wait every hash is polled until confirmed or the attempts run out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashes := make([]ledger.Hash, 0, len(args))
			for _, arg := range args {
				h, err := ledger.ParseHash(arg)
				if err != nil {
					return err
				}
				hashes = append(hashes, h)
			}

			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithClient(cmd.Context(), cfg, func(ctx context.Context, c *client.Client) error {
				out, err := fetchAll(ctx, c, hashes, wait, concurrency)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(out)
			})
		},
	}

	cmd.Flags().BoolVar(&wait, waitFlag, false, "poll until each receipt is available")
	cmd.Flags().IntVar(&concurrency, concurrencyFlag, 4, "number of hashes polled at once")

	return cmd
}

func fetchAll(ctx context.Context, c *client.Client, hashes []ledger.Hash, wait bool, concurrency int) ([]receiptOutput, error) {
	out := make([]receiptOutput, len(hashes))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, h := range hashes {
		i, h := i, h
		g.Go(func() error {
			var (
				r   *ledger.Receipt
				err error
			)

			if wait {
				r, err = c.Poller.Wait(ctx, h)
			} else {
				r, err = c.Poller.Fetch(ctx, h)
			}
			if err != nil {
				return errors.Wrapf(err, "failed to get receipt %s", h)
			}

			out[i] = receiptOutput{Hash: h, Found: r != nil, Receipt: r}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
