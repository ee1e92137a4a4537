package send

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/client"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/convert"
	"github.com/dream-factory-code/go-tolar/internal/ledger/transfer"
	"github.com/dream-factory-code/go-tolar/internal/ledger/txmanager"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type options struct {
	keys command.KeyFlags

	to       string
	value    string
	unit     string
	data     string
	gasLimit uint64
	gasPrice string
	nonce    int64

	delegated bool
	from      string

	privateFrom  string
	privacyGroup string

	wait bool
}

type output struct {
	Hash    ledger.Hash     `json:"hash"`
	Sender  ledger.Address  `json:"sender"`
	Nonce   *big.Int        `json:"nonce,omitempty"`
	Mode    txmanager.Mode  `json:"mode"`
	Kind    string          `json:"kind"`
	Raw     string          `json:"raw,omitempty"`
	Receipt *ledger.Receipt `json:"receipt,omitempty"`
}

func New() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Signs and submits a transaction",
		Long: `Submits a transfer, contract deployment or contract call.

Without --to the payload is deployed as a contract. With --delegated the node
signs with the unlocked account given by --from; otherwise a local key is
required (--key, --keyfile or --mnemonic).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithClient(cmd.Context(), cfg, func(ctx context.Context, c *client.Client) error {
				out, err := o.run(ctx, cmd, c)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(out)
			})
		},
	}

	o.keys.Register(cmd)

	cmd.Flags().StringVar(&o.to, "to", "", "receiver address; omit to deploy --data as a contract")
	cmd.Flags().StringVar(&o.value, "value", "0", "amount to transfer, in --unit")
	cmd.Flags().StringVar(&o.unit, "unit", convert.Atto.Name, "unit of --value (atto ... tol ... gtol)")
	cmd.Flags().StringVar(&o.data, "data", "", "hex encoded payload")
	cmd.Flags().Uint64Var(&o.gasLimit, "gas-limit", 0, "gas limit; defaults per transaction kind")
	cmd.Flags().StringVar(&o.gasPrice, "gas-price", "", "gas price in atto; queried from the node when empty")
	cmd.Flags().Int64Var(&o.nonce, "nonce", -1, "nonce; queried from the node when negative")
	cmd.Flags().BoolVar(&o.delegated, "delegated", false, "let the node sign for --from")
	cmd.Flags().StringVar(&o.from, "from", "", "sender account unlocked on the node, with --delegated")
	cmd.Flags().StringVar(&o.privateFrom, "private-from", "", "base64 enclave key of the sender, for private transactions")
	cmd.Flags().StringVar(&o.privacyGroup, "privacy-group", "", "base64 privacy group id, for private transactions")
	cmd.Flags().BoolVar(&o.wait, "wait", false, "wait for the receipt")

	return cmd
}

func (o *options) run(ctx context.Context, cmd *cobra.Command, c *client.Client) (*output, error) {
	tx, err := o.transaction()
	if err != nil {
		return nil, err
	}

	manager, err := o.manager(cmd, c)
	if err != nil {
		return nil, err
	}

	if o.wait && !tx.IsPrivate() && tx.Kind() == ledger.KindTransfer && o.gasLimit == 0 {
		return o.sendFunds(ctx, c, manager, tx)
	}

	pending, err := manager.Send(ctx, tx)
	if err != nil {
		return nil, err
	}

	out := newOutput(pending, tx)

	if o.wait {
		if tx.IsPrivate() {
			out.Receipt, err = c.Orchestrator.WaitForReceipt(ctx, pending.Hash)
		} else {
			out.Receipt, err = c.Poller.Wait(ctx, pending.Hash)
		}
		if err != nil {
			return out, errors.Wrap(err, "failed to confirm transaction")
		}
	}

	return out, nil
}

func (o *options) sendFunds(ctx context.Context, c *client.Client, manager txmanager.Manager, tx *ledger.Transaction) (*output, error) {
	unit, err := convert.ParseUnit(o.unit)
	if err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(o.value)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse value %q", o.value)
	}

	result, err := c.Transfers(manager).SendFunds(ctx, transfer.Request{
		To:       tx.Receiver,
		Value:    value,
		Unit:     unit,
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice,
	})
	if err != nil {
		if result != nil && result.Pending != nil {
			log.Warn().Str("tx_hash", result.Pending.Hash.String()).Msg("Transfer sent but not confirmed")
		}

		return nil, err
	}

	tx.GasLimit = big.NewInt(transfer.GasLimit)
	out := newOutput(result.Pending, tx)
	out.Receipt = result.Receipt

	return out, nil
}

//nolint:ireturn // both modes are returned through the Manager interface
func (o *options) manager(cmd *cobra.Command, c *client.Client) (txmanager.Manager, error) {
	if o.delegated {
		if o.privacyGroup != "" {
			return nil, errors.New("private transactions must be signed locally")
		}

		sender, err := ledger.ParseAddress(o.from)
		if err != nil || sender.IsEmpty() {
			return nil, errors.New("--from must be a valid address with --delegated")
		}

		password, err := o.keys.Password(cmd, "Account password: ")
		if err != nil {
			return nil, err
		}

		return c.DelegatedManager(sender, password), nil
	}

	key, err := o.keys.Load(cmd, c.Config.KeyStore)
	if err != nil {
		return nil, err
	}

	s, err := c.NewSigner(key)
	if err != nil {
		return nil, err
	}

	if o.privacyGroup != "" {
		return c.PrivateManager(s, o.privacyGroup), nil
	}

	return c.SignedManager(s), nil
}

func (o *options) transaction() (*ledger.Transaction, error) {
	unit, err := convert.ParseUnit(o.unit)
	if err != nil {
		return nil, err
	}

	amount, err := convert.ParseAmount(o.value, unit)
	if err != nil {
		return nil, &ledger.InvalidTransactionError{Field: "amount", Reason: err.Error()}
	}

	tx := &ledger.Transaction{Amount: amount}

	if o.to != "" {
		if tx.Receiver, err = ledger.ParseAddress(o.to); err != nil {
			return nil, err
		}
	}

	if o.data != "" {
		if tx.Payload, err = hexutil.Decode(ensure0x(o.data)); err != nil {
			return nil, &ledger.InvalidTransactionError{Field: "payload", Reason: err.Error()}
		}
	}

	if o.gasLimit > 0 {
		tx.GasLimit = new(big.Int).SetUint64(o.gasLimit)
	} else if tx.Kind() == ledger.KindTransfer {
		tx.GasLimit = big.NewInt(transfer.GasLimit)
	}

	if o.gasPrice != "" {
		price, ok := new(big.Int).SetString(o.gasPrice, 10)
		if !ok {
			return nil, &ledger.InvalidTransactionError{Field: "gasPrice", Reason: "not a decimal integer"}
		}
		tx.GasPrice = price
	}

	if o.nonce >= 0 {
		tx.Nonce = big.NewInt(o.nonce)
	}

	if o.privacyGroup != "" || o.privateFrom != "" {
		privacy, err := o.privacy()
		if err != nil {
			return nil, err
		}
		tx.Privacy = privacy
	}

	return tx, nil
}

func (o *options) privacy() (*ledger.Privacy, error) {
	if o.privacyGroup == "" || o.privateFrom == "" {
		return nil, &ledger.InvalidTransactionError{Field: "privacy", Reason: "--private-from and --privacy-group go together"}
	}

	privateFrom, err := decodeBase64("privateFrom", o.privateFrom)
	if err != nil {
		return nil, err
	}

	groupID, err := decodeBase64("privacyGroupId", o.privacyGroup)
	if err != nil {
		return nil, err
	}

	return &ledger.Privacy{
		PrivateFrom:    privateFrom,
		PrivacyGroupID: groupID,
		Restriction:    ledger.RestrictionRestricted,
	}, nil
}

func newOutput(pending *txmanager.PendingTransaction, tx *ledger.Transaction) *output {
	out := &output{
		Hash:   pending.Hash,
		Sender: pending.Sender,
		Nonce:  pending.Nonce,
		Mode:   pending.Mode,
		Kind:   tx.Kind().String(),
	}

	if len(pending.Raw) > 0 {
		out.Raw = hexutil.Encode(pending.Raw)
	}

	return out
}

func ensure0x(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s
	}

	return "0x" + s
}

func decodeBase64(field, value string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, &ledger.InvalidTransactionError{Field: field, Reason: "not valid base64"}
	}

	return b, nil
}
