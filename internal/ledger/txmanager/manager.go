package txmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/pkg/errors"
)

// DefaultGasLimit is used when a transaction leaves its gas limit unset.
const DefaultGasLimit = 4_300_000

// Mode tells how a Manager gets transactions signed.
type Mode string

const (
	ModeSelfSigned Mode = "self-signed"
	ModeDelegated  Mode = "delegated"
)

// PendingTransaction is the handle of a transaction the node accepted.
type PendingTransaction struct {
	Hash   ledger.Hash
	Sender ledger.Address
	// Nonce is nil when the node assigned it.
	Nonce *big.Int
	Mode  Mode
	// Raw is the submitted wire encoding in self-signed mode.
	Raw []byte
}

// Manager submits transactions. Send performs at most one nonce round trip,
// one gas price round trip and exactly one submission round trip; it never
// retries a submission.
type Manager interface {
	Send(ctx context.Context, tx *ledger.Transaction) (*PendingTransaction, error)
	Mode() Mode
}

// TransactionSigner signs transactions for a fixed sender.
type TransactionSigner interface {
	Address() ledger.Address
	SignTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.SignedTransaction, error)
}

// Options configures both manager modes.
type Options struct {
	Methods node.Methods
	// DefaultGasLimit replaces DefaultGasLimit when set.
	DefaultGasLimit *big.Int
	// MaxPayload rejects larger payloads before any network call.
	MaxPayload int
	// NonceParams follow the sender address in the nonce call, e.g.
	// "pending" or a privacy group id.
	NonceParams []any
	// NodeAssignsNonce skips the nonce round trip in delegated mode.
	NodeAssignsNonce bool
	// DelegatedStyle selects the delegated parameter layout.
	DelegatedStyle DelegatedStyle
	// SenderLocks may be shared between managers of the same sender.
	SenderLocks *util.KeyedMutex
	Metrics     *metrics.Service
}

func (o Options) gasLimit() *big.Int {
	if o.DefaultGasLimit != nil && o.DefaultGasLimit.Sign() > 0 {
		return new(big.Int).Set(o.DefaultGasLimit)
	}

	return big.NewInt(DefaultGasLimit)
}

// base holds what both modes share.
type base struct {
	caller  node.Caller
	options Options
	locks   *util.KeyedMutex
}

func newBase(caller node.Caller, options Options) base {
	locks := options.SenderLocks
	if locks == nil {
		locks = util.NewKeyedMutex()
	}

	return base{caller: caller, options: options, locks: locks}
}

func (b *base) fetchNonce(ctx context.Context, sender ledger.Address) (*big.Int, error) {
	if b.options.Methods.Nonce == "" {
		return nil, errors.New("no nonce method configured")
	}

	params := append([]any{sender.String()}, b.options.NonceParams...)

	var nonce ledger.Quantity
	if err := b.caller.Call(ctx, &nonce, b.options.Methods.Nonce, params...); err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	return nonce.Big(), nil
}

func (b *base) fetchGasPrice(ctx context.Context) (*big.Int, error) {
	if b.options.Methods.GasPrice == "" {
		return nil, errors.New("no gas price method configured")
	}

	var price ledger.Quantity
	if err := b.caller.Call(ctx, &price, b.options.Methods.GasPrice); err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	return price.Big(), nil
}

// resolveGas fills unset gas price and gas limit. Nothing is cached.
func (b *base) resolveGas(ctx context.Context, tx *ledger.Transaction) error {
	if tx.GasPrice == nil {
		price, err := b.fetchGasPrice(ctx)
		if err != nil {
			return err
		}
		tx.GasPrice = price
	}

	if tx.GasLimit == nil {
		tx.GasLimit = b.options.gasLimit()
	}

	return nil
}

// submit performs the single submission round trip and maps a node
// rejection to *ledger.SubmissionRejectedError.
func (b *base) submit(ctx context.Context, mode Mode, method string, nonce *big.Int, params ...any) (ledger.Hash, error) {
	var result submissionResult

	err := b.caller.Call(ctx, &result, method, params...)
	if err != nil {
		b.options.Metrics.Submission(string(mode), "error")

		var protoErr *ledger.ProtocolError
		if errors.As(err, &protoErr) {
			rejected := &ledger.SubmissionRejectedError{Method: method, Err: protoErr}
			if nonce != nil {
				rejected.Nonce = nonce.String()
			}

			util.LogFromContext(ctx).Warn().
				Str("method", method).
				Int("code", protoErr.Code).
				Str("nonce", rejected.Nonce).
				Msg("Node rejected transaction submission")

			return ledger.Hash{}, rejected
		}

		util.LogFromContext(ctx).Error().Err(err).Str("method", method).Msg("Failed to submit transaction")

		return ledger.Hash{}, errors.Wrap(err, "failed to submit transaction")
	}

	b.options.Metrics.Submission(string(mode), "accepted")

	return result.Hash, nil
}

func (b *base) checkSender(tx *ledger.Transaction, sender ledger.Address) error {
	if tx.Sender.IsEmpty() {
		tx.Sender = sender
		return nil
	}

	if !tx.Sender.Equal(sender) {
		return &ledger.InvalidTransactionError{Field: "sender", Reason: "sender does not match the manager's account"}
	}

	return nil
}

// submissionResult accepts a bare hash or an object carrying one.
type submissionResult struct {
	Hash ledger.Hash
}

func (r *submissionResult) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "failed to decode transaction hash")
		}

		hash, err := ledger.ParseHash(s)
		if err != nil {
			return err
		}
		r.Hash = hash

		return nil
	}

	var obj struct {
		TransactionHash  string `json:"transactionHash"`
		TransactionHashS string `json:"transaction_hash"`
		Hash             string `json:"hash"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "failed to decode submission result")
	}

	for _, s := range []string{obj.TransactionHash, obj.TransactionHashS, obj.Hash} {
		if s == "" {
			continue
		}

		hash, err := ledger.ParseHash(s)
		if err != nil {
			return err
		}
		r.Hash = hash

		return nil
	}

	return errors.New("submission result carries no transaction hash")
}
