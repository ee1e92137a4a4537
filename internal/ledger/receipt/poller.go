package receipt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/pkg/errors"
)

const (
	DefaultInterval    = 1000 * time.Millisecond
	DefaultMaxAttempts = 15
)

var errReceiptAbsent = errors.New("receipt not yet available")

// Config configures a Poller. Zero values select the defaults.
type Config struct {
	Method      string
	Interval    time.Duration
	MaxAttempts int
	// Timeout is an optional wall-clock ceiling on Wait; 0 disables it.
	Timeout time.Duration
	// BareHash sends hashes without the 0x prefix (Tolar nodes).
	BareHash bool
	// NotFoundCodes are JSON-RPC error codes that mean "no receipt yet" on
	// nodes that answer an unknown hash with an error instead of null.
	NotFoundCodes []int
	Metrics       *metrics.Service
}

// Poller waits for transaction receipts:
//
//	Pending -> Confirmed | TimedOut | NodeError
//
// Only an absent receipt is retried. Pollers are stateless between calls
// and safe for concurrent use.
type Poller struct {
	caller node.Caller
	config Config
}

func NewPoller(caller node.Caller, config Config) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}

	return &Poller{caller: caller, config: config}
}

func (p *Poller) Interval() time.Duration {
	return p.config.Interval
}

func (p *Poller) MaxAttempts() int {
	return p.config.MaxAttempts
}

// Fetch queries the receipt once. It returns (nil, nil) when the node has
// no receipt for hash yet.
func (p *Poller) Fetch(ctx context.Context, hash ledger.Hash) (*ledger.Receipt, error) {
	if p.config.Method == "" {
		return nil, errors.New("no receipt method configured")
	}

	param := hash.Hex()
	if p.config.BareHash {
		param = hash.String()
	}

	var raw json.RawMessage
	if err := p.caller.Call(ctx, &raw, p.config.Method, param); err != nil {
		var protoErr *ledger.ProtocolError
		if errors.As(err, &protoErr) && p.isNotFound(protoErr.Code) {
			return nil, nil
		}

		return nil, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var receipt ledger.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, &ledger.NodeCommunicationError{Method: p.config.Method, Err: errors.Wrap(err, "malformed receipt")}
	}

	if receipt.TransactionHash.IsZero() {
		receipt.TransactionHash = hash
	}

	return &receipt, nil
}

func (p *Poller) isNotFound(code int) bool {
	for _, c := range p.config.NotFoundCodes {
		if c == code {
			return true
		}
	}

	return false
}

// Wait polls until the receipt is present, the attempt ceiling is reached
// (*ledger.ConfirmationTimeoutError), a query fails (returned unchanged,
// without further attempts), or ctx is done. Cancellation takes effect at
// attempt boundaries.
func (p *Poller) Wait(ctx context.Context, hash ledger.Hash) (*ledger.Receipt, error) {
	pollCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	logger := util.LogFromContext(ctx).With().Str("tx_hash", hash.String()).Logger()

	var (
		receipt  *ledger.Receipt
		attempts int
		start    = time.Now()
	)

	operation := func() error {
		attempts++
		p.config.Metrics.PollAttempt()

		r, err := p.Fetch(pollCtx, hash)
		if err != nil {
			return backoff.Permanent(err)
		}

		if r == nil {
			return errReceiptAbsent
		}

		receipt = r

		return nil
	}

	notify := func(_ error, next time.Duration) {
		logger.Debug().Int("attempt", attempts).Dur("next_in", next).Msg("Receipt not yet available")
	}

	err := backoff.RetryNotify(operation, p.backOff(pollCtx), notify)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		p.config.Metrics.PollOutcome("confirmed")
		logger.Debug().
			Int("attempts", attempts).
			Str("status", string(receipt.Status)).
			Msg("Receipt confirmed")

		return receipt, nil

	case ctx.Err() != nil:
		p.config.Metrics.PollOutcome("cancelled")
		return nil, errors.Wrap(ctx.Err(), "receipt polling cancelled")

	case errors.Is(err, errReceiptAbsent), pollCtx.Err() != nil:
		p.config.Metrics.PollOutcome("timeout")
		logger.Warn().Int("attempts", attempts).Dur("elapsed", elapsed).Msg("Receipt polling timed out")

		return nil, &ledger.ConfirmationTimeoutError{
			TransactionHash: hash,
			Attempts:        attempts,
			Interval:        p.config.Interval,
			Elapsed:         elapsed,
		}

	default:
		p.config.Metrics.PollOutcome("node_error")
		logger.Warn().Err(err).Int("attempts", attempts).Msg("Receipt polling failed")

		return nil, err
	}
}

// backOff allows exactly MaxAttempts operations.
func (p *Poller) backOff(ctx context.Context) backoff.BackOffContext {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if p.config.MaxAttempts > 1 {
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(p.config.Interval), uint64(p.config.MaxAttempts-1))
	}

	return backoff.WithContext(b, ctx)
}
