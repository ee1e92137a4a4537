package transfer

import (
	"context"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/convert"
	"github.com/dream-factory-code/go-tolar/internal/ledger/receipt"
	"github.com/dream-factory-code/go-tolar/internal/ledger/txmanager"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// GasLimit is the cost of a plain value transfer.
const GasLimit = 21_000

// Request is a value transfer. Nil Nonce and GasPrice are resolved by the
// manager.
type Request struct {
	To       ledger.Address
	Value    decimal.Decimal
	Unit     convert.Unit
	Data     []byte
	Nonce    *big.Int
	GasPrice *big.Int
}

// Result holds the submission handle and the confirmed receipt.
type Result struct {
	Pending *txmanager.PendingTransaction
	Receipt *ledger.Receipt
}

// Service sends funds and waits for confirmation.
type Service struct {
	manager txmanager.Manager
	poller  *receipt.Poller
}

func NewService(manager txmanager.Manager, poller *receipt.Poller) *Service {
	return &Service{manager: manager, poller: poller}
}

// SendFunds submits a transfer with the fixed transfer gas limit and waits
// for its receipt.
func (s *Service) SendFunds(ctx context.Context, req Request) (*Result, error) {
	if req.To.IsEmpty() {
		return nil, &ledger.InvalidTransactionError{Field: "receiver", Reason: "transfer requires a receiver"}
	}

	unit := req.Unit
	if unit.Name == "" {
		unit = convert.Atto
	}

	amount, err := convert.ToAtto(req.Value, unit)
	if err != nil {
		return nil, &ledger.InvalidTransactionError{Field: "amount", Reason: err.Error()}
	}

	pending, err := s.manager.Send(ctx, &ledger.Transaction{
		Receiver: req.To,
		Amount:   amount,
		GasLimit: big.NewInt(GasLimit),
		GasPrice: req.GasPrice,
		Payload:  req.Data,
		Nonce:    req.Nonce,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to send funds")
	}

	rcpt, err := s.poller.Wait(ctx, pending.Hash)
	if err != nil {
		return &Result{Pending: pending}, errors.Wrap(err, "failed to confirm transfer")
	}

	return &Result{Pending: pending, Receipt: rcpt}, nil
}
