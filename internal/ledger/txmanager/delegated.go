package txmanager

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// DelegatedStyle is the parameter layout of delegated submissions.
type DelegatedStyle string

const (
	// StyleTolar sends one object that carries the sender password.
	StyleTolar DelegatedStyle = "tolar"
	// StyleEthereum sends an eth_sendTransaction object followed by the
	// password, as personal_sendTransaction expects.
	StyleEthereum DelegatedStyle = "ethereum"
)

// DelegatedManager lets the node sign with the sender's key, unlocked by a
// password. No key material is handled locally.
type DelegatedManager struct {
	base
	sender   ledger.Address
	password string
}

var _ Manager = (*DelegatedManager)(nil)

func NewDelegatedManager(caller node.Caller, sender ledger.Address, password string, options Options) *DelegatedManager {
	if options.DelegatedStyle == "" {
		options.DelegatedStyle = StyleTolar
	}

	return &DelegatedManager{
		base:     newBase(caller, options),
		sender:   sender,
		password: password,
	}
}

func (m *DelegatedManager) Mode() Mode {
	return ModeDelegated
}

func (m *DelegatedManager) Address() ledger.Address {
	return m.sender
}

func (m *DelegatedManager) Send(ctx context.Context, tx *ledger.Transaction) (*PendingTransaction, error) {
	if tx == nil {
		return nil, &ledger.InvalidTransactionError{Reason: "transaction is nil"}
	}

	if m.sender.IsEmpty() {
		return nil, &ledger.InvalidTransactionError{Field: "sender", Reason: "delegated mode requires a sender"}
	}

	tx = tx.Copy()

	if err := m.checkSender(tx, m.sender); err != nil {
		return nil, err
	}

	if err := tx.Validate(m.options.MaxPayload); err != nil {
		return nil, err
	}

	unlock, err := m.locks.Lock(ctx, m.sender.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire sender lock")
	}
	defer unlock()

	if tx.Nonce == nil && !m.options.NodeAssignsNonce {
		if tx.Nonce, err = m.fetchNonce(ctx, m.sender); err != nil {
			return nil, err
		}
	}

	if err := m.resolveGas(ctx, tx); err != nil {
		return nil, err
	}

	method := m.methodFor(tx.Kind())
	if method == "" {
		return nil, errors.New("no delegated submission method configured")
	}

	params, err := m.params(tx)
	if err != nil {
		return nil, err
	}

	hash, err := m.submit(ctx, ModeDelegated, method, tx.Nonce, params...)
	if err != nil {
		return nil, err
	}

	if hash.IsZero() {
		return nil, &ledger.NodeCommunicationError{Method: method, Err: errors.New("node returned an empty transaction hash")}
	}

	util.LogFromContext(ctx).Info().
		Str("tx_hash", hash.String()).
		Str("sender", m.sender.String()).
		Str("method", method).
		Msg("Delegated transaction submitted")

	return &PendingTransaction{
		Hash:   hash,
		Sender: m.sender,
		Nonce:  tx.Nonce,
		Mode:   ModeDelegated,
	}, nil
}

// methodFor picks the kind specific delegated method, falling back to the
// generic one.
func (m *DelegatedManager) methodFor(kind ledger.Kind) string {
	methods := m.options.Methods

	var specific string

	switch kind {
	case ledger.KindDeploy:
		specific = methods.DeployDelegated
	case ledger.KindCall:
		specific = methods.ExecuteDelegated
	case ledger.KindTransfer:
		specific = methods.TransferDelegated
	}

	if specific != "" {
		return specific
	}

	return methods.SendDelegated
}

type tolarDelegatedRequest struct {
	SenderAddress         string      `json:"sender_address"`
	ReceiverAddress       string      `json:"receiver_address,omitempty"`
	Amount                json.Number `json:"amount"`
	SenderAddressPassword string      `json:"sender_address_password"`
	Gas                   json.Number `json:"gas"`
	GasPrice              json.Number `json:"gas_price"`
	Data                  string      `json:"data,omitempty"`
	Nonce                 json.Number `json:"nonce,omitempty"`
}

type ethereumDelegatedRequest struct {
	From     string        `json:"from"`
	To       string        `json:"to,omitempty"`
	Gas      *hexutil.Big  `json:"gas"`
	GasPrice *hexutil.Big  `json:"gasPrice"`
	Value    *hexutil.Big  `json:"value"`
	Data     hexutil.Bytes `json:"data,omitempty"`
	Nonce    *hexutil.Big  `json:"nonce,omitempty"`
}

func (m *DelegatedManager) params(tx *ledger.Transaction) ([]any, error) {
	amount := tx.Amount
	if amount == nil {
		amount = new(big.Int)
	}

	switch m.options.DelegatedStyle {
	case StyleEthereum:
		req := ethereumDelegatedRequest{
			From:     tx.Sender.String(),
			To:       tx.Receiver.String(),
			Gas:      (*hexutil.Big)(tx.GasLimit),
			GasPrice: (*hexutil.Big)(tx.GasPrice),
			Value:    (*hexutil.Big)(amount),
			Data:     tx.Payload,
		}
		if tx.Nonce != nil {
			req.Nonce = (*hexutil.Big)(tx.Nonce)
		}

		return []any{req, m.password}, nil
	case StyleTolar, "":
		req := tolarDelegatedRequest{
			SenderAddress:         tx.Sender.String(),
			ReceiverAddress:       tx.Receiver.String(),
			Amount:                json.Number(amount.String()),
			SenderAddressPassword: m.password,
			Gas:                   json.Number(tx.GasLimit.String()),
			GasPrice:              json.Number(tx.GasPrice.String()),
			Data:                  tolarPayload(tx),
		}
		if tx.Nonce != nil {
			req.Nonce = json.Number(tx.Nonce.String())
		}

		return []any{req}, nil
	default:
		return nil, errors.Errorf("unknown delegated style %q", m.options.DelegatedStyle)
	}
}

// tolarPayload renders the payload as hex without the 0x prefix.
func tolarPayload(tx *ledger.Transaction) string {
	if len(tx.Payload) == 0 {
		return ""
	}

	return hexutil.Encode(tx.Payload)[2:]
}
