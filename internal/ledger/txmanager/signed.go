package txmanager

import (
	"context"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// SignedManager signs locally and submits the raw encoding.
type SignedManager struct {
	base
	signer TransactionSigner
}

var _ Manager = (*SignedManager)(nil)

func NewSignedManager(caller node.Caller, signer TransactionSigner, options Options) *SignedManager {
	return &SignedManager{
		base:   newBase(caller, options),
		signer: signer,
	}
}

func (m *SignedManager) Mode() Mode {
	return ModeSelfSigned
}

// Address is the sender of every transaction this manager sends.
func (m *SignedManager) Address() ledger.Address {
	return m.signer.Address()
}

// Send resolves nonce and gas, signs and submits tx. Sends for the same
// sender are serialised from nonce acquisition to submission.
func (m *SignedManager) Send(ctx context.Context, tx *ledger.Transaction) (*PendingTransaction, error) {
	if tx == nil {
		return nil, &ledger.InvalidTransactionError{Reason: "transaction is nil"}
	}

	tx = tx.Copy()

	sender := m.signer.Address()
	if err := m.checkSender(tx, sender); err != nil {
		return nil, err
	}

	if err := tx.Validate(m.options.MaxPayload); err != nil {
		return nil, err
	}

	unlock, err := m.locks.Lock(ctx, sender.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire sender lock")
	}
	defer unlock()

	if tx.Nonce == nil {
		if tx.Nonce, err = m.fetchNonce(ctx, sender); err != nil {
			return nil, err
		}
	}

	if err := m.resolveGas(ctx, tx); err != nil {
		return nil, err
	}

	signed, err := m.signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	hash, err := m.submit(ctx, ModeSelfSigned, m.options.Methods.SendRaw, tx.Nonce, hexutil.Encode(signed.Raw))
	if err != nil {
		return nil, err
	}

	if hash.IsZero() {
		hash = signed.Hash
	}

	util.LogFromContext(ctx).Info().
		Str("tx_hash", hash.String()).
		Str("sender", sender.String()).
		Str("nonce", tx.Nonce.String()).
		Str("kind", tx.Kind().String()).
		Msg("Transaction submitted")

	return &PendingTransaction{
		Hash:   hash,
		Sender: sender,
		Nonce:  tx.Nonce,
		Mode:   ModeSelfSigned,
		Raw:    signed.Raw,
	}, nil
}
