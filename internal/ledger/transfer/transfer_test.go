package transfer_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/convert"
	"github.com/dream-factory-code/go-tolar/internal/ledger/encoding"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/ledger/receipt"
	"github.com/dream-factory-code/go-tolar/internal/ledger/signer"
	"github.com/dream-factory-code/go-tolar/internal/ledger/transfer"
	"github.com/dream-factory-code/go-tolar/internal/ledger/txmanager"
	"github.com/dream-factory-code/go-tolar/internal/test"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receiver = ledger.MustParseAddress("547e5f4552091a69125d5dfcb7b8c2659029395bdf697fcdd2")

type fixture struct {
	node    *test.FakeNode
	service *transfer.Service
	sent    []*ledger.SignedTransaction
}

func newFixture(t *testing.T, receiptResult any) *fixture {
	t.Helper()

	f := &fixture{node: test.NewFakeNode(t)}

	f.node.Returns("tol_getNonce", 4)
	f.node.Returns("eth_gasPrice", "0x1")
	f.node.Handle("eth_sendRawTransaction", func(params []json.RawMessage) (any, error) {
		var rawHex string
		require.NoError(t, json.Unmarshal(params[0], &rawHex))

		raw, err := hexutil.Decode(rawHex)
		require.NoError(t, err)

		signed, err := encoding.DecodeSigned(raw)
		require.NoError(t, err)
		f.sent = append(f.sent, signed)

		return signed.Hash.String(), nil
	})
	f.node.Returns("tol_getTransactionReceipt", receiptResult)

	s, err := signer.NewFromHex("4646464646464646464646464646464646464646464646464646464646464646", signer.Config{Profile: ledger.ProfileTolar})
	require.NoError(t, err)

	manager := txmanager.NewSignedManager(f.node, s, txmanager.Options{Methods: node.TolarMethods()})
	poller := receipt.NewPoller(f.node, receipt.Config{
		Method:      "tol_getTransactionReceipt",
		Interval:    time.Millisecond,
		MaxAttempts: 3,
		BareHash:    true,
	})
	f.service = transfer.NewService(manager, poller)

	return f
}

func TestSendFunds(t *testing.T) {
	f := newFixture(t, map[string]any{
		"gas_used":    21000,
		"excepted":    false,
		"new_address": "54000000000000000000000000000000000000000023199e2b",
	})

	result, err := f.service.SendFunds(context.Background(), transfer.Request{
		To:    receiver,
		Value: decimal.RequireFromString("1.5"),
		Unit:  convert.Tol,
	})
	require.NoError(t, err)

	require.Len(t, f.sent, 1)
	tx := f.sent[0].Transaction
	assert.Equal(t, "1500000000000000000", tx.Amount.String())
	assert.Equal(t, int64(transfer.GasLimit), tx.GasLimit.Int64())
	assert.Equal(t, int64(4), tx.Nonce.Int64())
	assert.Equal(t, int64(1), tx.GasPrice.Int64())
	assert.True(t, tx.Receiver.Equal(receiver))

	require.NotNil(t, result.Receipt)
	assert.True(t, result.Receipt.IsStatusOK())
	assert.Nil(t, result.Receipt.NewAddress)
	assert.Equal(t, result.Pending.Hash, result.Receipt.TransactionHash)
}

func TestSendFundsDefaultsToAtto(t *testing.T) {
	f := newFixture(t, map[string]any{"excepted": false})

	_, err := f.service.SendFunds(context.Background(), transfer.Request{
		To:       receiver,
		Value:    decimal.NewFromInt(7),
		GasPrice: big.NewInt(0),
	})
	require.NoError(t, err)

	assert.Equal(t, "7", f.sent[0].Transaction.Amount.String())
	assert.Zero(t, f.node.Count("eth_gasPrice"))
}

func TestSendFundsInvalid(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.SendFunds(context.Background(), transfer.Request{
		To:    receiver,
		Value: decimal.RequireFromString("0.5"),
	})

	var invalid *ledger.InvalidTransactionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "amount", invalid.Field)

	_, err = f.service.SendFunds(context.Background(), transfer.Request{Value: decimal.NewFromInt(1)})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "receiver", invalid.Field)

	assert.Empty(t, f.node.Methods())
}

func TestSendFundsUnconfirmed(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.service.SendFunds(context.Background(), transfer.Request{
		To:    receiver,
		Value: decimal.NewFromInt(1),
	})

	var timeoutErr *ledger.ConfirmationTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.NotNil(t, result)
	assert.NotNil(t, result.Pending)
	assert.Nil(t, result.Receipt)
	assert.Equal(t, 3, f.node.Count("tol_getTransactionReceipt"))
}
