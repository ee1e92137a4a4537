package ledger_test

import (
	"encoding/json"
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptTolarTransfer(t *testing.T) {
	raw := `{
		"hash": "4d2b5b4b3a6b1e5e08a6b8f0e7d4b6b5bdf79a0de0a4c1f1c21bd44c1d9b3fa1",
		"block_hash": "b2a5f5e11c5fa1a1d17c1d8d0e33f3c5d9b5c6e0b0a1e3d0c2a3b4c5d6e7f809",
		"transaction_index": 0,
		"sender_address": "5484c512b1cf3d45e7506a772b7358375acc571b2930d27deb",
		"receiver_address": "5457c2d11f05725f4fa5c0cd119b75415b95cd40d059dfc2d5",
		"value": "1",
		"gas": 21000,
		"gas_used": 21000,
		"gas_refunded": 0,
		"new_address": "54000000000000000000000000000000000000000023199e2b",
		"excepted": false,
		"logs": []
	}`

	var r ledger.Receipt
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.True(t, r.IsStatusOK())
	assert.Equal(t, uint64(21000), r.GasUsed)
	assert.Nil(t, r.NewAddress)
	assert.Equal(t, "4d2b5b4b3a6b1e5e08a6b8f0e7d4b6b5bdf79a0de0a4c1f1c21bd44c1d9b3fa1", r.TransactionHash.String())
}

func TestReceiptContractCreation(t *testing.T) {
	raw := `{
		"transactionHash": "0x4d2b5b4b3a6b1e5e08a6b8f0e7d4b6b5bdf79a0de0a4c1f1c21bd44c1d9b3fa1",
		"gasUsed": 180000,
		"newAddress": "540dc971237be2361e04c1643d57b572709db15e449a870fef",
		"excepted": false
	}`

	var r ledger.Receipt
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.True(t, r.IsStatusOK())
	assert.Equal(t, "540dc971237be2361e04c1643d57b572709db15e449a870fef", r.NewAddress.String())
}

func TestReceiptStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ledger.ReceiptStatus
	}{
		{"eth ok", `{"status":"0x1","gasUsed":"0x5208"}`, ledger.StatusOK},
		{"eth failure", `{"status":"0x0"}`, ledger.StatusExcepted},
		{"eth revert", `{"status":"0x0","revertReason":"0x08c379a0"}`, ledger.StatusReverted},
		{"tolar excepted", `{"excepted":true}`, ledger.StatusExcepted},
		{"bool status", `{"status":false}`, ledger.StatusExcepted},
		{"named", `{"status":"reverted"}`, ledger.StatusReverted},
		{"missing", `{}`, ledger.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r ledger.Receipt
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			assert.Equal(t, tt.want, r.Status)
		})
	}
}

func TestReceiptEthereumShape(t *testing.T) {
	raw := `{
		"transactionHash": "0x4d2b5b4b3a6b1e5e08a6b8f0e7d4b6b5bdf79a0de0a4c1f1c21bd44c1d9b3fa1",
		"blockHash": "0xb2a5f5e11c5fa1a1d17c1d8d0e33f3c5d9b5c6e0b0a1e3d0c2a3b4c5d6e7f809",
		"transactionIndex": "0x2",
		"gasUsed": "0x5208",
		"status": "0x1",
		"contractAddress": null,
		"logs": [{"address": "0x000000000000000000000000000000000000007c", "topics": [], "data": "0x"}]
	}`

	var r ledger.Receipt
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.Equal(t, uint64(2), r.TransactionIndex)
	assert.Equal(t, uint64(21000), r.GasUsed)
	assert.Nil(t, r.NewAddress)
	require.Len(t, r.Logs, 1)
	assert.Equal(t, "0x000000000000000000000000000000000000007c", r.Logs[0].Address.String())
}

func TestReceiptUnknownStatus(t *testing.T) {
	var r ledger.Receipt
	require.Error(t, json.Unmarshal([]byte(`{"status":"0x7"}`), &r))
}

func TestReceiptMarshalRoundTrip(t *testing.T) {
	in := ledger.Receipt{
		TransactionHash: ledger.Keccak256Hash([]byte("tx")),
		Status:          ledger.StatusReverted,
		GasUsed:         42,
		NewAddress:      ledger.MustParseAddress("540dc971237be2361e04c1643d57b572709db15e449a870fef"),
		RevertReason:    "out of gas",
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out ledger.Receipt
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
