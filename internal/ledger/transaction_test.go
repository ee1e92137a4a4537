package ledger_test

import (
	"math/big"
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionKind(t *testing.T) {
	receiver := ledger.MustParseAddress("5457c2d11f05725f4fa5c0cd119b75415b95cd40d059dfc2d5")

	assert.Equal(t, ledger.KindDeploy, (&ledger.Transaction{Payload: []byte{0x60}}).Kind())
	assert.Equal(t, ledger.KindCall, (&ledger.Transaction{Receiver: receiver, Payload: []byte{0x01}}).Kind())
	assert.Equal(t, ledger.KindTransfer, (&ledger.Transaction{Receiver: receiver, Amount: big.NewInt(1)}).Kind())
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name  string
		tx    ledger.Transaction
		field string
	}{
		{"negative amount", ledger.Transaction{Amount: big.NewInt(-1)}, "amount"},
		{"negative nonce", ledger.Transaction{Nonce: big.NewInt(-1)}, "nonce"},
		{"negative gas price", ledger.Transaction{GasPrice: big.NewInt(-5)}, "gasPrice"},
		{"oversized payload", ledger.Transaction{Payload: make([]byte, 11)}, "payload"},
		{"bad receiver", ledger.Transaction{Receiver: ledger.Address{0x54, 0x01}}, "address"},
		{"privacy without group", ledger.Transaction{Privacy: &ledger.Privacy{PrivateFrom: []byte{1}}}, "privacyGroupId"},
		{"privacy without enclave key", ledger.Transaction{Privacy: &ledger.Privacy{PrivacyGroupID: []byte{1}}}, "privateFrom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate(10)

			var txErr *ledger.InvalidTransactionError
			require.ErrorAs(t, err, &txErr)
			assert.Equal(t, tt.field, txErr.Field)
		})
	}

	ok := ledger.Transaction{Payload: make([]byte, 10), Amount: big.NewInt(0)}
	require.NoError(t, ok.Validate(10))
	require.NoError(t, (&ledger.Transaction{Payload: make([]byte, 1000)}).Validate(0))
}

func TestTransactionCopy(t *testing.T) {
	tx := &ledger.Transaction{
		Receiver: ledger.MustParseAddress("5457c2d11f05725f4fa5c0cd119b75415b95cd40d059dfc2d5"),
		Amount:   big.NewInt(7),
		Payload:  []byte{1, 2, 3},
		Privacy:  &ledger.Privacy{PrivateFrom: []byte{1}, PrivacyGroupID: []byte{2}, Restriction: ledger.RestrictionRestricted},
	}

	cpy := tx.Copy()
	cpy.Amount.SetInt64(8)
	cpy.Payload[0] = 9
	cpy.Privacy.PrivateFrom[0] = 9
	cpy.Receiver[1] = 0

	assert.Equal(t, int64(7), tx.Amount.Int64())
	assert.Equal(t, byte(1), tx.Payload[0])
	assert.Equal(t, byte(1), tx.Privacy.PrivateFrom[0])
	assert.Equal(t, "5457c2d11f05725f4fa5c0cd119b75415b95cd40d059dfc2d5", tx.Receiver.String())
	assert.Nil(t, cpy.Nonce)
}

func TestGroupLockFailedErrorMessage(t *testing.T) {
	err := &ledger.GroupLockFailedError{GroupID: "group", Status: ledger.StatusExcepted}
	assert.Contains(t, err.Error(), "Lock transaction failed - the group may already be locked")
}
