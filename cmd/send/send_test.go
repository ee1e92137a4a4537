package send

import (
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiver = "547e5f4552091a69125d5dfcb7b8c2659029395bdf697fcdd2"

func TestTransactionTransfer(t *testing.T) {
	o := &options{to: receiver, value: "1.5", unit: "tol", nonce: -1}

	tx, err := o.transaction()
	require.NoError(t, err)

	assert.Equal(t, ledger.KindTransfer, tx.Kind())
	assert.Equal(t, "1500000000000000000", tx.Amount.String())
	assert.Equal(t, int64(transfer.GasLimit), tx.GasLimit.Int64())
	assert.Nil(t, tx.Nonce)
	assert.Nil(t, tx.GasPrice)
	assert.Nil(t, tx.Privacy)
}

func TestTransactionDeploy(t *testing.T) {
	o := &options{value: "0", unit: "atto", data: "6080", gasPrice: "7", nonce: 3}

	tx, err := o.transaction()
	require.NoError(t, err)

	assert.True(t, tx.Receiver.IsEmpty())
	assert.Equal(t, []byte{0x60, 0x80}, tx.Payload)
	assert.Nil(t, tx.GasLimit)
	assert.Equal(t, int64(7), tx.GasPrice.Int64())
	assert.Equal(t, int64(3), tx.Nonce.Int64())
}

func TestTransactionPrivate(t *testing.T) {
	key := "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE="

	o := &options{to: receiver, value: "0", unit: "atto", nonce: -1, privateFrom: key, privacyGroup: key}

	tx, err := o.transaction()
	require.NoError(t, err)
	require.NotNil(t, tx.Privacy)
	assert.Len(t, tx.Privacy.PrivateFrom, 32)
	assert.Equal(t, ledger.RestrictionRestricted, tx.Privacy.Restriction)

	o.privateFrom = ""
	_, err = o.transaction()

	var invalid *ledger.InvalidTransactionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "privacy", invalid.Field)
}

func TestTransactionRejects(t *testing.T) {
	tests := []struct {
		name  string
		o     options
		field string
	}{
		{"fractional atto", options{value: "0.5", unit: "atto"}, "amount"},
		{"bad payload", options{value: "0", unit: "atto", data: "zz"}, "payload"},
		{"bad gas price", options{value: "0", unit: "atto", gasPrice: "0x10"}, "gasPrice"},
		{"bad group", options{value: "0", unit: "atto", privateFrom: "AA==", privacyGroup: "%%"}, "privacyGroupId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.o.transaction()

			var invalid *ledger.InvalidTransactionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
		})
	}

	_, err := (&options{value: "1", unit: "dogecoin"}).transaction()
	require.Error(t, err)
}

func TestEnsure0x(t *testing.T) {
	assert.Equal(t, "0xab", ensure0x("ab"))
	assert.Equal(t, "0xab", ensure0x("0xab"))
	assert.Equal(t, "0Xab", ensure0x("0Xab"))
}
