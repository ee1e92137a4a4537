package ledger_test

import (
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressFromPublicKey(t *testing.T) {
	tests := []struct {
		key   string
		evm   string
		tolar string
	}{
		{
			key:   "0000000000000000000000000000000000000000000000000000000000000001",
			evm:   "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf",
			tolar: "547e5f4552091a69125d5dfcb7b8c2659029395bdf697fcdd2",
		},
		{
			key:   "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
			evm:   "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23",
			tolar: "542c7536e3605d9c16a7a3d7b1898e529396a65c2351ce183d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.evm, func(t *testing.T) {
			key, err := crypto.HexToECDSA(tt.key)
			require.NoError(t, err)
			pub := crypto.FromECDSAPub(&key.PublicKey)

			evm, err := ledger.AddressFromPublicKey(pub, ledger.ProfileEVM)
			require.NoError(t, err)
			assert.Equal(t, tt.evm, evm.String())

			tolar, err := ledger.AddressFromPublicKey(pub, ledger.ProfileTolar)
			require.NoError(t, err)
			assert.Equal(t, tt.tolar, tolar.String())
			assert.Equal(t, ledger.ProfileTolar, tolar.Profile())

			// without the 0x04 prefix
			tolar64, err := ledger.AddressFromPublicKey(pub[1:], ledger.ProfileTolar)
			require.NoError(t, err)
			assert.True(t, tolar.Equal(tolar64))
		})
	}
}

func TestAddressFromPublicKeyInvalidLength(t *testing.T) {
	_, err := ledger.AddressFromPublicKey(make([]byte, 33), ledger.ProfileEVM)

	var keyErr *ledger.KeyFormatError
	require.ErrorAs(t, err, &keyErr)
}

func TestParseAddress(t *testing.T) {
	valid := []string{
		"54000000000000000000000000000000000000000023199e2b",
		"5484c512b1cf3d45e7506a772b7358375acc571b2930d27deb",
		"0x540dc971237be2361e04c1643d57b572709db15e449a870fef",
		"5457c2d11f05725f4fa5c0cd119b75415b95cd40d059dfc2d5",
		"0x000000000000000000000000000000000000007c",
		"7E5F4552091A69125D5DFCB7B8C2659029395BDF",
	}

	for _, s := range valid {
		addr, err := ledger.ParseAddress(s)
		require.NoError(t, err, s)
		assert.False(t, addr.IsEmpty())
	}

	invalid := map[string]string{
		"bad checksum": "5484c512b1cf3d45e7506a772b7358375acc571b2930d27dec",
		"bad prefix":   "5584c512b1cf3d45e7506a772b7358375acc571b2930d27deb",
		"bad length":   "5484c512b1cf3d45e7506a772b73583",
		"not hex":      "zz84c512b1cf3d45e7506a772b7358375acc571b2930d27deb",
	}

	for name, s := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.ParseAddress(s)

			var txErr *ledger.InvalidTransactionError
			require.ErrorAs(t, err, &txErr)
			assert.Equal(t, "address", txErr.Field)
		})
	}
}

func TestAddressZeroAndEmpty(t *testing.T) {
	zero := ledger.MustParseAddress("54000000000000000000000000000000000000000023199e2b")
	assert.True(t, zero.IsZero())
	assert.False(t, zero.IsEmpty())

	var empty ledger.Address
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsZero())
	assert.Equal(t, "", empty.String())

	addr := ledger.MustParseAddress("5484c512b1cf3d45e7506a772b7358375acc571b2930d27deb")
	assert.False(t, addr.IsZero())
}

func TestAddressText(t *testing.T) {
	addr := ledger.MustParseAddress("0x5484c512b1cf3d45e7506a772b7358375acc571b2930d27deb")

	text, err := addr.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5484c512b1cf3d45e7506a772b7358375acc571b2930d27deb", string(text))

	var decoded ledger.Address
	require.NoError(t, decoded.UnmarshalText(text))
	assert.True(t, addr.Equal(decoded))

	require.NoError(t, decoded.UnmarshalText([]byte("")))
	assert.Nil(t, decoded)
}

func TestParseAddressProfile(t *testing.T) {
	p, err := ledger.ParseAddressProfile("Tolar")
	require.NoError(t, err)
	assert.Equal(t, ledger.ProfileTolar, p)
	assert.Equal(t, 25, p.Length())

	p, err = ledger.ParseAddressProfile("evm")
	require.NoError(t, err)
	assert.Equal(t, 20, p.Length())

	_, err = ledger.ParseAddressProfile("bitcoin")
	require.Error(t, err)
}
