package convert_test

import (
	"math/big"
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/ledger/convert"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		value string
		unit  convert.Unit
		want  string
	}{
		{"1", convert.Tol, "1000000000000000000"},
		{"1.5", convert.Tol, "1500000000000000000"},
		{"0.000000000000000001", convert.Tol, "1"},
		{"21", convert.Nano, "21000000000"},
		{"42", convert.Atto, "42"},
		{"0", convert.GTol, "0"},
		{" 2 ", convert.KTol, "2000000000000000000000"},
		{"1e3", convert.Milli, "1000000000000000000"},
	}

	for _, tt := range tests {
		got, err := convert.ParseAmount(tt.value, tt.unit)
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.want, got.String(), "%s %s", tt.value, tt.unit)
	}
}

func TestParseAmountRejects(t *testing.T) {
	_, err := convert.ParseAmount("0.5", convert.Atto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non decimal value")

	_, err = convert.ParseAmount("0.0000000000000000001", convert.Tol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non decimal value")

	_, err = convert.ParseAmount("-1", convert.Tol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative value")

	_, err = convert.ParseAmount("one", convert.Tol)
	require.Error(t, err)
}

func TestParseUnit(t *testing.T) {
	for name, want := range map[string]convert.Unit{
		"tol":   convert.Tol,
		"ETHER": convert.Tol,
		"Gwei":  convert.Nano,
		"wei":   convert.Atto,
		"mtol":  convert.MTol,
	} {
		got, err := convert.ParseUnit(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := convert.ParseUnit("satoshi")
	require.Error(t, err)
}

func TestFromAtto(t *testing.T) {
	atto, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)

	assert.True(t, decimal.RequireFromString("1.5").Equal(convert.FromAtto(atto, convert.Tol)))
	assert.True(t, decimal.RequireFromString("1500000000").Equal(convert.FromAtto(atto, convert.Nano)))
	assert.True(t, decimal.Zero.Equal(convert.FromAtto(nil, convert.Tol)))
}
