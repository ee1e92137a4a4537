package group

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOutputKeepsHashOnWaitFailure(t *testing.T) {
	hash := ledger.Keccak256Hash([]byte("mutation"))
	out := &output{GroupID: "AQ==", Hash: hash}

	waitErr := errors.Wrap(&ledger.ConfirmationTimeoutError{
		TransactionHash: hash,
		Attempts:        15,
		Interval:        time.Second,
	}, "failed to confirm group mutation")

	var buf bytes.Buffer
	err := writeOutput(&buf, out, waitErr)

	var timeoutErr *ledger.ConfirmationTimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	var printed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &printed))
	assert.Equal(t, hash.Hex(), printed["hash"])
	assert.Equal(t, "AQ==", printed["groupId"])
	assert.NotContains(t, printed, "receipt")
}

func TestWriteOutputNothingToPrint(t *testing.T) {
	var buf bytes.Buffer

	err := writeOutput(&buf, nil, errors.New("remove takes exactly one --participant"))
	require.Error(t, err)
	assert.Empty(t, buf.String())

	require.NoError(t, writeOutput(&buf, &output{}, nil))
	assert.NotEmpty(t, buf.String())
}
