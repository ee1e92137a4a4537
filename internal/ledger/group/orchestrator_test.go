package group_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/encoding"
	"github.com/dream-factory-code/go-tolar/internal/ledger/group"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/ledger/receipt"
	"github.com/dream-factory-code/go-tolar/internal/ledger/signer"
	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/dream-factory-code/go-tolar/internal/test"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4646464646464646464646464646464646464646464646464646464646464646"

var (
	groupID     = group.EncodeKey(bytes.Repeat([]byte{0x01}, 32))
	enclaveKey  = group.EncodeKey(bytes.Repeat([]byte{0x02}, 32))
	participant = group.EncodeKey(bytes.Repeat([]byte{0x03}, 32))
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// besuNode accepts private transactions and answers private receipts with
// lockStatus for lock calls and "0x1" for everything else.
type besuNode struct {
	*test.FakeNode

	mu       sync.Mutex
	nonce    int
	sent     []*ledger.SignedTransaction
	receipts map[ledger.Hash]string

	// receiptDelay slows every receipt query; set it before use.
	receiptDelay time.Duration
}

func newBesuNode(t *testing.T, lockStatus string) *besuNode {
	t.Helper()

	n := &besuNode{FakeNode: test.NewFakeNode(t), receipts: map[ledger.Hash]string{}}

	n.Handle("priv_getTransactionCount", func(_ []json.RawMessage) (any, error) {
		n.mu.Lock()
		defer n.mu.Unlock()

		return hexutil.EncodeUint64(uint64(n.nonce)), nil
	})
	n.Handle("eea_sendRawTransaction", func(params []json.RawMessage) (any, error) {
		var rawHex string
		require.NoError(t, json.Unmarshal(params[0], &rawHex))

		raw, err := hexutil.Decode(rawHex)
		require.NoError(t, err)

		signed, err := encoding.DecodeSigned(raw)
		require.NoError(t, err)

		n.mu.Lock()
		defer n.mu.Unlock()

		n.nonce++
		n.sent = append(n.sent, signed)

		status := "0x1"
		if bytes.HasPrefix(signed.Transaction.Payload, selector("lock()")) {
			status = lockStatus
		}
		n.receipts[signed.Hash] = status

		return signed.Hash.Hex(), nil
	})
	n.Handle("priv_getTransactionReceipt", func(params []json.RawMessage) (any, error) {
		var hashHex string
		require.NoError(t, json.Unmarshal(params[0], &hashHex))

		hash, err := ledger.ParseHash(hashHex)
		require.NoError(t, err)

		time.Sleep(n.receiptDelay)

		n.mu.Lock()
		defer n.mu.Unlock()

		status, ok := n.receipts[hash]
		if !ok {
			return nil, nil
		}

		return map[string]any{
			"transactionHash": hash.Hex(),
			"status":          status,
			"gasUsed":         "0x5208",
		}, nil
	})

	return n
}

func (n *besuNode) payloads() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([][]byte, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Transaction.Payload)
	}

	return out
}

func newOrchestrator(n node.Caller, m *metrics.Service) *group.Orchestrator {
	return group.NewOrchestrator(n, group.Config{
		Methods: node.BesuMethods(),
		Poller:  receipt.Config{Interval: time.Millisecond, MaxAttempts: 5},
		Metrics: m,
	})
}

func newRequest(t *testing.T) group.Request {
	t.Helper()

	s, err := signer.NewFromHex(testKey, signer.Config{Profile: ledger.ProfileEVM, ChainID: big.NewInt(2018)})
	require.NoError(t, err)

	return group.Request{
		GroupID:      groupID,
		Signer:       s,
		EnclaveKey:   enclaveKey,
		Participants: []string{participant},
	}
}

func TestAddParticipants(t *testing.T) {
	n := newBesuNode(t, "0x1")
	m := metrics.New()
	req := newRequest(t)

	pending, err := newOrchestrator(n, m).AddParticipants(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"priv_getTransactionCount",
		"eea_sendRawTransaction",
		"priv_getTransactionReceipt",
		"priv_getTransactionCount",
		"eea_sendRawTransaction",
	}, n.Methods())

	nonceCalls := n.Calls("priv_getTransactionCount")
	var sender, gid string
	nonceCalls[0].Param(t, 0, &sender)
	nonceCalls[0].Param(t, 1, &gid)
	assert.Equal(t, req.Signer.Address().String(), sender)
	assert.Equal(t, groupID, gid)

	payloads := n.payloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, selector("lock()"), payloads[0])
	assert.Equal(t, selector("addParticipants(bytes32,bytes32[])"), payloads[1][:4])

	assert.Equal(t, uint64(1), pending.Nonce.Uint64())
	assert.Equal(t, req.Signer.Address(), pending.Sender)

	final := n.sent[1]
	require.NotNil(t, final.Transaction.Privacy)
	assert.Equal(t, bytes.Repeat([]byte{0x02}, 32), final.Transaction.Privacy.PrivateFrom)
	assert.Equal(t, bytes.Repeat([]byte{0x01}, 32), final.Transaction.Privacy.PrivacyGroupID)
	assert.Equal(t, ledger.RestrictionRestricted, final.Transaction.Privacy.Restriction)
	assert.Equal(t, group.DefaultContractAddress, final.Transaction.Receiver.String())
	assert.Equal(t, int64(group.DefaultGasLimit), final.Transaction.GasLimit.Int64())

	assert.InDelta(t, 1, testutil.ToFloat64(m.GroupOutcomes().WithLabelValues("add", "sent")), 0)
}

func TestAddParticipantsLockExcepted(t *testing.T) {
	n := newBesuNode(t, "0x0")
	m := metrics.New()

	pending, err := newOrchestrator(n, m).AddParticipants(context.Background(), newRequest(t))
	require.Error(t, err)
	assert.Nil(t, pending)

	var lockErr *ledger.GroupLockFailedError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, groupID, lockErr.GroupID)
	assert.Equal(t, ledger.StatusExcepted, lockErr.Status)

	assert.Equal(t, 1, n.Count("eea_sendRawTransaction"))
	assert.Len(t, n.payloads(), 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GroupOutcomes().WithLabelValues("add", "lock_failed")), 0)
}

func TestAddParticipantsLockTimeout(t *testing.T) {
	n := newBesuNode(t, "0x1")
	n.Returns("priv_getTransactionReceipt", nil)

	_, err := newOrchestrator(n, nil).AddParticipants(context.Background(), newRequest(t))

	var timeoutErr *ledger.ConfirmationTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 5, n.Count("priv_getTransactionReceipt"))
	assert.Equal(t, 1, n.Count("eea_sendRawTransaction"))
}

func TestMalformedKeyMaterialMakesNoCalls(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*group.Request)
		field  string
	}{
		{"group id not base64", func(r *group.Request) { r.GroupID = "not base64!" }, "privacyGroupId"},
		{"group id too short", func(r *group.Request) { r.GroupID = group.EncodeKey([]byte{1, 2, 3}) }, "privacyGroupId"},
		{"enclave key", func(r *group.Request) { r.EnclaveKey = "###" }, "enclaveKey"},
		{"participant", func(r *group.Request) { r.Participants = []string{participant, "short"} }, "participant"},
		{"no participants", func(r *group.Request) { r.Participants = nil }, "participants"},
		{"no signer", func(r *group.Request) { r.Signer = nil }, "signer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newBesuNode(t, "0x1")
			req := newRequest(t)
			tt.mutate(&req)

			_, err := newOrchestrator(n, nil).AddParticipants(context.Background(), req)

			var invalid *ledger.InvalidTransactionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.Empty(t, n.Methods())
		})
	}
}

func TestRemoveParticipant(t *testing.T) {
	n := newBesuNode(t, "0x1")

	_, err := newOrchestrator(n, nil).RemoveParticipant(context.Background(), newRequest(t), participant)
	require.NoError(t, err)

	payloads := n.payloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, selector("lock()"), payloads[0])
	assert.Equal(t, selector("removeParticipant(bytes32,bytes32)"), payloads[1][:4])
	assert.Equal(t, bytes.Repeat([]byte{0x03}, 32), payloads[1][len(payloads[1])-32:])
}

func TestCreateGroupSkipsLock(t *testing.T) {
	n := newBesuNode(t, "0x0")

	pending, err := newOrchestrator(n, nil).CreateGroup(context.Background(), newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pending.Nonce.Uint64())

	assert.Equal(t, []string{"priv_getTransactionCount", "eea_sendRawTransaction"}, n.Methods())
	assert.Equal(t, selector("addParticipants(bytes32,bytes32[])"), n.payloads()[0][:4])
}

func TestSetLockState(t *testing.T) {
	for _, lock := range []bool{true, false} {
		n := newBesuNode(t, "0x1")

		_, err := newOrchestrator(n, nil).SetLockState(context.Background(), newRequest(t), lock)
		require.NoError(t, err)

		want := selector("unlock()")
		if lock {
			want = selector("lock()")
		}

		assert.Equal(t, [][]byte{want}, n.payloads())
		assert.Zero(t, n.Count("priv_getTransactionReceipt"))
	}
}

func TestWaitForReceipt(t *testing.T) {
	n := newBesuNode(t, "0x1")
	o := newOrchestrator(n, nil)

	pending, err := o.CreateGroup(context.Background(), newRequest(t))
	require.NoError(t, err)

	r, err := o.WaitForReceipt(context.Background(), pending.Hash)
	require.NoError(t, err)
	assert.True(t, r.IsStatusOK())
	assert.Equal(t, pending.Hash, r.TransactionHash)

	var param string
	n.Calls("priv_getTransactionReceipt")[0].Param(t, 0, &param)
	assert.Equal(t, pending.Hash.Hex(), param)
}

func addSequence(times int) []string {
	out := []string{}
	for i := 0; i < times; i++ {
		out = append(out,
			"priv_getTransactionCount",
			"eea_sendRawTransaction",
			"priv_getTransactionReceipt",
			"priv_getTransactionCount",
			"eea_sendRawTransaction",
		)
	}

	return out
}

func runConcurrently(t *testing.T, o *group.Orchestrator, reqs []group.Request) {
	t.Helper()

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))

	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = o.AddParticipants(context.Background(), reqs[i])
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestAddParticipantsSerialisedPerGroup(t *testing.T) {
	n := newBesuNode(t, "0x1")
	n.receiptDelay = 20 * time.Millisecond
	o := newOrchestrator(n, nil)

	reqs := []group.Request{newRequest(t), newRequest(t), newRequest(t)}
	runConcurrently(t, o, reqs)

	assert.Equal(t, addSequence(3), n.Methods())

	payloads := n.payloads()
	require.Len(t, payloads, 6)
	for i := 0; i < len(payloads); i += 2 {
		assert.Equal(t, selector("lock()"), payloads[i])
		assert.Equal(t, selector("addParticipants(bytes32,bytes32[])"), payloads[i+1][:4])
	}
}

func TestAddParticipantsSerialisedAcrossGroupIDSpelling(t *testing.T) {
	n := newBesuNode(t, "0x1")
	n.receiptDelay = 20 * time.Millisecond
	o := newOrchestrator(n, nil)

	padded := newRequest(t)
	padded.GroupID = "  " + groupID + "\n"

	runConcurrently(t, o, []group.Request{newRequest(t), padded})

	assert.Equal(t, addSequence(2), n.Methods())

	for _, c := range n.Calls("priv_getTransactionCount") {
		var gid string
		c.Param(t, 1, &gid)
		assert.Equal(t, groupID, gid)
	}
}

func TestLockFailureReportsNormalisedGroupID(t *testing.T) {
	n := newBesuNode(t, "0x0")

	req := newRequest(t)
	req.GroupID = " " + groupID

	_, err := newOrchestrator(n, nil).AddParticipants(context.Background(), req)

	var lockErr *ledger.GroupLockFailedError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, groupID, lockErr.GroupID)
}
