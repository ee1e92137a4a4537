package probe

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/test"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ethService struct{}

func (ethService) GasPrice() hexutil.Uint64 {
	return 1
}

func newNode(t *testing.T) string {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", ethService{}))

	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})

	return httpServer.URL
}

func TestCheckConfig(t *testing.T) {
	cfg := test.Config(t, "besu")
	require.NoError(t, checkConfig(cfg))

	cfg.Chain.Methods.Receipt = ""
	require.Error(t, checkConfig(cfg))

	cfg = test.Config(t, "tolar")
	cfg.Chain.AddressProfile = "bitcoin"
	require.Error(t, checkConfig(cfg))

	cfg = test.Config(t, "tolar")
	cfg.Node.URLs = nil
	require.Error(t, checkConfig(cfg))
}

func TestProbeNodes(t *testing.T) {
	cfg := test.Config(t, "tolar")
	cfg.Node.URLs = []string{newNode(t), newNode(t)}

	results, err := probeNodes(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Contains(t, r, "ready in")
	}
}

func TestProbeNodesReportsDeadNode(t *testing.T) {
	dead := httptest.NewServer(nil)
	deadURL := dead.URL
	dead.Close()

	cfg := test.Config(t, "tolar")
	cfg.Node.URLs = []string{newNode(t), deadURL}

	_, err := probeNodes(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), deadURL)
}
