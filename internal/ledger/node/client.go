// Package node is the JSON-RPC boundary of the transaction pipeline.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Caller is the single operation the pipeline needs from a node. Failures
// are *ledger.ProtocolError when the node answered with a JSON-RPC error and
// *ledger.NodeCommunicationError otherwise.
type Caller interface {
	Call(ctx context.Context, result any, method string, params ...any) error
}

// Config configures a Client.
type Config struct {
	URLs []string
	// Timeout bounds every single call; 0 disables it.
	Timeout time.Duration
	// RequestsPerSecond limits outgoing calls; 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Client is a Caller over go-ethereum's rpc client. It is safe for
// concurrent use by many sends and polls.
//
// Several URLs may be configured. A call that fails with a transport error
// moves the client on to the next URL for subsequent calls; the failed call
// itself is not retried.
type Client struct {
	urls    []string
	clients []*rpc.Client
	mu      sync.RWMutex
	current int

	timeout time.Duration
	limiter *rate.Limiter
	metrics *metrics.Service
}

// Dial creates a Client. HTTP endpoints connect lazily, so an unreachable
// node surfaces on the first call.
func Dial(ctx context.Context, cfg Config, m *metrics.Service) (*Client, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	clients := make([]*rpc.Client, 0, len(cfg.URLs))
	for _, url := range cfg.URLs {
		client, err := rpc.DialContext(ctx, url)
		if err != nil {
			log.Warn().
				Str("url", url).
				Err(err).
				Msg("Failed to connect to RPC node, will retry on use")
			clients = append(clients, nil)

			continue
		}
		clients = append(clients, client)
	}

	if allClientsNil(clients) {
		return nil, errors.New("failed to connect to any RPC node")
	}

	c := newClient(cfg, m)
	c.urls = cfg.URLs
	c.clients = clients

	return c, nil
}

// NewClient wraps already connected rpc clients, e.g. in-process ones.
func NewClient(cfg Config, m *metrics.Service, clients ...*rpc.Client) *Client {
	c := newClient(cfg, m)
	c.clients = clients
	c.urls = make([]string, len(clients))

	for i := range clients {
		c.urls[i] = "inproc"
	}

	return c
}

func newClient(cfg Config, m *metrics.Service) *Client {
	c := &Client{
		timeout: cfg.Timeout,
		metrics: m,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return c
}

func allClientsNil(clients []*rpc.Client) bool {
	for _, client := range clients {
		if client != nil {
			return false
		}
	}

	return true
}

// Close closes all connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		if client != nil {
			client.Close()
		}
	}
}

// Call performs one JSON-RPC round trip.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &ledger.NodeCommunicationError{Method: method, Err: errors.Wrap(err, "rate limiter")}
		}
	}

	idx, client, err := c.getClient(ctx)
	if err != nil {
		return &ledger.NodeCommunicationError{Method: method, Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err = client.CallContext(ctx, result, method, params...)
	took := time.Since(start)

	c.metrics.ObserveRPC(method, took, err)

	logger := util.LogFromContext(ctx)
	if err == nil {
		logger.Debug().Str("method", method).Dur("took", took).Msg("RPC call")
		return nil
	}

	classified := Classify(method, err)

	var commErr *ledger.NodeCommunicationError
	if errors.As(classified, &commErr) && ctx.Err() == nil {
		c.failover(idx)
	}

	logger.Debug().Str("method", method).Dur("took", took).Err(classified).Msg("RPC call failed")

	return classified
}

// Classify maps an rpc client error onto the ledger error taxonomy.
func Classify(method string, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		protoErr := &ledger.ProtocolError{
			Method:  method,
			Code:    rpcErr.ErrorCode(),
			Message: rpcErr.Error(),
		}

		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			protoErr.Data = dataErr.ErrorData()
		}

		return protoErr
	}

	return &ledger.NodeCommunicationError{Method: method, Err: err}
}

func (c *Client) getClient(ctx context.Context) (int, *rpc.Client, error) {
	c.mu.RLock()
	idx := c.current
	client := c.clients[idx]
	c.mu.RUnlock()

	if client != nil {
		return idx, client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.clients); i++ {
		idx := (c.current + i) % len(c.clients)
		if c.clients[idx] != nil {
			c.current = idx
			return idx, c.clients[idx], nil
		}

		dialed, err := rpc.DialContext(ctx, c.urls[idx])
		if err != nil {
			log.Warn().
				Str("url", c.urls[idx]).
				Err(err).
				Msg("Failed to reconnect to RPC node")

			continue
		}

		c.clients[idx] = dialed
		c.current = idx

		return idx, dialed, nil
	}

	return 0, nil, errors.New("all RPC clients are unavailable")
}

// failover moves subsequent calls to the next URL after a transport error
// on failed.
func (c *Client) failover(failed int) {
	if len(c.clients) < 2 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != failed {
		return
	}

	c.current = (failed + 1) % len(c.clients)

	log.Warn().
		Str("failed_url", c.urls[failed]).
		Str("next_url", c.urls[c.current]).
		Msg("RPC node unavailable, switching to next node")
}
