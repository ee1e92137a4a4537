package test

import (
	"testing"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/client"
	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/rs/zerolog"
)

// Config returns an environment independent configuration for profile with
// a fast poller.
func Config(t *testing.T, profile string) config.Client {
	t.Helper()

	cfg := config.DefaultClientConfigFromEnv()
	cfg.Chain = config.Chain{
		Profile:    profile,
		MaxPayload: 128 * 1024,
	}
	cfg.Chain.ApplyDefaults()
	cfg.Poller = config.Poller{
		Interval:    time.Millisecond,
		MaxAttempts: 15,
	}
	cfg.Group = config.Group{GasLimit: 3_000_000}
	cfg.Logger.Level = zerolog.Disabled
	cfg.Metrics.ListenAddress = ""

	return cfg
}

// WithTestClient runs closure with a client backed by a FakeNode.
func WithTestClient(t *testing.T, cfg config.Client, closure func(c *client.Client, node *FakeNode)) {
	t.Helper()

	node := NewFakeNode(t)

	c, err := client.InitClientWithCaller(cfg, node)
	if err != nil {
		t.Fatalf("failed to init client: %v", err)
	}

	closure(c, node)
}
