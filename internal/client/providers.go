package client

import (
	"context"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/group"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/ledger/receipt"
	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/pkg/errors"
)

func NewMetrics() *metrics.Service {
	return metrics.New()
}

// NewNodeClient dials the configured node URLs.
func NewNodeClient(ctx context.Context, cfg config.Client, m *metrics.Service) (*node.Client, func(), error) {
	c, err := node.Dial(ctx, node.Config{
		URLs:              cfg.Node.URLs,
		Timeout:           cfg.Node.Timeout,
		RequestsPerSecond: cfg.Node.RequestsPerSecond,
		Burst:             cfg.Node.Burst,
	}, m)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create node client")
	}

	return c, c.Close, nil
}

func pollerConfig(cfg config.Client, m *metrics.Service, method string) receipt.Config {
	return receipt.Config{
		Method:        method,
		Interval:      cfg.Poller.Interval,
		MaxAttempts:   cfg.Poller.MaxAttempts,
		Timeout:       cfg.Poller.Timeout,
		BareHash:      cfg.Chain.BareHash,
		NotFoundCodes: cfg.Chain.NotFoundCodes,
		Metrics:       m,
	}
}

func NewPoller(caller node.Caller, cfg config.Client, m *metrics.Service) *receipt.Poller {
	return receipt.NewPoller(caller, pollerConfig(cfg, m, cfg.Chain.Methods.Receipt))
}

func NewOrchestrator(caller node.Caller, cfg config.Client, m *metrics.Service, locks *util.KeyedMutex) (*group.Orchestrator, error) {
	var contract ledger.Address
	if cfg.Group.ContractAddress != "" {
		addr, err := ledger.ParseAddress(cfg.Group.ContractAddress)
		if err != nil {
			return nil, errors.Wrap(err, "invalid group contract address")
		}
		contract = addr
	}

	return group.NewOrchestrator(caller, group.Config{
		Methods:         cfg.Chain.Methods,
		ContractAddress: contract,
		GasLimit:        new(big.Int).SetUint64(cfg.Group.GasLimit),
		GasPrice:        new(big.Int).SetUint64(cfg.Group.GasPrice),
		MaxPayload:      cfg.Chain.MaxPayload,
		Poller:          pollerConfig(cfg, m, cfg.Chain.Methods.PrivateReceipt),
		Metrics:         m,
		SenderLocks:     locks,
	}), nil
}

func NewSenderLocks() *util.KeyedMutex {
	return util.NewKeyedMutex()
}
