//go:build wireinject

package client

import (
	"context"

	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/google/wire"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// clientSet groups the providers required for a node-backed client.
var clientSet = wire.NewSet(
	newClientWithComponents,
	NewMetrics,
	NewPoller,
	NewOrchestrator,
	NewSenderLocks,
)

var nodeSet = wire.NewSet(
	NewNodeClient,
	wire.Bind(new(node.Caller), new(*node.Client)),
)

// InitClient dials the configured nodes and returns a ready Client.
// The returned cleanup closes the node connections.
func InitClient(
	_ context.Context,
	_ config.Client,
) (*Client, func(), error) {
	wire.Build(clientSet, nodeSet)
	return new(Client), nil, nil
}

// InitClientWithCaller returns a Client talking through the given caller.
func InitClientWithCaller(
	_ config.Client,
	_ node.Caller,
) (*Client, error) {
	wire.Build(clientSet)
	return new(Client), nil
}
