package client

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/group"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/ledger/receipt"
	"github.com/dream-factory-code/go-tolar/internal/ledger/signer"
	"github.com/dream-factory-code/go-tolar/internal/ledger/transfer"
	"github.com/dream-factory-code/go-tolar/internal/ledger/txmanager"
	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/rs/zerolog/log"
)

// Client keeps every pipeline component; wire builds it (see wire.go).
type Client struct {
	Config       config.Client
	Caller       node.Caller
	Metrics      *metrics.Service
	Poller       *receipt.Poller
	Orchestrator *group.Orchestrator
	SenderLocks  *util.KeyedMutex
}

func newClientWithComponents(
	cfg config.Client,
	caller node.Caller,
	m *metrics.Service,
	poller *receipt.Poller,
	orchestrator *group.Orchestrator,
	locks *util.KeyedMutex,
) *Client {
	return &Client{
		Config:       cfg,
		Caller:       caller,
		Metrics:      m,
		Poller:       poller,
		Orchestrator: orchestrator,
		SenderLocks:  locks,
	}
}

// AddressProfile is the configured address layout.
func (c *Client) AddressProfile() ledger.AddressProfile {
	profile, err := ledger.ParseAddressProfile(c.Config.Chain.AddressProfile)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to EVM address profile")
	}

	return profile
}

func (c *Client) chainID() *big.Int {
	if c.Config.Chain.ChainID <= 0 {
		return nil
	}

	return big.NewInt(c.Config.Chain.ChainID)
}

// NewSigner creates a local signer with the configured chain settings.
func (c *Client) NewSigner(key *ecdsa.PrivateKey) (*signer.Signer, error) {
	return signer.New(key, signer.Config{
		Profile:    c.AddressProfile(),
		ChainID:    c.chainID(),
		MaxPayload: c.Config.Chain.MaxPayload,
	})
}

func (c *Client) managerOptions() txmanager.Options {
	params := make([]any, 0, len(c.Config.Chain.NonceParams))
	for _, p := range c.Config.Chain.NonceParams {
		params = append(params, p)
	}

	var gasLimit *big.Int
	if c.Config.Chain.DefaultGasLimit > 0 {
		gasLimit = new(big.Int).SetUint64(c.Config.Chain.DefaultGasLimit)
	}

	return txmanager.Options{
		Methods:          c.Config.Chain.Methods,
		DefaultGasLimit:  gasLimit,
		MaxPayload:       c.Config.Chain.MaxPayload,
		NonceParams:      params,
		NodeAssignsNonce: c.Config.Chain.NodeAssignsNonce,
		DelegatedStyle:   txmanager.DelegatedStyle(c.Config.Chain.DelegatedStyle),
		SenderLocks:      c.SenderLocks,
		Metrics:          c.Metrics,
	}
}

// SignedManager returns a self-signed mode manager for s.
func (c *Client) SignedManager(s txmanager.TransactionSigner) *txmanager.SignedManager {
	return txmanager.NewSignedManager(c.Caller, s, c.managerOptions())
}

// PrivateManager returns a self-signed manager that submits to the privacy
// group through the chain's private methods.
func (c *Client) PrivateManager(s txmanager.TransactionSigner, privacyGroupID string) *txmanager.SignedManager {
	options := c.managerOptions()
	options.Methods = options.Methods.Private()
	options.NonceParams = []any{privacyGroupID}

	return txmanager.NewSignedManager(c.Caller, s, options)
}

// DelegatedManager returns a manager that lets the node sign for sender.
func (c *Client) DelegatedManager(sender ledger.Address, password string) *txmanager.DelegatedManager {
	return txmanager.NewDelegatedManager(c.Caller, sender, password, c.managerOptions())
}

// Transfers returns a funds transfer service sending through m.
func (c *Client) Transfers(m txmanager.Manager) *transfer.Service {
	return transfer.NewService(m, c.Poller)
}
