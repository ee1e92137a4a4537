package config

import (
	"github.com/BurntSushi/toml"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/pkg/errors"
)

// Profile is a TOML chain profile overlaid on the environment config.
//
//	name = "besu"
//	chain_id = 2018
//	nonce_params = ["pending"]
//
//	[methods]
//	receipt = "eth_getTransactionReceipt"
//
//	[group]
//	contract_address = "0x000000000000000000000000000000000000007c"
type Profile struct {
	Name             string       `toml:"name"`
	AddressProfile   string       `toml:"address_profile"`
	ChainID          *int64       `toml:"chain_id"`
	MaxPayload       *int         `toml:"max_payload"`
	DefaultGasLimit  *uint64      `toml:"default_gas_limit"`
	NonceParams      []string     `toml:"nonce_params"`
	NodeAssignsNonce *bool        `toml:"node_assigns_nonce"`
	DelegatedStyle   string       `toml:"delegated_style"`
	BareHash         *bool        `toml:"bare_hash"`
	NotFoundCodes    []int        `toml:"not_found_codes"`
	Methods          node.Methods `toml:"methods"`
	Group            struct {
		ContractAddress string  `toml:"contract_address"`
		GasLimit        *uint64 `toml:"gas_limit"`
		GasPrice        *uint64 `toml:"gas_price"`
	} `toml:"group"`
}

// LoadProfile parses the TOML profile at path.
func LoadProfile(path string) (*Profile, error) {
	var p Profile

	meta, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode chain profile %s", path)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown keys in chain profile %s: %v", path, undecoded)
	}

	return &p, nil
}

// ApplyProfile overlays p on c. A profile that names a different chain
// resets the method defaults to that chain's.
func (c *Client) ApplyProfile(p *Profile) {
	if p == nil {
		return
	}

	if p.Name != "" && p.Name != c.Chain.Profile {
		c.Chain.Profile = p.Name
		c.Chain.Methods = node.Methods{}
		c.Chain.AddressProfile = ""
		c.Chain.NonceParams = nil
		c.Chain.DelegatedStyle = ""
		c.Chain.BareHash = false
	}

	if p.AddressProfile != "" {
		c.Chain.AddressProfile = p.AddressProfile
	}

	if p.ChainID != nil {
		c.Chain.ChainID = *p.ChainID
	}

	if p.MaxPayload != nil {
		c.Chain.MaxPayload = *p.MaxPayload
	}

	if p.DefaultGasLimit != nil {
		c.Chain.DefaultGasLimit = *p.DefaultGasLimit
	}

	if p.NonceParams != nil {
		c.Chain.NonceParams = p.NonceParams
	}

	if p.NodeAssignsNonce != nil {
		c.Chain.NodeAssignsNonce = *p.NodeAssignsNonce
	}

	if p.DelegatedStyle != "" {
		c.Chain.DelegatedStyle = p.DelegatedStyle
	}

	if p.NotFoundCodes != nil {
		c.Chain.NotFoundCodes = p.NotFoundCodes
	}

	c.Chain.Methods = p.Methods.Merge(c.Chain.Methods)

	if p.Group.ContractAddress != "" {
		c.Group.ContractAddress = p.Group.ContractAddress
	}

	if p.Group.GasLimit != nil {
		c.Group.GasLimit = *p.Group.GasLimit
	}

	if p.Group.GasPrice != nil {
		c.Group.GasPrice = *p.Group.GasPrice
	}

	c.Chain.ApplyDefaults()

	if p.BareHash != nil {
		c.Chain.BareHash = *p.BareHash
	}
}
