package node

// Methods names the JSON-RPC methods a chain profile exposes for the
// transaction pipeline.
type Methods struct {
	Nonce    string `toml:"nonce" json:"nonce"`
	GasPrice string `toml:"gas_price" json:"gasPrice"`
	SendRaw  string `toml:"send_raw" json:"sendRaw"`
	Receipt  string `toml:"receipt" json:"receipt"`

	// Delegated submissions, where the node signs with the unlocked sender
	// key. Empty kind specific names fall back to SendDelegated.
	SendDelegated     string `toml:"send_delegated" json:"sendDelegated"`
	DeployDelegated   string `toml:"deploy_delegated" json:"deployDelegated"`
	ExecuteDelegated  string `toml:"execute_delegated" json:"executeDelegated"`
	TransferDelegated string `toml:"transfer_delegated" json:"transferDelegated"`

	// Privacy group transactions.
	PrivateNonce   string `toml:"private_nonce" json:"privateNonce"`
	PrivateSendRaw string `toml:"private_send_raw" json:"privateSendRaw"`
	PrivateReceipt string `toml:"private_receipt" json:"privateReceipt"`
}

// TolarMethods are the method names of a Tolar node.
func TolarMethods() Methods {
	return Methods{
		Nonce:             "tol_getNonce",
		GasPrice:          "eth_gasPrice",
		SendRaw:           "eth_sendRawTransaction",
		Receipt:           "tol_getTransactionReceipt",
		SendDelegated:     "account_sendRawTransaction",
		DeployDelegated:   "account_sendDeployContractTransaction",
		ExecuteDelegated:  "account_sendExecuteFunctionTransaction",
		TransferDelegated: "account_sendFundTransferTransaction",
	}
}

// BesuMethods are the method names of a Besu node with privacy enabled.
func BesuMethods() Methods {
	return Methods{
		Nonce:          "eth_getTransactionCount",
		GasPrice:       "eth_gasPrice",
		SendRaw:        "eth_sendRawTransaction",
		Receipt:        "eth_getTransactionReceipt",
		SendDelegated:  "personal_sendTransaction",
		PrivateNonce:   "priv_getTransactionCount",
		PrivateSendRaw: "eea_sendRawTransaction",
		PrivateReceipt: "priv_getTransactionReceipt",
	}
}

// MethodsForProfile returns the defaults of a named chain profile.
func MethodsForProfile(name string) Methods {
	if name == "besu" {
		return BesuMethods()
	}

	return TolarMethods()
}

// Merge returns m with every empty field taken from defaults.
func (m Methods) Merge(defaults Methods) Methods {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}

		return v
	}

	return Methods{
		Nonce:             pick(m.Nonce, defaults.Nonce),
		GasPrice:          pick(m.GasPrice, defaults.GasPrice),
		SendRaw:           pick(m.SendRaw, defaults.SendRaw),
		Receipt:           pick(m.Receipt, defaults.Receipt),
		SendDelegated:     pick(m.SendDelegated, defaults.SendDelegated),
		DeployDelegated:   pick(m.DeployDelegated, defaults.DeployDelegated),
		ExecuteDelegated:  pick(m.ExecuteDelegated, defaults.ExecuteDelegated),
		TransferDelegated: pick(m.TransferDelegated, defaults.TransferDelegated),
		PrivateNonce:      pick(m.PrivateNonce, defaults.PrivateNonce),
		PrivateSendRaw:    pick(m.PrivateSendRaw, defaults.PrivateSendRaw),
		PrivateReceipt:    pick(m.PrivateReceipt, defaults.PrivateReceipt),
	}
}

// Private returns a copy whose nonce, raw submission and receipt methods
// are the privacy group variants.
func (m Methods) Private() Methods {
	m.Nonce = m.PrivateNonce
	m.SendRaw = m.PrivateSendRaw
	m.Receipt = m.PrivateReceipt

	return m
}
