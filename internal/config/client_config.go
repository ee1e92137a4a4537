package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "TOLAR"

type Node struct {
	URLs              []string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Chain describes the node family the client talks to.
type Chain struct {
	// Profile is "tolar" or "besu" and selects the method defaults.
	Profile        string
	AddressProfile string
	// ChainID binds signatures to a chain; 0 disables replay protection.
	ChainID          int64
	MaxPayload       int
	DefaultGasLimit  uint64
	NonceParams      []string
	NodeAssignsNonce bool
	DelegatedStyle   string
	BareHash         bool
	NotFoundCodes    []int
	Methods          node.Methods
}

type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// Timeout is a wall-clock ceiling; 0 disables it.
	Timeout time.Duration
}

type Group struct {
	ContractAddress string
	GasLimit        uint64
	GasPrice        uint64
}

type Logger struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
	FilePath           string
	MaxSizeMB          int
	MaxBackups         int
	MaxAgeDays         int
}

type Metrics struct {
	// ListenAddress serves /metrics while a command runs when set.
	ListenAddress string
}

type KeyStore struct {
	Dir        string
	LightKDF   bool
	Derivation string
}

// Client is the root configuration.
type Client struct {
	Node     Node
	Chain    Chain
	Poller   Poller
	Group    Group
	Logger   Logger
	Metrics  Metrics
	KeyStore KeyStore
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.urls", "http://127.0.0.1:5001")
	v.SetDefault("node.timeout", 30*time.Second)
	v.SetDefault("node.requests_per_second", 0)
	v.SetDefault("node.burst", 1)

	v.SetDefault("chain.profile", "tolar")
	v.SetDefault("chain.address_profile", "")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.max_payload", 128*1024)
	v.SetDefault("chain.default_gas_limit", 0)
	v.SetDefault("chain.nonce_params", "")
	v.SetDefault("chain.node_assigns_nonce", false)
	v.SetDefault("chain.delegated_style", "")
	v.SetDefault("chain.not_found_codes", "")

	v.SetDefault("poller.interval", time.Second)
	v.SetDefault("poller.max_attempts", 15)
	v.SetDefault("poller.timeout", 0)

	v.SetDefault("group.contract_address", "")
	v.SetDefault("group.gas_limit", 3_000_000)
	v.SetDefault("group.gas_price", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.pretty_print_console", true)
	v.SetDefault("logger.file_path", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("metrics.listen_address", "")

	v.SetDefault("keystore.dir", "./keystore")
	v.SetDefault("keystore.light_kdf", false)
	v.SetDefault("keystore.derivation", "m/44'/60'/0'/0/0")
}

// DefaultClientConfigFromEnv builds the configuration from TOLAR_* variables,
// loading ./.env first when present.
func DefaultClientConfigFromEnv() Client {
	if err := gotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	level, err := zerolog.ParseLevel(v.GetString("logger.level"))
	if err != nil {
		log.Warn().Err(err).Str("level", v.GetString("logger.level")).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}

	cfg := Client{
		Node: Node{
			URLs:              splitList(v.GetString("node.urls")),
			Timeout:           v.GetDuration("node.timeout"),
			RequestsPerSecond: v.GetFloat64("node.requests_per_second"),
			Burst:             v.GetInt("node.burst"),
		},
		Chain: Chain{
			Profile:          strings.ToLower(v.GetString("chain.profile")),
			AddressProfile:   v.GetString("chain.address_profile"),
			ChainID:          v.GetInt64("chain.chain_id"),
			MaxPayload:       v.GetInt("chain.max_payload"),
			DefaultGasLimit:  v.GetUint64("chain.default_gas_limit"),
			NonceParams:      splitList(v.GetString("chain.nonce_params")),
			NodeAssignsNonce: v.GetBool("chain.node_assigns_nonce"),
			DelegatedStyle:   v.GetString("chain.delegated_style"),
			NotFoundCodes:    splitInts(v.GetString("chain.not_found_codes")),
			Methods: node.Methods{
				Nonce:             v.GetString("chain.methods.nonce"),
				GasPrice:          v.GetString("chain.methods.gas_price"),
				SendRaw:           v.GetString("chain.methods.send_raw"),
				Receipt:           v.GetString("chain.methods.receipt"),
				SendDelegated:     v.GetString("chain.methods.send_delegated"),
				DeployDelegated:   v.GetString("chain.methods.deploy_delegated"),
				ExecuteDelegated:  v.GetString("chain.methods.execute_delegated"),
				TransferDelegated: v.GetString("chain.methods.transfer_delegated"),
				PrivateNonce:      v.GetString("chain.methods.private_nonce"),
				PrivateSendRaw:    v.GetString("chain.methods.private_send_raw"),
				PrivateReceipt:    v.GetString("chain.methods.private_receipt"),
			},
		},
		Poller: Poller{
			Interval:    v.GetDuration("poller.interval"),
			MaxAttempts: v.GetInt("poller.max_attempts"),
			Timeout:     v.GetDuration("poller.timeout"),
		},
		Group: Group{
			ContractAddress: v.GetString("group.contract_address"),
			GasLimit:        v.GetUint64("group.gas_limit"),
			GasPrice:        v.GetUint64("group.gas_price"),
		},
		Logger: Logger{
			Level:              level,
			PrettyPrintConsole: v.GetBool("logger.pretty_print_console"),
			FilePath:           v.GetString("logger.file_path"),
			MaxSizeMB:          v.GetInt("logger.max_size_mb"),
			MaxBackups:         v.GetInt("logger.max_backups"),
			MaxAgeDays:         v.GetInt("logger.max_age_days"),
		},
		Metrics: Metrics{
			ListenAddress: v.GetString("metrics.listen_address"),
		},
		KeyStore: KeyStore{
			Dir:        v.GetString("keystore.dir"),
			LightKDF:   v.GetBool("keystore.light_kdf"),
			Derivation: v.GetString("keystore.derivation"),
		},
	}

	cfg.Chain.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills everything the chain profile implies and the
// environment left unset.
func (c *Chain) ApplyDefaults() {
	c.Methods = c.Methods.Merge(node.MethodsForProfile(c.Profile))

	switch c.Profile {
	case "besu":
		if c.AddressProfile == "" {
			c.AddressProfile = "evm"
		}

		if len(c.NonceParams) == 0 {
			c.NonceParams = []string{"pending"}
		}

		if c.DelegatedStyle == "" {
			c.DelegatedStyle = "ethereum"
		}
	default:
		if c.AddressProfile == "" {
			c.AddressProfile = "tolar"
		}

		if c.DelegatedStyle == "" {
			c.DelegatedStyle = "tolar"
		}

		c.BareHash = true
	}
}

func splitList(s string) []string {
	out := []string{}

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func splitInts(s string) []int {
	out := []int{}

	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Warn().Str("value", part).Msg("Ignoring non-numeric error code")
			continue
		}
		out = append(out, n)
	}

	return out
}
