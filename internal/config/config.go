package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Tree       TreeConfig       `yaml:"tree"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Prover     ProverConfig     `yaml:"prover"`
	Subgraph   SubgraphConfig   `yaml:"subgraph"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MetricsAllowedIPs may scrape /metrics besides loopback; IPs or CIDRs
	MetricsAllowedIPs []string `yaml:"metricsAllowedIps"`
}

// DatabaseConfig empty DSN keeps leaves in memory
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig empty URL disables event publishing
type NATSConfig struct {
	URL             string `yaml:"url"`
	Timeout         int    `yaml:"timeout"`
	ReconnectWait   int    `yaml:"reconnect_wait"`
	MaxReconnects   int    `yaml:"max_reconnects"`
	EnableJetStream bool   `yaml:"enable_jetstream"`
	StreamName      string `yaml:"stream_name"`
	SubjectPrefix   string `yaml:"subject_prefix"`
}

// BlockchainConfig Blockchain configuration
type BlockchainConfig struct {
	DefaultNetwork string                   `yaml:"default_network"`
	Networks       map[string]NetworkConfig `yaml:"networks"`
}

// NetworkConfig one EVM network hosting a Twister contract
type NetworkConfig struct {
	ChainID         int      `yaml:"chainId"`
	Name            string   `yaml:"name"`
	Preset          string   `yaml:"preset"`
	RPCEndpoints    []string `yaml:"rpcEndpoints"`
	ExplorerURL     string   `yaml:"explorerUrl"`
	TwisterContract string   `yaml:"twisterContract"`
	StartBlock      uint64   `yaml:"startBlock"`
	BlockRange      uint64   `yaml:"blockRange"`
	PrivateKey      string   `yaml:"privateKey"` // hex, without 0x prefix
	GasLimit        uint64   `yaml:"gasLimit"`
	Confirmations   uint64   `yaml:"confirmations"`
	Enabled         bool     `yaml:"enabled"`
}

// TreeConfig accumulator shape; must match the circuit
type TreeConfig struct {
	Depth     int  `yaml:"depth"`
	SortPairs bool `yaml:"sortPairs"`
}

// LedgerConfig where leaves come from and how often they are refreshed
type LedgerConfig struct {
	Source       string `yaml:"source"` // chain | subgraph
	SyncInterval int    `yaml:"syncInterval"`
}

// ProverConfig selects the proving backend
type ProverConfig struct {
	Mode   string             `yaml:"mode"` // remote | local
	Remote RemoteProverConfig `yaml:"remote"`
	Local  LocalProverConfig  `yaml:"local"`
}

// RemoteProverConfig HTTP proving relay
type RemoteProverConfig struct {
	BaseURL  string `yaml:"baseUrl"`
	Timeout  int    `yaml:"timeout"`
	Encoding string `yaml:"encoding"` // json | form
}

// LocalProverConfig nargo toolchain on this host
type LocalProverConfig struct {
	NargoBin   string `yaml:"nargoBin"`
	CircuitDir string `yaml:"circuitDir"`
	Package    string `yaml:"package"`
	// PublicInputs lists Verifier.toml keys in circuit order
	PublicInputs []string `yaml:"publicInputs"`
}

// SubgraphConfig Subgraph configuration
type SubgraphConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
}

// AuthConfig operator JWT settings
type AuthConfig struct {
	JWTSecret   string `yaml:"jwtSecret"`
	TokenTTL    int    `yaml:"tokenTtl"` // hours
	RequireAuth bool   `yaml:"requireAuth"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// LogConfig logrus level and formatter
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

var AppConfig *Config

// LoadConfig Load configuration file
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] Loaded configuration from %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)

	AppConfig = config
	return nil
}

// Parse decodes YAML, applies environment overrides and then defaults.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	overrideFromEnv(&config)
	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the rest of the service cannot run with.
func (c *Config) Validate() error {
	if c.Tree.SortPairs {
		return fmt.Errorf("tree.sortPairs must be false: the circuit hashes pairs in fixed order")
	}
	if c.Tree.Depth < 1 || c.Tree.Depth > 32 {
		return fmt.Errorf("tree.depth %d out of range", c.Tree.Depth)
	}
	switch c.Prover.Mode {
	case "remote", "local":
	default:
		return fmt.Errorf("unknown prover mode %q", c.Prover.Mode)
	}
	switch c.Prover.Remote.Encoding {
	case "json", "form":
	default:
		return fmt.Errorf("unknown prover encoding %q", c.Prover.Remote.Encoding)
	}
	switch c.Ledger.Source {
	case "chain", "subgraph":
	default:
		return fmt.Errorf("unknown ledger source %q", c.Ledger.Source)
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.NATS.Timeout == 0 {
		config.NATS.Timeout = 10
	}
	if config.NATS.StreamName == "" {
		config.NATS.StreamName = "TWISTER"
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = "twister"
	}
	if config.Tree.Depth == 0 {
		config.Tree.Depth = 8
	}
	if config.Ledger.Source == "" {
		config.Ledger.Source = "chain"
	}
	if config.Ledger.SyncInterval == 0 {
		config.Ledger.SyncInterval = 30
	}
	if config.Prover.Mode == "" {
		config.Prover.Mode = "remote"
	}
	if config.Prover.Remote.Timeout == 0 {
		config.Prover.Remote.Timeout = 600
	}
	if config.Prover.Remote.Encoding == "" {
		config.Prover.Remote.Encoding = "json"
	}
	if config.Prover.Local.NargoBin == "" {
		config.Prover.Local.NargoBin = "nargo"
	}
	if config.Prover.Local.Package == "" {
		config.Prover.Local.Package = "twister"
	}
	if len(config.Prover.Local.PublicInputs) == 0 {
		config.Prover.Local.PublicInputs = []string{"leaf", "merkleRoot", "nullifier", "amount", "receiver", "relayer", "deposit"}
	}
	if config.Auth.TokenTTL == 0 {
		config.Auth.TokenTTL = 24
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	for name, network := range config.Blockchain.Networks {
		applyPreset(&network)
		if network.Name == "" {
			network.Name = name
		}
		if network.GasLimit == 0 {
			network.GasLimit = 3000000
		}
		if network.BlockRange == 0 {
			network.BlockRange = 5000
		}
		config.Blockchain.Networks[name] = network
	}
}

// overrideFromEnv Override configuration from the environment
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if mode := os.Getenv("PROVER_MODE"); mode != "" {
		config.Prover.Mode = mode
	}
	if proverURL := os.Getenv("PROVER_BASE_URL"); proverURL != "" {
		config.Prover.Remote.BaseURL = proverURL
	}

	if subgraphURL := os.Getenv("SUBGRAPH_URL"); subgraphURL != "" {
		config.Subgraph.URL = subgraphURL
	}
	if apiKey := os.Getenv("SUBGRAPH_API_KEY"); apiKey != "" {
		config.Subgraph.APIKey = apiKey
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}

	for networkName, networkConfig := range config.Blockchain.Networks {
		upper := strings.ToUpper(networkName)

		// network-specific key first (e.g. SCROLL_SEPOLIA_PRIVATE_KEY), then PRIVATE_KEY
		if privateKey := os.Getenv(upper + "_PRIVATE_KEY"); privateKey != "" {
			networkConfig.PrivateKey = privateKey
		} else if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
			networkConfig.PrivateKey = privateKey
		}

		if rpcEndpoints := os.Getenv(upper + "_RPC_ENDPOINTS"); rpcEndpoints != "" {
			networkConfig.RPCEndpoints = strings.Split(rpcEndpoints, ",")
		}

		if contract := os.Getenv(upper + "_TWISTER_CONTRACT"); contract != "" {
			networkConfig.TwisterContract = contract
		} else if contract := os.Getenv("TWISTER_CONTRACT"); contract != "" {
			networkConfig.TwisterContract = contract
		}

		if gasLimit := os.Getenv(upper + "_GAS_LIMIT"); gasLimit != "" {
			if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
				networkConfig.GasLimit = limit
			}
		}

		config.Blockchain.Networks[networkName] = networkConfig
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetNetworkConfig returns an enabled network. An empty name selects the default network.
func GetNetworkConfig(networkName string) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return AppConfig.Network(networkName)
}

// Network resolves an enabled network on this configuration.
func (c *Config) Network(networkName string) (*NetworkConfig, error) {
	if networkName == "" {
		networkName = c.Blockchain.DefaultNetwork
	}
	network, exists := c.Blockchain.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", networkName)
	}
	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", networkName)
	}
	return &network, nil
}

// GetNetworkConfigByChainID looks up an enabled network by EVM chain id.
func GetNetworkConfigByChainID(chainID int) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	for _, network := range AppConfig.Blockchain.Networks {
		if network.ChainID == chainID && network.Enabled {
			return &network, nil
		}
	}

	return nil, fmt.Errorf("network with chainID %d not found or disabled", chainID)
}
