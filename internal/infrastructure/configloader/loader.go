package configloader

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Addresses and versions of the deployed SIFT contracts.
const (
	DefaultIcoContractAddress   = "0xf8Fc0cc97d01A47E0Ba66B167B120A8A0DeAb949"
	DefaultIcoContractVersion   = "300201707171440"
	DefaultTokenContractAddress = "0x8a187d5285d316bcbc9adafc08b51d70a0d8e000"
	DefaultTokenContractVersion = "500201707171440"
	DefaultWeiPerToken          = "10000000000000000"
)

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// NodeConfig describes how to reach the Ethereum node.
type NodeConfig struct {
	RPCURL                   string   `yaml:"rpcURL"`
	FallbackRPCURLs          []string `yaml:"fallbackRPCURLs"`
	ConnectionTimeoutSeconds int      `yaml:"connectionTimeoutSeconds"`
	RPCCallTimeoutSeconds    int      `yaml:"rpcCallTimeoutSeconds"`
	RateLimit                float64  `yaml:"rateLimit"` // requests per second, 0 disables limiting
	BurstLimit               int      `yaml:"burstLimit"`
}

// ContractConfig identifies one deployed contract.
type ContractConfig struct {
	Address string `yaml:"address"`
	Version string `yaml:"version"`
	ABIFile string `yaml:"abiFile"` // optional override of the embedded ABI
}

// ContractsConfig holds the ICO and token contracts.
type ContractsConfig struct {
	Ico   ContractConfig `yaml:"ico"`
	Token ContractConfig `yaml:"token"`
}

// SynchronizerConfig controls the chain state poll loop.
type SynchronizerConfig struct {
	PollIntervalMillis           int `yaml:"pollIntervalMillis"`
	ContractCheckIntervalSeconds int `yaml:"contractCheckIntervalSeconds"`
	BalanceConcurrency           int `yaml:"balanceConcurrency"`
}

// ConfirmationConfig controls the transaction confirmation queue.
type ConfirmationConfig struct {
	TimeoutMinutes   int `yaml:"timeoutMinutes"`
	RetentionMinutes int `yaml:"retentionMinutes"`
	MinerThreads     int `yaml:"minerThreads"` // 0 means half the CPUs
}

// PurchaseConfig controls token purchases.
type PurchaseConfig struct {
	WeiPerToken      string `yaml:"weiPerToken"`
	MaxGasMultiplier uint8  `yaml:"maxGasMultiplier"`
	UnlockSeconds    int    `yaml:"unlockSeconds"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Node         NodeConfig         `yaml:"node"`
	Contracts    ContractsConfig    `yaml:"contracts"`
	Synchronizer SynchronizerConfig `yaml:"synchronizer"`
	Confirmation ConfirmationConfig `yaml:"confirmation"`
	Purchase     PurchaseConfig     `yaml:"purchase"`
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Node.RPCURL == "" {
		c.Node.RPCURL = "http://localhost:8545/"
		logrus.Infof("Node.RPCURL not set, defaulting to %s", c.Node.RPCURL)
	}
	if c.Node.ConnectionTimeoutSeconds <= 0 {
		c.Node.ConnectionTimeoutSeconds = 10
	}
	if c.Node.RPCCallTimeoutSeconds <= 0 {
		c.Node.RPCCallTimeoutSeconds = 10
	}
	if c.Node.RateLimit > 0 && c.Node.BurstLimit <= 0 {
		c.Node.BurstLimit = 1
	}

	if c.Contracts.Ico.Address == "" {
		c.Contracts.Ico.Address = DefaultIcoContractAddress
	}
	if c.Contracts.Ico.Version == "" {
		c.Contracts.Ico.Version = DefaultIcoContractVersion
	}
	if c.Contracts.Token.Address == "" {
		c.Contracts.Token.Address = DefaultTokenContractAddress
	}
	if c.Contracts.Token.Version == "" {
		c.Contracts.Token.Version = DefaultTokenContractVersion
	}

	if c.Synchronizer.PollIntervalMillis <= 0 {
		c.Synchronizer.PollIntervalMillis = 3000
	}
	if c.Synchronizer.ContractCheckIntervalSeconds <= 0 {
		c.Synchronizer.ContractCheckIntervalSeconds = 10
	}
	if c.Synchronizer.BalanceConcurrency <= 0 {
		c.Synchronizer.BalanceConcurrency = 4
	}

	if c.Confirmation.TimeoutMinutes <= 0 {
		c.Confirmation.TimeoutMinutes = 10
	}
	if c.Confirmation.RetentionMinutes <= 0 {
		c.Confirmation.RetentionMinutes = 60
	}

	if c.Purchase.WeiPerToken == "" {
		c.Purchase.WeiPerToken = DefaultWeiPerToken
	}
	if c.Purchase.MaxGasMultiplier == 0 {
		c.Purchase.MaxGasMultiplier = 25
		logrus.Infof("Purchase.MaxGasMultiplier not set, defaulting to %d", c.Purchase.MaxGasMultiplier)
	}
	if c.Purchase.UnlockSeconds <= 0 {
		c.Purchase.UnlockSeconds = 120
	}
}

func (c *Config) validate() error {
	if _, err := parseBig("contracts.ico.version", c.Contracts.Ico.Version); err != nil {
		return err
	}
	if _, err := parseBig("contracts.token.version", c.Contracts.Token.Version); err != nil {
		return err
	}
	price, err := parseBig("purchase.weiPerToken", c.Purchase.WeiPerToken)
	if err != nil {
		return err
	}
	if price.Sign() <= 0 {
		return fmt.Errorf("purchase.weiPerToken must be positive, got %s", c.Purchase.WeiPerToken)
	}
	return nil
}

// IcoContractVersion returns the expected ICO contract version.
func (c *Config) IcoContractVersion() *big.Int {
	v, _ := parseBig("", c.Contracts.Ico.Version)
	return v
}

// TokenContractVersion returns the expected token contract version.
func (c *Config) TokenContractVersion() *big.Int {
	v, _ := parseBig("", c.Contracts.Token.Version)
	return v
}

// WeiPerToken returns the price of one token in wei.
func (c *Config) WeiPerToken() *big.Int {
	v, _ := parseBig("", c.Purchase.WeiPerToken)
	return v
}

// PollInterval returns the synchronizer cycle interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Synchronizer.PollIntervalMillis) * time.Millisecond
}

// ContractCheckInterval returns the minimum gap between contract checks.
func (c *Config) ContractCheckInterval() time.Duration {
	return time.Duration(c.Synchronizer.ContractCheckIntervalSeconds) * time.Second
}

// ConfirmationTimeout returns how long a transaction may stay unmined.
func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.Confirmation.TimeoutMinutes) * time.Minute
}

// Retention returns how long completed transactions stay addressable.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Confirmation.RetentionMinutes) * time.Minute
}

// UnlockDuration returns how long an account stays unlocked for a purchase.
func (c *Config) UnlockDuration() time.Duration {
	return time.Duration(c.Purchase.UnlockSeconds) * time.Second
}

func parseBig(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer for %s: %q", field, s)
	}
	return v, nil
}
