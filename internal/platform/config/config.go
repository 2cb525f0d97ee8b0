package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the full server configuration.
type Config struct {
	Server    Server          `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Chain     ChainConfig     `yaml:"chain"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Challenge ChallengeConfig `yaml:"challenge"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `yaml:"addr"              envconfig:"SHARDAUTH_ADDR"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" envconfig:"SHARDAUTH_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"   envconfig:"SHARDAUTH_SHUTDOWN_TIMEOUT"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"  envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// RedisConfig configures the challenge token cache. An empty URL selects the
// in-process memory store.
type RedisConfig struct {
	URL          string        `yaml:"url"          envconfig:"REDIS_URL"`
	PoolSize     int           `yaml:"poolSize"     envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int           `yaml:"minIdleConns" envconfig:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dialTimeout"  envconfig:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"readTimeout"  envconfig:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"REDIS_WRITE_TIMEOUT"`
}

// StorageConfig selects the ledger backend. An empty directory keeps the
// ledger in memory only.
type StorageConfig struct {
	Directory string `yaml:"dir" envconfig:"STORAGE_DIR"`
}

const (
	ChainModeRPC       = "rpc"
	ChainModeSimulated = "simulated"
)

type ChainConfig struct {
	Mode        string `yaml:"mode"        envconfig:"CHAIN_MODE"`
	RPCURL      string `yaml:"rpcURL"      envconfig:"CHAIN_RPC_URL"`
	BlockWindow int    `yaml:"blockWindow" envconfig:"CHAIN_BLOCK_WINDOW"`
}

type LedgerConfig struct {
	Difficulty       int `yaml:"difficulty"       envconfig:"LEDGER_DIFFICULTY"`
	SamplePercentage int `yaml:"samplePercentage" envconfig:"LEDGER_SAMPLE_PERCENTAGE"`
	MinQuorum        int `yaml:"minQuorum"        envconfig:"LEDGER_MIN_QUORUM"`
	BcryptCost       int `yaml:"bcryptCost"       envconfig:"LEDGER_BCRYPT_COST"`
}

type ChallengeConfig struct {
	ShardCount    int           `yaml:"shardCount"    envconfig:"CHALLENGE_SHARD_COUNT"`
	NodesPerShard int           `yaml:"nodesPerShard" envconfig:"CHALLENGE_NODES_PER_SHARD"`
	TokenTTL      time.Duration `yaml:"tokenTTL"      envconfig:"CHALLENGE_TOKEN_TTL"`
	SignerKey     string        `yaml:"signerKey"     envconfig:"CHALLENGE_SIGNER_KEY"`
	SignerAddress string        `yaml:"signerAddress" envconfig:"CHALLENGE_SIGNER_ADDRESS"`
}

// Default returns the reference configuration: a local ganache node on
// 127.0.0.1:7545, redis on localhost and an in-memory ledger.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Redis: RedisConfig{
			URL:          "redis://127.0.0.1:6379/0",
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Chain: ChainConfig{
			Mode:        ChainModeRPC,
			RPCURL:      "http://127.0.0.1:7545",
			BlockWindow: 50,
		},
		Ledger: LedgerConfig{
			Difficulty:       1,
			SamplePercentage: 30,
			MinQuorum:        0,
			BcryptCost:       10,
		},
		Challenge: ChallengeConfig{
			ShardCount:    2,
			NodesPerShard: 2,
			TokenTTL:      3000 * time.Second,
			SignerKey:     "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d",
			SignerAddress: "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file,
// then environment variables.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// "dummy" keeps envconfig from picking up prefixed vars we never declared
	if err := envconfig.Process("dummy", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Chain.Mode {
	case ChainModeRPC:
		if c.Chain.RPCURL == "" {
			errs = append(errs, errors.New("chain.rpcURL is required in rpc mode"))
		}
	case ChainModeSimulated:
	default:
		errs = append(errs, fmt.Errorf("unknown chain.mode %q", c.Chain.Mode))
	}
	if c.Ledger.Difficulty < 0 {
		errs = append(errs, errors.New("ledger.difficulty must be >= 0"))
	}
	if c.Ledger.SamplePercentage < 0 || c.Ledger.SamplePercentage > 100 {
		errs = append(errs, errors.New("ledger.samplePercentage must be within [0, 100]"))
	}
	if c.Ledger.MinQuorum < 0 {
		errs = append(errs, errors.New("ledger.minQuorum must be >= 0"))
	}
	if c.Challenge.ShardCount <= 0 {
		errs = append(errs, errors.New("challenge.shardCount must be > 0"))
	}
	if c.Challenge.NodesPerShard <= 0 {
		errs = append(errs, errors.New("challenge.nodesPerShard must be > 0"))
	}
	if c.Challenge.TokenTTL <= 0 {
		errs = append(errs, errors.New("challenge.tokenTTL must be > 0"))
	}
	return errors.Join(errs...)
}
