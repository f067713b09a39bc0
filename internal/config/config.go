// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transaction sources selectable with SOURCE.
var Sources = []string{"simulated", "etherscan", "rpc", "store"}

// Config holds all configuration values for the wallet risk binaries.
type Config struct {
	// Etherscan
	EtherscanAPIKey    string
	EtherscanURL       string
	EtherscanRateLimit float64 // requests per second

	// Ethereum node
	RPCURL        string
	WSURL         string
	AlchemyAPIKey string
	RPCRateLimit  float64 // requests per second

	// Collection window
	Source    string
	FromBlock int64
	ToBlock   int64 // 0 means latest
	Seed      int64 // simulated source

	// Storage
	PostgresDSN   string
	ClickHouseDSN string

	// Block time cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BlockTimeTTL  time.Duration

	// Publishing
	KafkaBrokers []string
	KafkaTopic   string

	// Wallets
	WalletSheetURL string
	WalletFile     string

	// Output
	OutputDir string
	TopN      int

	// Live ingestion
	BlockLag      int64
	FlushInterval time.Duration

	// Workers
	Workers int

	// Metrics
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		// Etherscan
		EtherscanAPIKey:    getEnv("ETHERSCAN_API_KEY", ""),
		EtherscanURL:       getEnv("ETHERSCAN_URL", "https://api.etherscan.io/api"),
		EtherscanRateLimit: getEnvFloat("ETHERSCAN_RATE_LIMIT", 5),

		// Node
		RPCURL:        getEnv("RPC_URL", ""),
		WSURL:         getEnv("WS_URL", ""),
		AlchemyAPIKey: getEnv("ALCHEMY_API_KEY", ""),
		RPCRateLimit:  getEnvFloat("RPC_RATE_LIMIT", 10),

		// Collection
		Source:    strings.ToLower(getEnv("SOURCE", "simulated")),
		FromBlock: getEnvInt64("FROM_BLOCK", 0),
		ToBlock:   getEnvInt64("TO_BLOCK", 0),
		Seed:      getEnvInt64("SEED", 42),

		// Storage
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		// Cache
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		BlockTimeTTL:  time.Duration(getEnvInt("BLOCK_TIME_TTL_HOURS", 24*30)) * time.Hour,

		// Publishing
		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "wallet-risk-scores"),

		// Wallets
		WalletSheetURL: getEnv("WALLET_SHEET_URL", ""),
		WalletFile:     getEnv("WALLET_FILE", ""),

		// Output
		OutputDir: getEnv("OUTPUT_DIR", "."),
		TopN:      getEnvInt("TOP_N", 10),

		// Live
		BlockLag:      getEnvInt64("BLOCK_LAG", 2),
		FlushInterval: time.Duration(getEnvInt("FLUSH_INTERVAL_SECONDS", 5)) * time.Second,

		// Workers
		Workers: getEnvInt("WORKERS", 4),

		// Metrics
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	cfg.applyAlchemy()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyAlchemy derives node endpoints from ALCHEMY_API_KEY when unset.
func (c *Config) applyAlchemy() {
	if c.AlchemyAPIKey == "" {
		return
	}
	if c.RPCURL == "" {
		c.RPCURL = "https://eth-mainnet.g.alchemy.com/v2/" + c.AlchemyAPIKey
	}
	if c.WSURL == "" {
		c.WSURL = "wss://eth-mainnet.g.alchemy.com/v2/" + c.AlchemyAPIKey
	}
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if !validSource(c.Source) {
		return fmt.Errorf("SOURCE must be one of %s", strings.Join(Sources, ", "))
	}

	if c.EtherscanRateLimit <= 0 {
		return fmt.Errorf("ETHERSCAN_RATE_LIMIT must be positive")
	}

	if c.RPCRateLimit <= 0 {
		return fmt.Errorf("RPC_RATE_LIMIT must be positive")
	}

	if c.FromBlock < 0 || c.ToBlock < 0 {
		return fmt.Errorf("FROM_BLOCK and TO_BLOCK must not be negative")
	}

	if c.ToBlock != 0 && c.ToBlock < c.FromBlock {
		return fmt.Errorf("TO_BLOCK must not be below FROM_BLOCK")
	}

	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}

	if c.TopN < 1 {
		return fmt.Errorf("TOP_N must be at least 1")
	}

	if c.BlockLag < 0 {
		return fmt.Errorf("BLOCK_LAG must not be negative")
	}

	return nil
}

func validSource(s string) bool {
	for _, v := range Sources {
		if s == v {
			return true
		}
	}
	return false
}

// MaskedEtherscanKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedEtherscanKey() string {
	return maskSecret(c.EtherscanAPIKey)
}

// MaskedAlchemyKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedAlchemyKey() string {
	return maskSecret(c.AlchemyAPIKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an environment variable as an int64 or returns a default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
