package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/mcphub/service/chain"
	"github.com/brojonat/mcphub/service/contracts"
	"github.com/brojonat/mcphub/service/search"
	"github.com/ethereum/go-ethereum/common"
)

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr      string
	LogLevel        string
	ShutdownTimeout time.Duration
	Version         string

	// Storage configuration
	StoreBackend string
	DatabaseURL  string

	// NATS configuration; empty disables events and the SSE stream.
	NATSURL string

	// Temporal configuration; an empty host disables the review workflow.
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// TemporalWorkerConcurrency caps concurrent executions in the review worker.
	TemporalWorkerConcurrency int

	// Chain configuration
	ChainID                string
	ChainName              string
	ChainRPCURLs           []string
	ChainExplorerURLs      []string
	NativeCurrencyName     string
	NativeCurrencySymbol   string
	NativeCurrencyDecimals int

	// Contract addresses. Either all four are set or none.
	TokenAddress   string
	PoolAddress    string
	DAOAddress     string
	BillingAddress string

	// AdminAddress may approve, reject and delete listings.
	AdminAddress string

	// Search configuration
	InferenceURL        string
	InferenceAPIKey     string
	InferenceTimeout    time.Duration
	SearchMaxCandidates int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.Version = getEnvOrDefault("MCPHUB_VERSION", "dev")
	shutdown, err := parseDuration("SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ShutdownTimeout = shutdown
	}

	// Storage configuration
	cfg.StoreBackend = strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreBackendPostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
		}
	case StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: must be %q or %q, got %q",
			StoreBackendPostgres, StoreBackendMemory, cfg.StoreBackend))
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "mcphub-listing-review")
	workerConcurrency, err := parseInt("TEMPORAL_WORKER_CONCURRENCY", 10)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.TemporalWorkerConcurrency = workerConcurrency
	}

	// Chain configuration
	def := chain.RootstockTestnet
	cfg.ChainID = getEnvOrDefault("CHAIN_ID", def.ChainID)
	cfg.ChainName = getEnvOrDefault("CHAIN_NAME", def.ChainName)
	cfg.ChainRPCURLs = parseList("CHAIN_RPC_URLS", def.RPCURLs)
	cfg.ChainExplorerURLs = parseList("CHAIN_EXPLORER_URLS", def.BlockExplorerURLs)
	cfg.NativeCurrencyName = getEnvOrDefault("NATIVE_CURRENCY_NAME", def.NativeCurrency.Name)
	cfg.NativeCurrencySymbol = getEnvOrDefault("NATIVE_CURRENCY_SYMBOL", def.NativeCurrency.Symbol)
	decimals, err := parseInt("NATIVE_CURRENCY_DECIMALS", def.NativeCurrency.Decimals)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.NativeCurrencyDecimals = decimals
	}

	// Contracts and admin
	cfg.TokenAddress = os.Getenv("TOKEN_ADDRESS")
	cfg.PoolAddress = os.Getenv("POOL_ADDRESS")
	cfg.DAOAddress = os.Getenv("DAO_ADDRESS")
	cfg.BillingAddress = os.Getenv("BILLING_ADDRESS")
	cfg.AdminAddress = os.Getenv("ADMIN_ADDRESS")

	// Search configuration
	cfg.InferenceURL = getEnvOrDefault("INFERENCE_URL", search.DefaultInferenceURL)
	cfg.InferenceAPIKey = os.Getenv("INFERENCE_API_KEY")
	inferenceTimeout, err := parseDuration("INFERENCE_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.InferenceTimeout = inferenceTimeout
	}
	maxCandidates, err := parseInt("SEARCH_MAX_CANDIDATES", search.DefaultMaxCandidates)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SearchMaxCandidates = maxCandidates
	}

	errs = append(errs, cfg.validateDomain()...)

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DatabaseURL is required"))
		}
	case StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("StoreBackend %q is not supported", c.StoreBackend))
	}

	if c.TemporalHost != "" {
		if c.TemporalNamespace == "" {
			errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
		}
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
		}
	}

	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ShutdownTimeout must be at least 1 second"))
	}

	errs = append(errs, c.validateDomain()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func (c *Config) validateDomain() []error {
	var errs []error

	if err := c.Network().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chain: %w", err))
	}

	if c.HasContracts() {
		if _, err := c.ContractAddresses(); err != nil {
			errs = append(errs, err)
		}
	} else if c.TokenAddress != "" || c.PoolAddress != "" || c.DAOAddress != "" || c.BillingAddress != "" {
		errs = append(errs, fmt.Errorf("TOKEN_ADDRESS, POOL_ADDRESS, DAO_ADDRESS and BILLING_ADDRESS must be set together"))
	}

	if c.AdminAddress != "" && !common.IsHexAddress(c.AdminAddress) {
		errs = append(errs, fmt.Errorf("ADMIN_ADDRESS %q is not a valid hex address", c.AdminAddress))
	}

	if c.SearchMaxCandidates < 1 {
		errs = append(errs, fmt.Errorf("SEARCH_MAX_CANDIDATES must be at least 1"))
	}

	return errs
}

// Network returns the target chain description.
func (c *Config) Network() chain.NetworkConfig {
	return chain.NetworkConfig{
		ChainID:   c.ChainID,
		ChainName: c.ChainName,
		NativeCurrency: chain.NativeCurrency{
			Name:     c.NativeCurrencyName,
			Symbol:   c.NativeCurrencySymbol,
			Decimals: c.NativeCurrencyDecimals,
		},
		RPCURLs:           c.ChainRPCURLs,
		BlockExplorerURLs: c.ChainExplorerURLs,
	}
}

// HasContracts reports whether all contract addresses are configured.
func (c *Config) HasContracts() bool {
	return c.TokenAddress != "" && c.PoolAddress != "" && c.DAOAddress != "" && c.BillingAddress != ""
}

// ContractAddresses parses the configured contract addresses.
func (c *Config) ContractAddresses() (contracts.Addresses, error) {
	return contracts.ParseAddresses(c.TokenAddress, c.PoolAddress, c.DAOAddress, c.BillingAddress)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseList splits a comma separated environment variable, dropping blanks.
func parseList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
