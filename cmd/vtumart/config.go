package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/vtumart/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultProviderBaseURL = "http://localhost:3000"
	defaultEnvironment     = logger.EnvProduction
	defaultPollInterval    = 10 * time.Second
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the vtumart service will be run
	ListenAddr string

	// VTU provider API to connect to
	ProviderBaseURL string

	// Bearer token for the provider API
	ProviderAPIKey string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Access tokens are verified with symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// User id of the wallet kept reconciled against the provider balance
	// Polling is skipped when empty
	WalletOwnerID string

	// Wallet reconciliation cadence
	PollInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		ProviderBaseURL: defaultProviderBaseURL,
		Environment:     defaultEnvironment,
		PollInterval:    defaultPollInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"SECRET_KEY":           setString(&c.SecretKey),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"PROVIDER_BASE_URL":    setString(&c.ProviderBaseURL),
		"PROVIDER_API_KEY":     setString(&c.ProviderAPIKey),
		"ENVIRONMENT":          setString(&c.Environment),
		"WALLET_OWNER_ID":      setString(&c.WalletOwnerID),
		"WALLET_POLL_INTERVAL": setDuration(&c.PollInterval),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("vtumart", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.ProviderBaseURL, "provider", "p", c.ProviderBaseURL, "VTU provider base URL")
	fs.StringVarP(&c.ProviderAPIKey, "provider-key", "k", c.ProviderAPIKey, "VTU provider API key")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.WalletOwnerID, "wallet-owner", "w", c.WalletOwnerID, "User id of the reconciled wallet")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Wallet reconciliation interval")

	return fs.Parse(args)
}
