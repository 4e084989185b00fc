// Package config loads server settings from flags, a .env file and the environment.
// Environment variables override flags, matching the container deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	defaultAPIToken = "dev-token"
)

// Config holds everything cmd/server needs to start
type Config struct {
	Verbose bool

	Store         string
	DBConnStr     string
	RunMigrations bool

	APIToken    string
	GRPCAddr    string
	MetricsAddr string

	NATSURL     string
	NATSSubject string
	// NATSStream enables JetStream publishing into this stream when set
	NATSStream string

	// AccountsFile is an optional YAML file of accounts created at startup
	AccountsFile string

	// TransferRateLimit is the allowed TransferProfit calls per second; 0 disables limiting
	TransferRateLimit float64
	TransferBurst     int
}

// Load parses args and applies .env and environment overrides
// envFile is optional; a missing file is ignored
func Load(args []string, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	fs := flag.NewFlagSet("minefund-server", flag.ContinueOnError)
	cfg := &Config{}

	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose (debug) logging")
	fs.StringVar(&cfg.Store, "store", StorePostgres, "storage backend: postgres or memory (or set STORE env var)")
	fs.StringVar(&cfg.DBConnStr, "db-conn-str", "", "PostgreSQL connection string (or set DB_CONN_STR, or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME)")
	fs.BoolVar(&cfg.RunMigrations, "run-migrations", false, "apply database migrations on startup (or set RUN_MIGRATIONS=true)")
	fs.StringVar(&cfg.APIToken, "api-token", defaultAPIToken, "bearer token required on every gRPC call (or set API_TOKEN env var)")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", ":8080", "gRPC listen address (or set GRPC_ADDR env var)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "metrics and health listen address, empty to disable (or set METRICS_ADDR env var)")
	fs.StringVar(&cfg.NATSURL, "nats-url", "", "NATS server URL for transfer events, empty logs them instead (or set NATS_URL env var)")
	fs.StringVar(&cfg.NATSSubject, "nats-subject", "minefund.transfers.completed", "NATS subject for transfer events (or set NATS_SUBJECT env var)")
	fs.StringVar(&cfg.NATSStream, "nats-stream", "", "JetStream stream for transfer events, empty publishes core NATS (or set NATS_STREAM env var)")
	fs.StringVar(&cfg.AccountsFile, "accounts-file", "", "YAML file of funding accounts and wallets to create on startup (or set ACCOUNTS_FILE env var)")
	fs.Float64Var(&cfg.TransferRateLimit, "transfer-rate-limit", 5, "TransferProfit calls per second, 0 disables (or set TRANSFER_RATE_LIMIT env var)")
	fs.IntVar(&cfg.TransferBurst, "transfer-burst", 10, "TransferProfit burst size")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if v := os.Getenv("STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		cfg.NATSSubject = v
	}
	if v := os.Getenv("NATS_STREAM"); v != "" {
		cfg.NATSStream = v
	}
	if v := os.Getenv("ACCOUNTS_FILE"); v != "" {
		cfg.AccountsFile = v
	}
	if os.Getenv("RUN_MIGRATIONS") == "true" {
		cfg.RunMigrations = true
	}
	if v := os.Getenv("TRANSFER_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TRANSFER_RATE_LIMIT: %w", err)
		}
		cfg.TransferRateLimit = limit
	}
	if cfg.DBConnStr == "" {
		cfg.DBConnStr = dbConnStrFromEnv()
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// dbConnStrFromEnv uses DB_CONN_STR, or builds it from individual vars (Docker friendly)
func dbConnStrFromEnv() string {
	if v := os.Getenv("DB_CONN_STR"); v != "" {
		return v
	}

	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "minefund")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks that the configuration can start a server
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DBConnStr == "" {
			return errors.New("database connection string is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q: must be %s or %s", c.Store, StorePostgres, StoreMemory)
	}

	if c.APIToken == "" {
		return errors.New("API token cannot be empty")
	}
	if c.GRPCAddr == "" {
		return errors.New("gRPC address cannot be empty")
	}
	if c.NATSStream != "" && c.NATSURL == "" {
		return errors.New("NATS stream requires a NATS URL")
	}
	if c.TransferRateLimit < 0 {
		return errors.New("transfer rate limit cannot be negative")
	}
	if c.TransferRateLimit > 0 && c.TransferBurst < 1 {
		return errors.New("transfer burst must be at least 1 when rate limiting")
	}

	return nil
}
