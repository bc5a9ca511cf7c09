// Package config loads service settings from a .env file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	DatabaseURL string   `env:"DATABASE_URL"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`

	DeployerAccount    string `env:"DEPLOYER_ACCOUNT" envDefault:"deployer"`
	RegistryAddress    string `env:"REGISTRY_ADDRESS" envDefault:"ticket-registry"`
	MarketAddress      string `env:"MARKET_ADDRESS" envDefault:"resale-market"`
	RoyaltyBeneficiary string `env:"ROYALTY_BENEFICIARY"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	NotificationStream string `env:"NOTIFICATION_STREAM" envDefault:"ticketing:notifications"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// MigrateOnly applies migrations and exits. Flag only.
	MigrateOnly bool
}

// ErrHelp is returned when --help was requested.
var ErrHelp = pflag.ErrHelp

// Load reads the nearest .env file, then the process environment, then args
// (without the program name). Values already in the environment win over
// the .env file.
func Load(args []string) (Config, error) {
	if path := findEnvFile(); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return parse(args, envMap(os.Environ()))
}

func parse(args []string, environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	flagSet := pflag.NewFlagSet("token-entry", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flagSet.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres DSN (empty keeps state in memory)")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flagSet.BoolVar(&cfg.MigrateOnly, "migrate-only", false, "apply migrations and exit")
	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"DEPLOYER_ACCOUNT": c.DeployerAccount,
		"REGISTRY_ADDRESS": c.RegistryAddress,
		"MARKET_ADDRESS":   c.MarketAddress,
	} {
		if _, err := domain.ParseAccount(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.RegistryAddress == c.MarketAddress {
		errs = append(errs, errors.New("REGISTRY_ADDRESS and MARKET_ADDRESS must differ"))
	}
	if _, _, market, beneficiary := c.Accounts(); market != "" && beneficiary == market {
		errs = append(errs, errors.New("ROYALTY_BENEFICIARY must not be the market address"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: want text or json, got %q", c.LogFormat))
	}
	if c.MigrateOnly && c.DatabaseURL == "" {
		errs = append(errs, errors.New("--migrate-only requires a database url"))
	}
	return errors.Join(errs...)
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Accounts returns the parsed deployer, registry, market and royalty
// beneficiary accounts. An empty beneficiary falls back to the deployer.
func (c Config) Accounts() (deployer, registry, market, beneficiary domain.Account) {
	deployer, _ = domain.ParseAccount(c.DeployerAccount)
	registry, _ = domain.ParseAccount(c.RegistryAddress)
	market, _ = domain.ParseAccount(c.MarketAddress)
	beneficiary, err := domain.ParseAccount(c.RoyaltyBeneficiary)
	if err != nil {
		beneficiary = deployer
	}
	return deployer, registry, market, beneficiary
}

func findEnvFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			out[key] = value
		}
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
