// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/pitwall/ledger"
)

// Ledger modes
const (
	LedgerEVM    = ledger.ModeEVM
	LedgerMemory = ledger.ModeMemory
)

const (
	DefaultPort           = 3318
	DefaultConfirmTimeout = 2 * time.Minute
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	JWTSecret    string

	LedgerMode           string
	LedgerRPCURL         string
	LedgerPrivateKey     string
	LedgerFactoryAddress string
	// LedgerVoterKeys are hex keys the node signs votes with (dev chains only).
	LedgerVoterKeys []string
	ConfirmTimeout  time.Duration

	LogLevel string
}

// fileConfig is the layout of the optional YAML config file.
type fileConfig struct {
	Port     int `yaml:"port"`
	Database struct {
		URL  string `yaml:"url"`
		Type string `yaml:"type"`
	} `yaml:"database"`
	JWTSecret string `yaml:"jwt_secret"`
	Ledger    struct {
		Mode           string   `yaml:"mode"`
		RPCURL         string   `yaml:"rpc_url"`
		PrivateKey     string   `yaml:"private_key"`
		FactoryAddress string   `yaml:"factory_address"`
		VoterKeys      []string `yaml:"voter_keys"`
		ConfirmTimeout string   `yaml:"confirm_timeout"`
	} `yaml:"ledger"`
	LogLevel string `yaml:"log_level"`
}

// ParseFlags validates flags and fills the rest from the environment,
// the config file and defaults, in that order.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var configPath, envPath, confirm string

	flags := flag.NewFlagSet("pitwall", flag.ContinueOnError)

	flags.StringVar(&configPath, "c", "", "YAML config file")
	flags.StringVar(&envPath, "env", ".env", "dotenv file loaded into the environment if present")

	// Network config (can be CLI args or env)
	flags.IntVar(&cfg.Port, "p", 0, "Server port")
	flags.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	flags.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.StringVar(&cfg.JWTSecret, "jwt-secret", "", "Token signing secret (prefer env)")

	flags.StringVar(&cfg.LedgerMode, "ledger", "", "Ledger mode (evm or memory)")
	flags.StringVar(&cfg.LedgerRPCURL, "rpc", "", "Ledger RPC URL")
	flags.StringVar(&cfg.LedgerFactoryAddress, "factory", "", "Voting factory contract address")
	flags.StringVar(&confirm, "confirm-timeout", "", "How long to wait for ledger confirmations")
	flags.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if confirm != "" {
		d, err := time.ParseDuration(confirm)
		if err != nil {
			return Config{}, fmt.Errorf("invalid -confirm-timeout: %w", err)
		}
		cfg.ConfirmTimeout = d
	}

	if err := LoadEnvFile(envPath); err != nil {
		return Config{}, err
	}
	return Resolve(cfg, configPath)
}

// LoadEnvFile loads a dotenv file without overriding variables that are
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Resolve completes cfg from the environment, then the YAML file at
// configPath (if any), then defaults, and validates the result. Fields
// already set in cfg win.
func Resolve(cfg Config, configPath string) (Config, error) {
	var file fileConfig
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else if file.Port != 0 {
			cfg.Port = file.Port
		} else {
			cfg.Port = DefaultPort
		}
	}

	cfg.DatabaseURL = pick(cfg.DatabaseURL, "DATABASE_URL", file.Database.URL)
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	cfg.DatabaseType = pick(cfg.DatabaseType, "DATABASE_TYPE", file.Database.Type)
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = "sqlite"
	}

	// Secrets - MUST be provided
	cfg.JWTSecret = pick(cfg.JWTSecret, "JWT_SECRET", file.JWTSecret)
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	cfg.LedgerMode = strings.ToLower(pick(cfg.LedgerMode, "LEDGER_MODE", file.Ledger.Mode))
	if cfg.LedgerMode == "" {
		cfg.LedgerMode = LedgerMemory
	}
	cfg.LedgerRPCURL = pick(cfg.LedgerRPCURL, "LEDGER_RPC_URL", file.Ledger.RPCURL)
	cfg.LedgerPrivateKey = pick(cfg.LedgerPrivateKey, "LEDGER_PRIVATE_KEY", file.Ledger.PrivateKey)
	cfg.LedgerFactoryAddress = pick(cfg.LedgerFactoryAddress, "LEDGER_FACTORY_ADDRESS", file.Ledger.FactoryAddress)
	if len(cfg.LedgerVoterKeys) == 0 {
		if keys := os.Getenv("LEDGER_VOTER_KEYS"); keys != "" {
			cfg.LedgerVoterKeys = splitList(keys)
		} else {
			cfg.LedgerVoterKeys = file.Ledger.VoterKeys
		}
	}

	switch cfg.LedgerMode {
	case LedgerMemory:
		if cfg.DatabaseURL != ":memory:" {
			slog.Warn("memory ledger with a persistent database: contracts vanish on exit, elections from earlier runs will fail ledger reads",
				"database_url", cfg.DatabaseURL)
		}
	case LedgerEVM:
		if cfg.LedgerRPCURL == "" {
			return Config{}, errors.New("LEDGER_RPC_URL required for evm ledger")
		}
		if cfg.LedgerPrivateKey == "" {
			return Config{}, errors.New("LEDGER_PRIVATE_KEY required for evm ledger")
		}
		if cfg.LedgerFactoryAddress == "" {
			return Config{}, errors.New("LEDGER_FACTORY_ADDRESS required for evm ledger")
		}
	default:
		return Config{}, fmt.Errorf("unknown ledger mode %q", cfg.LedgerMode)
	}

	if cfg.ConfirmTimeout == 0 {
		raw := pick("", "CONFIRM_TIMEOUT", file.Ledger.ConfirmTimeout)
		if raw == "" {
			cfg.ConfirmTimeout = DefaultConfirmTimeout
		} else {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return Config{}, fmt.Errorf("invalid CONFIRM_TIMEOUT: %w", err)
			}
			cfg.ConfirmTimeout = d
		}
	}
	if cfg.ConfirmTimeout <= 0 {
		return Config{}, errors.New("confirm timeout must be positive")
	}

	cfg.LogLevel = pick(cfg.LogLevel, "LOG_LEVEL", file.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// EVM returns the settings for ledger.Open.
func (c Config) EVM() ledger.EVMConfig {
	return ledger.EVMConfig{
		RPCURL:         c.LedgerRPCURL,
		PrivateKey:     c.LedgerPrivateKey,
		FactoryAddress: c.LedgerFactoryAddress,
		VoterKeys:      c.LedgerVoterKeys,
	}
}

// SlogLevel converts LogLevel for use with a slog handler.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// pick returns set if non-empty, else the env variable, else the file value.
func pick(set, env, file string) string {
	if set != "" {
		return set
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return file
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
