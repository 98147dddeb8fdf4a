package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddress = ":8080"
	DefaultDataDir       = "./tdc-data"
	DefaultBackend       = "leveldb"
	DefaultEnvironment   = "local"
	DefaultSecretEnv     = "TDC_JWT_SECRET"
)

type Config struct {
	ListenAddress  string    `toml:"ListenAddress"`
	DataDir        string    `toml:"DataDir"`
	StorageBackend string    `toml:"StorageBackend"`
	GenesisFile    string    `toml:"GenesisFile"`
	Environment    string    `toml:"Environment"`
	AllowMigrate   bool      `toml:"AllowMigrate"`
	Log            Log       `toml:"log"`
	Auth           Auth      `toml:"auth"`
	RateLimit      RateLimit `toml:"rate_limit"`
	Journal        Journal   `toml:"journal"`
	Telemetry      Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration suitable for a local single-node setup.
func Default() *Config {
	return &Config{
		ListenAddress:  DefaultListenAddress,
		DataDir:        DefaultDataDir,
		StorageBackend: DefaultBackend,
		Environment:    DefaultEnvironment,
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Auth: Auth{
			Enabled:             true,
			Issuer:              "tdc",
			SecretEnv:           DefaultSecretEnv,
			AllowAnonymousReads: true,
		},
		RateLimit: RateLimit{RequestsPerSecond: 5, Burst: 10},
		Journal:   Journal{Enabled: true, Driver: "sqlite"},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = DefaultBackend
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = DefaultEnvironment
	}
	if strings.TrimSpace(c.Auth.SecretEnv) == "" {
		c.Auth.SecretEnv = DefaultSecretEnv
	}
	c.Journal.Driver = strings.ToLower(strings.TrimSpace(c.Journal.Driver))
	if c.Journal.Enabled && c.Journal.Driver == "" {
		c.Journal.Driver = "sqlite"
	}
	if c.Journal.Driver == "sqlite" && strings.TrimSpace(c.Journal.DSN) == "" {
		c.Journal.DSN = filepath.Join(c.DataDir, "journal.db")
	}
}

// JWTSecret reads the signing secret from the configured environment variable.
func (c *Config) JWTSecret() ([]byte, error) {
	value := strings.TrimSpace(os.Getenv(c.Auth.SecretEnv))
	if value == "" {
		return nil, fmt.Errorf("auth enabled but %s is not set", c.Auth.SecretEnv)
	}
	return []byte(value), nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
