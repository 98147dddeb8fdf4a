package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress || cfg.StorageBackend != DefaultBackend {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file written: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Journal.DSN != cfg.Journal.DSN {
		t.Fatalf("reload mismatch: %q vs %q", reloaded.Journal.DSN, cfg.Journal.DSN)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `ListenAddress = "0.0.0.0:9000"
DataDir = "/var/lib/tdc"
StorageBackend = "Bolt"
GenesisFile = "genesis.yaml"
Environment = "staging"

[log]
Level = "debug"
File = "/var/log/tdcd.log"

[auth]
Enabled = true
Issuer = "tdc-staging"
SecretEnv = "STAGING_SECRET"

[rate_limit]
RequestsPerSecond = 2.5
Burst = 4

[journal]
Enabled = true
Driver = "postgres"
DSN = "postgres://tdc@localhost/tdc"

[telemetry]
Traces = true
SampleRatio = 0.25
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != "bolt" {
		t.Fatalf("expected normalised backend, got %q", cfg.StorageBackend)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxBackups != 5 {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if cfg.Auth.SecretEnv != "STAGING_SECRET" || !cfg.Auth.AllowAnonymousReads {
		t.Fatalf("unexpected auth section %+v", cfg.Auth)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 || cfg.RateLimit.Burst != 4 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if cfg.Journal.Driver != "postgres" || cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("unexpected journal/telemetry %+v %+v", cfg.Journal, cfg.Telemetry)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "Bootnodes = [\"x\"]\n",
		"backend":        "StorageBackend = \"rocks\"\n",
		"postgres dsn":   "[journal]\nEnabled = true\nDriver = \"postgres\"\n",
		"sample ratio":   "[telemetry]\nSampleRatio = 2.0\n",
		"burst required": "[rate_limit]\nRequestsPerSecond = 1.0\nBurst = 0\n",
	}
	for name, contents := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestJWTSecretFromEnvironment(t *testing.T) {
	cfg := Default()
	cfg.Auth.SecretEnv = "TDC_TEST_SECRET"
	t.Setenv("TDC_TEST_SECRET", "")
	if _, err := cfg.JWTSecret(); err == nil || !strings.Contains(err.Error(), "TDC_TEST_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
	t.Setenv("TDC_TEST_SECRET", "s3cret")
	secret, err := cfg.JWTSecret()
	if err != nil || string(secret) != "s3cret" {
		t.Fatalf("unexpected secret %q err=%v", secret, err)
	}
}
