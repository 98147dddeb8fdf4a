package config

// Log controls structured logging output.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Auth configures bearer token verification on the gateway. The signing
// secret is never stored in the file; SecretEnv names the variable holding it.
type Auth struct {
	Enabled   bool   `toml:"Enabled"`
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
	SecretEnv string `toml:"SecretEnv"`
	// AllowAnonymousReads lets GET routes through without a token.
	AllowAnonymousReads bool `toml:"AllowAnonymousReads"`
}

// RateLimit bounds mutating requests per client.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Journal configures the append-only event journal.
type Journal struct {
	Enabled bool `toml:"Enabled"`
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}
