package config

import "fmt"

var validBackends = map[string]bool{"memory": true, "leveldb": true, "bolt": true}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if !validBackends[c.StorageBackend] {
		return fmt.Errorf("StorageBackend: unsupported backend %q", c.StorageBackend)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit: RequestsPerSecond must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit: Burst must be positive when limiting")
	}
	if c.Journal.Enabled {
		switch c.Journal.Driver {
		case "sqlite":
		case "postgres":
			if c.Journal.DSN == "" {
				return fmt.Errorf("journal: DSN required for postgres")
			}
		default:
			return fmt.Errorf("journal: unsupported driver %q", c.Journal.Driver)
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}
