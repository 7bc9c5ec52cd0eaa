package config

import (
	"fmt"
	"strings"
)

// Validate checks the loaded configuration. Load calls it automatically;
// call it again after applying flag overrides.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Session.validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

func (l LogConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error (got %q)", l.Level)
	}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text (got %q)", l.Format)
	}
	return nil
}

func (s SessionConfig) validate() error {
	if s.IdleTTL <= 0 {
		return fmt.Errorf("idle_ttl must be > 0 (got %v)", s.IdleTTL)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be > 0 (got %v)", s.SweepInterval)
	}
	if s.DispatchConcurrency < 1 {
		return fmt.Errorf("dispatch_concurrency must be >= 1 (got %d)", s.DispatchConcurrency)
	}
	return nil
}
