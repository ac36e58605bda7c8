package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations the node cannot start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must be set")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if cfg.Gateway.RateLimitPerSecond < 0 {
		return fmt.Errorf("gateway: RateLimitPerSecond < 0")
	}
	if cfg.Gateway.RateLimitPerSecond > 0 && cfg.Gateway.RateLimitBurst <= 0 {
		return fmt.Errorf("gateway: RateLimitBurst must be positive when rate limiting")
	}
	if cfg.Gateway.ReadTimeoutSecs < 0 || cfg.Gateway.WriteTimeoutSecs < 0 {
		return fmt.Errorf("gateway: timeouts must not be negative")
	}
	if cfg.Gateway.Auth.Enabled && strings.TrimSpace(cfg.Gateway.Auth.HMACSecret) == "" {
		return fmt.Errorf("gateway: auth enabled without HMACSecret")
	}
	switch cfg.Index.Driver {
	case "", "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Index.DSN) == "" {
			return fmt.Errorf("index: postgres requires a DSN")
		}
	default:
		return fmt.Errorf("index: unsupported driver %q", cfg.Index.Driver)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio outside [0,1]")
	}
	return nil
}
