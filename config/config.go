package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// JWTSecretEnv overrides gateway.auth.HMACSecret.
const JWTSecretEnv = "REWARD_GATEWAY_JWT_SECRET"

// Config is the node configuration read from TOML.
type Config struct {
	ListenAddress   string    `toml:"ListenAddress"`
	DataDir         string    `toml:"DataDir"`
	GenesisFile     string    `toml:"GenesisFile"`
	Environment     string    `toml:"Environment"`
	TreasuryReserve uint64    `toml:"TreasuryReserve"`
	Gateway         Gateway   `toml:"gateway"`
	Index           Index     `toml:"index"`
	Logging         Logging   `toml:"logging"`
	Telemetry       Telemetry `toml:"telemetry"`
}

// Gateway tunes the HTTP API.
type Gateway struct {
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	ReadTimeoutSecs    int     `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs   int     `toml:"WriteTimeoutSecs"`
	EnableMetrics      bool    `toml:"EnableMetrics"`
	Auth               Auth    `toml:"auth"`
}

// Auth enables HS256 bearer tokens on transaction submission. The secret may
// be supplied through REWARD_GATEWAY_JWT_SECRET instead of the file.
type Auth struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

// Index selects the SQL event index backend. Driver is "sqlite", "postgres"
// or empty to disable indexing.
type Index struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Logging mirrors the options of the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Default returns the configuration written when none exists.
func Default() *Config {
	return &Config{
		ListenAddress: ":8090",
		DataDir:       "./rewardcenter-data",
		Environment:   "local",
		Gateway: Gateway{
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			ReadTimeoutSecs:    10,
			WriteTimeoutSecs:   15,
			EnableMetrics:      true,
		},
		Index: Index{Driver: "sqlite"},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
}

// Load loads the configuration from the given path, creating a default file
// when it does not exist. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Index.Driver == "sqlite" && strings.TrimSpace(cfg.Index.DSN) == "" {
		cfg.Index.DSN = filepath.Join(cfg.DataDir, "index.db")
	}
	if secret := strings.TrimSpace(os.Getenv(JWTSecretEnv)); secret != "" {
		cfg.Gateway.Auth.HMACSecret = secret
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.Index.DSN = filepath.Join(cfg.DataDir, "index.db")
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
