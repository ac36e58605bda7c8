package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rewardcenter/native/rewardcenter"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8090" || cfg.Gateway.RateLimitBurst != 40 || cfg.Index.Driver != "sqlite" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.ListenAddress != cfg.ListenAddress || again.Index.DSN != filepath.Join(cfg.DataDir, "index.db") {
		t.Fatalf("reload mismatch %+v", again)
	}
}

func TestLoadParsesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/rewardcenter"
GenesisFile = "genesis.json"
TreasuryReserve = 250

[gateway]
RateLimitPerSecond = 5.5
RateLimitBurst = 10

[index]
Driver = "postgres"
DSN = "host=localhost user=rewards dbname=rewards"

[logging]
Level = "debug"
File = "/var/log/rewardd.log"

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
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.TreasuryReserve != 250 {
		t.Fatalf("unexpected top level %+v", cfg)
	}
	if cfg.Gateway.RateLimitPerSecond != 5.5 || cfg.Gateway.RateLimitBurst != 10 || cfg.Gateway.ReadTimeoutSecs != 10 {
		t.Fatalf("unexpected gateway %+v", cfg.Gateway)
	}
	if cfg.Index.Driver != "postgres" || !strings.Contains(cfg.Index.DSN, "dbname=rewards") {
		t.Fatalf("unexpected index %+v", cfg.Index)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.MaxBackups != 5 {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsUnknownAndInvalid(t *testing.T) {
	t.Setenv(JWTSecretEnv, "")
	dir := t.TempDir()
	cases := map[string]string{
		"unknown.toml":  "ListenAddress = \":1\"\nBogus = 1\n",
		"driver.toml":   "[index]\nDriver = \"mysql\"\n",
		"postgres.toml": "[index]\nDriver = \"postgres\"\n",
		"burst.toml":    "[gateway]\nRateLimitPerSecond = 1.0\nRateLimitBurst = 0\n",
		"ratio.toml":    "[telemetry]\nSampleRatio = 1.5\n",
		"auth.toml":     "[gateway.auth]\nEnabled = true\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadRewardRules(t *testing.T) {
	dir := t.TempDir()

	rules, err := LoadRewardRules(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, ErrParamsNotFound) {
		t.Fatalf("expected params not found, got %v", err)
	}
	if rules != rewardcenter.DefaultRewardRules() {
		t.Fatalf("missing file should yield defaults, got %+v", rules)
	}

	jsonPath := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(jsonPath, []byte(`{"mathematical_operand":"Multiple","payout_numeral":2,"seller_reward_payout_basis_points":2500}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err = LoadRewardRules(jsonPath)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	want := rewardcenter.RewardRules{Operand: rewardcenter.OperandMultiply, PayoutNumeral: 2, SellerRewardPayoutBasisPoints: 2500}
	if rules != want {
		t.Fatalf("rules = %+v, want %+v", rules, want)
	}

	yamlPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(yamlPath, []byte("mathematical_operand: Divide\npayout_numeral: 4\nseller_reward_payout_basis_points: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err = LoadRewardRules(yamlPath)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if rules.Operand != rewardcenter.OperandDivide || rules.PayoutNumeral != 4 {
		t.Fatalf("unexpected yaml rules %+v", rules)
	}

	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte(`{"mathematical_operand":"Divide","payout_numeral":0,"seller_reward_payout_basis_points":100}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRewardRules(badPath); !errors.Is(err, rewardcenter.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	unknownPath := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknownPath, []byte("payout_numeral: 3\nfoo: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRewardRules(unknownPath); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestJWTSecretFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[gateway.auth]\nEnabled = true\nIssuer = \"ops\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(JWTSecretEnv, " s3cret ")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Auth.HMACSecret != "s3cret" || cfg.Gateway.Auth.Issuer != "ops" {
		t.Fatalf("unexpected auth config: %+v", cfg.Gateway.Auth)
	}
}
