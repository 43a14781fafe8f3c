package node

import (
	"os"
	"path/filepath"
	"testing"

	"sccert.dev/node/consensus"
)

func TestValidateConfigOK(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty network":    func(c *Config) { c.Network = " " },
		"unknown network":  func(c *Config) { c.Network = "devnet" },
		"empty datadir":    func(c *Config) { c.DataDir = "" },
		"bad log level":    func(c *Config) { c.LogLevel = "verbose" },
		"bad mode":         func(c *Config) { c.Mode = "spv" },
		"negative mat":     func(c *Config) { c.CoinsMaturity = -1 },
		"negative fee":     func(c *Config) { c.MinRelayFeePerKB = -1 },
		"huge fee":         func(c *Config) { c.MinRelayFeePerKB = int64(consensus.MAX_MONEY) + 1 },
		"zero certs":       func(c *Config) { c.MaxCertsPerBlock = 0 },
		"too many certs":   func(c *Config) { c.MaxCertsPerBlock = 4097 },
		"zero ban trigger": func(c *Config) { c.BanThreshold = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "certd.yaml")
	body := "network: mainnet\ndataDir: /tmp/sc\nmode: lite\nmaxCertsPerBlock: 8\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "mainnet" || cfg.DataDir != "/tmp/sc" || cfg.Mode != ModeLite || cfg.MaxCertsPerBlock != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.CoinsMaturity != DefaultCoinsMaturity("mainnet") {
		t.Fatalf("maturity=%d, want network default", cfg.CoinsMaturity)
	}
	if cfg.LogLevel != "info" || !cfg.RequireStandard {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
}

func TestLoadConfigExplicitMaturity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "certd.yaml")
	if err := os.WriteFile(path, []byte("network: mainnet\ncoinsMaturity: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CoinsMaturity != 0 {
		t.Fatalf("maturity=%d, want 0", cfg.CoinsMaturity)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "certd.yaml")
	if err := os.WriteFile(path, []byte("network: mainnet\nmaxPeers: 3\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
