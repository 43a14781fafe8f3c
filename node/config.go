package node

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"sccert.dev/node/consensus"
)

const (
	ModeFull = "full"
	ModeLite = "lite"
)

type Config struct {
	Network          string `yaml:"network" json:"network"`
	DataDir          string `yaml:"dataDir" json:"data_dir"`
	LogLevel         string `yaml:"logLevel" json:"log_level"`
	LogFile          string `yaml:"logFile" json:"log_file"`
	Mode             string `yaml:"mode" json:"mode"`
	CoinsMaturity    int    `yaml:"coinsMaturity" json:"coins_maturity"`
	RequireStandard  bool   `yaml:"requireStandard" json:"require_standard"`
	MinRelayFeePerKB int64  `yaml:"minRelayFeePerKB" json:"min_relay_fee_per_kb"`
	MaxCertsPerBlock int    `yaml:"maxCertsPerBlock" json:"max_certs_per_block"`
	BanThreshold     int    `yaml:"banThreshold" json:"ban_threshold"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedNetworks = map[string]int{
	"mainnet": 10,
	"testnet": 10,
	"regtest": 2,
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".sccert"
	}
	return filepath.Join(home, ".sccert")
}

// DefaultCoinsMaturity returns the sidechain forward-transfer maturity of a
// known network, or -1.
func DefaultCoinsMaturity(network string) int {
	m, ok := allowedNetworks[network]
	if !ok {
		return -1
	}
	return m
}

func DefaultConfig() Config {
	return Config{
		Network:          "regtest",
		DataDir:          DefaultDataDir(),
		LogLevel:         "info",
		Mode:             ModeFull,
		CoinsMaturity:    DefaultCoinsMaturity("regtest"),
		RequireStandard:  true,
		MinRelayFeePerKB: 100,
		MaxCertsPerBlock: 64,
		BanThreshold:     BanThreshold,
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. Unknown keys are
// rejected. A missing coinsMaturity falls back to the network default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	cfg.CoinsMaturity = -1
	raw, err := readConfigFile(path, MaxConfigFileBytes)
	if err != nil {
		return Config{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.SetStrict(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "decode config %s", path)
	}
	if cfg.CoinsMaturity < 0 {
		cfg.CoinsMaturity = DefaultCoinsMaturity(cfg.Network)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if _, ok := allowedNetworks[cfg.Network]; !ok {
		return errors.Errorf("unknown network %q", cfg.Network)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return errors.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.Mode != ModeFull && cfg.Mode != ModeLite {
		return errors.Errorf("invalid mode %q", cfg.Mode)
	}
	if cfg.CoinsMaturity < 0 {
		return errors.New("coins_maturity must be >= 0")
	}
	if cfg.MinRelayFeePerKB < 0 {
		return errors.New("min_relay_fee_per_kb must be >= 0")
	}
	if cfg.MinRelayFeePerKB > int64(consensus.MAX_MONEY) {
		return errors.Errorf("min_relay_fee_per_kb must be <= %d", int64(consensus.MAX_MONEY))
	}
	if cfg.MaxCertsPerBlock <= 0 {
		return errors.New("max_certs_per_block must be > 0")
	}
	if cfg.MaxCertsPerBlock > 4096 {
		return errors.New("max_certs_per_block must be <= 4096")
	}
	if cfg.BanThreshold <= 0 {
		return errors.New("ban_threshold must be > 0")
	}
	return nil
}
