package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	nativecommon "refledger/native/common"
	"refledger/native/referral"
)

const (
	defaultDataDir     = "./refledger-data"
	defaultEnvironment = "local"
	defaultMetricsAddr = ":9102"
)

type Config struct {
	DataDir        string   `toml:"DataDir" yaml:"data_dir"`
	Environment    string   `toml:"Environment" yaml:"environment"`
	LogFile        string   `toml:"LogFile" yaml:"log_file"`
	MetricsAddress string   `toml:"MetricsAddress" yaml:"metrics_address"`
	Referral       Referral `toml:"referral" yaml:"referral"`
	Pauses         Pauses   `toml:"pauses" yaml:"pauses"`
}

// Referral carries the raw referral program parameters. They are validated by
// ReferralConfig.
type Referral struct {
	LevelRates                []uint64   `toml:"LevelRates" yaml:"level_rates"`
	ReferralBonusRate         uint64     `toml:"ReferralBonusRate" yaml:"referral_bonus_rate"`
	Decimals                  uint64     `toml:"Decimals" yaml:"decimals"`
	SecondsUntilInactive      uint64     `toml:"SecondsUntilInactive" yaml:"seconds_until_inactive"`
	OnlyRewardActiveReferrers bool       `toml:"OnlyRewardActiveReferrers" yaml:"only_reward_active_referrers"`
	RateTiers                 []RateTier `toml:"RateTiers" yaml:"rate_tiers"`
}

// RateTier is a threshold/rate pair. Threshold is a base-10 integer string so
// that amounts beyond 64 bits can be configured.
type RateTier struct {
	Threshold string `toml:"Threshold" yaml:"threshold"`
	Rate      uint64 `toml:"Rate" yaml:"rate"`
}

type Pauses struct {
	Referral bool `toml:"Referral" yaml:"referral"`
}

// Load loads the configuration from the given path. TOML files that do not
// exist yet are created with defaults; .yaml and .yml files must exist.
func Load(path string) (*Config, error) {
	var cfg *Config
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		cfg, err = loadTOML(path)
	}
	if err != nil {
		return nil, err
	}
	cfg.normalize()
	if _, err := cfg.ReferralConfig(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func loadTOML(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := undecoded()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := undecoded()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// undecoded returns the value files are decoded into. Decimals is seeded so
// that only an absent key falls back to the default; an explicit zero is kept
// and rejected by validation.
func undecoded() *Config {
	return &Config{Referral: Referral{Decimals: referral.DefaultDecimals}}
}

// Default returns the configuration written by createDefault: two levels
// (80% / 20%) sharing a 5% referral pool, with a one-day activity window.
func Default() *Config {
	return &Config{
		DataDir:        defaultDataDir,
		Environment:    defaultEnvironment,
		MetricsAddress: defaultMetricsAddr,
		Referral: Referral{
			LevelRates:           []uint64{8000, 2000},
			ReferralBonusRate:    500,
			Decimals:             referral.DefaultDecimals,
			SecondsUntilInactive: 24 * 60 * 60,
			RateTiers:            []RateTier{{Threshold: "1", Rate: referral.DefaultDecimals}},
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := Persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Persist writes cfg as TOML to path, creating parent directories.
func Persist(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
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

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	c.Environment = strings.TrimSpace(c.Environment)
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	c.LogFile = strings.TrimSpace(c.LogFile)
	c.MetricsAddress = strings.TrimSpace(c.MetricsAddress)
	if c.MetricsAddress == "" {
		c.MetricsAddress = defaultMetricsAddr
	}
}

// ReferralConfig converts the raw parameters into the validated, immutable
// referral configuration.
func (c *Config) ReferralConfig() (*referral.Config, error) {
	if c == nil {
		return nil, errors.New("config: nil config")
	}
	p := c.Referral
	levels := make([]referral.Rate, len(p.LevelRates))
	for i, rate := range p.LevelRates {
		levels[i] = referral.Rate(rate)
	}
	tiers := make([]referral.RateTier, len(p.RateTiers))
	for i, tier := range p.RateTiers {
		threshold, err := parseAmount(tier.Threshold)
		if err != nil {
			return nil, fmt.Errorf("%w: tier %d: %v", referral.ErrInvalidRateTier, i, err)
		}
		tiers[i] = referral.RateTier{Threshold: threshold, Rate: referral.Rate(tier.Rate)}
	}
	return referral.NewConfig(levels, referral.Rate(p.ReferralBonusRate), p.Decimals, p.SecondsUntilInactive, p.OnlyRewardActiveReferrers, tiers)
}

// PauseView exposes the configured module pauses to the native guards.
func (c *Config) PauseView() nativecommon.Pauses {
	return nativecommon.Pauses{"referral": c.Pauses.Referral}
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errors.New("amount is empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}
