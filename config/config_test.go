package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"refledger/native/referral"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, defaultDataDir, cfg.DataDir)
	require.Equal(t, []uint64{8000, 2000}, cfg.Referral.LevelRates)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be persisted")

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)

	rc, err := reloaded.ReferralConfig()
	require.NoError(t, err)
	require.Equal(t, referral.Rate(500), rc.ReferralBonusRate())
	require.Equal(t, 1, rc.RateTiers().Len())
}

func TestLoadParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `DataDir = "/var/lib/refledger"
Environment = "prod"
LogFile = "/var/log/refledger.log"
MetricsAddress = "127.0.0.1:9300"

[referral]
LevelRates = [5000, 3000, 2000]
ReferralBonusRate = 1000
Decimals = 10000
SecondsUntilInactive = 3600
OnlyRewardActiveReferrers = true

[[referral.RateTiers]]
Threshold = "100"
Rate = 2500

[[referral.RateTiers]]
Threshold = "1000000000000000000000"
Rate = 5000

[pauses]
Referral = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/refledger", cfg.DataDir)
	require.Equal(t, "prod", cfg.Environment)
	require.Equal(t, "/var/log/refledger.log", cfg.LogFile)
	require.Equal(t, "127.0.0.1:9300", cfg.MetricsAddress)
	require.True(t, cfg.PauseView().IsPaused("referral"))

	rc, err := cfg.ReferralConfig()
	require.NoError(t, err)
	require.Equal(t, 3, rc.Depth())
	require.True(t, rc.OnlyRewardActiveReferrers())
	require.Equal(t, uint64(3600), rc.SecondsUntilInactive())
	tiers := rc.RateTiers().Tiers()
	require.Len(t, tiers, 2)
	require.Equal(t, "1000000000000000000000", tiers[1].Threshold.String())
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `data_dir: ./data
referral:
  level_rates: [7000, 3000]
  referral_bonus_rate: 250
  seconds_until_inactive: 60
  rate_tiers:
    - threshold: "0"
      rate: 10000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, defaultEnvironment, cfg.Environment)
	require.Equal(t, uint64(referral.DefaultDecimals), cfg.Referral.Decimals)
	require.False(t, cfg.PauseView().IsPaused("referral"))
}

func TestLoadRejectsInvalidReferralParameters(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]struct {
		body string
		want error
	}{
		"missing levels": {`[referral]
LevelRates = []
`, referral.ErrMissingLevelRates},
		"too many levels": {`[referral]
LevelRates = [4000, 3000, 2000, 1000]
`, referral.ErrExceedsMaxLevelDepth},
		"level overflow": {`[referral]
LevelRates = [4000, 4000, 4000]
`, referral.ErrTotalLevelRateOverflow},
		"bonus overflow": {`[referral]
LevelRates = [8000, 2000]
ReferralBonusRate = 20000
`, referral.ErrReferralRateOverflow},
		"explicit zero decimals": {`[referral]
LevelRates = [8000, 2000]
Decimals = 0
`, referral.ErrInvalidDecimals},
		"bad tier threshold": {`[referral]
LevelRates = [8000, 2000]

[[referral.RateTiers]]
Threshold = "ten"
Rate = 1
`, referral.ErrInvalidRateTier},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			writeFile(t, path, tc.body)
			_, err := Load(path)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `DataDir = "./data"
ValidatorKey = "deadbeef"

[referral]
LevelRates = [10000]
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "ValidatorKey")
}

func TestLoadMissingYAMLFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}

func TestLoadDecimalsDefaultsOnlyWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `[referral]
LevelRates = [8000, 2000]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(referral.DefaultDecimals), cfg.Referral.Decimals)

	yamlPath := filepath.Join(dir, "config.yaml")
	writeFile(t, yamlPath, `referral:
  level_rates: [8000, 2000]
  decimals: 0
`)
	_, err = Load(yamlPath)
	require.ErrorIs(t, err, referral.ErrInvalidDecimals)
}
