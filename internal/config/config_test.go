package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Database.User = "opd"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultMinIOBucket, cfg.MinIO.Bucket)
	assert.Equal(t, DefaultWaitingPeriodDays, cfg.Policy.WaitingPeriodDays)
	assert.Equal(t, DefaultManualReviewThreshold, cfg.Policy.ManualReviewThreshold)
	assert.Contains(t, cfg.Policy.CategoryCaps, "consultation")
	assert.Contains(t, cfg.Policy.NetworkHospitals, "Apollo")
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Policy.WaitingPeriodDays = 30
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Policy.WaitingPeriodDays)
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("bad server mode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Mode = "production"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing db user", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.User = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("copay out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Policy.NonNetworkCopayPct = 150
		assert.Error(t, cfg.Validate())
	})

	t.Run("threshold out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Policy.ManualReviewThreshold = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative category cap", func(t *testing.T) {
		cfg := validConfig()
		cfg.Policy.CategoryCaps["dental"] = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8081
  mode: test
database:
  user: opd
  password: secret
policy:
  waiting_period_days: 60
  non_network_copay_pct: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Mode)
	assert.Equal(t, 60, cfg.Policy.WaitingPeriodDays)
	assert.Equal(t, int64(10), cfg.Policy.NonNetworkCopayPct)
	// Unset fields fall back to defaults.
	assert.Equal(t, int64(DefaultAnnualLimit), cfg.Policy.AnnualLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
