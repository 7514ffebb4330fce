package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = strings.Repeat("ab", 32)

const wsol = "So11111111111111111111111111111111111111112"

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FLASHSOL_MASTER_KEY", testKey)

	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 0, cfg.RPC.MaxRetries)
	assert.Equal(t, domain.ProcessingLockTTL, cfg.Trade.LockTTL)
	assert.Equal(t, trade.DefaultQuoteMaxAge, cfg.Trade.QuoteMaxAge)
	assert.Equal(t, time.Second, cfg.Trade.Debounce)
	assert.False(t, cfg.Redis.Enabled())

	// No recipient configured: fees are off regardless of bps.
	assert.Equal(t, trade.DefaultFeeBps, cfg.Fee.Bps)
	assert.False(t, cfg.FeePolicy().Enabled())
}

func TestLoad_MasterKeyRequired(t *testing.T) {
	_, err := Load("", noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLASHSOL_MASTER_KEY")

	t.Setenv("FLASHSOL_MASTER_KEY", "abcd")
	_, err = Load("", noEnvFile(t))
	assert.ErrorContains(t, err, "32 bytes")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashsol.yaml")
	yamlDoc := `
log_level: debug
rpc:
  url: http://localhost:8899
  poll_interval: 500ms
redis:
  addr: localhost:6379
  prefix: "fs:"
fee:
  bps: 50
  recipient: ` + wsol + `
  reserve_lamports: 1000
trade:
  quote_max_age: 10s
security:
  master_key: ` + testKey + `
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("FLASHSOL_LOG_LEVEL", "warn")
	t.Setenv("FLASHSOL_CONFIRM_TIMEOUT", "90s")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel, "env overrides file")
	assert.Equal(t, "http://localhost:8899", cfg.RPC.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.RPC.PollInterval)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "fs:", cfg.Redis.Prefix)
	assert.Equal(t, 10*time.Second, cfg.Trade.QuoteMaxAge)
	assert.Equal(t, 90*time.Second, cfg.Trade.ConfirmTimeout)

	fee := cfg.FeePolicy()
	assert.True(t, fee.Enabled())
	assert.Equal(t, uint32(50), fee.Bps)
	assert.Equal(t, uint64(1000), fee.ReserveLamports)
	assert.Equal(t, wsol, fee.Recipient.String())
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FLASHSOL_MASTER_KEY="+testKey+"\nFLASHSOL_FEE_BPS=250\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("FLASHSOL_MASTER_KEY")
		os.Unsetenv("FLASHSOL_FEE_BPS")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(250), cfg.Fee.Bps)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"bad duration", "FLASHSOL_LOCK_TTL", "soon", "FLASHSOL_LOCK_TTL"},
		{"bad integer", "FLASHSOL_FEE_BPS", "-1", "FLASHSOL_FEE_BPS"},
		{"fee too high", "FLASHSOL_FEE_BPS", "10001", "fee bps"},
		{"bad recipient", "FLASHSOL_FEE_RECIPIENT", "not-base58!", "fee recipient"},
		{"bad fallback key", "FLASHSOL_FALLBACK_KEYS", testKey + ",zz", "fallback key 1"},
		{"zero lock ttl", "FLASHSOL_LOCK_TTL", "0s", "lock ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FLASHSOL_MASTER_KEY", testKey)
			t.Setenv(tt.key, tt.value)

			_, err := Load("", noEnvFile(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestKeys_WithFallbacks(t *testing.T) {
	t.Setenv("FLASHSOL_MASTER_KEY", testKey)
	t.Setenv("FLASHSOL_FALLBACK_KEYS", strings.Repeat("01", 32)+", "+strings.Repeat("02", 32))

	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)

	active, fallbacks, err := cfg.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	require.Len(t, fallbacks, 2)
	assert.Equal(t, byte(2), fallbacks[1][0])
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("FLASHSOL_MASTER_KEY", testKey)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
	assert.ErrorContains(t, err, "read config")
}
