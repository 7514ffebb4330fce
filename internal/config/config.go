// Package config loads flashsol settings from defaults, an optional YAML
// file, an optional .env file and FLASHSOL_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/flashsol/pkg/credential"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/jupiter"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/trade"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FLASHSOL_"

// Config holds all application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	RPC      RPCConfig      `yaml:"rpc"`
	Jupiter  JupiterConfig  `yaml:"jupiter"`
	Redis    RedisConfig    `yaml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Security SecurityConfig `yaml:"security"`
	Fee      FeeConfig      `yaml:"fee"`
	Trade    TradeConfig    `yaml:"trade"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type RPCConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Commitment   string        `yaml:"commitment"`
}

// JupiterConfig points at the swap aggregator. An empty BaseURL picks the
// keyed or public endpoint depending on APIKey.
type JupiterConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig selects the session store. With neither URL nor Addr set an
// in-process store is used, which only suits a single instance.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Addr != ""
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type SecurityConfig struct {
	// MasterKey is the hex AES-256 key sealing secrets at rest.
	MasterKey string `yaml:"master_key"`
	// FallbackKeys still open records sealed before a key rotation.
	FallbackKeys []string      `yaml:"fallback_keys"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

type FeeConfig struct {
	Bps             uint32 `yaml:"bps"`
	Recipient       string `yaml:"recipient"`
	ReserveLamports uint64 `yaml:"reserve_lamports"`
}

type TradeConfig struct {
	LockTTL        time.Duration `yaml:"lock_ttl"`
	QuoteMaxAge    time.Duration `yaml:"quote_max_age"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	Debounce       time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Addr: ":8080"},
		RPC: RPCConfig{
			URL:          "https://api.mainnet-beta.solana.com",
			Timeout:      solana.DefaultTimeout,
			MaxRetries:   solana.DefaultMaxRetries,
			PollInterval: solana.DefaultPollInterval,
			Commitment:   solana.DefaultCommitment,
		},
		Jupiter:  JupiterConfig{Timeout: jupiter.DefaultTimeout},
		SQLite:   SQLiteConfig{Path: "./data/flashsol.db"},
		Security: SecurityConfig{SessionTTL: domain.SecureSessionTTL},
		Fee: FeeConfig{
			Bps:             trade.DefaultFeeBps,
			ReserveLamports: trade.DefaultReserveLamports,
		},
		Trade: TradeConfig{
			LockTTL:        domain.ProcessingLockTTL,
			QuoteMaxAge:    trade.DefaultQuoteMaxAge,
			CallTimeout:    trade.DefaultCallTimeout,
			ConfirmTimeout: trade.DefaultConfirmTimeout,
			Debounce:       domain.DebounceWindow,
		},
	}
}

// Load builds the configuration. path names a YAML file and may be empty.
// envFiles default to ".env"; missing ones are skipped and they never
// override variables already set in the environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, bits int, set func(uint64)) {
		if v, ok := lookup(key); ok {
			n, err := strconv.ParseUint(v, 10, bits)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			set(n)
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("HTTP_ADDR", &c.HTTP.Addr)

	str("RPC_URL", &c.RPC.URL)
	dur("RPC_TIMEOUT", &c.RPC.Timeout)
	integer("RPC_MAX_RETRIES", 31, func(n uint64) { c.RPC.MaxRetries = int(n) })
	dur("POLL_INTERVAL", &c.RPC.PollInterval)
	str("RPC_COMMITMENT", &c.RPC.Commitment)

	str("JUPITER_URL", &c.Jupiter.BaseURL)
	str("JUPITER_API_KEY", &c.Jupiter.APIKey)
	dur("JUPITER_TIMEOUT", &c.Jupiter.Timeout)

	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", 31, func(n uint64) { c.Redis.DB = int(n) })
	str("REDIS_PREFIX", &c.Redis.Prefix)

	str("SQLITE_PATH", &c.SQLite.Path)

	str("MASTER_KEY", &c.Security.MasterKey)
	if v, ok := lookup("FALLBACK_KEYS"); ok {
		c.Security.FallbackKeys = splitList(v)
	}
	dur("SESSION_TTL", &c.Security.SessionTTL)

	integer("FEE_BPS", 32, func(n uint64) { c.Fee.Bps = uint32(n) })
	str("FEE_RECIPIENT", &c.Fee.Recipient)
	integer("FEE_RESERVE_LAMPORTS", 64, func(n uint64) { c.Fee.ReserveLamports = n })

	dur("LOCK_TTL", &c.Trade.LockTTL)
	dur("QUOTE_MAX_AGE", &c.Trade.QuoteMaxAge)
	dur("CALL_TIMEOUT", &c.Trade.CallTimeout)
	dur("CONFIRM_TIMEOUT", &c.Trade.ConfirmTimeout)
	dur("DEBOUNCE", &c.Trade.Debounce)

	return errors.Join(errs...)
}

// Validate checks that the configuration can start the service.
func (c *Config) Validate() error {
	if c.RPC.URL == "" {
		return errors.New("rpc url cannot be empty")
	}
	if c.SQLite.Path == "" {
		return errors.New("sqlite path cannot be empty")
	}
	if c.Security.MasterKey == "" {
		return errors.New("master key is required (" + EnvPrefix + "MASTER_KEY)")
	}
	if _, _, err := c.Keys(); err != nil {
		return err
	}
	if c.Security.SessionTTL <= 0 {
		return errors.New("session ttl must be > 0")
	}
	if c.Fee.Bps > 10_000 {
		return fmt.Errorf("fee bps must be <= 10000, got %d", c.Fee.Bps)
	}
	if c.Fee.Recipient != "" {
		if _, err := solana.ParsePublicKey(c.Fee.Recipient); err != nil {
			return fmt.Errorf("fee recipient: %w", err)
		}
	}
	if c.Trade.LockTTL <= 0 {
		return errors.New("lock ttl must be > 0")
	}
	if c.Trade.ConfirmTimeout <= 0 {
		return errors.New("confirm timeout must be > 0")
	}
	if c.Trade.Debounce < 0 {
		return errors.New("debounce cannot be negative")
	}
	return nil
}

// Keys decodes the master key and fallback keys.
func (c *Config) Keys() (active []byte, fallbacks [][]byte, err error) {
	active, err = credential.ParseKey(c.Security.MasterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("master key: %w", err)
	}
	for i, k := range c.Security.FallbackKeys {
		fb, err := credential.ParseKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		fallbacks = append(fallbacks, fb)
	}
	return active, fallbacks, nil
}

// FeePolicy returns the fee policy, disabled when no recipient is set.
func (c *Config) FeePolicy() trade.FeePolicy {
	p := trade.FeePolicy{Bps: c.Fee.Bps, ReserveLamports: c.Fee.ReserveLamports}
	if c.Fee.Recipient != "" {
		// Validate already rejected malformed recipients.
		p.Recipient, _ = solana.ParsePublicKey(c.Fee.Recipient)
	}
	return p
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
