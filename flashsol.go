package flashsol

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/flashsol/internal/config"
	"github.com/aretw0/flashsol/internal/logging"
	"github.com/aretw0/flashsol/pkg/adapters/memory"
	"github.com/aretw0/flashsol/pkg/adapters/redis"
	"github.com/aretw0/flashsol/pkg/adapters/sqlite"
	"github.com/aretw0/flashsol/pkg/credential"
	"github.com/aretw0/flashsol/pkg/flow"
	"github.com/aretw0/flashsol/pkg/jupiter"
	"github.com/aretw0/flashsol/pkg/observability"
	"github.com/aretw0/flashsol/pkg/persistence/middleware"
	"github.com/aretw0/flashsol/pkg/ports"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/trade"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the release of this build.
//
//go:embed VERSION
var Version string

var (
	_ ports.Chain         = (*solana.Client)(nil)
	_ ports.TokenMetadata = (*solana.Client)(nil)
	_ ports.Router        = (*jupiter.Client)(nil)
	_ ports.Locker        = (*session.Manager)(nil)
	_ ports.WalletStore   = (*sqlite.Store)(nil)
	_ ports.TradeLog      = (*sqlite.Store)(nil)
	_ flow.Trader         = (*trade.Engine)(nil)
)

// App is the assembled service: session state over the configured store,
// durable wallets, the chain and routing clients, the trade engine and the
// flow orchestrator on top.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	Store        ports.KVStore
	State        *session.Manager
	Sessions     *credential.Sessions
	Wallets      *sqlite.Store
	Chain        *solana.Client
	Router       *jupiter.Client
	Engine       *trade.Engine
	Orchestrator *flow.Orchestrator

	closers []func() error
	pingers []Pinger
}

// Pinger is a backend whose reachability is reported by health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option defines a functional option for configuring the App.
type Option func(*App)

// WithLogger sets a custom structured logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithStore injects the raw session store, bypassing Redis and the
// in-process fallback. The store is still wrapped with instrumentation,
// masking and encryption.
func WithStore(store ports.KVStore) Option {
	return func(a *App) {
		a.Store = store
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.Metrics = observability.NewMetricsWith(reg, reg, "")
	}
}

// New assembles the App described by cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.Logger == nil {
		app.Logger = logging.NewNop()
	}
	if app.Metrics == nil {
		app.Metrics = observability.NewMetrics("")
	}

	active, fallbacks, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	vault, err := credential.NewVault(active, fallbacks...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault: %w", err)
	}

	raw, err := app.openStore()
	if err != nil {
		return nil, err
	}
	app.Store = middleware.Chain(raw,
		middleware.NewMetricsMiddleware(app.Metrics),
		middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns),
		middleware.NewEncryptionMiddleware(vault, middleware.KeyPrefixes(session.SensitivePrefixes...)),
	)

	app.Wallets, err = sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to open wallet database: %w", err)
	}
	app.closers = append(app.closers, app.Wallets.Close)
	app.pingers = append(app.pingers, app.Wallets)

	app.Chain = solana.NewClient(cfg.RPC.URL,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithMaxRetries(cfg.RPC.MaxRetries),
		solana.WithPollInterval(cfg.RPC.PollInterval),
		solana.WithCommitment(cfg.RPC.Commitment),
	)

	routerOpts := []jupiter.Option{jupiter.WithHTTPClient(&http.Client{Timeout: cfg.Jupiter.Timeout})}
	if cfg.Jupiter.BaseURL != "" {
		routerOpts = append(routerOpts, jupiter.WithBaseURL(cfg.Jupiter.BaseURL))
	}
	app.Router = jupiter.New(cfg.Jupiter.APIKey, routerOpts...)

	app.State = session.NewManager(app.Store, session.WithLogger(app.Logger.With("component", "session")))
	app.Sessions = credential.NewSessions(app.State, vault, cfg.Security.SessionTTL)

	fee := cfg.FeePolicy()
	if !fee.Enabled() {
		app.Logger.Info("Service fee disabled")
	}
	app.Engine = trade.NewEngine(app.State, app.Router, app.Chain,
		trade.WithLogger(app.Logger.With("component", "trade")),
		trade.WithMetrics(app.Metrics),
		trade.WithTradeLog(app.Wallets),
		trade.WithFeePolicy(fee),
		trade.WithLockTTL(cfg.Trade.LockTTL),
		trade.WithQuoteMaxAge(cfg.Trade.QuoteMaxAge),
		trade.WithCallTimeout(cfg.Trade.CallTimeout),
		trade.WithConfirmTimeout(cfg.Trade.ConfirmTimeout),
	)

	app.Orchestrator = flow.NewOrchestrator(app.State, app.Sessions, app.Wallets, app.Chain, app.Engine,
		flow.WithLogger(app.Logger.With("component", "flow")),
		flow.WithMetrics(app.Metrics),
		flow.WithDebounceWindow(cfg.Trade.Debounce),
		flow.WithTokenMetadata(app.Chain),
	)
	return app, nil
}

func (a *App) openStore() (ports.KVStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}

	rc := a.Config.Redis
	if !rc.Enabled() {
		a.Logger.Warn("No Redis configured, session state is process-local")
		return memory.NewStore(), nil
	}

	var opts []redis.Option
	if rc.Prefix != "" {
		opts = append(opts, redis.WithPrefix(rc.Prefix))
	}
	var store *redis.Store
	if rc.URL != "" {
		var err error
		if store, err = redis.NewFromURL(rc.URL, opts...); err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
	} else {
		store = redis.New(rc.Addr, rc.Password, rc.DB, opts...)
	}
	a.closers = append(a.closers, store.Close)
	a.pingers = append(a.pingers, store)
	return store, nil
}

// HealthChecks returns the backends a readiness probe should ping.
func (a *App) HealthChecks() []Pinger {
	return a.pingers
}

// Close releases the store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
