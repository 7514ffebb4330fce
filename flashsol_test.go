package flashsol_test

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flashsol"
	"github.com/aretw0/flashsol/internal/config"
	"github.com/aretw0/flashsol/pkg/adapters/memory"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/flow"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Security.MasterKey = strings.Repeat("11", 32)
	cfg.SQLite.Path = ":memory:"
	cfg.Trade.Debounce = 0
	return cfg
}

func TestNew_RedisStack(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.Addr = mr.Addr()

	reg := prometheus.NewRegistry()
	app, err := flashsol.New(cfg, flashsol.WithRegistry(reg))
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	for _, p := range app.HealthChecks() {
		require.NoError(t, p.Ping(ctx))
	}
	assert.Len(t, app.HealthChecks(), 2)

	reply := app.Orchestrator.Start(ctx, "u1", flow.CommandWallet)
	require.Nil(t, reply.Error, reply.Text)
	require.True(t, reply.AwaitingPasskey)

	// The pending wallet travels encrypted at rest.
	raw, err := mr.Get(session.PasskeyKey("u1"))
	require.NoError(t, err)
	assert.NotContains(t, raw, "ciphertext")

	reply = app.Orchestrator.Input(ctx, "u1", "2468")
	require.Nil(t, reply.Error, reply.Text)
	assert.Contains(t, reply.Text, "created")

	w, err := app.Wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, w.PasskeyHash)

	raw, err = mr.Get(session.SecureSessionKey("u1"))
	require.NoError(t, err)
	assert.NotContains(t, raw, "ciphertext")

	active, err := app.Sessions.Active(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, active)

	assert.Greater(t, testutil.CollectAndCount(app.Metrics.StoreOpDuration), 0)
}

func TestNew_InjectedStore(t *testing.T) {
	store := memory.NewStore()
	app, err := flashsol.New(testConfig(), flashsol.WithStore(store))
	require.NoError(t, err)
	defer app.Close()

	// Only the wallet database is pinged: the injected store is not owned.
	assert.Len(t, app.HealthChecks(), 1)

	reply := app.Orchestrator.Start(context.Background(), "u2", domain.FlowBuy)
	require.NotNil(t, reply.Error)
	assert.Equal(t, flow.KindNoWallet, reply.Error.Kind)
}

func TestNew_RejectsBadKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MasterKey = "short"
	_, err := flashsol.New(cfg)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(flashsol.Version))
}
