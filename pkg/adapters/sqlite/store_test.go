package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/flashsol/pkg/adapters/sqlite"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "flashsol.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_WalletStoreContract(t *testing.T) {
	tests.WalletStoreContractTest(t, openStore(t))
}

func TestSQLite_TradeLogContract(t *testing.T) {
	tests.TradeLogContractTest(t, openStore(t))
}

func TestSQLite_InMemory(t *testing.T) {
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	tests.TradeLogContractTest(t, s)
}

func TestSQLite_LargeAmounts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec := domain.TradeRecord{
		UserID:    "1",
		Direction: domain.Sell,
		TokenMint: "mint",
		InAmount:  ^uint64(0),
		OutAmount: 1 << 63,
		Outcome:   domain.OutcomeSuccess,
	}
	require.NoError(t, s.Record(ctx, rec))

	recs, err := s.List(ctx, "1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ^uint64(0), recs[0].InAmount)
	assert.Equal(t, uint64(1<<63), recs[0].OutAmount)
	assert.Equal(t, domain.Sell, recs[0].Direction)
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "flashsol.db")
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveWallet(context.Background(), &domain.Wallet{UserID: "u", PublicKey: "pk", SlippageBps: 300}))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()
	w, err := s.GetWallet(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, uint32(300), w.SlippageBps)
}
