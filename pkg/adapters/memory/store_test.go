package memory_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/adapters/memory"
	"github.com/aretw0/flashsol/pkg/ports"
	"github.com/aretw0/flashsol/pkg/ports/tests"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_Contract(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	ports.RunKVStoreContract(t, store, clock.Advance)
}

func TestMemoryStore_LenDropsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	ctx := t.Context()

	_ = store.Set(ctx, "short", []byte("1"), time.Second)
	_ = store.Set(ctx, "forever", []byte("1"), 0)
	if got := store.Len(); got != 2 {
		t.Fatalf("expected 2 keys, got %d", got)
	}

	clock.Advance(time.Second)
	if got := store.Len(); got != 1 {
		t.Errorf("expected 1 key after expiry, got %d", got)
	}
}

func TestWalletStore_Contract(t *testing.T) {
	tests.WalletStoreContractTest(t, memory.NewWalletStore())
}

func TestTradeLog_Contract(t *testing.T) {
	tests.TradeLogContractTest(t, memory.NewTradeLog())
}
