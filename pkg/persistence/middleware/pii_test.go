package middleware_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/adapters/memory"
	"github.com/aretw0/flashsol/pkg/observability"
	"github.com/aretw0/flashsol/pkg/persistence/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	value := []byte(`{"flow":"connect","privateKey":"5Kd3...","details":{"address":"So1","mnemonic":"a b c"},"items":[{"passkey":"1234"}]}`)

	if err := secureStore.Set(ctx, "bot:flowState:1", value, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stored, err := underlyingStore.Get(ctx, "bot:flowState:1")
	if err != nil {
		t.Fatalf("Underlying get failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(stored, &doc); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if doc["flow"] != "connect" {
		t.Error("flow shouldn't be masked")
	}
	if doc["privateKey"] != middleware.Mask {
		t.Errorf("privateKey should be masked, got: %v", doc["privateKey"])
	}
	details := doc["details"].(map[string]any)
	if details["mnemonic"] != middleware.Mask || details["address"] != "So1" {
		t.Errorf("Nested mnemonic should be masked, got: %v", details)
	}
	item := doc["items"].([]any)[0].(map[string]any)
	if item["passkey"] != middleware.Mask {
		t.Errorf("passkey in array should be masked, got: %v", item["passkey"])
	}
}

func TestPIIMiddleware_NonJSONUntouched(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)(underlyingStore)

	ctx := context.Background()
	if err := secureStore.Set(ctx, "bot:menuMessageId:1", []byte("42"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	stored, _ := underlyingStore.Get(ctx, "bot:menuMessageId:1")
	if string(stored) != "42" {
		t.Errorf("expected 42, got %s", stored)
	}
}

func TestChain_Order(t *testing.T) {
	underlyingStore := memory.NewStore()
	metrics := observability.NewMetrics("test")
	vault := newVault(t, generateKey(t))

	store := middleware.Chain(underlyingStore,
		middleware.NewMetricsMiddleware(metrics),
		middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns),
		middleware.NewEncryptionMiddleware(vault, middleware.KeyPrefixes("passkeyCache:")),
	)

	ctx := context.Background()
	if err := store.Set(ctx, "passkeyCache:9", []byte(`{"secret":"x","iv":"y"}`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, "passkeyCache:9")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// PII masking runs before encryption.
	if string(got) != `{"iv":"y","secret":"***"}` {
		t.Errorf("unexpected value %s", got)
	}
	if _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatal("expected ErrNotFound")
	}

	if n := testutil.ToFloat64(metrics.StoreOpErrors.WithLabelValues("get")); n != 0 {
		t.Errorf("missing keys must not count as errors, got %v", n)
	}
	if n := testutil.CollectAndCount(metrics.StoreOpDuration); n != 2 {
		t.Errorf("expected set and get series, got %d", n)
	}
}
