package middleware_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/adapters/memory"
	"github.com/aretw0/flashsol/pkg/credential"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, credential.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func newVault(t *testing.T, active []byte, fallbacks ...[]byte) *credential.Vault {
	v, err := credential.NewVault(active, fallbacks...)
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	return v
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(newVault(t, generateKey(t)), middleware.KeyPrefixes("passkeyCache:"))
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	secret := []byte(`{"ciphertext":"abcd","iv":"00"}`)

	if err := secureStore.Set(ctx, "passkeyCache:1", secret, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stored, err := underlyingStore.Get(ctx, "passkeyCache:1")
	if err != nil {
		t.Fatalf("Underlying get failed: %v", err)
	}
	if bytes.Contains(stored, []byte("ciphertext")) {
		t.Fatalf("Expected value to be sealed, found: %s", stored)
	}

	loaded, err := secureStore.Get(ctx, "passkeyCache:1")
	if err != nil {
		t.Fatalf("Get via middleware failed: %v", err)
	}
	if !bytes.Equal(loaded, secret) {
		t.Errorf("Expected %s, got %s", secret, loaded)
	}
}

func TestEncryptionMiddleware_UnmatchedKeysPassThrough(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewEncryptionMiddleware(newVault(t, generateKey(t)), middleware.KeyPrefixes("passkeyCache:"))(underlyingStore)

	ctx := context.Background()
	if err := secureStore.Set(ctx, "bot:flowState:1", []byte(`{"flow":"buy"}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	stored, _ := underlyingStore.Get(ctx, "bot:flowState:1")
	if string(stored) != `{"flow":"buy"}` {
		t.Errorf("Unmatched key should be stored in clear, got %s", stored)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(newVault(t, oldKey), nil)(underlyingStore)

	ctx := context.Background()
	if err := secureStoreOld.Set(ctx, "k", []byte("encrypted-with-old-key"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	secureStoreNew := middleware.NewEncryptionMiddleware(newVault(t, newKey, oldKey), nil)(underlyingStore)

	loaded, err := secureStoreNew.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get with rotated key failed: %v", err)
	}
	if string(loaded) != "encrypted-with-old-key" {
		t.Errorf("Decryption with fallback key failed")
	}

	if err := secureStoreNew.Set(ctx, "k", []byte("encrypted-with-new-key"), 0); err != nil {
		t.Fatalf("Set with new key failed: %v", err)
	}

	// The old vault cannot open new-key values; they read as absent.
	_, err = secureStoreOld.Get(ctx, "k")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign ciphertext, got %v", err)
	}
}

func TestEncryptionMiddleware_CorruptValueIsAbsent(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewEncryptionMiddleware(newVault(t, generateKey(t)), nil)(underlyingStore)

	ctx := context.Background()
	_ = underlyingStore.Set(ctx, "k", []byte("not-hex!"), 0)

	if _, err := secureStore.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEncryptionMiddleware_SetNX(t *testing.T) {
	secureStore := middleware.NewEncryptionMiddleware(newVault(t, generateKey(t)), nil)(memory.NewStore())
	ctx := context.Background()

	ok, err := secureStore.SetNX(ctx, "k", []byte("first"), 0)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}
	ok, _ = secureStore.SetNX(ctx, "k", []byte("second"), 0)
	if ok {
		t.Fatal("second SetNX should not store")
	}
	v, _ := secureStore.Get(ctx, "k")
	if string(v) != "first" {
		t.Errorf("Expected first, got %s", v)
	}
}

func TestEncryptionMiddleware_NilVault(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for nil vault")
		}
	}()
	middleware.NewEncryptionMiddleware(nil, nil)
}
