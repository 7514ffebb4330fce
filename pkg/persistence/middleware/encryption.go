package middleware

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/aretw0/flashsol/pkg/credential"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/ports"
)

type encryptionMiddleware struct {
	ports.KVStore
	vault *credential.Vault
	match func(string) bool
}

// NewEncryptionMiddleware creates a middleware that seals values of
// matching keys with the vault (AES-256-GCM, hex encoded at rest).
// A nil match encrypts every key.
//
// A value that no vault key can open reads as domain.ErrNotFound.
// CompareAndDelete passes through untouched, so lock keys must not match.
func NewEncryptionMiddleware(vault *credential.Vault, match func(string) bool) Middleware {
	if vault == nil {
		panic("encryption middleware requires a vault")
	}
	if match == nil {
		match = func(string) bool { return true }
	}
	return func(next ports.KVStore) ports.KVStore {
		return &encryptionMiddleware{KVStore: next, vault: vault, match: match}
	}
}

func (m *encryptionMiddleware) seal(value []byte) ([]byte, error) {
	blob, err := m.vault.SealBlob(value)
	if err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(blob)), nil
}

func (m *encryptionMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !m.match(key) {
		return m.KVStore.Set(ctx, key, value, ttl)
	}
	sealed, err := m.seal(value)
	if err != nil {
		return err
	}
	return m.KVStore.Set(ctx, key, sealed, ttl)
}

func (m *encryptionMiddleware) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if !m.match(key) {
		return m.KVStore.SetNX(ctx, key, value, ttl)
	}
	sealed, err := m.seal(value)
	if err != nil {
		return false, err
	}
	return m.KVStore.SetNX(ctx, key, sealed, ttl)
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := m.KVStore.Get(ctx, key)
	if err != nil || !m.match(key) {
		return raw, err
	}
	blob, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, domain.ErrNotFound
	}
	plain, err := m.vault.OpenBlob(blob)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return plain, nil
}
