package ports

import (
	"context"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
)

// KVStore is the ephemeral key/value store behind session state.
// A ttl of zero means the key never expires.
type KVStore interface {
	// Set stores value under key, replacing any previous value and TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// SetNX stores value only if key does not exist, as one atomic step.
	// It reports whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// CompareAndDelete removes key only if it still holds value.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)

	// CompareAndExpire resets the TTL of key only if it still holds value.
	CompareAndExpire(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// WalletStore persists user wallets.
type WalletStore interface {
	// GetWallet returns domain.ErrWalletNotFound when the user has no wallet.
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	SaveWallet(ctx context.Context, w *domain.Wallet) error
	DeleteWallet(ctx context.Context, userID string) error
	SetSlippage(ctx context.Context, userID string, bps uint32) error
}

// TradeLog is the append-only history of executed trades.
type TradeLog interface {
	Record(ctx context.Context, rec domain.TradeRecord) error
	List(ctx context.Context, userID string, limit int) ([]domain.TradeRecord, error)
}
