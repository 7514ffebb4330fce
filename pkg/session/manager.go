package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/flashsol/internal/logging"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/ports"
	"github.com/google/uuid"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager is the session state layer. It is safe for concurrent use.
// It uses Reference Counting to garbage collect unused in-process locks.
type Manager struct {
	store ports.KVStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active in-process locks

	logger       *slog.Logger
	newToken     func() string
	refreshEvery time.Duration
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTokenSource overrides how lock owner tokens are generated.
func WithTokenSource(fn func() string) Option {
	return func(m *Manager) {
		m.newToken = fn
	}
}

// WithLockRefresh sets how often a held lock is extended. Zero means a
// third of the lock TTL.
func WithLockRefresh(d time.Duration) Option {
	return func(m *Manager) {
		m.refreshEvery = d
	}
}

// NewManager creates a new session Manager over store.
func NewManager(store ports.KVStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		logger:   logging.NewNop(),
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func unavailable(op string, err error) error {
	return domain.WrapError(domain.KindStoreUnavailable, op, err)
}

// SetState stores value as JSON under key. A zero ttl never expires.
func (m *Manager) SetState(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := m.store.Set(ctx, key, data, ttl); err != nil {
		return unavailable("failed to write session state", err)
	}
	return nil
}

// GetState decodes the record under key into out. It reports false when
// the record is missing or cannot be decoded.
func (m *Manager) GetState(ctx context.Context, key string, out any) (bool, error) {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, unavailable("failed to read session state", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		m.logger.Warn("Discarding corrupt session record", "key", key, "err", err)
		return false, nil
	}
	return true, nil
}

// DeleteState removes the record under key.
func (m *Manager) DeleteState(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return unavailable("failed to delete session state", err)
	}
	return nil
}

// SetLock atomically takes the processing lock of userID for ttl and
// reports whether it was taken. The lock cannot be released by owner;
// use Acquire when the caller releases it.
func (m *Manager) SetLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	ok, err := m.store.SetNX(ctx, LockKey(userID), []byte(m.newToken()), ttl)
	if err != nil {
		return false, unavailable("failed to acquire lock", err)
	}
	return ok, nil
}

// IsLocked reports whether userID currently holds the processing lock.
func (m *Manager) IsLocked(ctx context.Context, userID string) (bool, error) {
	ok, err := m.store.Exists(ctx, LockKey(userID))
	if err != nil {
		return false, unavailable("failed to check lock", err)
	}
	return ok, nil
}

// ReleaseLock deletes the lock of userID regardless of owner.
func (m *Manager) ReleaseLock(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, LockKey(userID)); err != nil {
		return unavailable("failed to release lock", err)
	}
	return nil
}

// Acquire implements ports.Locker. While held, the lock is extended every
// third of ttl so a long confirmation cannot outlive it; ttl only bounds how
// long a crashed holder blocks the user. The returned UnlockFunc stops the
// refresh and deletes the lock only while it still carries this
// acquisition's token.
func (m *Manager) Acquire(ctx context.Context, userID string, ttl time.Duration) (ports.UnlockFunc, error) {
	key := LockKey(userID)
	token := []byte(m.newToken())
	ok, err := m.store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, unavailable("failed to acquire lock", err)
	}
	if !ok {
		return nil, domain.ErrOperationInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go m.keepAlive(context.WithoutCancel(ctx), userID, key, token, ttl, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		released, err := m.store.CompareAndDelete(ctx, key, token)
		if err != nil {
			return unavailable("failed to release lock", err)
		}
		if !released {
			m.logger.Warn("Lock expired before release", "user_id", userID, "ttl", ttl)
		}
		return nil
	}, nil
}

// keepAlive extends the lock until stop is closed or the lock is lost.
// A failed refresh is retried on the next tick; the lock still expires on
// its own if the store stays unreachable.
func (m *Manager) keepAlive(ctx context.Context, userID, key string, token []byte, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	every := m.refreshEvery
	if every <= 0 {
		every = ttl / 3
	}
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		rctx, cancel := context.WithTimeout(ctx, every)
		held, err := m.store.CompareAndExpire(rctx, key, token, ttl)
		cancel()
		switch {
		case err != nil:
			m.logger.Warn("Failed to extend lock", "user_id", userID, "err", err)
		case !held:
			m.logger.Warn("Lock lost while held", "user_id", userID, "ttl", ttl)
			return
		}
	}
}

// Debounce reports whether command from userID may proceed. A repeat of the
// same command within window is rejected. When the store is unreachable
// the command is allowed.
func (m *Manager) Debounce(ctx context.Context, userID, command string, window time.Duration) bool {
	ok, err := m.store.SetNX(ctx, DebounceKey(command, userID), []byte("1"), window)
	if err != nil {
		m.logger.Warn("Debounce check failed, allowing command", "user_id", userID, "command", command, "err", err)
		return true
	}
	return ok
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(userID) after unlocking.
func (m *Manager) acquire(userID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		entry = &lockEntry{}
		m.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, userID)
	}
}

// WithLock executes fn while holding the in-process lock of userID.
func (m *Manager) WithLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	entry := m.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(userID)
	}()
	return fn(ctx)
}
