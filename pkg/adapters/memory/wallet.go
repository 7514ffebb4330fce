package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/flashsol/pkg/domain"
)

// WalletStore implements ports.WalletStore in memory.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]domain.Wallet
}

// NewWalletStore creates an empty wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]domain.Wallet)}
}

func (s *WalletStore) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return &w, nil
}

func (s *WalletStore) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.UserID] = *w
	return nil
}

func (s *WalletStore) DeleteWallet(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wallets, userID)
	return nil
}

func (s *WalletStore) SetSlippage(ctx context.Context, userID string, bps uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return domain.ErrWalletNotFound
	}
	w.SlippageBps = bps
	s.wallets[userID] = w
	return nil
}

// TradeLog implements ports.TradeLog in memory.
type TradeLog struct {
	mu      sync.RWMutex
	records []domain.TradeRecord
}

// NewTradeLog creates an empty trade log.
func NewTradeLog() *TradeLog {
	return &TradeLog{}
}

func (l *TradeLog) Record(ctx context.Context, rec domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// List returns the newest records of userID first.
func (l *TradeLog) List(ctx context.Context, userID string, limit int) ([]domain.TradeRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.TradeRecord
	for _, r := range l.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
