package session

import (
	"context"
	"strconv"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
)

// FlowTTL returns the lifetime of a flow record. Sell flows live longer.
func FlowTTL(f domain.Flow) time.Duration {
	if f == domain.FlowSell {
		return domain.SellFlowTTL
	}
	return domain.FlowTTL
}

// Flow returns the user's flow in progress, or nil.
func (m *Manager) Flow(ctx context.Context, userID string) (*domain.FlowState, error) {
	var st domain.FlowState
	ok, err := m.GetState(ctx, FlowKey(userID), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

// SetFlow stores st with the TTL of its flow.
func (m *Manager) SetFlow(ctx context.Context, userID string, st *domain.FlowState) error {
	return m.SetState(ctx, FlowKey(userID), st, FlowTTL(st.Flow))
}

// ClearFlow drops the user's flow.
func (m *Manager) ClearFlow(ctx context.Context, userID string) error {
	return m.DeleteState(ctx, FlowKey(userID))
}

// Passkey returns the user's passkey entry in progress, or nil.
func (m *Manager) Passkey(ctx context.Context, userID string) (*domain.PasskeyState, error) {
	var st domain.PasskeyState
	ok, err := m.GetState(ctx, PasskeyKey(userID), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

func (m *Manager) SetPasskey(ctx context.Context, userID string, st *domain.PasskeyState) error {
	return m.SetState(ctx, PasskeyKey(userID), st, domain.PasskeyTTL)
}

func (m *Manager) ClearPasskey(ctx context.Context, userID string) error {
	return m.DeleteState(ctx, PasskeyKey(userID))
}

// Portfolio returns the cached holdings listing. sell selects the listing
// shown by the sell flow.
func (m *Manager) Portfolio(ctx context.Context, userID string, sell bool) ([]domain.Holding, bool, error) {
	var h []domain.Holding
	ok, err := m.GetState(ctx, portfolioKey(userID, sell), &h)
	return h, ok, err
}

func (m *Manager) SetPortfolio(ctx context.Context, userID string, sell bool, h []domain.Holding) error {
	return m.SetState(ctx, portfolioKey(userID, sell), h, domain.PortfolioCacheTTL)
}

func portfolioKey(userID string, sell bool) string {
	if sell {
		return SellPortfolioKey(userID)
	}
	return PortfolioKey(userID)
}

// MenuMessageID returns the id of the last menu shown to the user, or 0.
func (m *Manager) MenuMessageID(ctx context.Context, userID string) (int64, error) {
	var s string
	ok, err := m.GetState(ctx, MenuKey(userID), &s)
	if err != nil || !ok {
		return 0, err
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// SetMenuMessageID remembers the menu message. The record never expires.
func (m *Manager) SetMenuMessageID(ctx context.Context, userID string, id int64) error {
	return m.SetState(ctx, MenuKey(userID), strconv.FormatInt(id, 10), 0)
}
