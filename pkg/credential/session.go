package credential

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/aretw0/flashsol/pkg/solana"
)

// ErrSessionExpired is returned when a signing credential is requested
// outside a secure session.
var ErrSessionExpired = errors.New("secure session expired")

// Sessions manages secure sessions: a sealed copy of the user's signing
// secret cached in the ephemeral store for a bounded time after the user
// proved their passkey.
type Sessions struct {
	state *session.Manager
	vault *Vault
	ttl   time.Duration
}

// NewSessions creates a secure session manager. A zero ttl uses
// domain.SecureSessionTTL.
func NewSessions(state *session.Manager, vault *Vault, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = domain.SecureSessionTTL
	}
	return &Sessions{state: state, vault: vault, ttl: ttl}
}

// Start opens a session for userID holding kp.
func (s *Sessions) Start(ctx context.Context, userID string, kp *solana.Keypair) error {
	sealed, err := s.vault.Seal([]byte(kp.Secret()))
	if err != nil {
		return err
	}
	return s.state.SetState(ctx, session.SecureSessionKey(userID), sealed, s.ttl)
}

// StartFromWallet opens a session with the wallet's stored secret.
func (s *Sessions) StartFromWallet(ctx context.Context, w *domain.Wallet) error {
	kp, err := s.Unseal(w.EncryptedSecret)
	if err != nil {
		return err
	}
	return s.Start(ctx, w.UserID, kp)
}

// Active reports whether userID has an open session.
func (s *Sessions) Active(ctx context.Context, userID string) (bool, error) {
	var sealed domain.SealedSecret
	return s.state.GetState(ctx, session.SecureSessionKey(userID), &sealed)
}

// Credential returns the signing keypair of an open session.
func (s *Sessions) Credential(ctx context.Context, userID string) (*solana.Keypair, error) {
	var sealed domain.SealedSecret
	ok, err := s.state.GetState(ctx, session.SecureSessionKey(userID), &sealed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionExpired
	}
	return s.Unseal(sealed)
}

// End closes the session.
func (s *Sessions) End(ctx context.Context, userID string) error {
	return s.state.DeleteState(ctx, session.SecureSessionKey(userID))
}

// Seal encrypts a keypair's secret for storage.
func (s *Sessions) Seal(kp *solana.Keypair) (domain.SealedSecret, error) {
	return s.vault.Seal([]byte(kp.Secret()))
}

// Unseal decrypts a stored secret back into a keypair.
func (s *Sessions) Unseal(sealed domain.SealedSecret) (*solana.Keypair, error) {
	secret, err := s.vault.Open(sealed)
	if err != nil {
		return nil, err
	}
	return solana.KeypairFromSecret(string(secret))
}
