package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/flashsol/internal/logging"
	"github.com/aretw0/flashsol/pkg/credential"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/observability"
	"github.com/aretw0/flashsol/pkg/ports"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/aretw0/flashsol/pkg/solana"
)

// Commands that Start accepts besides the stateful flows. They never store
// a flow record.
const (
	CommandWallet     domain.Flow = "wallet"
	CommandPortfolio  domain.Flow = "portfolio"
	CommandDisconnect domain.Flow = "disconnect"
	CommandPrivateKey domain.Flow = "privatekey"
)

// Trader executes a trade. *trade.Engine implements it.
type Trader interface {
	Execute(ctx context.Context, userID string, kp *solana.Keypair, req domain.TradeRequest) (*domain.TradeResult, error)
}

// Orchestrator drives the per-user flows. It is safe for concurrent use.
// Reads and writes of a user's session records are serialized in process;
// trades run outside that section and are kept apart by the processing lock.
type Orchestrator struct {
	state    *session.Manager
	sessions *credential.Sessions
	wallets  ports.WalletStore
	chain    ports.Chain
	trader   Trader
	metadata ports.TokenMetadata

	logger   *slog.Logger
	metrics  *observability.Metrics
	debounce time.Duration
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger configures a logger for the Orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics counts handled inputs per flow and step.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTokenMetadata names tokens in prompts and listings. Without it mints
// are shown abbreviated.
func WithTokenMetadata(m ports.TokenMetadata) Option {
	return func(o *Orchestrator) {
		o.metadata = m
	}
}

// WithDebounceWindow sets how long a repeated command is ignored.
// Zero disables debouncing.
func WithDebounceWindow(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.debounce = d
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(state *session.Manager, sessions *credential.Sessions, wallets ports.WalletStore, chain ports.Chain, trader Trader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:    state,
		sessions: sessions,
		wallets:  wallets,
		chain:    chain,
		trader:   trader,
		logger:   logging.NewNop(),
		debounce: domain.DebounceWindow,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins flow for userID, replacing any flow in progress.
func (o *Orchestrator) Start(ctx context.Context, userID string, flow domain.Flow) Reply {
	if o.debounce > 0 && !o.state.Debounce(ctx, userID, string(flow), o.debounce) {
		return failure(KindDebounced, "Please wait a moment before repeating that.")
	}

	var reply Reply
	_ = o.state.WithLock(ctx, userID, func(ctx context.Context) error {
		reply = o.start(ctx, userID, flow)
		return nil
	})
	return reply
}

func (o *Orchestrator) start(ctx context.Context, userID string, flow domain.Flow) Reply {
	o.logger.Debug("Starting flow", "user_id", userID, "flow", flow)

	// A new command abandons whatever was pending.
	if err := o.reset(ctx, userID); err != nil {
		return errorReply(err)
	}

	switch flow {
	case domain.FlowBuy:
		return o.startBuy(ctx, userID)
	case domain.FlowSell:
		return o.startSell(ctx, userID)
	case domain.FlowSlippage:
		return o.startSlippage(ctx, userID)
	case domain.FlowConnect:
		return o.startConnect(ctx, userID)
	case domain.FlowSecurity:
		return o.startPasskey(ctx, userID, domain.PasskeySecurity, "Enter your passkey to unlock trading:")
	case CommandWallet:
		return o.wallet(ctx, userID)
	case CommandPortfolio:
		return o.portfolio(ctx, userID, 1)
	case CommandDisconnect:
		return o.startPasskey(ctx, userID, domain.PasskeyDisconnect, "Enter your passkey to disconnect your wallet. This deletes it from the bot:")
	case CommandPrivateKey:
		return o.startPasskey(ctx, userID, domain.PasskeyExport, "Enter your 4-6 digit passkey to view your private key:")
	default:
		return failure(KindInvalidInput, "Unknown command "+string(flow)+".")
	}
}

// Input feeds one line of user input to the pending passkey entry or flow.
func (o *Orchestrator) Input(ctx context.Context, userID, text string) Reply {
	clean, err := SanitizeInput(text)
	if err != nil {
		return failure(KindInvalidInput, "That input cannot be accepted.")
	}

	var (
		reply Reply
		job   *tradeJob
	)
	_ = o.state.WithLock(ctx, userID, func(ctx context.Context) error {
		reply, job = o.input(ctx, userID, clean)
		return nil
	})
	if job != nil {
		reply = o.executeTrade(ctx, userID, job)
	}
	return reply
}

// input advances the pending entry. A flow reaching its final step returns
// the trade to run instead of running it.
func (o *Orchestrator) input(ctx context.Context, userID, text string) (Reply, *tradeJob) {
	pk, err := o.state.Passkey(ctx, userID)
	if err != nil {
		return errorReply(err), nil
	}
	if pk != nil {
		o.metrics.ObserveInput("passkey", string(pk.Context))
		return o.passkeyInput(ctx, userID, pk, text), nil
	}

	st, err := o.state.Flow(ctx, userID)
	if err != nil {
		return errorReply(err), nil
	}
	if st == nil {
		return failure(KindNoFlow, "Nothing is waiting for input. Start with buy, sell, wallet or connect."), nil
	}
	o.metrics.ObserveInput(string(st.Flow), string(st.Step))

	switch st.Flow {
	case domain.FlowBuy:
		return o.buyInput(ctx, userID, st, text)
	case domain.FlowSell:
		return o.sellInput(ctx, userID, st, text)
	case domain.FlowSlippage:
		return o.slippageInput(ctx, userID, text), nil
	case domain.FlowConnect:
		return o.connectInput(ctx, userID, text), nil
	default:
		o.logger.Warn("Unknown flow record, clearing", "user_id", userID, "flow", st.Flow)
		o.clearFlow(ctx, userID)
		return failure(KindNoFlow, "Nothing is waiting for input."), nil
	}
}

// Cancel abandons any flow or passkey entry in progress.
func (o *Orchestrator) Cancel(ctx context.Context, userID string) Reply {
	var reply Reply
	_ = o.state.WithLock(ctx, userID, func(ctx context.Context) error {
		if err := o.reset(ctx, userID); err != nil {
			reply = errorReply(err)
			return nil
		}
		reply = Reply{Text: "Cancelled."}
		return nil
	})
	return reply
}

// clearFlow drops the flow record where a failure to do so only leaves it
// to expire.
func (o *Orchestrator) clearFlow(ctx context.Context, userID string) {
	if err := o.state.ClearFlow(ctx, userID); err != nil {
		o.logger.Warn("Failed to clear flow", "user_id", userID, "err", err)
	}
}

func (o *Orchestrator) clearPasskey(ctx context.Context, userID string) {
	if err := o.state.ClearPasskey(ctx, userID); err != nil {
		o.logger.Warn("Failed to clear passkey entry", "user_id", userID, "err", err)
	}
}

func (o *Orchestrator) reset(ctx context.Context, userID string) error {
	if err := o.state.ClearFlow(ctx, userID); err != nil {
		return err
	}
	return o.state.ClearPasskey(ctx, userID)
}

// Status is a snapshot of a user's ephemeral state.
type Status struct {
	Flow          *domain.FlowState     `json:"flow,omitempty"`
	Passkey       domain.PasskeyContext `json:"passkey,omitempty"`
	Locked        bool                  `json:"locked"`
	SecureSession bool                  `json:"secureSession"`
	Wallet        string                `json:"wallet,omitempty"`
}

// Status reports the user's pending flow, lock and secure session.
func (o *Orchestrator) Status(ctx context.Context, userID string) (*Status, error) {
	st := &Status{}
	var err error
	if st.Flow, err = o.state.Flow(ctx, userID); err != nil {
		return nil, err
	}
	pk, err := o.state.Passkey(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pk != nil {
		st.Passkey = pk.Context
	}
	if st.Locked, err = o.state.IsLocked(ctx, userID); err != nil {
		return nil, err
	}
	if st.SecureSession, err = o.sessions.Active(ctx, userID); err != nil {
		return nil, err
	}
	w, err := o.wallets.GetWallet(ctx, userID)
	switch {
	case err == nil:
		st.Wallet = w.PublicKey
	case !errors.Is(err, domain.ErrWalletNotFound):
		return nil, err
	}
	return st, nil
}
