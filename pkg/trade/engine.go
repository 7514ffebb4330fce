package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/flashsol/internal/logging"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/observability"
	"github.com/aretw0/flashsol/pkg/ports"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/units"
)

const (
	// DefaultQuoteMaxAge is how old a quote may be when swap construction starts.
	DefaultQuoteMaxAge = 20 * time.Second
	// DefaultCallTimeout bounds each routing and RPC call before submission.
	DefaultCallTimeout = 15 * time.Second
	// DefaultConfirmTimeout bounds the wait for confirmation.
	DefaultConfirmTimeout = 2 * time.Minute

	releaseTimeout = 5 * time.Second
)

// Engine executes trades. It is safe for concurrent use.
type Engine struct {
	locker ports.Locker
	router ports.Router
	chain  ports.Chain

	logger   *slog.Logger
	metrics  *observability.Metrics
	tradeLog ports.TradeLog
	fee      FeePolicy

	lockTTL        time.Duration
	quoteMaxAge    time.Duration
	callTimeout    time.Duration
	confirmTimeout time.Duration
	now            func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records trade outcomes, lock contention and fee results.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTradeLog appends every executed trade to log.
func WithTradeLog(log ports.TradeLog) Option {
	return func(e *Engine) {
		e.tradeLog = log
	}
}

// WithFeePolicy enables the service fee on buys.
func WithFeePolicy(p FeePolicy) Option {
	return func(e *Engine) {
		e.fee = p
	}
}

// WithLockTTL sets the processing lock TTL.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTTL = d
		}
	}
}

// WithQuoteMaxAge sets how stale a quote may be before it is re-fetched.
func WithQuoteMaxAge(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.quoteMaxAge = d
		}
	}
}

// WithCallTimeout bounds each external call made before submission.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

// WithConfirmTimeout bounds the confirmation wait.
func WithConfirmTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.confirmTimeout = d
		}
	}
}

// WithClock overrides the time source used for quote freshness.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine.
func NewEngine(locker ports.Locker, router ports.Router, chain ports.Chain, opts ...Option) *Engine {
	e := &Engine{
		locker:         locker,
		router:         router,
		chain:          chain,
		logger:         logging.NewNop(),
		lockTTL:        domain.ProcessingLockTTL,
		quoteMaxAge:    DefaultQuoteMaxAge,
		callTimeout:    DefaultCallTimeout,
		confirmTimeout: DefaultConfirmTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one trade for userID signed by kp. On success the result
// carries the transaction id and the quoted output amount. Every failure is
// a *domain.TradeError; a domain.KindConfirmationTimeout means the outcome
// is unknown and the caller must not retry blindly.
func (e *Engine) Execute(ctx context.Context, userID string, kp *solana.Keypair, req domain.TradeRequest) (*domain.TradeResult, error) {
	start := e.now()
	res, in, err := e.execute(ctx, userID, kp, req)

	outcome := domain.OutcomeSuccess
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	e.metrics.ObserveTrade(string(req.Direction), outcome, e.now().Sub(start))
	e.record(ctx, userID, req, in, res, err, outcome)
	return res, err
}

func (e *Engine) execute(ctx context.Context, userID string, kp *solana.Keypair, req domain.TradeRequest) (*domain.TradeResult, uint64, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, domain.WrapError(domain.KindInvalidRequest, "invalid trade request", err)
	}
	if kp == nil {
		return nil, 0, domain.NewError(domain.KindInvalidRequest, "missing signing credential")
	}

	unlock, err := e.locker.Acquire(ctx, userID, e.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrOperationInProgress) {
			e.metrics.ObserveContention()
			e.logger.Debug("Trade rejected, lock held", "user_id", userID)
		}
		return nil, 0, err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := unlock(rctx); err != nil {
			e.logger.Warn("Failed to release processing lock", "user_id", userID, "err", err)
		}
	}()

	owner := kp.PublicKey().String()
	inputMint, outputMint := req.Pair()
	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = domain.DefaultSlippageBps
	}

	in, err := e.resolveAmount(ctx, owner, req)
	if err != nil {
		return nil, 0, err
	}

	quote, err := e.quote(ctx, inputMint, outputMint, in, slippage)
	if err != nil {
		return nil, in, err
	}

	var fee uint64
	if req.Direction == domain.Buy {
		fee = e.planFee(ctx, userID, owner, in)
	}

	if age := quote.Age(e.now()); age > e.quoteMaxAge {
		e.metrics.ObserveRefetch()
		e.logger.Debug("Quote stale, re-fetching", "user_id", userID, "age", age)
		if quote, err = e.quote(ctx, inputMint, outputMint, in, slippage); err != nil {
			return nil, in, err
		}
	}

	tx, err := e.buildSigned(ctx, quote, kp)
	if err != nil {
		return nil, in, err
	}
	wire := tx.Serialize()
	txid := tx.ID()

	if err := e.simulate(ctx, userID, wire); err != nil {
		return nil, in, err
	}

	bh, err := e.blockhash(ctx)
	if err != nil {
		return nil, in, err
	}

	// Once sent, the transaction cannot be recalled: stop honoring cancellation.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.confirmTimeout)
	defer cancel()

	sig, err := e.chain.Send(sendCtx, wire)
	if err != nil {
		if solana.IsRPCError(err) {
			e.logger.Warn("Transaction rejected by node", "user_id", userID, "err", err)
			return nil, in, domain.WrapError(domain.KindSubmitFailed, "transaction rejected by node", err)
		}
		e.logger.Warn("Send outcome unknown", "user_id", userID, "txid", txid, "err", err)
		return nil, in, &domain.TradeError{
			Kind:    domain.KindConfirmationTimeout,
			Message: "send outcome unknown",
			TxID:    txid,
			Cause:   err,
		}
	}
	if sig != "" {
		txid = sig
	}

	if err := e.chain.Confirm(sendCtx, txid, bh.LastValidBlockHeight); err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			err = &domain.TradeError{Kind: domain.KindConfirmationTimeout, Message: "confirmation failed", TxID: txid, Cause: err}
		}
		e.logger.Warn("Trade not confirmed", "user_id", userID, "txid", txid, "kind", domain.KindOf(err), "err", err)
		return nil, in, err
	}

	res := &domain.TradeResult{
		TxID:        txid,
		Direction:   req.Direction,
		TokenMint:   req.TokenMint,
		InAmount:    quote.InAmount,
		OutAmount:   quote.OutAmount,
		OutDecimals: e.outputDecimals(sendCtx, req),
	}

	if fee > 0 {
		e.sendFee(sendCtx, userID, kp, fee, res)
	}

	e.logger.Info("Trade confirmed",
		"user_id", userID,
		"txid", txid,
		"direction", req.Direction,
		"mint", req.TokenMint,
		"in_amount", res.InAmount,
		"out_amount", res.OutAmount,
	)
	return res, in, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

// resolveAmount scales the request into smallest units of the input mint.
func (e *Engine) resolveAmount(ctx context.Context, owner string, req domain.TradeRequest) (uint64, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	if req.Direction == domain.Buy {
		in, err := units.ParseUnits(req.Amount, domain.SOLDecimals)
		if err != nil {
			return 0, domain.WrapError(domain.KindInvalidRequest, "invalid SOL amount", err)
		}
		if in == 0 {
			return 0, domain.NewError(domain.KindInvalidRequest, "amount must be positive")
		}
		return in, nil
	}

	if req.Percent > 0 {
		held, _, err := e.chain.TokenBalance(ctx, owner, req.TokenMint)
		if err != nil {
			return 0, domain.WrapError(domain.KindQuoteUnavailable, "failed to read token balance", err)
		}
		in := units.PercentOf(held, req.Percent)
		if in == 0 {
			return 0, domain.NewError(domain.KindInsufficientFunds, "no tokens to sell")
		}
		return in, nil
	}

	decimals, err := e.chain.TokenDecimals(ctx, req.TokenMint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.WrapError(domain.KindInvalidRequest, "unknown token mint", err)
		}
		return 0, domain.WrapError(domain.KindQuoteUnavailable, "failed to read token decimals", err)
	}
	in, err := units.ParseUnits(req.Amount, decimals)
	if err != nil {
		return 0, domain.WrapError(domain.KindInvalidRequest, "invalid token amount", err)
	}
	if in == 0 {
		return 0, domain.NewError(domain.KindInvalidRequest, "amount must be positive")
	}
	return in, nil
}

func (e *Engine) quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippage uint32) (*domain.Quote, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	q, err := e.router.Quote(ctx, inputMint, outputMint, amount, slippage)
	if err != nil {
		e.logger.Warn("Quote failed", "input_mint", inputMint, "output_mint", outputMint, "amount", amount, "err", err)
		return nil, domain.WrapError(domain.KindQuoteUnavailable, "failed to fetch quote", err)
	}
	return q, nil
}

// planFee returns the fee to charge after a buy of cost lamports, or zero
// when the wallet cannot cover it. Balance errors skip the fee.
func (e *Engine) planFee(ctx context.Context, userID, owner string, cost uint64) uint64 {
	if !e.fee.Enabled() {
		return 0
	}
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	balance, err := e.chain.Balance(ctx, owner)
	if err != nil {
		e.metrics.ObserveFee("skipped")
		e.logger.Warn("Fee skipped, balance unavailable", "user_id", userID, "err", err)
		return 0
	}
	fee, ok := e.fee.Plan(balance, cost)
	if !ok {
		e.metrics.ObserveFee("skipped")
		e.logger.Info("Fee skipped, balance too low", "user_id", userID, "balance", balance, "cost", cost, "fee", fee)
		return 0
	}
	return fee
}

func (e *Engine) buildSigned(ctx context.Context, quote *domain.Quote, kp *solana.Keypair) (*solana.Transaction, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	raw, err := e.router.BuildSwap(ctx, quote, kp.PublicKey().String())
	if err != nil {
		e.logger.Warn("Swap build failed", "err", err)
		return nil, domain.WrapError(domain.KindQuoteUnavailable, "failed to build swap transaction", err)
	}
	tx, err := solana.ParseTransaction(raw)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "malformed swap transaction", err)
	}
	if err := tx.Sign(kp); err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to sign swap transaction", err)
	}
	return tx, nil
}

func (e *Engine) simulate(ctx context.Context, userID string, wire []byte) error {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	sim, err := e.chain.Simulate(ctx, wire)
	if err != nil {
		e.logger.Warn("Simulation unavailable", "user_id", userID, "err", err)
		return domain.WrapError(domain.KindSimulationFailed, "transaction simulation failed", err)
	}
	if sim.Failed() {
		e.logger.Warn("Simulation reported an error", "user_id", userID, "sim_err", sim.Err)
		return &domain.TradeError{
			Kind:    domain.KindSimulationFailed,
			Message: "transaction simulation failed",
			Logs:    sim.Logs,
			Cause:   fmt.Errorf("%v", sim.Err),
		}
	}
	return nil
}

func (e *Engine) blockhash(ctx context.Context) (domain.Blockhash, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	bh, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		return bh, domain.WrapError(domain.KindSubmitFailed, "failed to fetch blockhash", err)
	}
	return bh, nil
}

// outputDecimals is best-effort: sells pay out SOL, buys ask the chain.
func (e *Engine) outputDecimals(ctx context.Context, req domain.TradeRequest) int {
	if req.Direction == domain.Sell {
		return domain.SOLDecimals
	}
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	d, err := e.chain.TokenDecimals(ctx, req.TokenMint)
	if err != nil {
		e.logger.Debug("Output decimals unavailable", "mint", req.TokenMint, "err", err)
		return 0
	}
	return d
}

// sendFee submits the fee transfer on a fresh blockhash, since the swap's
// may have expired while it confirmed. Its failure never affects res beyond
// leaving FeeTxID empty.
func (e *Engine) sendFee(ctx context.Context, userID string, kp *solana.Keypair, fee uint64, res *domain.TradeResult) {
	bh, err := e.blockhash(ctx)
	if err != nil {
		e.metrics.ObserveFee("failed")
		e.logger.Warn("Fee transfer skipped, blockhash unavailable", "user_id", userID, "err", err)
		return
	}
	tx, err := solana.BuildTransfer(kp, e.fee.Recipient, fee, bh.Hash)
	if err != nil {
		e.metrics.ObserveFee("failed")
		e.logger.Warn("Fee transfer build failed", "user_id", userID, "err", err)
		return
	}
	feeTx, err := e.chain.Send(ctx, tx.Serialize())
	if err != nil {
		e.metrics.ObserveFee("failed")
		e.logger.Warn("Fee transfer failed", "user_id", userID, "fee_lamports", fee, "err", err)
		return
	}
	if feeTx == "" {
		feeTx = tx.ID()
	}
	res.FeeLamports = fee
	res.FeeTxID = feeTx
	e.metrics.ObserveFee("sent")
	e.logger.Info("Fee transfer sent", "user_id", userID, "fee_lamports", fee, "txid", feeTx)
}

// record appends the attempt to the trade log. Rejected requests that never
// reached the chain are not recorded.
func (e *Engine) record(ctx context.Context, userID string, req domain.TradeRequest, in uint64, res *domain.TradeResult, err error, outcome string) {
	if e.tradeLog == nil {
		return
	}
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindInvalidRequest, domain.KindOperationInProgress:
			return
		}
	}

	rec := domain.TradeRecord{
		UserID:    userID,
		Direction: req.Direction,
		TokenMint: req.TokenMint,
		InAmount:  in,
		Outcome:   outcome,
		CreatedAt: e.now(),
	}
	if res != nil {
		rec.TxID = res.TxID
		rec.InAmount = res.InAmount
		rec.OutAmount = res.OutAmount
	} else {
		var te *domain.TradeError
		if errors.As(err, &te) {
			rec.TxID = te.TxID
		}
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := e.tradeLog.Record(rctx, rec); err != nil {
		e.logger.Warn("Failed to record trade", "user_id", userID, "err", err)
	}
}
