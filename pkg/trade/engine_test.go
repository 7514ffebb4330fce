package trade_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/adapters/memory"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/observability"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/trade"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID = "1001"
	mint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type harness struct {
	engine  *trade.Engine
	store   *memory.Store
	mgr     *session.Manager
	router  *fakeRouter
	chain   *fakeChain
	kp      *solana.Keypair
	metrics *observability.Metrics
	log     *memory.TradeLog
	now     time.Time
}

func newHarness(t *testing.T, opts ...trade.Option) *harness {
	t.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	h := &harness{
		store:   memory.NewStore(),
		kp:      kp,
		metrics: observability.NewMetrics("test"),
		log:     memory.NewTradeLog(),
		now:     now,
		router:  &fakeRouter{outAmount: 1_000_000_000, fetchedAt: now, swapTx: swapFor(t, kp)},
		chain: &fakeChain{
			balance:   2 * domain.LamportsPerSOL,
			decimals:  6,
			sendIDs:   []string{"txid", "feetx"},
			blockhash: domain.Blockhash{Hash: randomKey(t).String(), LastValidBlockHeight: 100},
		},
	}
	h.mgr = session.NewManager(h.store, session.WithLockRefresh(20*time.Millisecond))

	base := []trade.Option{
		trade.WithMetrics(h.metrics),
		trade.WithTradeLog(h.log),
		trade.WithClock(func() time.Time { return h.now }),
		trade.WithFeePolicy(trade.FeePolicy{
			Bps:             trade.DefaultFeeBps,
			Recipient:       randomKey(t),
			ReserveLamports: trade.DefaultReserveLamports,
		}),
	}
	h.engine = trade.NewEngine(h.mgr, h.router, h.chain, append(base, opts...)...)
	return h
}

func (h *harness) lockHeld(t *testing.T) bool {
	t.Helper()
	held, err := h.mgr.IsLocked(context.Background(), userID)
	require.NoError(t, err)
	return held
}

func buy(amount string) domain.TradeRequest {
	return domain.TradeRequest{Direction: domain.Buy, TokenMint: mint, Amount: amount, SlippageBps: 500}
}

func TestEngine_BuyEndToEnd(t *testing.T) {
	h := newHarness(t)

	res, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	require.NoError(t, err)

	assert.Equal(t, "txid", res.TxID)
	assert.Equal(t, uint64(1_000_000_000), res.OutAmount)
	assert.Equal(t, domain.LamportsPerSOL, res.InAmount)
	assert.Equal(t, 6, res.OutDecimals)
	assert.Equal(t, uint64(10_000_000), res.FeeLamports, "1% of 1 SOL")
	assert.Equal(t, "feetx", res.FeeTxID)

	assert.Equal(t, 2, h.chain.sendCount(), "swap and fee transfer")
	assert.Equal(t, []string{"txid"}, h.chain.confirmed)
	assert.False(t, h.lockHeld(t))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TradesTotal.WithLabelValues("buy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeeTransfers.WithLabelValues("sent")))

	recs, err := h.log.List(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "txid", recs[0].TxID)
	assert.Equal(t, domain.OutcomeSuccess, recs[0].Outcome)
}

func TestEngine_FeeSkippedAtReserve(t *testing.T) {
	h := newHarness(t)
	h.chain.balance = trade.DefaultReserveLamports

	res, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	require.NoError(t, err)

	assert.Equal(t, "txid", res.TxID)
	assert.Zero(t, res.FeeLamports)
	assert.Empty(t, res.FeeTxID)
	assert.Equal(t, 1, h.chain.sendCount(), "only the swap is sent")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeeTransfers.WithLabelValues("skipped")))
}

func TestEngine_FeeFailureDoesNotFailTrade(t *testing.T) {
	h := newHarness(t)
	h.chain.sendErrs = []error{nil, errTransport}

	res, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	require.NoError(t, err)
	assert.Equal(t, "txid", res.TxID)
	assert.Empty(t, res.FeeTxID)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeeTransfers.WithLabelValues("failed")))
}

func TestEngine_SellHasNoFee(t *testing.T) {
	h := newHarness(t)
	h.chain.held = 5_000_000

	res, err := h.engine.Execute(context.Background(), userID, h.kp, domain.TradeRequest{
		Direction: domain.Sell, TokenMint: mint, Percent: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(2_500_000), h.router.lastIn)
	assert.Equal(t, domain.SOLDecimals, res.OutDecimals)
	assert.Zero(t, res.FeeLamports)
	assert.Equal(t, 1, h.chain.sendCount())
}

func TestEngine_SellAbsoluteAmountUsesMintDecimals(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Execute(context.Background(), userID, h.kp, domain.TradeRequest{
		Direction: domain.Sell, TokenMint: mint, Amount: "1.5",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), h.router.lastIn)
}

func TestEngine_SellNothingHeld(t *testing.T) {
	h := newHarness(t)
	h.chain.held = 0

	_, err := h.engine.Execute(context.Background(), userID, h.kp, domain.TradeRequest{
		Direction: domain.Sell, TokenMint: mint, Percent: 100,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Zero(t, h.router.quotes)
	assert.False(t, h.lockHeld(t))
}

func TestEngine_SimulationFailureNeverSends(t *testing.T) {
	h := newHarness(t)
	h.chain.sim = &domain.Simulation{Err: "SimError", Logs: []string{"Program log: slippage exceeded"}}

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	require.ErrorIs(t, err, domain.ErrSimulationFailed)

	var te *domain.TradeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, []string{"Program log: slippage exceeded"}, te.Logs)
	assert.Zero(t, h.chain.sendCount())
	assert.False(t, h.lockHeld(t))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TradesTotal.WithLabelValues("buy", "simulation_failed")))
}

func TestEngine_QuoteFailureReleasesLock(t *testing.T) {
	h := newHarness(t)
	h.router.quoteErr = errors.New("jupiter: status 400")

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.Zero(t, h.chain.sendCount())
	assert.False(t, h.lockHeld(t))
}

func TestEngine_BuildFailureIsQuoteUnavailable(t *testing.T) {
	h := newHarness(t)
	h.router.buildErr = errors.New("swap: status 500")

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.False(t, h.lockHeld(t))
}

func TestEngine_LockContention(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	unlock, err := h.mgr.Acquire(ctx, userID, time.Minute)
	require.NoError(t, err)

	_, err = h.engine.Execute(ctx, userID, h.kp, buy("1"))
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)
	assert.Zero(t, h.router.quotes, "no queueing, no work")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.LockContention))

	// The rejected attempt must not release the holder's lock.
	assert.True(t, h.lockHeld(t))
	require.NoError(t, unlock(ctx))

	recs, _ := h.log.List(ctx, userID, 10)
	assert.Empty(t, recs)
}

func TestEngine_InvalidRequestTakesNoLock(t *testing.T) {
	h := newHarness(t)

	for _, req := range []domain.TradeRequest{
		buy(""),
		buy("0"),
		buy("-1"),
		buy("0.0000000001"),
		{Direction: "hold", TokenMint: mint, Amount: "1"},
	} {
		_, err := h.engine.Execute(context.Background(), userID, h.kp, req)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest, "request %+v", req)
	}
	assert.Zero(t, h.router.quotes)
	assert.False(t, h.lockHeld(t))
}

func TestEngine_SubmitRejectedByNode(t *testing.T) {
	h := newHarness(t)
	h.chain.sendErrs = []error{&solana.RPCError{Code: -32002, Message: "Blockhash not found"}}

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	assert.ErrorIs(t, err, domain.ErrSubmitFailed)
	assert.Empty(t, h.chain.confirmed)
	assert.False(t, h.lockHeld(t))
}

func TestEngine_TransportSendErrorIsAmbiguous(t *testing.T) {
	h := newHarness(t)
	h.chain.sendErrs = []error{errTransport}

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	require.ErrorIs(t, err, domain.ErrConfirmationTimeout)

	// The txid is the first signature, known before sending.
	tx, perr := solana.ParseTransaction(h.router.swapTx)
	require.NoError(t, perr)
	require.NoError(t, tx.Sign(h.kp))

	var te *domain.TradeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tx.ID(), te.TxID)
	assert.False(t, h.lockHeld(t))

	recs, _ := h.log.List(context.Background(), userID, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, string(domain.KindConfirmationTimeout), recs[0].Outcome)
	assert.Equal(t, tx.ID(), recs[0].TxID)
}

func TestEngine_ConfirmationTimeoutIsNotFailure(t *testing.T) {
	h := newHarness(t)
	h.chain.confirmErr = &domain.TradeError{Kind: domain.KindConfirmationTimeout, Message: "expired", TxID: "txid"}

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)
	assert.NotErrorIs(t, err, domain.ErrTransactionFailed)
	assert.Equal(t, 1, h.chain.sendCount(), "no fee without confirmation")
	assert.False(t, h.lockHeld(t))
}

func TestEngine_UnclassifiedConfirmErrorStaysAmbiguous(t *testing.T) {
	h := newHarness(t)
	h.chain.confirmErr = errors.New("boom")

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	var te *domain.TradeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, domain.KindConfirmationTimeout, te.Kind)
	assert.Equal(t, "txid", te.TxID)
}

func TestEngine_StaleQuoteRefetchedOnce(t *testing.T) {
	h := newHarness(t)
	h.router.fetchedAt = h.now.Add(-time.Minute)

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	require.NoError(t, err)
	assert.Equal(t, 2, h.router.quotes)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.QuoteRefetches))
}

func TestEngine_CancelledBeforeSubmitReleasesLock(t *testing.T) {
	h := newHarness(t)
	h.router.quoteErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Execute(ctx, userID, h.kp, buy("1"))
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.False(t, h.lockHeld(t))
}

func TestEngine_DefaultSlippage(t *testing.T) {
	h := newHarness(t)
	req := buy("0.5")
	req.SlippageBps = 0

	_, err := h.engine.Execute(context.Background(), userID, h.kp, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), h.router.lastIn)
}

func TestEngine_LockHeldThroughSlowConfirmation(t *testing.T) {
	h := newHarness(t, trade.WithLockTTL(100*time.Millisecond))
	h.chain.confirmGate = make(chan struct{})
	h.chain.confirming = make(chan struct{}, 1)

	first := make(chan error, 1)
	go func() {
		_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
		first <- err
	}()
	<-h.chain.confirming

	// Several lock TTLs pass while the first swap is still confirming.
	time.Sleep(400 * time.Millisecond)
	assert.True(t, h.lockHeld(t))

	_, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)
	assert.Equal(t, 1, h.chain.sendCount(), "the second attempt never broadcasts")

	close(h.chain.confirmGate)
	require.NoError(t, <-first)
	assert.False(t, h.lockHeld(t))
}

func TestEngine_FeeUsesFreshBlockhash(t *testing.T) {
	h := newHarness(t)
	swapHash, feeHash := randomKey(t), randomKey(t)
	h.chain.blockhashes = []string{swapHash.String(), feeHash.String()}

	res, err := h.engine.Execute(context.Background(), userID, h.kp, buy("1"))
	require.NoError(t, err)
	require.Equal(t, "feetx", res.FeeTxID)

	feeTx, err := solana.ParseTransaction(h.chain.sends[1])
	require.NoError(t, err)
	assert.True(t, bytes.Contains(feeTx.Message, feeHash[:]))
	assert.False(t, bytes.Contains(feeTx.Message, swapHash[:]))
}
