package trade_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	mu        sync.Mutex
	quoteErr  error
	buildErr  error
	outAmount uint64
	fetchedAt time.Time
	swapTx    []byte
	quotes    int
	lastIn    uint64
}

func (r *fakeRouter) Quote(ctx context.Context, in, out string, amount uint64, slippage uint32) (*domain.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes++
	r.lastIn = amount
	if r.quoteErr != nil {
		return nil, r.quoteErr
	}
	return &domain.Quote{
		InputMint:   in,
		OutputMint:  out,
		InAmount:    amount,
		OutAmount:   r.outAmount,
		SlippageBps: slippage,
		FetchedAt:   r.fetchedAt,
	}, nil
}

func (r *fakeRouter) BuildSwap(ctx context.Context, q *domain.Quote, user string) ([]byte, error) {
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	return r.swapTx, nil
}

type fakeChain struct {
	mu sync.Mutex

	balance    uint64
	balanceErr error
	held       uint64
	decimals   int
	sim        *domain.Simulation
	simErr     error
	sendErrs   []error
	sendIDs    []string
	confirmErr error
	blockhash  domain.Blockhash
	// confirmGate, when set, holds Confirm until it is closed. confirming
	// receives a value as each Confirm starts waiting.
	confirmGate chan struct{}
	confirming  chan struct{}

	sends       [][]byte
	confirmed   []string
	blockhashes []string
}

func (c *fakeChain) Balance(ctx context.Context, owner string) (uint64, error) {
	return c.balance, c.balanceErr
}

func (c *fakeChain) TokenBalance(ctx context.Context, owner, mint string) (uint64, int, error) {
	return c.held, c.decimals, nil
}

func (c *fakeChain) TokenDecimals(ctx context.Context, mint string) (int, error) {
	return c.decimals, nil
}

func (c *fakeChain) Holdings(ctx context.Context, owner string) ([]domain.Holding, error) {
	return nil, nil
}

func (c *fakeChain) LatestBlockhash(ctx context.Context) (domain.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bh := c.blockhash
	if n := len(c.blockhashes); n > 0 {
		bh.Hash = c.blockhashes[0]
		if n > 1 {
			c.blockhashes = c.blockhashes[1:]
		}
	}
	return bh, nil
}

func (c *fakeChain) Simulate(ctx context.Context, tx []byte) (*domain.Simulation, error) {
	if c.simErr != nil {
		return nil, c.simErr
	}
	if c.sim != nil {
		return c.sim, nil
	}
	return &domain.Simulation{}, nil
}

func (c *fakeChain) Send(ctx context.Context, tx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.sends)
	c.sends = append(c.sends, tx)
	if i < len(c.sendErrs) && c.sendErrs[i] != nil {
		return "", c.sendErrs[i]
	}
	if i < len(c.sendIDs) {
		return c.sendIDs[i], nil
	}
	return "", nil
}

func (c *fakeChain) Confirm(ctx context.Context, sig string, lastValid uint64) error {
	if c.confirmGate != nil {
		if c.confirming != nil {
			c.confirming <- struct{}{}
		}
		<-c.confirmGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed = append(c.confirmed, sig)
	return c.confirmErr
}

func (c *fakeChain) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

// swapFor returns a wire transaction whose only signer is kp, standing in
// for a routing-service swap.
func swapFor(t *testing.T, kp *solana.Keypair) []byte {
	t.Helper()
	other, err := solana.NewKeypair()
	require.NoError(t, err)
	tx, err := solana.BuildTransfer(kp, other.PublicKey(), 1, other.PublicKey().String())
	require.NoError(t, err)
	return tx.Serialize()
}

func randomKey(t *testing.T) solana.PublicKey {
	t.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(t, err)
	return kp.PublicKey()
}

var errTransport = errors.New("connection reset by peer")
