package ports

import (
	"context"

	"github.com/aretw0/flashsol/pkg/domain"
)

// Router prices swaps and builds unsigned swap transactions.
type Router interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint32) (*domain.Quote, error)

	// BuildSwap returns the serialized, unsigned swap transaction for quote.
	BuildSwap(ctx context.Context, quote *domain.Quote, userPublicKey string) ([]byte, error)
}

// Chain is the Solana RPC surface used by the trade engine.
type Chain interface {
	// Balance returns the native balance in lamports.
	Balance(ctx context.Context, owner string) (uint64, error)

	// TokenBalance returns the summed balance of owner's accounts for mint.
	TokenBalance(ctx context.Context, owner, mint string) (amount uint64, decimals int, err error)

	// TokenDecimals returns the decimals of a mint.
	TokenDecimals(ctx context.Context, mint string) (int, error)

	// Holdings lists the non-empty fungible balances of owner.
	Holdings(ctx context.Context, owner string) ([]domain.Holding, error)

	LatestBlockhash(ctx context.Context) (domain.Blockhash, error)

	Simulate(ctx context.Context, tx []byte) (*domain.Simulation, error)

	// Send submits tx with preflight checks skipped and returns its signature.
	Send(ctx context.Context, tx []byte) (string, error)

	// Confirm waits until signature is confirmed or the block height passes
	// lastValidBlockHeight. It returns domain.ErrConfirmationTimeout on expiry
	// and domain.ErrTransactionFailed when the transaction landed with an error.
	Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error
}

// TokenMetadata resolves display names of fungible mints.
type TokenMetadata interface {
	// Asset returns the metadata of mint, or domain.ErrNotFound when the
	// mint is unknown or not fungible.
	Asset(ctx context.Context, mint string) (*domain.TokenInfo, error)

	// Assets resolves many mints at once. Unknown and non-fungible mints
	// are absent from the result.
	Assets(ctx context.Context, mints []string) (map[string]domain.TokenInfo, error)
}
