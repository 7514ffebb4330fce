package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
)

// SPL token program ids.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// ErrBlockHeightExceeded means the blockhash of a transaction expired
// before it was seen confirmed.
var ErrBlockHeightExceeded = errors.New("block height exceeded")

type contextValue[T any] struct {
	Value T `json:"value"`
}

// Balance returns the lamport balance of owner.
func (c *Client) Balance(ctx context.Context, owner string) (uint64, error) {
	var result contextValue[uint64]
	params := []any{owner, map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

type tokenAmount struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

type parsedTokenAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data struct {
			Parsed struct {
				Info struct {
					Mint        string      `json:"mint"`
					TokenAmount tokenAmount `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}

func (c *Client) tokenAccounts(ctx context.Context, owner string, filter map[string]any) ([]parsedTokenAccount, error) {
	var result contextValue[[]parsedTokenAccount]
	params := []any{owner, filter, map[string]any{"encoding": "jsonParsed", "commitment": c.commitment}}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// TokenBalance sums owner's token accounts of mint. An owner with no
// account for mint has a zero balance; decimals are then looked up on the mint.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (uint64, int, error) {
	accounts, err := c.tokenAccounts(ctx, owner, map[string]any{"mint": mint})
	if err != nil {
		return 0, 0, err
	}
	if len(accounts) == 0 {
		decimals, err := c.TokenDecimals(ctx, mint)
		return 0, decimals, err
	}
	var total uint64
	decimals := 0
	for _, a := range accounts {
		amt := a.Account.Data.Parsed.Info.TokenAmount
		v, err := strconv.ParseUint(amt.Amount, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("token account %s: invalid amount %q", a.Pubkey, amt.Amount)
		}
		total += v
		decimals = amt.Decimals
	}
	return total, decimals, nil
}

// Holdings lists owner's non-empty balances across both token programs,
// largest first.
func (c *Client) Holdings(ctx context.Context, owner string) ([]domain.Holding, error) {
	byMint := make(map[string]*domain.Holding)
	for _, program := range []string{TokenProgramID, Token2022ProgramID} {
		accounts, err := c.tokenAccounts(ctx, owner, map[string]any{"programId": program})
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			info := a.Account.Data.Parsed.Info
			v, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
			if err != nil || v == 0 {
				continue
			}
			h, ok := byMint[info.Mint]
			if !ok {
				h = &domain.Holding{Mint: info.Mint, Decimals: info.TokenAmount.Decimals}
				byMint[info.Mint] = h
			}
			h.Amount += v
		}
	}
	out := make([]domain.Holding, 0, len(byMint))
	for _, h := range byMint {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Mint < out[j].Mint
	})
	return out, nil
}

type mintAccount struct {
	Data struct {
		Parsed struct {
			Type string `json:"type"`
			Info struct {
				Decimals int `json:"decimals"`
			} `json:"info"`
		} `json:"parsed"`
	} `json:"data"`
}

// TokenDecimals returns the decimals of mint.
func (c *Client) TokenDecimals(ctx context.Context, mint string) (int, error) {
	var result contextValue[*mintAccount]
	params := []any{mint, map[string]any{"encoding": "jsonParsed", "commitment": c.commitment}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return 0, err
	}
	if result.Value == nil {
		return 0, fmt.Errorf("mint %s: %w", mint, domain.ErrNotFound)
	}
	if result.Value.Data.Parsed.Type != "mint" {
		return 0, fmt.Errorf("%s is not a token mint", mint)
	}
	return result.Value.Data.Parsed.Info.Decimals, nil
}

// LatestBlockhash returns a recent blockhash and its validity window.
func (c *Client) LatestBlockhash(ctx context.Context) (domain.Blockhash, error) {
	var result contextValue[struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	}]
	params := []any{map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return domain.Blockhash{}, err
	}
	return domain.Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// BlockHeight returns the current block height.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	params := []any{map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getBlockHeight", params, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// Simulate dry-runs a signed transaction.
func (c *Client) Simulate(ctx context.Context, tx []byte) (*domain.Simulation, error) {
	var result contextValue[struct {
		Err           any      `json:"err"`
		Logs          []string `json:"logs"`
		UnitsConsumed uint64   `json:"unitsConsumed"`
	}]
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{
			"encoding":   "base64",
			"commitment": c.commitment,
			"sigVerify":  false,
		},
	}
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}
	return &domain.Simulation{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: result.Value.UnitsConsumed,
	}, nil
}

// Send submits tx with preflight skipped; the caller has already simulated it.
func (c *Client) Send(ctx context.Context, tx []byte) (string, error) {
	var sig string
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{
			"encoding":      "base64",
			"skipPreflight": true,
		},
	}
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// SignatureStatus is the node's view of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64 `json:"slot"`
	Err                any    `json:"err"`
	ConfirmationStatus string `json:"confirmationStatus"`
}

// Confirmed reports whether the status reached confirmed or finalized.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// SignatureStatus returns the status of signature, or nil when the node has
// not seen it.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var result contextValue[[]*SignatureStatus]
	params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": false}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// Confirm polls until signature is confirmed, fails on chain, or the block
// height passes lastValidBlockHeight. Transient poll errors are retried
// until the context ends.
func (c *Client) Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		done, err := c.checkStatus(ctx, signature)
		if done || err != nil {
			return err
		}

		height, err := c.BlockHeight(ctx)
		if err != nil {
			lastErr = err
		} else if height > lastValidBlockHeight {
			// One last look: it may have landed in the final valid block.
			if done, err := c.checkStatus(ctx, signature); done || err != nil {
				return err
			}
			return &domain.TradeError{
				Kind:    domain.KindConfirmationTimeout,
				Message: "not confirmed within the blockhash validity window",
				TxID:    signature,
				Cause:   fmt.Errorf("%w: height %d > %d", ErrBlockHeightExceeded, height, lastValidBlockHeight),
			}
		}

		select {
		case <-ctx.Done():
			cause := ctx.Err()
			if lastErr != nil {
				cause = fmt.Errorf("%w (last poll error: %v)", cause, lastErr)
			}
			return &domain.TradeError{
				Kind:    domain.KindConfirmationTimeout,
				Message: "stopped waiting for confirmation",
				TxID:    signature,
				Cause:   cause,
			}
		case <-ticker.C:
		}
	}
}

// checkStatus reports done when the transaction reached a final outcome.
// Poll errors are swallowed so the caller keeps polling.
func (c *Client) checkStatus(ctx context.Context, signature string) (bool, error) {
	st, err := c.SignatureStatus(ctx, signature)
	if err != nil || st == nil {
		return false, nil
	}
	if st.Err != nil {
		return true, &domain.TradeError{
			Kind:    domain.KindTransactionFailed,
			Message: fmt.Sprintf("transaction failed: %v", st.Err),
			TxID:    signature,
		}
	}
	if st.Confirmed() {
		return true, nil
	}
	return false, nil
}
