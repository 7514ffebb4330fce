package solana

import (
	"context"
	"fmt"

	"github.com/aretw0/flashsol/pkg/domain"
)

// assetBatchSize is the most ids getAssetBatch accepts per call.
const assetBatchSize = 100

// asset is the part of a Digital Asset Standard record used for display.
type asset struct {
	ID      string `json:"id"`
	Content struct {
		Metadata struct {
			Name          string `json:"name"`
			Symbol        string `json:"symbol"`
			TokenStandard string `json:"token_standard"`
		} `json:"metadata"`
	} `json:"content"`
}

func (a *asset) fungible() bool {
	switch a.Content.Metadata.TokenStandard {
	case "Fungible", "FungibleAsset":
		return true
	}
	return false
}

func (a *asset) info() domain.TokenInfo {
	info := domain.TokenInfo{Mint: a.ID, Name: a.Content.Metadata.Name, Symbol: a.Content.Metadata.Symbol}
	if info.Name == "" {
		info.Name = "Unknown Token"
	}
	if info.Symbol == "" {
		info.Symbol = "???"
	}
	return info
}

// Asset implements ports.TokenMetadata with the getAsset method of the
// Digital Asset Standard API. The endpoint must serve that API.
func (c *Client) Asset(ctx context.Context, mint string) (*domain.TokenInfo, error) {
	var result *asset
	if err := c.call(ctx, "getAsset", map[string]any{"id": mint}, &result); err != nil {
		return nil, err
	}
	if result == nil || !result.fungible() {
		return nil, fmt.Errorf("asset %s: %w", mint, domain.ErrNotFound)
	}
	info := result.info()
	return &info, nil
}

// Assets implements ports.TokenMetadata with getAssetBatch, in chunks the
// API accepts. A failed chunk fails the whole lookup.
func (c *Client) Assets(ctx context.Context, mints []string) (map[string]domain.TokenInfo, error) {
	out := make(map[string]domain.TokenInfo, len(mints))
	for start := 0; start < len(mints); start += assetBatchSize {
		end := min(start+assetBatchSize, len(mints))

		var result []*asset
		if err := c.call(ctx, "getAssetBatch", map[string]any{"ids": mints[start:end]}, &result); err != nil {
			return nil, fmt.Errorf("assets %d-%d: %w", start, end, err)
		}
		for _, a := range result {
			if a != nil && a.fungible() {
				out[a.ID] = a.info()
			}
		}
	}
	return out, nil
}
