// Package jupiter is a client for the Jupiter swap aggregator: quotes and
// swap transaction building.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
)

const (
	DefaultLiteBase = "https://lite-api.jup.ag/swap/v1"
	DefaultProBase  = "https://api.jup.ag/swap/v1"
	DefaultTimeout  = 15 * time.Second
	userAgent       = "flashsol/1.0"
)

// Client implements ports.Router against the Jupiter swap API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithClock sets the time source stamped on quotes.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client. An API key selects the keyed endpoint.
func New(apiKey string, opts ...Option) *Client {
	apiKey = strings.TrimSpace(apiKey)
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		baseURL: DefaultLiteBase,
		apiKey:  apiKey,
		now:     time.Now,
	}
	if apiKey != "" {
		c.baseURL = DefaultProBase
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer from the aggregator.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jupiter returned status %d: %s", e.Status, e.Body)
}

type quoteResponse struct {
	InputMint            string `json:"inputMint"`
	OutputMint           string `json:"outputMint"`
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SlippageBps          uint32 `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`
}

// Quote prices a swap of amount smallest units of inputMint.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint32) (*domain.Quote, error) {
	vals := url.Values{}
	vals.Set("inputMint", inputMint)
	vals.Set("outputMint", outputMint)
	vals.Set("amount", strconv.FormatUint(amount, 10))
	vals.Set("slippageBps", strconv.FormatUint(uint64(slippageBps), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+vals.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	out, err := strconv.ParseUint(strings.TrimSpace(resp.OutAmount), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote has invalid output amount %q", resp.OutAmount)
	}
	in, err := strconv.ParseUint(strings.TrimSpace(resp.InAmount), 10, 64)
	if err != nil {
		in = amount
	}
	minOut, _ := strconv.ParseUint(strings.TrimSpace(resp.OtherAmountThreshold), 10, 64)

	return &domain.Quote{
		InputMint:      inputMint,
		OutputMint:     outputMint,
		InAmount:       in,
		OutAmount:      out,
		MinOutAmount:   minOut,
		SlippageBps:    slippageBps,
		PriceImpactPct: resp.PriceImpactPct,
		Route:          json.RawMessage(raw),
		FetchedAt:      c.now(),
	}, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// BuildSwap returns the unsigned serialized transaction for quote.
func (c *Client) BuildSwap(ctx context.Context, quote *domain.Quote, userPublicKey string) ([]byte, error) {
	if len(quote.Route) == 0 {
		return nil, fmt.Errorf("quote carries no route")
	}
	body, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Route,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("encode swap request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp swapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode swap: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response missing transaction")
	}
	tx, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("swap transaction is not base64: %w", err)
	}
	return tx, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter request: %w", err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read jupiter response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(buf))}
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, fmt.Errorf("jupiter returned empty response")
	}
	return buf, nil
}
