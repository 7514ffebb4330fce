package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteJSON = `{"inputMint":"So11111111111111111111111111111111111111112","inAmount":"100000000","outputMint":"BONK","outAmount":"1000000000","otherAmountThreshold":"950000000","slippageBps":500,"priceImpactPct":"0.01","routePlan":[]}`

func TestClient_Quote(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, domain.WrappedSOLMint, q.Get("inputMint"))
		assert.Equal(t, "BONK", q.Get("outputMint"))
		assert.Equal(t, "100000000", q.Get("amount"))
		assert.Equal(t, "500", q.Get("slippageBps"))
		_, _ = w.Write([]byte(quoteJSON))
	}))
	defer srv.Close()

	c := New("", WithBaseURL(srv.URL), WithClock(func() time.Time { return fixed }))
	q, err := c.Quote(context.Background(), domain.WrappedSOLMint, "BONK", 100_000_000, 500)
	require.NoError(t, err)

	assert.Equal(t, uint64(100_000_000), q.InAmount)
	assert.Equal(t, uint64(1_000_000_000), q.OutAmount)
	assert.Equal(t, uint64(950_000_000), q.MinOutAmount)
	assert.Equal(t, fixed, q.FetchedAt)
	assert.JSONEq(t, quoteJSON, string(q.Route))
}

func TestClient_QuoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("outputMint") == "BAD" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Could not find any route"}`))
			return
		}
		_, _ = w.Write([]byte(`{"outAmount":"not-a-number"}`))
	}))
	defer srv.Close()

	c := New("", WithBaseURL(srv.URL))

	_, err := c.Quote(context.Background(), "A", "BAD", 1, 50)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "route")

	_, err = c.Quote(context.Background(), "A", "B", 1, 50)
	assert.Error(t, err)
}

func TestClient_BuildSwap(t *testing.T) {
	unsigned := []byte{1, 0, 0, 0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "UserPubkey", body["userPublicKey"])
		assert.Equal(t, true, body["wrapAndUnwrapSol"])
		assert.Equal(t, "1000000000", body["quoteResponse"].(map[string]any)["outAmount"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"swapTransaction":      base64.StdEncoding.EncodeToString(unsigned),
			"lastValidBlockHeight": 123,
		})
	}))
	defer srv.Close()

	c := New("secret", WithBaseURL(srv.URL))
	tx, err := c.BuildSwap(context.Background(), &domain.Quote{Route: json.RawMessage(quoteJSON)}, "UserPubkey")
	require.NoError(t, err)
	assert.Equal(t, unsigned, tx)

	_, err = c.BuildSwap(context.Background(), &domain.Quote{}, "UserPubkey")
	assert.Error(t, err, "a quote without a route cannot be built")
}

func TestNew_SelectsEndpoint(t *testing.T) {
	assert.Equal(t, DefaultLiteBase, New("").baseURL)
	assert.Equal(t, DefaultProBase, New(" key ").baseURL)
}
