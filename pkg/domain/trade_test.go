package domain_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.TradeRequest
		wantErr bool
	}{
		{"buy ok", domain.TradeRequest{Direction: domain.Buy, TokenMint: "m", Amount: "0.1", SlippageBps: 500}, false},
		{"buy without amount", domain.TradeRequest{Direction: domain.Buy, TokenMint: "m"}, true},
		{"buy with percent", domain.TradeRequest{Direction: domain.Buy, TokenMint: "m", Amount: "1", Percent: 50}, true},
		{"sell percent ok", domain.TradeRequest{Direction: domain.Sell, TokenMint: "m", Percent: 100}, false},
		{"sell amount ok", domain.TradeRequest{Direction: domain.Sell, TokenMint: "m", Amount: "12.5"}, false},
		{"sell both", domain.TradeRequest{Direction: domain.Sell, TokenMint: "m", Amount: "1", Percent: 10}, true},
		{"sell neither", domain.TradeRequest{Direction: domain.Sell, TokenMint: "m"}, true},
		{"sell over 100", domain.TradeRequest{Direction: domain.Sell, TokenMint: "m", Percent: 101}, true},
		{"no mint", domain.TradeRequest{Direction: domain.Buy, Amount: "1"}, true},
		{"bad direction", domain.TradeRequest{Direction: "hold", TokenMint: "m", Amount: "1"}, true},
		{"slippage over 100%", domain.TradeRequest{Direction: domain.Buy, TokenMint: "m", Amount: "1", SlippageBps: 10001}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTradeRequest_Pair(t *testing.T) {
	in, out := domain.TradeRequest{Direction: domain.Buy, TokenMint: "tok"}.Pair()
	assert.Equal(t, domain.WrappedSOLMint, in)
	assert.Equal(t, "tok", out)

	in, out = domain.TradeRequest{Direction: domain.Sell, TokenMint: "tok"}.Pair()
	assert.Equal(t, "tok", in)
	assert.Equal(t, domain.WrappedSOLMint, out)
}

func TestTradeError_Is(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("buy: %w", domain.WrapError(domain.KindStoreUnavailable, "lock", cause))

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrOperationInProgress)
	assert.Equal(t, domain.KindStoreUnavailable, domain.KindOf(err))
	assert.Equal(t, domain.KindInternal, domain.KindOf(cause))

	timeout := &domain.TradeError{Kind: domain.KindConfirmationTimeout, Message: "not confirmed", TxID: "5sig"}
	assert.Contains(t, timeout.Error(), "5sig")
}

func TestSealedSecret_HexJSON(t *testing.T) {
	s := domain.SealedSecret{Ciphertext: domain.HexBytes{0xca, 0xfe}, IV: domain.HexBytes{0x00, 0x01}}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ciphertext":"cafe","iv":"0001"}`, string(data))

	var bad domain.SealedSecret
	assert.Error(t, json.Unmarshal([]byte(`{"ciphertext":"zz","iv":""}`), &bad))
}

func TestWallet_Slippage(t *testing.T) {
	w := &domain.Wallet{}
	assert.Equal(t, domain.DefaultSlippageBps, w.Slippage())
	w.SlippageBps = 100
	assert.Equal(t, uint32(100), w.Slippage())
}
