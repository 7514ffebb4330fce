package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Direction is the side of a trade, immutable once execution starts.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Buy || d == Sell
}

// TradeRequest is what the user asked to trade.
//
// For a buy, Amount is the SOL amount to spend as a decimal string ("0.5").
// For a sell, exactly one of Amount (token units as a decimal string) or
// Percent (share of current holdings, 1-100) is set.
type TradeRequest struct {
	Direction   Direction `json:"direction"`
	TokenMint   string    `json:"tokenMint"`
	Amount      string    `json:"amount,omitempty"`
	Percent     uint32    `json:"percent,omitempty"`
	SlippageBps uint32    `json:"slippageBps"`
}

// Validate checks the request shape. Numeric parsing of Amount happens when
// the amount is scaled into smallest units.
func (r TradeRequest) Validate() error {
	if !r.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", r.Direction)
	}
	if strings.TrimSpace(r.TokenMint) == "" {
		return fmt.Errorf("token mint is required")
	}
	if r.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("slippage %d bps exceeds %d", r.SlippageBps, MaxSlippageBps)
	}
	hasAmount := strings.TrimSpace(r.Amount) != ""
	switch r.Direction {
	case Buy:
		if !hasAmount {
			return fmt.Errorf("buy amount is required")
		}
		if r.Percent != 0 {
			return fmt.Errorf("percent applies only to sells")
		}
	case Sell:
		if hasAmount == (r.Percent != 0) {
			return fmt.Errorf("sell requires exactly one of amount or percent")
		}
		if r.Percent > 100 {
			return fmt.Errorf("percent %d exceeds 100", r.Percent)
		}
	}
	return nil
}

// Pair returns the input and output mints of the swap.
func (r TradeRequest) Pair() (inputMint, outputMint string) {
	if r.Direction == Buy {
		return WrappedSOLMint, r.TokenMint
	}
	return r.TokenMint, WrappedSOLMint
}

// Quote is a priced route. Quotes are perishable: use Age to decide whether
// one is still fresh enough to build a transaction from.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	MinOutAmount   uint64
	SlippageBps    uint32
	PriceImpactPct string
	// Route is the opaque payload handed back to the routing service to build the swap.
	Route     json.RawMessage
	FetchedAt time.Time
}

// Age returns how long ago the quote was fetched.
func (q *Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// TradeResult is the outcome of a confirmed trade.
type TradeResult struct {
	TxID        string    `json:"txid"`
	Direction   Direction `json:"direction"`
	TokenMint   string    `json:"tokenMint"`
	InAmount    uint64    `json:"inAmount"`
	OutAmount   uint64    `json:"outAmount"`
	OutDecimals int       `json:"outDecimals"`
	FeeLamports uint64    `json:"feeLamports,omitempty"`
	FeeTxID     string    `json:"feeTxid,omitempty"`
}

// TradeRecord is an entry of the durable trade log.
type TradeRecord struct {
	UserID    string    `json:"userId"`
	Direction Direction `json:"direction"`
	TokenMint string    `json:"tokenMint"`
	TxID      string    `json:"txid,omitempty"`
	InAmount  uint64    `json:"inAmount"`
	OutAmount uint64    `json:"outAmount"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"createdAt"`
}

// OutcomeSuccess is the TradeRecord outcome of a confirmed trade.
const OutcomeSuccess = "success"
