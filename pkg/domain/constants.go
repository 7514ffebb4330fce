package domain

import "time"

// Chain constants.
const (
	// WrappedSOLMint is the mint used by the routing service for native SOL.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	// SOLDecimals is the number of decimals of one SOL in lamports.
	SOLDecimals = 9
	// LamportsPerSOL is 10^SOLDecimals.
	LamportsPerSOL uint64 = 1_000_000_000
)

// Trade defaults.
const (
	// DefaultSlippageBps applies when a wallet has no explicit slippage (5%).
	DefaultSlippageBps uint32 = 500
	// MaxSlippageBps is 100%.
	MaxSlippageBps uint32 = 10_000
)

// Session TTLs.
const (
	FlowTTL           = 60 * time.Second
	SellFlowTTL       = 300 * time.Second
	PasskeyTTL        = 60 * time.Second
	PortfolioCacheTTL = 300 * time.Second
	ProcessingLockTTL = 60 * time.Second
	SecureSessionTTL  = 24 * time.Hour
	DebounceWindow    = time.Second
)
