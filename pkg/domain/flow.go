package domain

// Flow names a multi-turn conversational flow.
type Flow string

const (
	FlowBuy      Flow = "buy"
	FlowSell     Flow = "sell"
	FlowConnect  Flow = "connect"
	FlowSlippage Flow = "slippage"
	FlowSecurity Flow = "security"
)

// Step is the input a flow is waiting for.
type Step string

const (
	StepAwaitingContractAddress Step = "awaiting_contract_address"
	StepAwaitingAmount          Step = "awaiting_amount"
	StepAwaitingCustomAmount    Step = "awaiting_custom_amount"
	StepAwaitingValue           Step = "awaiting_value"
	StepAwaitingPrivateKey      Step = "awaiting_private_key"
)

// FlowState is the session record of a flow in progress.
type FlowState struct {
	Flow         Flow   `json:"flow"`
	Step         Step   `json:"step"`
	MessageID    int64  `json:"messageId,omitempty"`
	TokenAddress string `json:"tokenAddress,omitempty"`
	TokenName    string `json:"tokenName,omitempty"`
	TokenSymbol  string `json:"tokenSymbol,omitempty"`
}

// PasskeyContext names what a passkey entry unlocks.
type PasskeyContext string

const (
	PasskeyNewWallet  PasskeyContext = "wallet"
	PasskeyConnect    PasskeyContext = "connect"
	PasskeySecurity   PasskeyContext = "securitycheck"
	PasskeyDisconnect PasskeyContext = "disconnect"
	PasskeyExport     PasskeyContext = "privatekey"
)

// PasskeyState is the session record of a passkey entry in progress.
// A wallet being connected travels sealed, never in plain form.
type PasskeyState struct {
	Context   PasskeyContext `json:"context"`
	MessageID int64          `json:"messageId,omitempty"`
	PublicKey string         `json:"publicKey,omitempty"`
	Pending   *SealedSecret  `json:"pending,omitempty"`
}

// Holding is a fungible token balance owned by a wallet.
type Holding struct {
	Mint     string `json:"mint"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Amount   uint64 `json:"amount"`
	Decimals int    `json:"decimals"`
}

// TokenInfo is the display metadata of a fungible mint.
type TokenInfo struct {
	Mint   string `json:"mint"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
