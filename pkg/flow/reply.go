package flow

import (
	"errors"
	"fmt"

	"github.com/aretw0/flashsol/pkg/credential"
	"github.com/aretw0/flashsol/pkg/domain"
)

// Reply kinds that never come from the trade engine.
const (
	KindNoWallet       domain.Kind = "no_wallet"
	KindWalletExists   domain.Kind = "wallet_exists"
	KindSessionExpired domain.Kind = "session_expired"
	KindInvalidInput   domain.Kind = "invalid_input"
	KindInvalidPasskey domain.Kind = "invalid_passkey"
	KindDebounced      domain.Kind = "debounced"
	KindNoFlow         domain.Kind = "no_flow"
)

var errHoldingsUnavailable = errors.New("holdings unavailable")

// ExplorerURL prefixes transaction ids in replies.
var ExplorerURL = "https://solscan.io/tx/"

// Choice is a suggested answer, rendered as a button by chat front-ends.
type Choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReplyError describes why a turn did not advance.
type ReplyError struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
	TxID    string      `json:"txid,omitempty"`
}

// Reply is the outcome of one conversational turn.
type Reply struct {
	Text    string      `json:"text"`
	Choices []Choice    `json:"choices,omitempty"`
	Flow    domain.Flow `json:"flow,omitempty"`
	Step    domain.Step `json:"step,omitempty"`
	// AwaitingPasskey is set while a passkey entry is pending.
	AwaitingPasskey bool                `json:"awaitingPasskey,omitempty"`
	Trade           *domain.TradeResult `json:"trade,omitempty"`
	Page            *Page               `json:"page,omitempty"`
	// Sensitive replies carry a secret and must only reach the requester.
	Sensitive bool        `json:"sensitive,omitempty"`
	Error     *ReplyError `json:"error,omitempty"`
}

// Page locates a paginated listing.
type Page struct {
	Number int `json:"number"`
	Total  int `json:"total"`
}

// Awaiting reports whether the user is expected to answer.
func (r Reply) Awaiting() bool {
	return r.Step != "" || r.AwaitingPasskey
}

func prompt(st *domain.FlowState, text string, choices ...Choice) Reply {
	return Reply{Text: text, Choices: choices, Flow: st.Flow, Step: st.Step}
}

func failure(kind domain.Kind, text string) Reply {
	return Reply{Text: text, Error: &ReplyError{Kind: kind, Message: text}}
}

// retry keeps the flow at its current step after invalid input.
func retry(st *domain.FlowState, text string, choices ...Choice) Reply {
	r := prompt(st, text, choices...)
	r.Error = &ReplyError{Kind: KindInvalidInput, Message: text}
	return r
}

// errorReply turns an error into a user-facing reply. Transaction ids are
// always surfaced so the user can check the outcome.
func errorReply(err error) Reply {
	if errors.Is(err, credential.ErrSessionExpired) {
		return failure(KindSessionExpired, "Your secure session expired. Run the security check to unlock trading.")
	}
	if errors.Is(err, domain.ErrWalletNotFound) {
		return failure(KindNoWallet, "You need to create or connect a wallet first.")
	}
	if errors.Is(err, errHoldingsUnavailable) {
		return failure(domain.KindQuoteUnavailable, "Could not load your tokens right now. Please try again.")
	}

	var te *domain.TradeError
	if !errors.As(err, &te) {
		return failure(domain.KindInternal, "Something went wrong. Please try again.")
	}

	var text string
	switch te.Kind {
	case domain.KindOperationInProgress:
		text = "Please wait, another operation is in progress."
	case domain.KindQuoteUnavailable:
		text = "Could not get a quote right now. Please try again."
	case domain.KindSimulationFailed:
		text = "The trade would fail, so it was not sent. No funds moved."
	case domain.KindConfirmationTimeout:
		text = fmt.Sprintf("Transaction sent but not confirmed yet. Check %s%s before trying again.", ExplorerURL, te.TxID)
	case domain.KindTransactionFailed:
		text = fmt.Sprintf("The transaction failed on chain: %s%s", ExplorerURL, te.TxID)
	case domain.KindSubmitFailed:
		text = "The network rejected the transaction. No funds moved."
	case domain.KindInsufficientFunds:
		text = "Not enough balance for this trade."
	case domain.KindStoreUnavailable:
		text = "Service temporarily unavailable. Please try again."
	case domain.KindInvalidRequest:
		text = "Invalid trade: " + te.Message + "."
	default:
		text = "Something went wrong. Please try again."
	}
	return Reply{Text: text, Error: &ReplyError{Kind: te.Kind, Message: text, TxID: te.TxID}}
}
