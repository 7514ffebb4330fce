package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrWalletNotFound is returned when a user has no wallet on record.
var ErrWalletNotFound = errors.New("wallet not found")

// Kind classifies trade and session failures.
type Kind string

const (
	// KindOperationInProgress means another exclusive operation holds the user's lock.
	KindOperationInProgress Kind = "operation_in_progress"
	// KindQuoteUnavailable means the routing service failed to quote or build the route.
	KindQuoteUnavailable Kind = "quote_unavailable"
	// KindSimulationFailed means the signed transaction would revert. No funds moved.
	KindSimulationFailed Kind = "simulation_failed"
	// KindConfirmationTimeout means the outcome is unknown: the transaction may still land.
	KindConfirmationTimeout Kind = "confirmation_timeout"
	// KindStoreUnavailable means the session/lock layer could not be reached.
	KindStoreUnavailable Kind = "store_unavailable"
	// KindInvalidRequest means the request failed validation before any side effect.
	KindInvalidRequest Kind = "invalid_request"
	// KindInsufficientFunds means the resolved source amount is zero.
	KindInsufficientFunds Kind = "insufficient_funds"
	// KindSubmitFailed means the node rejected the transaction before broadcast.
	KindSubmitFailed Kind = "submit_failed"
	// KindTransactionFailed means the transaction landed on chain with an error.
	KindTransactionFailed Kind = "transaction_failed"
	// KindInternal covers failures that fit no other kind (decoding, signing).
	KindInternal Kind = "internal"
)

// Sentinels usable with errors.Is against any *TradeError of the same kind.
var (
	ErrOperationInProgress = &TradeError{Kind: KindOperationInProgress, Message: "another operation is in progress"}
	ErrQuoteUnavailable    = &TradeError{Kind: KindQuoteUnavailable, Message: "quote unavailable"}
	ErrSimulationFailed    = &TradeError{Kind: KindSimulationFailed, Message: "transaction simulation failed"}
	ErrConfirmationTimeout = &TradeError{Kind: KindConfirmationTimeout, Message: "transaction confirmation timed out"}
	ErrStoreUnavailable    = &TradeError{Kind: KindStoreUnavailable, Message: "session store unavailable"}
	ErrInvalidRequest      = &TradeError{Kind: KindInvalidRequest, Message: "invalid trade request"}
	ErrInsufficientFunds   = &TradeError{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrSubmitFailed        = &TradeError{Kind: KindSubmitFailed, Message: "transaction submission failed"}
	ErrTransactionFailed   = &TradeError{Kind: KindTransactionFailed, Message: "transaction failed on chain"}
)

// TradeError is a classified failure carrying the context a caller needs to
// present it: the transaction id when one exists and simulation logs.
type TradeError struct {
	Kind    Kind
	Message string
	TxID    string
	Logs    []string
	Cause   error
}

func (e *TradeError) Error() string {
	msg := e.Message
	if e.TxID != "" {
		msg = fmt.Sprintf("%s (tx %s)", msg, e.TxID)
	}
	if e.Cause == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

func (e *TradeError) Unwrap() error { return e.Cause }

// Is matches any *TradeError with the same Kind.
func (e *TradeError) Is(target error) bool {
	var t *TradeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a classified error.
func NewError(kind Kind, message string) *TradeError {
	return &TradeError{Kind: kind, Message: message}
}

// WrapError creates a classified error with a cause.
func WrapError(kind Kind, message string, cause error) *TradeError {
	return &TradeError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err, or KindInternal when err is unclassified.
func KindOf(err error) Kind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}
