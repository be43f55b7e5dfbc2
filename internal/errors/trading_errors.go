package errors

import (
	"errors"
	"fmt"
)

// ErrorKind classifies everything that can go wrong during a trading cycle.
type ErrorKind string

const (
	// KindDataUnavailable: a signal, price, or chain feed is missing for
	// this cycle. Degrade to neutral or skip the symbol; never fatal.
	KindDataUnavailable ErrorKind = "DATA_UNAVAILABLE"

	// KindValidation: the Risk Manager declined a proposal. Normal control
	// flow, logged but not treated as a failure.
	KindValidation ErrorKind = "VALIDATION"

	// KindStateInconsistency: a portfolio invariant was violated. Indicates
	// a logic defect, not a market condition; halts trade application until
	// manually cleared.
	KindStateInconsistency ErrorKind = "STATE_INCONSISTENCY"

	// KindScheduling: the scheduler missed a window or refused an
	// overlapping cycle. The tick is skipped and the next run proceeds.
	KindScheduling ErrorKind = "SCHEDULING"
)

// TradeError carries enough context (kind, symbol, reason) to reconstruct
// a decision from the durable log after the fact.
type TradeError struct {
	Kind       ErrorKind
	Symbol     string
	Message    string
	Underlying error
}

func (e *TradeError) Error() string {
	if e.Symbol == "" {
		if e.Underlying != nil {
			return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Underlying)
		}
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Symbol, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Symbol, e.Message)
}

func (e *TradeError) Unwrap() error { return e.Underlying }

func NewDataUnavailable(symbol, message string, err error) *TradeError {
	return &TradeError{Kind: KindDataUnavailable, Symbol: symbol, Message: message, Underlying: err}
}

func NewValidation(symbol, message string) *TradeError {
	return &TradeError{Kind: KindValidation, Symbol: symbol, Message: message}
}

func NewStateInconsistency(message string) *TradeError {
	return &TradeError{Kind: KindStateInconsistency, Message: message}
}

func NewScheduling(message string) *TradeError {
	return &TradeError{Kind: KindScheduling, Message: message}
}

// KindOf extracts the taxonomy kind from any error in the chain. Unknown
// errors are treated as data problems, the recoverable default.
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindDataUnavailable
}

// IsStateInconsistency reports whether err is (or wraps) an invariant
// violation that must halt trading.
func IsStateInconsistency(err error) bool {
	return KindOf(err) == KindStateInconsistency
}
