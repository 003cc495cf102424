package service

import "errors"

// Business-rule failures. Callers distinguish these from storage faults
// with errors.Is; anything else returned by the ledger is a storage fault.
var (
	// ErrInsufficientTokens means the guarded decrement found too small a
	// balance. This is a normal outcome, surfaced to the user as a paywall
	// prompt, not a system fault.
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrTokenRecordNotFound means no ledger record exists for the user yet.
	ErrTokenRecordNotFound = errors.New("token record not found")

	// ErrInvalidAmount means a credit grant was requested with a
	// non-positive amount.
	ErrInvalidAmount = errors.New("token amount must be positive")

	// ErrUntrustedCaller means AddCredits was reached from a path that has
	// not independently verified payment success.
	ErrUntrustedCaller = errors.New("credits may only be added by a trusted system caller")

	// ErrUnknownUsageKind means the requested usage kind has no configured cost.
	ErrUnknownUsageKind = errors.New("unknown usage kind")
)
