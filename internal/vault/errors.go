package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for zero amounts and malformed arguments
	ErrInvalidInput = errors.New("invalid input")

	// ErrCapacityExceeded is returned when a deposit breaches the tvl cap or
	// weights would exceed 100%
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrUnauthorized is returned when the caller lacks the required role or is
	// not a registered strategy
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvariantViolation is returned when a collaborator's accounting cannot
	// be reconciled with the vault's records
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrSlippageExceeded is returned when a withdrawal realizes more loss than
	// the configured tolerance
	ErrSlippageExceeded = errors.New("withdraw loss exceeds slippage")

	// ErrStateConflict is returned when the current mode forbids the operation
	ErrStateConflict = errors.New("state conflict")

	// ErrReentrantCall is returned for a vault operation issued from inside a
	// callout of another operation on the same vault
	ErrReentrantCall = fmt.Errorf("%w: reentrant call", ErrStateConflict)
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func capacityExceeded(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCapacityExceeded, fmt.Sprintf(format, args...))
}

func unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func invariantViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

func stateConflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}
