// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletAlreadyExists = errors.New("wallet already exists")
	ErrWalletInactive      = errors.New("wallet is not active")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCurrencyMismatch    = errors.New("currency does not match wallet currency")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")

	// Ledger errors
	ErrDuplicateReference = errors.New("reference already applied to ledger")
	ErrMissingReference   = errors.New("ledger reference is required")

	// Payment intent errors
	ErrIntentNotFound          = errors.New("payment intent not found")
	ErrInvalidIntentTransition = errors.New("invalid payment intent status transition")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrAmountMismatch          = errors.New("provider amount does not match payment intent")

	// Provider and routing errors
	ErrProviderNotFound    = errors.New("payment provider not found")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrNoEligibleProvider  = errors.New("no eligible payment provider")
	ErrProviderRequest     = errors.New("payment provider request failed")

	// Webhook errors
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrUnsupportedEvent   = errors.New("unsupported webhook event")
	ErrMalformedPayload   = errors.New("malformed webhook payload")
	ErrEventAlreadyStored = errors.New("webhook event already received")

	// Request errors
	ErrDuplicateRequest = errors.New("duplicate request in progress")
	ErrAccessDenied     = errors.New("access denied")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
