// Package errors provides standardized domain errors for business logic.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCryptoFailure indicates an AEAD authentication failure, wrong key
	// length, or base64 decode failure while encrypting/decrypting data.
	ErrCryptoFailure = errors.New("crypto failure")

	// ErrBackendFailure indicates a KMS transport error or local-file I/O
	// error while reaching an envelope back-end.
	ErrBackendFailure = errors.New("backend failure")

	// ErrBrokerUnsupported indicates the resolved credential controller does
	// not implement the user-credential-broker capability.
	ErrBrokerUnsupported = errors.New("broker unsupported")

	// ErrBrokerStateMismatch indicates the supplied broker input variant
	// does not match the persisted broker state.
	ErrBrokerStateMismatch = errors.New("broker state mismatch")

	// ErrRegistryPoisoned indicates the provider registry's internal lock
	// state is unrecoverable; reads must surface this rather than panic.
	ErrRegistryPoisoned = errors.New("registry poisoned")

	// ErrTransient wraps retriable conditions such as KMS throttling or a
	// busy database; callers may retry with backoff.
	ErrTransient = errors.New("transient error")

	// ErrInvalidCursor indicates a pagination cursor failed to decode.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInUse indicates a delete was refused because another row still
	// references the target, or a unique-constraint would be violated.
	ErrInUse = errors.New("in use")

	// ErrToolNotFound indicates the requested tool instance is absent or
	// its owning tool group is not active. Wraps ErrNotFound so existing
	// errors.Is(err, apperrors.ErrNotFound) call sites still match.
	ErrToolNotFound = fmt.Errorf("tool not found: %w", ErrNotFound)
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message while preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
