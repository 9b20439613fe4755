package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across services.
var (
	// ErrNotFound indicates a missing account or order.
	ErrNotFound = errors.New("resource not found")

	// ErrCorruptedCredentials indicates the order book returned a secret that
	// does not decode. It is never silently repaired: the caller must invoke
	// an explicit credential reset.
	ErrCorruptedCredentials = errors.New("trading credentials are corrupted: call reset credentials")
)

// ValidationError reports bad caller input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TransientError wraps a network or 5xx failure that is safe to retry with
// bounded backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RemoteRejection is a terminal, structured rejection from the relay or the
// order book. It is not retried and carries remediation text for the caller.
type RemoteRejection struct {
	Op          string
	Reason      string
	Remediation string
}

func (e *RemoteRejection) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s rejected: %s (%s)", e.Op, e.Reason, e.Remediation)
	}
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// UnresolvedError reports that the recovery heuristics were exhausted without
// determining success or failure. The account is left in a safely retryable
// status; Candidates lists every address checked for bytecode so an operator
// can diagnose the deployment.
type UnresolvedError struct {
	Op                 string
	Candidates         []string
	RelayKeyConfigured bool
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%s unresolved: no bytecode at any of [%s] (relay credentials configured: %t); retry sync once the relay settles",
		e.Op, strings.Join(e.Candidates, ", "), e.RelayKeyConfigured)
}

// IsTransient reports whether err wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
