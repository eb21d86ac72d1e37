// Package judge holds the failure taxonomy and call policy shared by the
// external collaborators: the identity gateway, the liveness judge and the
// task board. Adapters classify failures; the Caller decides what to retry.
package judge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies a collaborator failure.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorProviderOutage   ErrorCategory = "provider_outage"
	ErrorRateLimited      ErrorCategory = "rate_limited"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorAuthentication   ErrorCategory = "authentication"
	ErrorNotFound         ErrorCategory = "not_found"
	ErrorContractMismatch ErrorCategory = "contract_mismatch" // the collaborator answered with a shape we do not understand
	ErrorInternal         ErrorCategory = "internal"
)

// transient lists the categories where a second attempt can succeed.
var transient = map[ErrorCategory]bool{
	ErrorTimeout:        true,
	ErrorProviderOutage: true,
	ErrorRateLimited:    true,
}

// Retryable reports whether a failure of this category is worth another attempt.
func (c ErrorCategory) Retryable() bool {
	return transient[c]
}

// ProviderError is a classified failure from one collaborator.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
}

// NewProviderError classifies a failure of providerID. underlying may be nil.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	return &ProviderError{Category: category, ProviderID: providerID, Message: message, Underlying: underlying}
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %s", e.ProviderID, e.Category, e.Message)
	if e.Underlying != nil {
		b.WriteString(": ")
		b.WriteString(e.Underlying.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Underlying }

// IsRetryable reports whether err carries a transient category.
// Unclassified errors are never retried.
func IsRetryable(err error) bool {
	if pe, ok := asProviderError(err); ok {
		return pe.Category.Retryable()
	}
	return false
}

// GetCategory returns the category of err, or ErrorInternal when unclassified.
func GetCategory(err error) ErrorCategory {
	if pe, ok := asProviderError(err); ok {
		return pe.Category
	}
	return ErrorInternal
}

func asProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// StatusError is a non-2xx collaborator response, kept so adapters can read
// the body before classifying it.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collaborator answered %d", e.StatusCode)
}
