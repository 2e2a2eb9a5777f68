package invoker

import (
	"fmt"
	"strings"
)

// Category labels a failure class for display and for retry decisions.
type Category string

const (
	// CategoryConfig marks terminal configuration failures. These abort the
	// whole call: no retries, no model fallback.
	CategoryConfig Category = "configuration"

	// CategoryTransient marks recoverable upstream failures consumed by the
	// retry loop.
	CategoryTransient Category = "transient"

	// CategoryValidation marks recoverable schema failures on parsed model
	// output. Treated like transient failures for retry purposes.
	CategoryValidation Category = "validation"

	// CategoryExhausted marks the aggregate failure after every model and
	// attempt combination has failed. Terminal for this call; the caller may
	// retry at its own discretion.
	CategoryExhausted Category = "exhausted"
)

// InvokeError is the typed failure returned by the invoker. Configuration
// and exhaustion errors surface to callers; transient and validation errors
// stay inside the retry loop.
type InvokeError struct {
	Category    Category
	Message     string
	Remediation string
	Models      []string // models attempted, populated on exhaustion
	Attempts    int      // attempts per model, populated on exhaustion
	Err         error    // underlying cause, if any
}

// Error implements the error interface.
func (e *InvokeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *InvokeError) Unwrap() error {
	return e.Err
}

// Terminal reports whether the error must abort the entire retry/fallback
// loop immediately.
func (e *InvokeError) Terminal() bool {
	return e.Category == CategoryConfig
}

// IsTerminal reports whether err is a terminal configuration failure.
func IsTerminal(err error) bool {
	ie, ok := err.(*InvokeError)
	return ok && ie.Terminal()
}

// IsExhausted reports whether err is an exhaustion failure.
func IsExhausted(err error) bool {
	ie, ok := err.(*InvokeError)
	return ok && ie.Category == CategoryExhausted
}

func newConfigError(message, remediation string) *InvokeError {
	return &InvokeError{
		Category:    CategoryConfig,
		Message:     message,
		Remediation: remediation,
	}
}

func newTransientError(message string, cause error) *InvokeError {
	return &InvokeError{
		Category: CategoryTransient,
		Message:  message,
		Err:      cause,
	}
}

func newValidationError(violations []string) *InvokeError {
	return &InvokeError{
		Category: CategoryValidation,
		Message:  fmt.Sprintf("response failed validation: %s", strings.Join(violations, "; ")),
	}
}

func newExhaustionError(models []string, attemptsPerModel int, last error) *InvokeError {
	msg := fmt.Sprintf("all models failed after %d attempts each (tried: %s)",
		attemptsPerModel, strings.Join(models, ", "))
	return &InvokeError{
		Category:    CategoryExhausted,
		Message:     msg,
		Remediation: "Check upstream service health and model availability, then retry.",
		Models:      models,
		Attempts:    attemptsPerModel,
		Err:         last,
	}
}
