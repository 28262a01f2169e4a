package luzidos

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error type constants for classification and matching
const (
	// ErrorTypeNotFound indicates a document or workflow instance is absent.
	// Callers that hit this on a merge must initialize the workflow first.
	ErrorTypeNotFound = "not_found"

	// ErrorTypeNotOpen indicates a registry transition on an invoice id that
	// is not currently in the open set.
	ErrorTypeNotOpen = "not_open"

	// ErrorTypeUnknownSender indicates an inbound message whose sender has no
	// identity mapping.
	ErrorTypeUnknownSender = "unknown_sender"

	// ErrorTypeLockBusy indicates the execution lock is already held for the
	// workflow instance. The invocation should abort without mutating state.
	ErrorTypeLockBusy = "lock_busy"

	// ErrorTypeTransientIO indicates the document store or event bus is
	// unavailable. Retryable at the collaborator boundary with backoff.
	// Unknown errors default to this classification so callers may retry.
	ErrorTypeTransientIO = "transient_io"

	// ErrorTypeScheduling indicates event-bus rule or target creation failed.
	ErrorTypeScheduling = "scheduling_failure"
)

// AgentError represents a structured error with classification.
// It supports Go's error wrapping patterns with Unwrap() method.
type AgentError struct {
	Type    string      `json:"type"`
	Cause   string      `json:"cause"`
	Details interface{} `json:"details,omitempty"`
	Wrapped error       `json:"-"` // Original error being wrapped
}

// Error implements the error interface
func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

// Unwrap implements the error unwrapping interface for Go's errors.Is and errors.As
func (e *AgentError) Unwrap() error {
	return e.Wrapped
}

// NewAgentError creates a new AgentError with the specified type and cause.
func NewAgentError(errorType, cause string) *AgentError {
	return &AgentError{
		Type:  errorType,
		Cause: cause,
	}
}

// WrapError wraps err with the given type, preserving it for errors.Is/As.
func WrapError(errorType string, err error) *AgentError {
	return &AgentError{
		Type:    errorType,
		Cause:   err.Error(),
		Wrapped: err,
	}
}

// ClassifyError attempts to classify a regular error into an AgentError
func ClassifyError(err error) *AgentError {
	// If the error is already an AgentError, return it
	var agentError *AgentError
	if errors.As(err, &agentError) {
		return agentError
	}
	// Context errors are not retryable store failures
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &AgentError{
			Type:    ErrorTypeTransientIO,
			Cause:   err.Error(),
			Wrapped: err,
		}
	}
	// Heuristic for "missing" errors from collaborators
	if strings.Contains(strings.ToLower(err.Error()), "not found") {
		return &AgentError{
			Type:    ErrorTypeNotFound,
			Cause:   err.Error(),
			Wrapped: err,
		}
	}
	// Default to a transient I/O error so the caller may retry
	return &AgentError{
		Type:    ErrorTypeTransientIO,
		Cause:   err.Error(),
		Wrapped: err,
	}
}

// HasErrorType checks if an error carries the given classification
func HasErrorType(err error, errorType string) bool {
	if err == nil {
		return false
	}
	var agentError *AgentError
	if errors.As(err, &agentError) {
		return agentError.Type == errorType
	}
	return false
}

// IsNotFound reports whether err indicates a missing document or workflow
func IsNotFound(err error) bool {
	return HasErrorType(err, ErrorTypeNotFound)
}

// IsLockBusy reports whether err indicates the execution lock is held
func IsLockBusy(err error) bool {
	return HasErrorType(err, ErrorTypeLockBusy)
}

// IsTransient reports whether err is worth retrying with backoff
func IsTransient(err error) bool {
	if HasErrorType(err, ErrorTypeTransientIO) {
		return true
	}
	var agentError *AgentError
	return err != nil && !errors.As(err, &agentError) && ClassifyError(err).Type == ErrorTypeTransientIO
}
