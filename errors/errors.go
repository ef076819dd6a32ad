// Package errors provides the structured error taxonomy used across the
// SIFEN client. Every subsystem classifies locally and returns one of these
// typed errors; the sender is the only place that turns classification into
// retry behavior (see package retry).
package errors

import (
	"fmt"
)

// Error categories, one per spec §7 discriminated result kind.
var (
	// ErrConfig represents configuration-related errors.
	ErrConfig = &ErrorType{Code: "CONFIG", Message: "configuration error"}

	// ErrValidation represents a document that failed modular or official validation.
	ErrValidation = &ErrorType{Code: "VALIDATION", Message: "validation error"}

	// ErrSigning represents certificate/key/canonicalization failures during signing.
	ErrSigning = &ErrorType{Code: "SIGNING", Message: "signing error"}

	// ErrTransient represents network, TLS, timeout, or 4xxx/5xxx SET errors eligible for retry.
	ErrTransient = &ErrorType{Code: "TRANSIENT", Message: "transient error"}

	// ErrThrottle represents a rate-limit response (SET 5002/5003) or a local pre-emptive limit.
	ErrThrottle = &ErrorType{Code: "THROTTLE", Message: "throttled"}

	// ErrRejected represents a final "no" from SET carrying typed sub-codes.
	ErrRejected = &ErrorType{Code: "REJECTED", Message: "rejected by SET"}

	// ErrObservations represents acceptance with observations — success, but notes exist.
	ErrObservations = &ErrorType{Code: "OBSERVATIONS", Message: "accepted with observations"}

	// ErrCancelled represents a caller-requested abort.
	ErrCancelled = &ErrorType{Code: "CANCELLED", Message: "cancelled"}

	// ErrSystem represents queue overflow, configuration, or impossible-state errors. Never retried.
	ErrSystem = &ErrorType{Code: "SYSTEM", Message: "system error"}

	// ErrCertificate represents certificate loading/parsing errors, surfaced
	// before a signing attempt is even made.
	ErrCertificate = &ErrorType{Code: "CERTIFICATE", Message: "certificate error"}

	// ErrXML represents XML assembly/parse errors.
	ErrXML = &ErrorType{Code: "XML", Message: "XML processing error"}

	// ErrNetwork represents low-level SOAP/HTTP transport errors, classified
	// into ErrTransient by the retry manager once the SET code is known.
	ErrNetwork = &ErrorType{Code: "NETWORK", Message: "network error"}
)

// ErrorType names a category of error.
type ErrorType struct {
	Code    string
	Message string
}

// NFError is a structured SIFEN client error with enough context to build a
// remediation hint and a correlation record in the submission journal.
type NFError struct {
	Type    *ErrorType
	Message string
	Field   string
	Value   interface{}
	Cause   error

	// SETCode is the raw SET error code, when the error originated from a
	// classified SET response (spec §4.8). Empty otherwise.
	SETCode string
}

// Error implements the error interface.
func (e *NFError) Error() string {
	if e.SETCode != "" {
		return fmt.Sprintf("[%s] %s (set_code: %s)", e.Type.Code, e.Message, e.SETCode)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s, value: %v)", e.Type.Code, e.Message, e.Field, e.Value)
	}
	return fmt.Sprintf("[%s] %s", e.Type.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *NFError) Unwrap() error {
	return e.Cause
}

// Error implements the error interface so an ErrorType can be used as an
// errors.Is target.
func (t *ErrorType) Error() string {
	return t.Message
}

// Is checks if the error matches a specific error type.
func (e *NFError) Is(target error) bool {
	if t, ok := target.(*ErrorType); ok {
		return e.Type.Code == t.Code
	}
	if t, ok := target.(*NFError); ok {
		return e.Type.Code == t.Type.Code
	}
	return false
}

// Retriable reports whether the retry manager should consider this error for
// another attempt — transient and throttle are the only retriable kinds.
func (e *NFError) Retriable() bool {
	return e.Type == ErrTransient || e.Type == ErrThrottle
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, field string, value interface{}) *NFError {
	return &NFError{Type: ErrConfig, Message: message, Field: field, Value: value}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, field string, value interface{}) *NFError {
	return &NFError{Type: ErrValidation, Message: message, Field: field, Value: value}
}

// NewSigningError creates a new signing error.
func NewSigningError(message string, cause error) *NFError {
	return &NFError{Type: ErrSigning, Message: message, Cause: cause}
}

// NewCertificateError creates a new certificate error.
func NewCertificateError(message string, cause error) *NFError {
	return &NFError{Type: ErrCertificate, Message: message, Cause: cause}
}

// NewXMLError creates a new XML processing error.
func NewXMLError(message string, field string, cause error) *NFError {
	return &NFError{Type: ErrXML, Message: message, Field: field, Cause: cause}
}

// NewNetworkError creates a new network error.
func NewNetworkError(message string, cause error) *NFError {
	return &NFError{Type: ErrNetwork, Message: message, Cause: cause}
}

// NewTransientError creates a retriable transient error, optionally carrying
// the SET code that produced it.
func NewTransientError(message string, setCode string, cause error) *NFError {
	return &NFError{Type: ErrTransient, Message: message, SETCode: setCode, Cause: cause}
}

// NewThrottleError creates a throttle error for a SET rate-limit code or a
// local pre-emptive limit (setCode empty in the local case).
func NewThrottleError(message string, setCode string) *NFError {
	return &NFError{Type: ErrThrottle, Message: message, SETCode: setCode}
}

// NewRejectedError creates a final-rejection error carrying the SET code.
func NewRejectedError(message string, setCode string) *NFError {
	return &NFError{Type: ErrRejected, Message: message, SETCode: setCode}
}

// NewObservationsError wraps an accepted-with-observations outcome so callers
// that treat errors uniformly can still distinguish it from a hard failure.
func NewObservationsError(message string, setCode string) *NFError {
	return &NFError{Type: ErrObservations, Message: message, SETCode: setCode}
}

// NewCancelledError creates a cancellation error.
func NewCancelledError(message string) *NFError {
	return &NFError{Type: ErrCancelled, Message: message}
}

// NewSystemError creates a non-retriable system error (queue overflow,
// impossible state, misconfiguration discovered at runtime).
func NewSystemError(message string, cause error) *NFError {
	return &NFError{Type: ErrSystem, Message: message, Cause: cause}
}

// WrapError wraps an existing error with additional context.
func WrapError(err error, errorType *ErrorType, message string) *NFError {
	return &NFError{Type: errorType, Message: message, Cause: err}
}
