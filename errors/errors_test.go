package errors

import (
	"errors"
	"testing"
)

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("test message", "testField", "testValue")

	if err.Type.Code != "CONFIG" {
		t.Errorf("Expected error type 'CONFIG', got '%s'", err.Type.Code)
	}
	if err.Message != "test message" {
		t.Errorf("Expected message 'test message', got '%s'", err.Message)
	}
	if err.Field != "testField" {
		t.Errorf("Expected field 'testField', got '%s'", err.Field)
	}
	if err.Value != "testValue" {
		t.Errorf("Expected value 'testValue', got '%v'", err.Value)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("validation failed", "email", "invalid@")

	if err.Type.Code != "VALIDATION" {
		t.Errorf("Expected error type 'VALIDATION', got '%s'", err.Type.Code)
	}

	expected := "[VALIDATION] validation failed (field: email, value: invalid@)"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestNewNetworkError(t *testing.T) {
	originalErr := errors.New("connection refused")
	err := NewNetworkError("failed to connect", originalErr)

	if err.Type.Code != "NETWORK" {
		t.Errorf("Expected error type 'NETWORK', got '%s'", err.Type.Code)
	}
	if err.Cause != originalErr {
		t.Errorf("Expected cause to be set")
	}
	if err.Unwrap() != originalErr {
		t.Errorf("Unwrap should return the original error")
	}
}

func TestErrorIs(t *testing.T) {
	err := NewConfigError("test", "field", "value")

	if !err.Is(ErrConfig) {
		t.Errorf("Error should be identified as ErrConfig")
	}
	if err.Is(ErrValidation) {
		t.Errorf("Error should not be identified as ErrValidation")
	}
}

func TestWrapError(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := WrapError(originalErr, ErrXML, "XML processing failed")

	if wrappedErr.Type.Code != "XML" {
		t.Errorf("Expected error type 'XML', got '%s'", wrappedErr.Type.Code)
	}
	if wrappedErr.Message != "XML processing failed" {
		t.Errorf("Expected message 'XML processing failed', got '%s'", wrappedErr.Message)
	}
	if wrappedErr.Cause != originalErr {
		t.Errorf("Expected cause to be the original error")
	}
}

func TestErrorWithSETCode(t *testing.T) {
	err := NewRejectedError("invalid amounts", "1500")

	expected := "[REJECTED] invalid amounts (set_code: 1500)"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestRetriable(t *testing.T) {
	cases := []struct {
		err  *NFError
		want bool
	}{
		{NewTransientError("comm error", "4001", nil), true},
		{NewThrottleError("rate limited", "5002"), true},
		{NewValidationError("bad amount", "total", "0"), false},
		{NewRejectedError("no", "1100"), false},
		{NewSystemError("queue full", nil), false},
		{NewCancelledError("aborted"), false},
	}

	for _, c := range cases {
		if got := c.err.Retriable(); got != c.want {
			t.Errorf("Retriable() for %s = %v, want %v", c.err.Type.Code, got, c.want)
		}
	}
}

func TestAllErrorTypes(t *testing.T) {
	errorTypes := []*ErrorType{
		ErrConfig, ErrValidation, ErrSigning, ErrTransient, ErrThrottle,
		ErrRejected, ErrObservations, ErrCancelled, ErrSystem, ErrCertificate,
		ErrXML, ErrNetwork,
	}

	expectedCodes := []string{
		"CONFIG", "VALIDATION", "SIGNING", "TRANSIENT", "THROTTLE",
		"REJECTED", "OBSERVATIONS", "CANCELLED", "SYSTEM", "CERTIFICATE",
		"XML", "NETWORK",
	}

	for i, errType := range errorTypes {
		if errType.Code != expectedCodes[i] {
			t.Errorf("Expected error type code '%s', got '%s'", expectedCodes[i], errType.Code)
		}
	}
}
