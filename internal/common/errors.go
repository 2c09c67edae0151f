package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Callers branch on these with errors.Is; the
// concrete message carries the diagnosis.
var (
	// ErrExtraction: the OCR engine is unreachable or produced no text.
	ErrExtraction = errors.New("text extraction failed")
	// ErrAnalyzerUnavailable: the inference service cannot be reached.
	// Triggers the OCR-only fallback path, not fatal for the run.
	ErrAnalyzerUnavailable = errors.New("analyzer unavailable")
	// ErrAnalyzerTimeout: the inference call exceeded its bounded wait.
	ErrAnalyzerTimeout = errors.New("analyzer timed out")
	// ErrMalformedResponse: no structured payload could be recovered from the
	// model output. Fatal for the run; the raw response travels in the message.
	ErrMalformedResponse = errors.New("malformed analyzer response")
	// ErrValidation: a semantically invalid field (negative amount,
	// impossible calendar date). Never silently defaulted.
	ErrValidation = errors.New("validation failed")
	// ErrIncompleteContext: no target account is resolvable.
	ErrIncompleteContext = errors.New("incomplete transaction context")
	// ErrDuplicate is surfaced as a Rejected decision by the gate; it exists
	// as a sentinel for collaborators that want to branch on it.
	ErrDuplicate = errors.New("duplicate transaction")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
