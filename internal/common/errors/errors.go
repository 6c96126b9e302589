// Package errors provides the standardized failure taxonomy surfaced by the
// design pipeline to the dashboard and the JSON API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest          ErrorCode = "INVALID_REQUEST"
	ErrCodeSynthesisFailure        ErrorCode = "SYNTHESIS_FAILURE"
	ErrCodeBlueprintParseFailure   ErrorCode = "BLUEPRINT_PARSE_FAILURE"
	ErrCodeInvalidBlueprintFailure ErrorCode = "INVALID_BLUEPRINT_FAILURE"
	ErrCodeRenderFailure           ErrorCode = "RENDER_FAILURE"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying stage error, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// UserMessage is the single-line text shown to the end user.
func (e *StandardError) UserMessage() string {
	msg := e.Message
	if e.Details != "" {
		msg = msg + ": " + e.Details
	}
	return "Synthesis Failure: " + singleLine(msg)
}

// WithMetadata attaches a key/value pair and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidRequestError reports a collector-level rejection.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Design request is incomplete",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisFailureError reports that the text-generation service was
// unreachable or returned an error.
func NewSynthesisFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisFailure,
		Message:   "Reasoning engine request failed",
		Details:   detailsOf(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewBlueprintParseFailureError reports that no parseable JSON was found.
func NewBlueprintParseFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBlueprintParseFailure,
		Message:   "Failed to parse reasoning engine output as JSON",
		Details:   detailsOf(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidBlueprintFailureError reports JSON that lacks the brief shape.
func NewInvalidBlueprintFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidBlueprintFailure,
		Message:   "Invalid technical blueprint structure received from model",
		Details:   detailsOf(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRenderFailureError reports an image service error or undecodable payload.
func NewRenderFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRenderFailure,
		Message:   "Visual prototype rendering failed",
		Details:   detailsOf(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps anything that does not match a known failure kind.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   detailsOf(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Classification
// ==========================

// AsStandardError extracts a StandardError from an error chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize ensures we always have a StandardError; unknown errors become
// INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps error codes to the status used by the JSON API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeSynthesisFailure, ErrCodeRenderFailure:
		return http.StatusBadGateway
	case ErrCodeBlueprintParseFailure, ErrCodeInvalidBlueprintFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for metrics and logging.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidRequest:
		return "INPUT"
	case ErrCodeSynthesisFailure, ErrCodeRenderFailure:
		return "UPSTREAM"
	case ErrCodeBlueprintParseFailure, ErrCodeInvalidBlueprintFailure:
		return "MODEL_OUTPUT"
	default:
		return "INTERNAL"
	}
}
