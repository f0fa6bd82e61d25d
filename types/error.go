package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrAuthentication     ErrorCode = "AUTHENTICATION"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Pipeline error codes
const (
	ErrParseFailure       ErrorCode = "PARSE_FAILURE"
	ErrEmbeddingFailure   ErrorCode = "EMBEDDING_FAILURE"
	ErrVectorStoreFailure ErrorCode = "VECTOR_STORE_FAILURE"
	ErrTokenizerError     ErrorCode = "TOKENIZER_ERROR"
	ErrNoVectorStore      ErrorCode = "NO_VECTOR_STORE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// GetErrorCode extracts the error code from an error, following the wrap chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable checks if an error is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsRateLimit reports whether an error is rate-limit classified. Structured
// errors are matched by code; everything else falls back to message sniffing,
// since several upstream SDKs surface 429s as plain errors.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrRateLimit || e.Code == ErrQuotaExceeded || e.HTTPStatus == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}

// FromHTTPStatus maps an upstream HTTP status to a structured error.
func FromHTTPStatus(status int, provider, body string) *Error {
	var code ErrorCode
	retryable := false

	switch {
	case status == http.StatusTooManyRequests:
		code = ErrRateLimit
		retryable = true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = ErrAuthentication
	case status == http.StatusBadRequest:
		code = ErrInvalidRequest
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = ErrTimeout
		retryable = true
	case status >= 500:
		code = ErrUpstreamError
		retryable = true
	default:
		code = ErrUpstreamError
	}

	return &Error{
		Code:       code,
		Message:    fmt.Sprintf("upstream returned status %d: %s", status, truncate(body, 200)),
		HTTPStatus: status,
		Retryable:  retryable,
		Provider:   provider,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
