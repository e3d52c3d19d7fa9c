package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure. Handlers map codes to HTTP statuses and
// the resilient provider retries on the transient ones.
type ErrorCode string

// Failures reported by the LLM, embedding and rerank servers.
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrAuthentication     ErrorCode = "AUTHENTICATION"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrModelNotFound      ErrorCode = "MODEL_NOT_FOUND"
	ErrContextTooLong     ErrorCode = "CONTEXT_TOO_LONG"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Conversation failures.
const (
	ErrMalformedEnvelope ErrorCode = "MALFORMED_ENVELOPE"
	ErrToolFailure       ErrorCode = "TOOL_FAILURE"
	ErrToolLoopExceeded  ErrorCode = "TOOL_LOOP_EXCEEDED"
	ErrProviderNotSet    ErrorCode = "PROVIDER_NOT_SET"
	ErrStaleChat         ErrorCode = "STALE_CHAT"
)

const (
	ErrIngestionFailed ErrorCode = "INGESTION_FAILED"
	ErrURLProbeFailed  ErrorCode = "URL_PROBE_FAILED"
	ErrAuthorization   ErrorCode = "AUTHORIZATION"
	ErrTokenizerError  ErrorCode = "TOKENIZER_ERROR"
)

// Error is the structured error passed between layers and rendered in the
// API error envelope. Cause is never serialized.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	msg := "[" + string(e.Code) + "] " + e.Message
	if e.Cause == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// The With methods modify e in place and return it for chaining.

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider records which backend produced the error.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// GetErrorCode returns "" when err carries no *Error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsTransient reports whether a later attempt may succeed: upstream
// outages, throttling and anything explicitly marked retryable.
func IsTransient(err error) bool {
	switch GetErrorCode(err) {
	case ErrUpstreamError, ErrUpstreamTimeout, ErrRateLimited, ErrServiceUnavailable:
		return true
	}
	return IsRetryable(err)
}
