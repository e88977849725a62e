// Package errors provides standardized error handling for the query gateway and its pipelines.
package errors

import (
	"errors"
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

// Request boundary errors
const (
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeRequestTooLarge  ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeUnsupportedQuery ErrorCode = "UNSUPPORTED_QUERY"
	ErrCodeNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
)

// Catalog / federation errors
const (
	ErrCodeSourceUnavailable             ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeFederationFailed              ErrorCode = "FEDERATION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
)

// Notification pipeline errors. These never reach a query caller.
const (
	ErrCodeWorkspaceLookupFailed  ErrorCode = "WORKSPACE_LOOKUP_FAILED"
	ErrCodeIdentityUnresolved     ErrorCode = "IDENTITY_UNRESOLVED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeAuditWriteFailed       ErrorCode = "AUDIT_WRITE_FAILED"
)

// Infrastructure errors
const (
	ErrCodeTokenInvalid       ErrorCode = "TOKEN_INVALID"
	ErrCodeAuthentication     ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT_ERROR"
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
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

// Unwrap exposes the underlying cause so errors.Is works through a StandardError.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Constructors
// ==========================

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Malformed query request.",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRequestTooLargeError(limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTooLarge,
		Message:   "Request entity too large.",
		Details:   fmt.Sprintf("limit: %d bytes", limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnsupportedQueryError(err error) *StandardError {
	return newError(ErrCodeUnsupportedQuery, "Unsupported query request.", err, false)
}

func NewNotFoundError(what string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", what),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSourceUnavailableError(source string, err error) *StandardError {
	return newError(ErrCodeSourceUnavailable, "Catalog source unavailable", err, true).
		WithMetadata("source", source)
}

func NewFederationFailedError(err error) *StandardError {
	return newError(ErrCodeFederationFailed, "Federated query failed", err, true)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err, true)
}

func NewSearchTimeoutError(index string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Elasticsearch query timeout",
		Details:   fmt.Sprintf("index: %s", index),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewWorkspaceLookupFailedError(queryID string, err error) *StandardError {
	return newError(ErrCodeWorkspaceLookupFailed, "Workspace lookup failed", err, true).
		WithMetadata("queryId", queryID)
}

func NewIdentityUnresolvedError(err error) *StandardError {
	return newError(ErrCodeIdentityUnresolved, "Caller identity could not be resolved", err, false)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	se := newError(ErrCodeNotificationSendFailed, "Notification delivery failed", err, true)
	se.Details = fmt.Sprintf("channel: %s, error: %s", channel, se.Details)
	return se
}

func NewAuditWriteFailedError(err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Decision audit write failed", err, true)
}

func NewTokenInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenInvalid,
		Message:   "Token is not active",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err, true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err, true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnection, "Database connection error", err, true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Error while processing query request.", err, false)
}

// ==========================
// 3. Classification
// ==========================

// HTTPStatus maps an error code to the status returned to query callers.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeUnsupportedQuery:
		return http.StatusBadRequest
	case ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTokenInvalid, ErrCodeAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the code is attributable to the caller.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatus(code)
	return status >= 400 && status < 500
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "REQUEST") || strings.Contains(codeStr, "UNSUPPORTED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") ||
		strings.Contains(codeStr, "SOURCE") || strings.Contains(codeStr, "FEDERATION"):
		return "CATALOG"
	case strings.Contains(codeStr, "WORKSPACE") || strings.Contains(codeStr, "NOTIFICATION") ||
		strings.Contains(codeStr, "AUDIT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "TOKEN") || strings.Contains(codeStr, "AUTH") ||
		strings.Contains(codeStr, "IDENTITY"):
		return "AUTH"
	default:
		return "OTHER"
	}
}

// AsStandard extracts a StandardError from err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
