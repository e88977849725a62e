package errors

import (
	"context"
	"time"
)

// ErrorHandler normalizes errors raised while serving a request and logs them once.
type ErrorHandler struct {
	logger Logger
}

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle converts err to a StandardError, logs it and returns the HTTP status for it.
// Client errors are logged at debug; everything else at error.
func (h *ErrorHandler) Handle(ctx context.Context, operation string, err error) (*StandardError, int) {
	stdErr := h.normalizeError(ctx, err)
	status := HTTPStatus(stdErr.Code)
	h.logError(operation, stdErr, status)
	return stdErr, status
}

func (h *ErrorHandler) normalizeError(ctx context.Context, err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	if ctx.Err() == context.DeadlineExceeded {
		return NewTimeoutError("catalog", err)
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Error while processing query request.",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func (h *ErrorHandler) logError(operation string, stdErr *StandardError, status int) {
	fields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"status":        status,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if IsClientError(stdErr.Code) {
		h.logger.Debug("Query endpoint rejected request", fields)
		return
	}
	h.logger.Error("Query endpoint failed", fields)
}
