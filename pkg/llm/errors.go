package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies what went wrong with a model call.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeContent   ErrorType = "content"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a classified model error.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
	Model      string
	Endpoint   string
}

func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new classified error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{Type: errType, Message: message, Retryable: retryable, Cause: cause}
}

// NewErrorWithContext creates a classified error carrying request context.
func NewErrorWithContext(errType ErrorType, message string, retryable bool, cause error, model, endpoint string, statusCode int) *Error {
	return &Error{
		Type:       errType,
		Message:    message,
		Retryable:  retryable,
		Cause:      cause,
		Model:      model,
		Endpoint:   endpoint,
		StatusCode: statusCode,
	}
}

// ClassifyError maps a provider error onto an *Error.
// Typed OpenAI errors are classified by status code; everything else by message.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if status := statusFromTyped(err); status > 0 {
		return classifyStatus(status, err)
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)
	status := statusFromMessage(errStr)

	switch {
	case strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication_error"):
		return withStatus(NewError(ErrorTypeAuth, "authentication failed", false, err), status)

	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist") || strings.Contains(lower, "not_found_error")):
		return withStatus(NewError(ErrorTypeModel, "model not found", false, err), status)

	case strings.Contains(errStr, "404"):
		return withStatus(NewError(ErrorTypeEndpoint, "endpoint not found", false, err), status)

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset"):
		return withStatus(NewError(ErrorTypeEndpoint, "connection failed", true, err), status)

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return withStatus(NewError(ErrorTypeEndpoint, "request timeout", true, err), status)

	case strings.Contains(errStr, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit"):
		return withStatus(NewError(ErrorTypeRateLimit, "rate limited", true, err), status)

	case strings.Contains(lower, "overloaded") || status >= 500:
		return withStatus(NewError(ErrorTypeEndpoint, "server error", true, err), status)
	}

	return withStatus(NewError(ErrorTypeUnknown, "llm error", false, err), status)
}

func classifyStatus(status int, err error) *Error {
	var e *Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == http.StatusNotFound:
		e = NewError(ErrorTypeModel, "model or endpoint not found", false, err)
	case status == http.StatusTooManyRequests:
		e = NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case status >= 500:
		e = NewError(ErrorTypeEndpoint, "server error", true, err)
	case status == http.StatusBadRequest:
		e = NewError(ErrorTypeContent, "request rejected", false, err)
	default:
		e = NewError(ErrorTypeUnknown, "llm error", false, err)
	}
	e.StatusCode = status
	return e
}

func statusFromTyped(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func statusFromMessage(errStr string) int {
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}

func withStatus(e *Error, status int) *Error {
	e.StatusCode = status
	return e
}

// IsRetryable returns true if err is a retryable *Error.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
