package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrBaseNotComplete   = errors.New("base output is not complete")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotAvailable      = errors.New("artifact not available yet")
	ErrInvalidInput      = errors.New("invalid input")
)

// MaxErrorMessageLength caps error text persisted on artifact rows.
const MaxErrorMessageLength = 2000

// Stage identifies which pipeline stage produced a failure.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageRegistry   Stage = "registry"
	StageGeneration Stage = "generation"
	StageRender     Stage = "render"
	StageStorage    Stage = "storage"
)

// StageError is a failure attributed to one pipeline stage.
type StageError struct {
	Stage      Stage
	Message    string
	StatusCode int // HTTP status from an upstream service, if any
	Cause      error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Stage, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s error: HTTP %d: %s", e.Stage, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the failure is transient: an upstream 429 or 5xx,
// or a cause that declares itself retryable.
func (e *StageError) IsRetryable() bool {
	if e.StatusCode == 429 || e.StatusCode >= 500 {
		return true
	}
	var r interface{ IsRetryable() bool }
	if e.Cause != nil && errors.As(e.Cause, &r) {
		return r.IsRetryable()
	}
	return false
}

// ExtractionError reports an unreadable or empty source PDF.
func ExtractionError(message string, cause error) *StageError {
	return &StageError{Stage: StageExtraction, Message: message, Cause: cause}
}

// RegistryError reports a non-2xx or malformed response from an external registry.
func RegistryError(statusCode int, message string, cause error) *StageError {
	return &StageError{Stage: StageRegistry, Message: message, StatusCode: statusCode, Cause: cause}
}

// GenerationError reports a model call failure or output that failed validation.
func GenerationError(message string, cause error) *StageError {
	return &StageError{Stage: StageGeneration, Message: message, Cause: cause}
}

// RenderError reports malformed structured input to a renderer.
func RenderError(message string, cause error) *StageError {
	return &StageError{Stage: StageRender, Message: message, Cause: cause}
}

// StorageError reports a blob store read or write failure.
func StorageError(message string, cause error) *StageError {
	return &StageError{Stage: StageStorage, Message: message, Cause: cause}
}

// IsStage reports whether err wraps a StageError for the given stage.
func IsStage(err error, stage Stage) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage == stage
	}
	return false
}

// TruncateMessage shortens s to at most MaxErrorMessageLength bytes without
// splitting a UTF-8 sequence.
func TruncateMessage(s string) string {
	if len(s) <= MaxErrorMessageLength {
		return s
	}
	cut := MaxErrorMessageLength
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
