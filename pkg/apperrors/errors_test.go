package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError_Message(t *testing.T) {
	err := RegistryError(503, "service unavailable", nil)
	assert.Equal(t, "registry error: HTTP 503: service unavailable", err.Error())

	cause := errors.New("boom")
	err = ExtractionError("failed to parse pdf", cause)
	assert.Equal(t, "extraction error: failed to parse pdf: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIsStage(t *testing.T) {
	wrapped := fmt.Errorf("generate base: %w", GenerationError("invalid slide schema", nil))

	assert.True(t, IsStage(wrapped, StageGeneration))
	assert.False(t, IsStage(wrapped, StageRender))
	assert.False(t, IsStage(errors.New("plain"), StageGeneration))
}

func TestTruncateMessage(t *testing.T) {
	short := "short message"
	assert.Equal(t, short, TruncateMessage(short))

	long := strings.Repeat("a", MaxErrorMessageLength+500)
	assert.Len(t, TruncateMessage(long), MaxErrorMessageLength)

	// Multi-byte rune straddling the limit is dropped rather than split.
	multi := strings.Repeat("a", MaxErrorMessageLength-1) + "é" + "tail"
	got := TruncateMessage(multi)
	assert.Equal(t, MaxErrorMessageLength-1, len(got))
	assert.True(t, strings.HasSuffix(got, "a"))
}

type flaky struct{ retry bool }

func (f flaky) Error() string     { return "flaky" }
func (f flaky) IsRetryable() bool { return f.retry }

func TestStageError_IsRetryable(t *testing.T) {
	assert.True(t, RegistryError(503, "unavailable", nil).IsRetryable())
	assert.True(t, RegistryError(429, "slow down", nil).IsRetryable())
	assert.False(t, RegistryError(404, "missing", nil).IsRetryable())
	assert.True(t, GenerationError("model call failed", flaky{retry: true}).IsRetryable())
	assert.False(t, GenerationError("invalid slide schema", nil).IsRetryable())
}
