package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	boom := errors.New("boom")

	assert.Nil(t, normalize(nil))
	assert.Equal(t, []any{"error", boom}, normalize([]any{boom}))
	assert.Equal(t, []any{"k", 1, "error", boom}, normalize([]any{"k", 1, boom}))
	assert.Equal(t, []any{"dangling", ""}, normalize([]any{"dangling"}))
	assert.Equal(t, []any{"arg", 42}, normalize([]any{42}))
}

func TestCallsBeforeInitAreSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("not initialized", "k", "v")
		Error("not initialized", errors.New("x"))
	})
}
