package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeCorruptSnapshot, "checksum mismatch", nil)
	assert.Equal(t, "[ERR_202_CORRUPT_SNAPSHOT] checksum mismatch", err.Error())
	assert.Equal(t, CategoryStorage, err.Category)
}

func TestCategoryDerivation(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeCorruptSnapshot, CategoryStorage},
		{ErrCodeProviderUnavailable, CategoryProvider},
		{ErrCodeInvalidWeights, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"bogus", CategoryInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categoryFromCode(tt.code), tt.code)
	}
}

func TestRetryableCodes(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeProviderUnavailable, "down", nil)))
	assert.True(t, IsRetryable(New(ErrCodeWriteLocked, "locked", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "bad", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk exploded")
	err := Wrap(ErrCodeCorruptSnapshot, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeCorruptSnapshot, GetCode(err))

	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeVersionNotFound, "v7", nil)
	b := New(ErrCodeVersionNotFound, "different message", nil)
	c := New(ErrCodeCorruptSnapshot, "v7", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeDiskFull, "full", nil)))
	assert.False(t, IsFatal(New(ErrCodeInvalidInput, "bad", nil)))
	assert.False(t, IsFatal(nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeDimensionMismatch, "expected 256", nil).
		WithDetail("expected", "256").
		WithDetail("got", "384").
		WithSuggestion("reindex with the current embedding model")

	assert.Equal(t, "256", err.Details["expected"])
	assert.Equal(t, "384", err.Details["got"])
	assert.NotEmpty(t, err.Suggestion)
}
