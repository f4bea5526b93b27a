package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError("CACHE_TIMEOUT", "operation timed out")
	assert.Equal(t, "CACHE_TIMEOUT: operation timed out", err.Error())
	assert.False(t, err.Timestamp.IsZero())
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("CACHE_TIMEOUT", "redis unreachable", cause)

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause, "包装后应该能解包出原始错误")
}

func TestIsComparesByCode(t *testing.T) {
	a := NewError("CACHE_MISS", "entry not found")
	b := NewError("CACHE_MISS", "another message")
	c := NewError("CACHE_CLOSED", "cache is closed")

	assert.ErrorIs(t, a, b, "相同错误码的错误应该判定为同类")
	assert.NotErrorIs(t, a, c)
	assert.NotErrorIs(t, a, errors.New("plain error"))
}

func TestIsThroughWrapping(t *testing.T) {
	sentinel := NewError("CACHE_MISS", "entry not found")
	wrapped := fmt.Errorf("load bars: %w", sentinel)
	assert.ErrorIs(t, wrapped, sentinel)
}

func TestWithContext(t *testing.T) {
	err := NewError("CACHE_TIMEOUT", "operation timed out").
		WithContext("key", "bars:sh.600000").
		WithContext("attempt", 3)

	require.Len(t, err.Context, 2)
	assert.Equal(t, "bars:sh.600000", err.Context["key"])
	assert.Equal(t, 3, err.Context["attempt"])
}
