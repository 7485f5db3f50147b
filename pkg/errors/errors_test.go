package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyConflictMatchesSentinelThroughWrapping(t *testing.T) {
	err := fmt.Errorf("append: %w", NewConcurrencyConflict("A", 0, 1))

	assert.True(t, Is(err, ErrConcurrencyConflict))
	assert.False(t, Is(err, ErrMissingField))

	var conflict *ConcurrencyConflictError
	require.True(t, As(err, &conflict))
	assert.Equal(t, "A", conflict.AggregateID)
	assert.Equal(t, 0, conflict.Expected)
	assert.Equal(t, 1, conflict.Actual)
}

func TestDeliveryFailedUnwrapsCause(t *testing.T) {
	cause := stderrors.New("smtp: 421 try later")
	err := NewDeliveryFailed(cause)

	assert.True(t, Is(err, ErrDeliveryFailed))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "421")
}

func TestMissingFieldMessage(t *testing.T) {
	assert.Equal(t, `missing field "email"`, NewMissingField("email", "").Error())
	assert.Equal(t, `missing field "email" in event "user.created"`, NewMissingField("email", "user.created").Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewInternal(cause)

	assert.Equal(t, ErrInternal, err.Code)
	assert.True(t, Is(err, cause))
	assert.Equal(t, "internal server error: boom", err.Error())
}

func TestCodeOfFindsWrappedAppError(t *testing.T) {
	code, ok := CodeOf(fmt.Errorf("approve: %w", NewNotFound("aggregate u-1", nil)))
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, code)

	_, ok = CodeOf(stderrors.New("plain"))
	assert.False(t, ok)
}
