package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotEligible, "contribution pr-1 is not eligible for minting")
	assert.True(t, errors.Is(err, ErrNotEligible))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 403, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)

	typed := FromError(fmt.Errorf("outer: %w", ErrValidation))
	assert.Equal(t, ErrValidation.Code, typed.Code)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Wrap(sql.ErrConnDone, ErrStore.Code, ErrStore.Status, "vote not recorded")))
	assert.False(t, Retryable(ErrConfiguration))
	assert.False(t, Retryable(nil))
}
