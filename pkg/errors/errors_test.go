package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "boom")
}

func TestCloneKeepsIdentity(t *testing.T) {
	clone := Clone(ErrUnauthorized, "admin role required")
	assert.Equal(t, "admin role required", clone.Message)
	assert.True(t, stdErrors.Is(clone, ErrUnauthorized))
	assert.False(t, stdErrors.Is(clone, ErrForbidden))
	assert.Equal(t, "unauthorized", ErrUnauthorized.Message)
}

func TestFromErrorKeepsTyped(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrPayloadTooLarge)
	assert.Equal(t, ErrPayloadTooLarge, FromError(wrapped))
}
