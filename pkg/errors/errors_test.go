package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_StatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"not found", NotFound("material", 42), http.StatusNotFound},
		{"invalid argument", InvalidArgument("amount must be positive"), http.StatusBadRequest},
		{"conflict", Conflict("insufficient stock"), http.StatusConflict},
		{"internal", Internal(stderrors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestNotFound_NamesResourceAndID(t *testing.T) {
	err := NotFound("patient", "abc")
	assert.Equal(t, "patient not found with ID: abc", err.Error())
}

func TestNotFoundf(t *testing.T) {
	err := NotFoundf("materials not found: requested %d, resolved %d", 3, 2)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "materials not found: requested 3, resolved 2", err.Message)
}

func TestInternal_HidesCauseInMessage(t *testing.T) {
	cause := stderrors.New("pq: connection refused")
	err := Internal(cause)

	assert.Equal(t, "internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf_WrappedChain(t *testing.T) {
	wrapped := fmt.Errorf("failed to remove stock: %w", Conflict("insufficient stock"))

	assert.Equal(t, ErrConflict, CodeOf(wrapped))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	nf := NotFound("material", 1)
	assert.Same(t, nf, Wrap(nf))

	err := Wrap(stderrors.New("disk full"))
	assert.Equal(t, ErrInternal, CodeOf(err))
}
