package httputil

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/materials", nil)
	return c, w
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "not found",
			err:         errors.NotFound("material", "m-1"),
			wantStatus:  http.StatusNotFound,
			wantMessage: "material not found with ID: m-1",
		},
		{
			name:        "wrapped conflict",
			err:         fmt.Errorf("remove stock: %w", errors.Conflict("insufficient stock")),
			wantStatus:  http.StatusConflict,
			wantMessage: "insufficient stock",
		},
		{
			name:        "invalid argument",
			err:         errors.InvalidArgument("amount must be greater than zero"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "amount must be greater than zero",
		},
		{
			name:        "plain error is hidden",
			err:         stderrors.New("pq: relation does not exist"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
		{
			name:        "internal app error is hidden",
			err:         errors.Internal(stderrors.New("pq: timeout")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext()
			RespondWithError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestRespondWithList(t *testing.T) {
	c, w := newContext()
	RespondWithList(c, []string{})
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	c, w = newContext()
	RespondWithList(c, []string{"gauze"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gauze")
}
