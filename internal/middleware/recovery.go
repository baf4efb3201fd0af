package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/dental-api/pkg/httputil"
)

// Recovery turns a panicking handler into a 500 response and one error log
// line carrying the stack. http.ErrAbortHandler is re-raised so net/http can
// drop the connection silently.
func Recovery(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.Error().
				Err(panicError(rec)).
				Bytes("stack", debug.Stack()).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("method", c.Request.Method).
				Str("path", c.FullPath()).
				Bool("response_started", c.Writer.Written()).
				Msg("Handler panicked")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.Response{
				Status:  "error",
				Message: "internal server error",
			})
		}()
		c.Next()
	}
}

func panicError(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", rec)
}
