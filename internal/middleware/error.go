package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-api/pkg/httputil"
)

// ErrorHandler renders errors attached with c.Error when the handler did not
// write a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
