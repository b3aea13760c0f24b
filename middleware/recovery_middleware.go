package middleware

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/dbt-cloudrun/dto"
	"github.com/dbt-cloudrun/logging"
)

// Recovery turns a panic into a logged 500 with the usual error body
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered interface{}) {
		detail := fmt.Sprint(recovered)
		logging.Log(c.Request.Context()).Error().
			Str("panic", detail).
			Str("path", c.Request.URL.Path).
			Str("stack", string(debug.Stack())).
			Msg("Recovered from panic")

		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: detail})
	})
}
