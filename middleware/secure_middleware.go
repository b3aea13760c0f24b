package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecureHeaders sets the usual browser hardening headers on every response
func SecureHeaders(isDevelopment bool) gin.HandlerFunc {
	sm := secure.New(secure.Options{
		IsDevelopment:      isDevelopment,
		BrowserXssFilter:   true,
		ContentTypeNosniff: true,
		FrameDeny:          true,
	})

	return func(c *gin.Context) {
		if err := sm.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}

		// secure may have answered with a redirect already
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
		}
	}
}
