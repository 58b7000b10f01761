package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/praxisdev/identity-api/internal/service/audit"
)

// ClientInfo stores the caller's address and user agent on the request
// context so audit records written deeper in the stack carry them.
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := audit.RequestInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(audit.WithRequestInfo(c.Request.Context(), info))
		c.Next()
	}
}
