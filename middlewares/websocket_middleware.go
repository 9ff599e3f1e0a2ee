package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shiftline/notifier/utils"
)

// WebSocketAuthMiddleware verifies the handshake token carried in the query
// string (browsers cannot set headers on websocket upgrades). Rejection is
// immediate; no server-side retry.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set("employee_id", claims.EmployeeID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
