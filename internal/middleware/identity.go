// Package middleware holds the gin middleware of the store server.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey is the gin context key holding the caller's user id.
	UserIDKey   = "userID"
	headerUser  = "X-User-ID"
	queryUserID = "user_id"
)

// Identity records the caller from the X-User-ID header or the user_id query
// parameter. Requests without one pass through anonymously.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerUser))
		if id == "" {
			id = strings.TrimSpace(c.Query(queryUserID))
		}
		if id != "" {
			c.Set(UserIDKey, id)
		}
		c.Next()
	}
}

// UserID returns the id set by Identity, or "".
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
