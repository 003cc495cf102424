package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HealthChecker reports whether a backing dependency is reachable.
// *database.HealthDB satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck reports service liveness. The database is probed on every
// call so load balancers stop routing to an instance that lost its
// storage.
func HealthCheck(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
	}
}

// currentUserID pulls the authenticated user out of the gin context. The
// auth middleware stores it; a missing value means the route was wired
// without the middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	userID, ok := val.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}
