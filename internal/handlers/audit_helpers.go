package handlers

import (
	"github.com/gin-gonic/gin"

	"dm-service/internal/middleware"
	"dm-service/internal/observability"
)

func requestID(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}
	return observability.RequestIDFromRequest(c.Request)
}

func actorID(c *gin.Context) int {
	return c.GetInt(middleware.UserIDKey)
}
