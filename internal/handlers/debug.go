package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/messaging"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, auditor messaging.Auditor, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if auditor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		auditor.Emit(c.Request.Context(), "INFO", "audit test", actorID(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestID(c)})
	})
}
