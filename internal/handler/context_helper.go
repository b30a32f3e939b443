package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/diploma-checker-api/internal/middleware"
)

// actorFromContext names the caller for audit logs, "unknown" when unauthenticated.
func actorFromContext(c *gin.Context) string {
	return middleware.Claims(c).Actor()
}
