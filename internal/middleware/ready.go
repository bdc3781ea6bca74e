package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// ReadinessGate reports whether the store finished initialization.
type ReadinessGate interface {
	Ready() bool
}

// RequireReady rejects requests with 503 until gate is ready.
func RequireReady(gate ReadinessGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gate != nil && !gate.Ready() {
			response.Error(c, appErrors.ErrNotReady)
			c.Abort()
			return
		}
		c.Next()
	}
}
