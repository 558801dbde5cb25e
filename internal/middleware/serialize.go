package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"yieldvault/internal/vault"
)

// Serialize queues requests through gate. Reads share it; anything that may
// mutate holds it alone.
func Serialize(gate *vault.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		run := gate.Exclusive
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			run = gate.Shared
		}
		err := run(c.Request.Context(), func(context.Context) error {
			c.Next()
			return nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "request canceled while waiting for the vault"})
		}
	}
}
