package middleware

import (
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
)

const (
	// CallerHeader carries the base58 public key the request acts as
	CallerHeader = "X-Caller"

	callerKey = "caller"
)

// Caller parses the X-Caller header into the request context. Requests
// without the header pass through; a malformed key is rejected.
func Caller() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(CallerHeader))
		if raw == "" {
			c.Next()
			return
		}
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + CallerHeader + " header"})
			return
		}
		c.Set(callerKey, pk)
		c.Next()
	}
}

// RequireCaller rejects requests that did not identify a caller.
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CallerFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": CallerHeader + " header is required"})
			return
		}
		c.Next()
	}
}

// CallerFrom returns the caller set by Caller.
func CallerFrom(c *gin.Context) (solana.PublicKey, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return solana.PublicKey{}, false
	}
	pk, ok := v.(solana.PublicKey)
	return pk, ok
}
