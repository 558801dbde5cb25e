package routes

import (
	"context"

	"github.com/gin-gonic/gin"

	"yieldvault/internal/events"
	"yieldvault/internal/handlers"
	"yieldvault/internal/middleware"
	"yieldvault/internal/vault"
)

// Options configures the router around the vault handlers.
type Options struct {
	AllowedOrigins []string
	RateLimit      middleware.RateLimiterConfig
	// Hub serves /ws/events when set
	Hub *events.Hub
	// Gate queues requests in front of the vault. Share it with every other
	// caller of the same vault; a fresh one is used when nil.
	Gate *vault.Gate
}

// SetupRouter initializes and returns the Gin router with all routes configured.
// Background work started for the router stops with ctx.
func SetupRouter(ctx context.Context, h *handlers.VaultHandler, opts Options) *gin.Engine {
	r := gin.Default()

	r.Any("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	r.Use(cors(opts.AllowedOrigins))
	if opts.RateLimit.Enabled() {
		r.Use(middleware.RateLimiterMiddleware(ctx, opts.RateLimit))
	}
	r.Use(middleware.Caller())

	if opts.Hub != nil {
		r.GET("/ws/events", func(c *gin.Context) {
			opts.Hub.ServeWS(c.Writer, c.Request)
		})
	}

	gate := opts.Gate
	if gate == nil {
		gate = vault.NewGate()
	}
	r.Use(middleware.Serialize(gate))

	SetupVaultRoutes(r, h)
	SetupAssetRoutes(r, h)
	SetupAdminRoutes(r, h)

	return r
}

func cors(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Cache-Control, X-Requested-With, "+middleware.CallerHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
