package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"yieldvault/internal/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCaller(t *testing.T) {
	r := gin.New()
	r.Use(Caller())
	r.GET("/open", func(c *gin.Context) {
		pk, ok := CallerFrom(c)
		c.JSON(http.StatusOK, gin.H{"caller": pk.String(), "ok": ok})
	})
	r.GET("/closed", RequireCaller(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	alice := solana.NewWallet().PublicKey()
	tests := []struct {
		name   string
		path   string
		header string
		code   int
		body   string
	}{
		{"No header passes through", "/open", "", http.StatusOK, `"ok":false`},
		{"Header is parsed", "/open", " " + alice.String() + " ", http.StatusOK, alice.String()},
		{"Malformed key", "/open", "not-a-key", http.StatusBadRequest, "invalid X-Caller header"},
		{"Required caller missing", "/closed", "", http.StatusUnauthorized, "X-Caller header is required"},
		{"Required caller present", "/closed", alice.String(), http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(CallerHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.Use(RateLimiterMiddleware(ctx, RateLimiterConfig{RequestsPerSecond: 1, Burst: 2}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))

	cancel()
}

func TestRateLimiterConfigEnabled(t *testing.T) {
	assert.True(t, RateLimiterConfig{RequestsPerSecond: 5, Burst: 1}.Enabled())
	assert.False(t, RateLimiterConfig{RequestsPerSecond: 0, Burst: 10}.Enabled())
	assert.False(t, RateLimiterConfig{RequestsPerSecond: 5}.Enabled())
}

func TestSerialize(t *testing.T) {
	gate := vault.NewGate()
	r := gin.New()
	r.Use(Serialize(gate))
	r.GET("/read", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/write", func(c *gin.Context) { c.Status(http.StatusCreated) })

	t.Run("Requests pass when the vault is free", func(t *testing.T) {
		for _, tc := range []struct {
			method, path string
			code         int
		}{
			{http.MethodGet, "/read", http.StatusNoContent},
			{http.MethodPost, "/write", http.StatusCreated},
		} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.code, w.Code)
		}
	})

	t.Run("Canceled while waiting", func(t *testing.T) {
		held := make(chan struct{})
		release := make(chan struct{})
		go func() {
			_ = gate.Exclusive(context.Background(), func(context.Context) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil).WithContext(ctx))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "canceled while waiting")
	})
}
