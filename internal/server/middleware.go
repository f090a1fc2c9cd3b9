package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimiter enforces per-tenant request rate limits using a token bucket
// per tenant. Limiters are created lazily on first sight of a tenant.
type RateLimiter struct {
	mu        sync.Mutex
	tenants   map[string]*rate.Limiter
	perTenant rate.Limit
	burst     int
}

// NewRateLimiter creates a rate limiter allowing perTenantRPM requests per
// minute for each tenant.
func NewRateLimiter(perTenantRPM int) *RateLimiter {
	burst := perTenantRPM
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		tenants:   make(map[string]*rate.Limiter),
		perTenant: rate.Limit(float64(perTenantRPM) / 60.0),
		burst:     burst,
	}
}

// Allow reports whether a request from the given tenant is within its limit.
func (rl *RateLimiter) Allow(tenantID string) bool {
	rl.mu.Lock()
	limiter, ok := rl.tenants[tenantID]
	if !ok {
		limiter = rate.NewLimiter(rl.perTenant, rl.burst)
		rl.tenants[tenantID] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// rateLimitMiddleware rejects requests from tenants over their limit with 429.
// The X-Tenant-ID header is a client-supplied hint used to reject before the
// body is parsed; it is not trusted as the limit key. The evaluate handler
// always charges the tenant named in the request body, so a mismatched or
// rotating header cannot bypass a tenant's bucket.
func rateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get("X-Tenant-ID")
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.Allow(tenantID) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "tenant request rate exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one structured log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http_request")
	})
}
