package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
	"golang.org/x/time/rate"
)

// rateKey prefers the loaded user, then the token subject, then the client IP.
func rateKey(c *gin.Context) string {
	if u := UserFrom(c); u != nil {
		return "user:" + u.ID
	}
	if v, ok := c.Get(ctxClaims); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			if sub, ok := cm["sub"].(string); ok && sub != "" {
				return "sub:" + sub
			}
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterStore holds one token bucket per key and forgets keys idle for
// longer than ttl.
type limiterStore struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	visitors map[string]*visitor
	swept    time.Time
}

func newLimiterStore(rps float64, burst int) *limiterStore {
	return &limiterStore{
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		visitors: map[string]*visitor{},
		swept:    time.Now(),
	}
}

func (s *limiterStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if now.Sub(s.swept) > s.ttl {
		for k, v := range s.visitors {
			if now.Sub(v.seen) > s.ttl {
				delete(s.visitors, k)
			}
		}
		s.swept = now
	}
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(s.rps, s.burst)}
		s.visitors[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

// RateLimitMiddleware returns a Gin middleware enforcing an in-memory
// token bucket per caller: rps tokens per second, at most burst at once.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	store := newLimiterStore(rps, burst)
	return func(c *gin.Context) {
		if !store.allow(rateKey(c)) {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
