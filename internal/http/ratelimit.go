package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	rateLimitDetail = "rate limit exceeded"
	// visitorIdleTTL is how long an address keeps its bucket without requests.
	visitorIdleTTL = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorSet holds one token bucket per client address and forgets
// addresses that stay idle longer than idleTTL.
type visitorSet struct {
	mu        sync.Mutex
	entries   map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newVisitorSet(r rate.Limit, b int, idleTTL time.Duration) *visitorSet {
	return &visitorSet{
		entries:   make(map[string]*visitor),
		limit:     r,
		burst:     b,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *visitorSet) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.idleTTL {
		for key, v := range s.entries {
			if now.Sub(v.lastSeen) >= s.idleTTL {
				delete(s.entries, key)
			}
		}
		s.lastSweep = now
	}

	v, exists := s.entries[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *visitorSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RateLimiter keeps one token bucket per client IP in process memory.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return rateLimiter(newVisitorSet(r, b, visitorIdleTTL))
}

func rateLimiter(visitors *visitorSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !visitors.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": rateLimitDetail})
			return
		}
		c.Next()
	}
}

// RateLimit allows Rate requests per key within a sliding Window.
type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

// DistributedRateLimiter shares sliding-window counters between replicas through redis.
type DistributedRateLimiter struct {
	redis  *redis.Client
	logger *logrus.Logger
}

func NewDistributedRateLimiter(client *redis.Client, logger *logrus.Logger) *DistributedRateLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DistributedRateLimiter{
		redis:  client,
		logger: logger,
	}
}

// Middleware limits requests under name. Requests pass when redis is unavailable.
func (rl *DistributedRateLimiter) Middleware(name string, limit RateLimit) gin.HandlerFunc {
	keyFunc := limit.KeyFunc
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, keyFunc(c))

		allowed, err := rl.checkLimit(c.Request.Context(), key, limit)
		if err != nil {
			rl.logger.Warnf("rate limit check failed: %v", err)
			c.Header("X-RateLimit-Error", "true")
			c.Next()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
			c.Header("X-RateLimit-Window", limit.Window.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": rateLimitDetail})
			return
		}

		c.Next()
	}
}

func (rl *DistributedRateLimiter) checkLimit(ctx context.Context, key string, limit RateLimit) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - limit.Window.Nanoseconds()

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("execute rate limit pipeline: %w", err)
	}

	return countCmd.Val() < int64(limit.Rate), nil
}

func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}
