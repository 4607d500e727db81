package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sirosfoundation/wg-gateway/pkg/config"
)

// LoginRateLimiter limits login attempts per client.
// Exceeding the limit locks the client out for LockoutSeconds.
type LoginRateLimiter struct {
	config config.RateLimitConfig
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*loginLimiter

	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

// loginLimiter tracks rate limiting state for a single client
type loginLimiter struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	lockedOut  bool
	lockoutEnd time.Time
}

// NewLoginRateLimiter creates a new rate limiter for the login endpoint
func NewLoginRateLimiter(cfg config.RateLimitConfig, logger *zap.Logger) *LoginRateLimiter {
	cfg.SetDefaults()
	return &LoginRateLimiter{
		config:          cfg,
		logger:          logger.Named("login-ratelimit"),
		limiters:        make(map[string]*loginLimiter),
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

// getLimiter returns the limiter for identifier, creating it if needed.
// Callers must hold r.mu.
func (r *LoginRateLimiter) getLimiter(identifier string) *loginLimiter {
	now := r.now()
	if now.Sub(r.lastCleanup) > r.cleanupInterval {
		r.cleanup(now)
	}

	limiter, exists := r.limiters[identifier]
	if exists {
		limiter.lastSeen = now
		return limiter
	}

	// MaxAttempts per WindowSeconds
	rateLimit := rate.Limit(float64(r.config.MaxAttempts) / float64(r.config.WindowSeconds))
	burst := int(math.Ceil(float64(r.config.MaxAttempts) / 2.0))
	if burst < 1 {
		burst = 1
	}

	limiter = &loginLimiter{
		limiter:  rate.NewLimiter(rateLimit, burst),
		lastSeen: now,
	}
	r.limiters[identifier] = limiter
	return limiter
}

// cleanup removes limiters that have not been used for 30 minutes
func (r *LoginRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-30 * time.Minute)
	for key, limiter := range r.limiters {
		if limiter.lastSeen.Before(cutoff) && !limiter.lockedOut {
			delete(r.limiters, key)
		}
	}
	r.lastCleanup = now
}

// Allow reports whether identifier may attempt a login.
func (r *LoginRateLimiter) Allow(identifier string) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	limiter := r.getLimiter(identifier)
	now := r.now()

	if limiter.lockedOut {
		if now.Before(limiter.lockoutEnd) {
			return false
		}
		limiter.lockedOut = false
	}

	if !limiter.limiter.AllowN(now, 1) {
		lockout := time.Duration(r.config.LockoutSeconds) * time.Second
		limiter.lockedOut = true
		limiter.lockoutEnd = now.Add(lockout)

		r.logger.Warn("Login rate limit exceeded, applying lockout",
			zap.String("identifier", identifier),
			zap.Duration("lockout_duration", lockout),
		)
		return false
	}

	return true
}

// RecordFailure charges identifier for a failed login. Failures cost two
// tokens.
func (r *LoginRateLimiter) RecordFailure(identifier string) {
	if !r.config.Enabled {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	limiter := r.getLimiter(identifier)
	limiter.limiter.AllowN(r.now(), 2)
}

// LoginRateLimit returns a middleware limiting login attempts per client IP.
// A 401 from the login handler counts as a failure.
func LoginRateLimit(rl *LoginRateLimiter) gin.HandlerFunc {
	return LoginRateLimitWithIdentifier(rl, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// LoginRateLimitWithIdentifier is LoginRateLimit with a custom client identifier.
func LoginRateLimitWithIdentifier(rl *LoginRateLimiter, extractID func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		identifier := extractID(c)
		if identifier == "" {
			identifier = "_anonymous"
		}

		if !rl.Allow(identifier) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many login attempts. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusUnauthorized {
			rl.RecordFailure(identifier)
		}
	}
}
