package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/metrics"
	"github.com/sirosfoundation/wg-gateway/internal/session"
)

// SessionIDKey is the gin context key holding the caller's session identity.
const SessionIDKey = "session_id"

// SessionGate is the part of session.Gate the middleware depends on.
type SessionGate interface {
	Ensure(ctx context.Context, id string) (*session.Session, error)
	Authenticated(ctx context.Context, id string) bool
}

// SessionCookie carries the session identity in a signed cookie.
type SessionCookie struct {
	name   string
	codec  *securecookie.SecureCookie
	secure bool
	maxAge int
}

// NewSessionCookie creates a cookie codec. An empty hashKey is replaced with
// a random one, so cookies do not survive a restart unless a key is
// configured. blockKey is optional and enables encryption.
func NewSessionCookie(name string, hashKey, blockKey []byte, secure bool, maxAge time.Duration) (*SessionCookie, error) {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
		if hashKey == nil {
			return nil, fmt.Errorf("failed to generate session cookie key")
		}
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(maxAge.Seconds()))

	return &SessionCookie{
		name:   name,
		codec:  codec,
		secure: secure,
		maxAge: int(maxAge.Seconds()),
	}, nil
}

// Name returns the cookie name.
func (s *SessionCookie) Name() string {
	return s.name
}

// Read returns the session identity carried by the request, or "" when the
// cookie is absent or fails verification.
func (s *SessionCookie) Read(c *gin.Context) string {
	raw, err := c.Cookie(s.name)
	if err != nil || raw == "" {
		return ""
	}
	var id string
	if err := s.codec.Decode(s.name, raw, &id); err != nil {
		return ""
	}
	return id
}

// Write sets the cookie for id.
func (s *SessionCookie) Write(c *gin.Context, id string) error {
	encoded, err := s.codec.Encode(s.name, id)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, encoded, s.maxAge, "/", "", s.secure, true)
	return nil
}

// Clear expires the cookie.
func (s *SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, "", -1, "/", "", s.secure, true)
}

// Session resolves the caller's session, creating one on first contact, and
// stores its identity under SessionIDKey.
func Session(cookies *SessionCookie, gate SessionGate, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := cookies.Read(c)

		s, err := gate.Ensure(c.Request.Context(), id)
		if err != nil {
			logger.Error("Failed to resolve session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		if s.ID != id {
			if err := cookies.Write(c, s.ID); err != nil {
				logger.Error("Failed to encode session cookie", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				c.Abort()
				return
			}
		}

		c.Set(SessionIDKey, s.ID)
		c.Next()
	}
}

// RequireSession rejects callers whose session is not authenticated.
func RequireSession(gate SessionGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !gate.Authenticated(c.Request.Context(), GetSessionID(c)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not Logged In"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSessionID returns the session identity set by Session.
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// Logger returns a gin middleware for request logging and API metrics
func Logger(logger *zap.Logger) gin.HandlerFunc {
	m := metrics.Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		m.APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		m.APILatency.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
		)
	}
}
