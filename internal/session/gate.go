// Package session tracks admin sessions and decides whether a session
// identity may reach the administrative API.
//
// An identity moves from unauthenticated to authenticated on a successful
// login and is destroyed on logout. When no admin password is configured the
// gate is open and every identity counts as authenticated.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/wg-gateway/internal/metrics"
)

var (
	// ErrPasswordMissing is returned when a login carries no password.
	ErrPasswordMissing = errors.New("Missing: Password")
	// ErrIncorrectPassword is returned when a login password does not match.
	ErrIncorrectPassword = errors.New("Incorrect Password")
)

const (
	// DefaultTTL is used when NewGate is given a non-positive ttl.
	DefaultTTL = 24 * time.Hour
	// PendingTTL bounds sessions that have not logged in yet. A successful
	// login extends the session to the gate's full ttl.
	PendingTTL = 10 * time.Minute
)

// Status is the public view of an identity.
type Status struct {
	RequiresPassword bool `json:"requiresPassword"`
	Authenticated    bool `json:"authenticated"`
}

// Gate guards the administrative API.
type Gate struct {
	secret  string
	store   Store
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

// NewGate creates a gate for secret. An empty secret disables authentication.
func NewGate(secret string, store Store, ttl time.Duration, logger *zap.Logger) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		secret:  secret,
		store:   store,
		ttl:     ttl,
		metrics: metrics.Get(),
		logger:  logger.Named("session"),
		now:     time.Now,
	}
}

// RequiresPassword reports whether an admin password is configured.
func (g *Gate) RequiresPassword() bool {
	return g.secret != ""
}

// Ensure returns the live session for id. An empty, unknown or expired id
// gets a brand new session under a fresh identity, so a destroyed identity is
// never revived.
func (g *Gate) Ensure(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		s, err := g.store.Get(ctx, id)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	now := g.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(min(PendingTTL, g.ttl)),
	}
	if err := g.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	g.logger.Debug("New session", zap.String("session_id", s.ID))
	return s, nil
}

// Login authenticates id with password. A nil password is missing; any other
// value must equal the configured secret. With no secret configured there is
// nothing to match, so every login fails as incorrect.
func (g *Gate) Login(ctx context.Context, id string, password *string) error {
	if password == nil {
		g.metrics.LoginAttempts.WithLabelValues("missing").Inc()
		return ErrPasswordMissing
	}
	if !g.matches(*password) {
		g.metrics.LoginAttempts.WithLabelValues("incorrect").Inc()
		g.logger.Warn("Incorrect admin password", zap.String("session_id", id))
		return ErrIncorrectPassword
	}

	s, err := g.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	s.Authenticated = true
	s.ExpiresAt = g.now().Add(g.ttl)
	if err := g.store.Put(ctx, s); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	g.metrics.LoginAttempts.WithLabelValues("success").Inc()
	g.logger.Info("New authenticated session", zap.String("session_id", id))
	return nil
}

// Logout destroys the session behind id.
func (g *Gate) Logout(ctx context.Context, id string) error {
	if err := g.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	g.metrics.Logouts.Inc()
	g.logger.Info("Deleted session", zap.String("session_id", id))
	return nil
}

// Authenticated reports whether id may use the administrative API.
func (g *Gate) Authenticated(ctx context.Context, id string) bool {
	if !g.RequiresPassword() {
		return true
	}
	if id == "" {
		return false
	}
	s, err := g.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			g.logger.Error("Failed to load session", zap.Error(err))
		}
		return false
	}
	return s.Authenticated
}

// Status reports the public state of id.
func (g *Gate) Status(ctx context.Context, id string) Status {
	return Status{
		RequiresPassword: g.RequiresPassword(),
		Authenticated:    g.Authenticated(ctx, id),
	}
}

// RunCleanup removes expired sessions every interval until ctx is done.
func (g *Gate) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.store.Cleanup(ctx); err != nil {
				g.logger.Warn("Session cleanup failed", zap.Error(err))
			}
		}
	}
}

func (g *Gate) matches(password string) bool {
	if g.secret == "" {
		return false
	}
	if isBcryptHash(g.secret) {
		return bcrypt.CompareHashAndPassword([]byte(g.secret), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(g.secret)) == 1
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
