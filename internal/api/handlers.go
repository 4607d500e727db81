package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/lease"
	"github.com/sirosfoundation/wg-gateway/internal/session"
	"github.com/sirosfoundation/wg-gateway/internal/wireguard"
	"github.com/sirosfoundation/wg-gateway/pkg/middleware"
)

// Gate is the session gate used by the session endpoints.
type Gate interface {
	Status(ctx context.Context, id string) session.Status
	Login(ctx context.Context, id string, password *string) error
	Logout(ctx context.Context, id string) error
}

// Leases is the port lease allocator used by the port endpoints.
type Leases interface {
	Status(ctx context.Context) lease.Status
	Assign(ctx context.Context, requested int) (int, error)
	Release(ctx context.Context) error
}

// Handlers aggregates all HTTP handlers
type Handlers struct {
	gate    Gate
	leases  Leases
	tunnel  wireguard.Service
	cookies *middleware.SessionCookie
	release string
	logger  *zap.Logger
}

// Options carries the collaborators of Handlers.
type Options struct {
	Gate    Gate
	Leases  Leases
	Tunnel  wireguard.Service
	Cookies *middleware.SessionCookie
	Release string
}

// NewHandlers creates a new Handlers instance
func NewHandlers(opts Options, logger *zap.Logger) *Handlers {
	return &Handlers{
		gate:    opts.Gate,
		leases:  opts.Leases,
		tunnel:  opts.Tunnel,
		cookies: opts.Cookies,
		release: opts.Release,
		logger:  logger.Named("handlers"),
	}
}

// Release handles GET /api/release
func (h *Handlers) Release(c *gin.Context) {
	c.JSON(http.StatusOK, h.release)
}

// fail writes the error envelope for err, choosing the status from its kind.
func (h *Handlers) fail(c *gin.Context, err error) {
	var upstream *wireguard.UpstreamError

	switch {
	case errors.Is(err, session.ErrPasswordMissing),
		errors.Is(err, session.ErrIncorrectPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not Logged In"})
	case errors.Is(err, lease.ErrPortOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, wireguard.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Client Not Found: " + c.Param("clientId")})
	case errors.As(err, &upstream):
		h.logger.Error("WireGuard service rejected request",
			zap.Int("upstream_status", upstream.Status),
			zap.String("message", upstream.Message))
		c.JSON(http.StatusBadGateway, gin.H{"error": upstream.Message})
	case errors.Is(err, wireguard.ErrUnavailable):
		h.logger.Error("WireGuard service unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "WireGuard service unavailable"})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
