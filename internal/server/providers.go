package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/api"
	"github.com/sirosfoundation/wg-gateway/internal/metrics"
	"github.com/sirosfoundation/wg-gateway/pkg/middleware"
)

// GatewayProvider serves the session, port and client API
type GatewayProvider struct {
	handlers *api.Handlers
	gate     middleware.SessionGate
	cookies  *middleware.SessionCookie
	limiter  *middleware.LoginRateLimiter
	logger   *zap.Logger
}

// NewGatewayProvider creates the gateway route provider. limiter may be nil.
func NewGatewayProvider(handlers *api.Handlers, gate middleware.SessionGate, cookies *middleware.SessionCookie, limiter *middleware.LoginRateLimiter, logger *zap.Logger) *GatewayProvider {
	return &GatewayProvider{
		handlers: handlers,
		gate:     gate,
		cookies:  cookies,
		limiter:  limiter,
		logger:   logger,
	}
}

func (p *GatewayProvider) Name() string { return "gateway" }

func (p *GatewayProvider) RegisterRoutes(router *gin.Engine) {
	public := router.Group("/")
	public.Use(middleware.Session(p.cookies, p.gate, p.logger))

	gated := public.Group("/")
	gated.Use(middleware.RequireSession(p.gate))

	var login []gin.HandlerFunc
	if p.limiter != nil {
		login = append(login, middleware.LoginRateLimit(p.limiter))
	}

	p.handlers.RegisterRoutes(public, gated, login...)
}

// MetricsProvider exposes Prometheus metrics
type MetricsProvider struct {
	path string
}

// NewMetricsProvider serves metrics at path
func NewMetricsProvider(path string) *MetricsProvider {
	if path == "" {
		path = "/metrics"
	}
	return &MetricsProvider{path: path}
}

func (p *MetricsProvider) Name() string { return "metrics" }

func (p *MetricsProvider) RegisterRoutes(router *gin.Engine) {
	router.GET(p.path, gin.WrapH(metrics.Handler()))
}
