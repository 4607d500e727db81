package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/api"
	"github.com/sirosfoundation/wg-gateway/pkg/config"
	"github.com/sirosfoundation/wg-gateway/pkg/middleware"
)

// RouteProvider contributes routes to the shared router.
type RouteProvider interface {
	// RegisterRoutes adds the provider's routes to the router.
	RegisterRoutes(router *gin.Engine)

	// Name returns the provider name for logging
	Name() string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address      string
	CORS         config.CORSConfig
	LoggingLevel string
	Release      string
}

// Manager owns the HTTP server and the router its providers share
type Manager struct {
	cfg    *ServerConfig
	logger *zap.Logger

	providers []RouteProvider

	httpServer *http.Server
	router     *gin.Engine
}

// NewManager creates a new server manager
func NewManager(cfg *ServerConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		providers: make([]RouteProvider, 0),
	}
}

// AddProvider adds a RouteProvider to the manager.
// Call this before Start() or Handler().
func (m *Manager) AddProvider(p RouteProvider) {
	m.providers = append(m.providers, p)
	m.logger.Debug("Added route provider", zap.String("name", p.Name()))
}

// Handler builds the router on first use and returns it.
func (m *Manager) Handler() http.Handler {
	if m.router == nil {
		m.router = m.buildRouter()
		for _, p := range m.providers {
			m.logger.Info("Registering routes", zap.String("provider", p.Name()))
			p.RegisterRoutes(m.router)
		}
		m.addStatusEndpoints(m.router)
	}
	return m.router
}

// Start builds the router and starts the HTTP server in the background
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.LoggingLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	m.httpServer = &http.Server{
		Addr:         m.cfg.Address,
		Handler:      m.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		m.logger.Info("HTTP server listening", zap.String("address", m.cfg.Address))
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.httpServer == nil {
		return nil
	}
	if err := m.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

// buildRouter creates a new router with common middleware
func (m *Manager) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(m.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     m.cfg.CORS.AllowedOrigins,
		AllowMethods:     m.cfg.CORS.AllowedMethods,
		AllowHeaders:     m.cfg.CORS.AllowedHeaders,
		ExposeHeaders:    m.cfg.CORS.ExposedHeaders,
		AllowCredentials: m.cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(m.cfg.CORS.MaxAge) * time.Second,
	}))
	return router
}

// addStatusEndpoints adds /health and /status routes
func (m *Manager) addStatusEndpoints(router *gin.Engine) {
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, api.NewStatusResponse(m.cfg.Release))
	}
	router.GET("/health", handler)
	router.GET("/status", handler)
}
