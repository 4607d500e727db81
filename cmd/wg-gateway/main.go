package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/api"
	"github.com/sirosfoundation/wg-gateway/internal/lease"
	"github.com/sirosfoundation/wg-gateway/internal/override"
	"github.com/sirosfoundation/wg-gateway/internal/server"
	"github.com/sirosfoundation/wg-gateway/internal/session"
	"github.com/sirosfoundation/wg-gateway/internal/tunnel"
	"github.com/sirosfoundation/wg-gateway/internal/wireguard"
	"github.com/sirosfoundation/wg-gateway/pkg/config"
	"github.com/sirosfoundation/wg-gateway/pkg/logging"
	"github.com/sirosfoundation/wg-gateway/pkg/middleware"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting WireGuard gateway",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("release", cfg.Server.Release),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Session store
	ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
	var store session.Store
	switch cfg.Session.StoreType {
	case "redis":
		store, err = session.NewRedisStore(&session.RedisConfig{
			Address:    cfg.Session.Redis.Address,
			Password:   cfg.Session.Redis.Password,
			DB:         cfg.Session.Redis.DB,
			KeyPrefix:  cfg.Session.Redis.KeyPrefix,
			DefaultTTL: ttl,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize session store", zap.Error(err))
		}
	default:
		store = session.NewMemoryStore(logger)
	}
	defer func() { _ = store.Close() }()
	logger.Info("Session store initialized", zap.String("type", cfg.Session.StoreType))

	gate := session.NewGate(cfg.Server.Password, store, ttl, logger)
	go gate.RunCleanup(ctx, 10*time.Minute)

	// Tunnel configuration and port lease
	file := override.NewFile(cfg.Tunnel.Path)
	resolver, err := tunnel.NewResolver(cfg.Tunnel, file, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tunnel configuration", zap.Error(err))
	}

	svc := wireguard.NewHTTPService(cfg.WireGuard.ServiceURL, time.Duration(cfg.WireGuard.Timeout)*time.Second, logger)

	var reloader wireguard.Reloader
	switch cfg.WireGuard.Reload {
	case "device":
		dev := wireguard.NewDeviceReloader(cfg.WireGuard.Interface, resolver, logger)
		defer func() { _ = dev.Close() }()
		reloader = dev
	case "none":
		reloader = wireguard.NopReloader{}
	default:
		reloader = svc
	}
	logger.Info("WireGuard reload mode", zap.String("mode", cfg.WireGuard.Reload))

	alloc := lease.NewAllocator(resolver, file, reloader, logger)

	// HTTP surface
	cookies, err := middleware.NewSessionCookie(
		cfg.Session.CookieName,
		[]byte(cfg.Session.HashKey),
		[]byte(cfg.Session.BlockKey),
		cfg.Session.SecureCookie,
		ttl,
	)
	if err != nil {
		logger.Fatal("Failed to initialize session cookie", zap.Error(err))
	}
	if cfg.Session.HashKey == "" {
		logger.Warn("No session hash key configured, sessions will not survive a restart")
	}

	var limiter *middleware.LoginRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewLoginRateLimiter(cfg.RateLimit, logger)
	}

	handlers := api.NewHandlers(api.Options{
		Gate:    gate,
		Leases:  alloc,
		Tunnel:  svc,
		Cookies: cookies,
		Release: cfg.Server.Release,
	}, logger)

	mgr := server.NewManager(&server.ServerConfig{
		Address:      cfg.Server.Address(),
		CORS:         cfg.CORS,
		LoggingLevel: cfg.Logging.Level,
		Release:      cfg.Server.Release,
	}, logger)
	mgr.AddProvider(server.NewGatewayProvider(handlers, gate, cookies, limiter, logger))
	if cfg.Metrics.Enabled {
		mgr.AddProvider(server.NewMetricsProvider(cfg.Metrics.Path))
	}

	if !cfg.Server.RequiresPassword() {
		logger.Warn("No admin password configured, the API is open")
	}

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
