// Package server runs the gateway's HTTP server.
//
// Route providers contribute routes to one shared gin router; the Manager
// wraps it with recovery, request logging and CORS and owns the server
// lifecycle:
//
//	mgr := server.NewManager(&server.ServerConfig{
//	    Address:      cfg.Server.Address(),
//	    CORS:         cfg.CORS,
//	    LoggingLevel: cfg.Logging.Level,
//	    Release:      cfg.Server.Release,
//	}, logger)
//	mgr.AddProvider(server.NewGatewayProvider(...))
//	mgr.AddProvider(server.NewMetricsProvider(cfg.Metrics.Path))
//	mgr.Start(ctx)
package server
