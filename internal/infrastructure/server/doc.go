// Package server assembles the cosmos-pty HTTP server.
//
// Server Lifecycle:
//  1. Validate configuration and build the logger
//  2. Create the Prometheus registry and metrics
//  3. Create the terminal session manager
//  4. Setup middleware (recovery, tracing, metrics, CORS, rate limiting)
//  5. Register REST, websocket and /metrics routes
//  6. Serve until the context is cancelled
//  7. Shutdown: stop HTTP, close websockets, kill every remaining session
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
