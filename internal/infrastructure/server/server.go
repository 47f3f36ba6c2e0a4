package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/cosmos-pty/internal/api/http"
	"github.com/GriffinCanCode/cosmos-pty/internal/api/middleware"
	"github.com/GriffinCanCode/cosmos-pty/internal/api/ws"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/config"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cosmos-pty/internal/providers/terminal"
)

// Version is reported by /health.
var Version = "0.1.0"

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	manager   *terminal.Manager
	wsHandler *ws.Handler
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
	registry  *prometheus.Registry
}

// NewServer creates a new server instance. A nil logger is built from cfg.Logging.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing cosmos-pty server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_sessions", cfg.Terminal.MaxSessions),
	)

	// Initialize metrics first (needed by other components)
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	tracer := tracing.New("cosmos-pty", logger)

	manager := terminal.NewManager(terminal.Options{
		Logger:          logger,
		Metrics:         metrics,
		MaxSessions:     cfg.Terminal.MaxSessions,
		BreakerFailures: cfg.Terminal.BreakerFailures,
		BreakerCooldown: cfg.Terminal.BreakerCooldown,
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.CORS.Origins) > 0 {
		corsCfg.AllowOrigins = cfg.CORS.Origins
	}
	router.Use(middleware.CORS(corsCfg))

	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limit := middleware.DefaultRateLimitConfig()
		limit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limit.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limit))
	}

	// Create handlers
	handlers := apihttp.NewHandlers(manager, tracer, logger, Version)
	wsHandler := ws.NewHandler(manager, ws.Options{
		Logger:         logger,
		Metrics:        metrics,
		AllowedOrigins: corsCfg.AllowOrigins,
	})

	// Register routes
	handlers.Register(router)
	router.GET("/terminal", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(registry)))

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// hijacked websocket connections are not tracked by Shutdown
	httpServer.RegisterOnShutdown(wsHandler.Close)

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		http:      httpServer,
		manager:   manager,
		wsHandler: wsHandler,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
		registry:  registry,
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the session registry.
func (s *Server) Manager() *terminal.Manager {
	return s.manager
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down:
// HTTP first, then every remaining terminal session.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.manager.KillAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	return s.Close()
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}

	s.manager.KillAll()
	s.logger.Info("All terminal sessions terminated")

	// Sync logger before exit
	_ = s.logger.Sync()

	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
