// Package config provides 12-factor configuration management for the terminal backend.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (CONFIG_FILE), then environment variables. CLI flags override the result.
//
// Configuration Sections:
//   - Server: HTTP listen address and shutdown timeout
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - CORS: Allowed browser origins
//   - Terminal: Session cap and spawn breaker tuning
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ORIGINS (comma separated)
//   - TERMINAL_MAX_SESSIONS, TERMINAL_BREAKER_FAILURES, TERMINAL_BREAKER_TIMEOUT
package config
