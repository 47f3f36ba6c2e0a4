// Package main is the entry point for the cosmos-pty server.
//
// cosmos-pty runs interactive shells behind pseudo-terminals for the
// desktop terminal UI. The UI drives sessions over a websocket and can
// inspect or control them over REST.
//
// Architecture:
//
//	Terminal UI ⇄ /terminal (websocket) → Session Manager → PTY → shell
//	            → /sessions (REST)      ↗
//
// Configuration:
//   - Defaults for development
//   - Optional YAML file (--config or CONFIG_FILE)
//   - Environment variables (12-factor)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./cosmos-pty serve --port 8000
//
//	# Development mode (colored logs, debug level)
//	./cosmos-pty serve --dev
//
//	# Which shell would a session get?
//	./cosmos-pty resolve-shell
//	./cosmos-pty resolve-shell bash
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, then every session is killed
package main
