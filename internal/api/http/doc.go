// Package http exposes the session registry over a small REST API.
//
// Endpoints:
//   - GET    /health              liveness, session count, spawn breaker state
//   - GET    /sessions            all live sessions, oldest first
//   - GET    /sessions/:id        one session
//   - POST   /sessions/:id/write  {"data": "..."} forwarded verbatim
//   - POST   /sessions/:id/resize {"rows": 40, "cols": 120}
//   - DELETE /sessions/:id        kill and unregister
//
// Sessions are created over the websocket only, since output and exit
// events need a live consumer. Every error body is {"code", "message"}
// where code is the terminal error code; StatusFor picks the HTTP status.
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, tracer, logger, version)
//	handlers.Register(router)
package http
