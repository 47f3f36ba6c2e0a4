// Package middleware holds the gin middleware shared by the REST and
// websocket routes: CORS for the desktop webview and per-IP rate limiting.
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
