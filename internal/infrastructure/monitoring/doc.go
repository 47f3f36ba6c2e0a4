/*
Package monitoring provides Prometheus metrics for the terminal service.

It tracks HTTP requests, session lifecycle (spawns, create failures, exits by
reason), output batching throughput, the spawn circuit breaker and WebSocket
connections.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	metrics.SessionExited("hangup")

A nil *Metrics is valid and records nothing.
*/
package monitoring
