/*
Package tracing provides lightweight request tracing.

Every HTTP request (including the WebSocket upgrade) gets a ULID-based trace
id, propagated through the request context and echoed in the X-Trace-ID
response header. Finished spans are written to the structured log.

# Usage

	tracer := tracing.New("cosmos-pty", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "terminal.create")
	span.SetTag("shell", shell)
	defer tracer.Finish(span)

# Headers

  - X-Trace-ID: identifier for the entire request flow
  - X-Span-ID: identifier for the current operation
*/
package tracing
