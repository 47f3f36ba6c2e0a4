package tracing

import (
	"github.com/GriffinCanCode/cosmos-pty/internal/shared/id"
	"github.com/gin-gonic/gin"
)

const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing.
// An incoming X-Trace-ID is honoured when it is a request id; anything else
// is replaced by a fresh one. The trace id in use is echoed back.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(HeaderTraceID); id.IsRequestID(incoming) {
			ctx = WithTraceID(ctx, TraceID(incoming))
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.SetTag("http.method", c.Request.Method)

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		tracer.Finish(span)
	}
}
