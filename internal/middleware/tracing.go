package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing opens a server span per request and tags it with the request id,
// the actor and, on route-scoped endpoints, the salida id.
// Must be registered after RequestID and Actor.
func Tracing(serviceName string, opts ...otelgin.Option) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName, opts...), atributosTraza}
}

func atributosTraza(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("request_id", c.GetString(RequestIDKey)),
			attribute.String("actor", GetActor(c).String()),
		)
		if id := c.Param("id"); id != "" {
			span.SetAttributes(attribute.String("route.param.id", id))
		}
	}
	c.Next()
}
