package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/residence/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "residence/http"

// MiddlewareConfig configures GinMiddleware.
type MiddlewareConfig struct {
	// SkipPaths are served without a span, e.g. /healthz and /metrics.
	SkipPaths []string
	// ErrorClassifier maps the last handler error to its type and code.
	ErrorClassifier func(error) (string, string)
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// entityParams names the span attribute for the generic ":id" segment per
// resource collection.
var entityParams = []struct {
	segment string
	key     string
}{
	{"/regulations/:id", "regulation.id"},
	{"/contracts/:id", "contract.id"},
	{"/consumption-records/:id", "consumption_record.id"},
}

// GinMiddleware starts a server span per request and tags it with the
// residence resources addressed by the route.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(tracerName)
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)

		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if _, role := obscontext.ActorFromContext(c.Request.Context()); role != "" {
			attrs = append(attrs, attribute.String("actor.role", role))
		}
		attrs = append(attrs, routeAttributes(route, c.Params)...)

		lastErr := c.Errors.Last()
		if lastErr != nil && cfg.ErrorClassifier != nil {
			errType, code := cfg.ErrorClassifier(lastErr.Err)
			attrs = append(attrs, attribute.String("error.type", errType))
			if code != "" {
				attrs = append(attrs, attribute.String("error.code", code))
			}
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func routeAttributes(route string, params gin.Params) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if residenceID := params.ByName("residenceId"); residenceID != "" {
		attrs = append(attrs, attribute.String("residence.id", residenceID))
	}
	id := params.ByName("id")
	if id == "" {
		return attrs
	}
	for _, e := range entityParams {
		if strings.Contains(route, e.segment) {
			return append(attrs, attribute.String(e.key, id))
		}
	}
	return attrs
}
