package observability

import (
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GinMiddlewareWithErrorHandling wraps otelgin and, for 4xx/5xx responses,
// marks the request span failed and attaches error detail attributes.
func GinMiddlewareWithErrorHandling(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		otelgin.Middleware(serviceName)(c)
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if span == nil {
			return
		}
		statusCode := c.Writer.Status()
		if statusCode < 400 {
			return
		}

		annotateFailedRequest(c, span, statusCode)
	}
}

func annotateFailedRequest(c *gin.Context, span trace.Span, statusCode int) {
	errorMsg := "client error"
	if statusCode >= 500 {
		errorMsg = "server error"
	}

	// An AppError attached to the gin context gives us the precise message,
	// code, and severity; otherwise fall back to status-code buckets.
	severity := severityForStatus(statusCode)
	var appErr *contextutils.AppError
	for _, ginErr := range c.Errors {
		if ae, ok := ginErr.Err.(*contextutils.AppError); ok {
			appErr = ae
			errorMsg = ae.Message
			severity = string(ae.Severity)
			break
		}
		errorMsg = ginErr.Error()
	}

	span.RecordError(errors.New(errorMsg), trace.WithStackTrace(true))
	span.SetStatus(codes.Error, errorMsg)
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.path", c.Request.URL.Path),
		attribute.String("error.handler", c.HandlerName()),
		attribute.String("error.severity", severity),
	)

	if appErr != nil {
		span.SetAttributes(
			attribute.String("error.code", string(appErr.Code)),
			attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
		)
	}

	session := sessions.Default(c)
	if userID, ok := session.Get("user_id").(int); ok {
		span.SetAttributes(attribute.Int("error.user_id", userID))
	}
	if c.Request.ContentLength > 0 {
		span.SetAttributes(attribute.Int64("error.request_size", c.Request.ContentLength))
	}
	if statusCode >= 500 {
		span.SetAttributes(attribute.Bool("error.server_error", true))
	}
}

func severityForStatus(statusCode int) string {
	switch {
	case statusCode >= 500:
		return string(contextutils.SeverityError)
	case statusCode >= 400:
		return string(contextutils.SeverityWarn)
	default:
		return string(contextutils.SeverityInfo)
	}
}
