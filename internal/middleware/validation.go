package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/EchoAurora/xingcefupan/internal/observability"

	"github.com/gin-gonic/gin"
)

// RequestValidationMiddleware validates write-request bodies against the
// embedded JSON Schemas before the handlers see them. Endpoints without a
// registered schema pass through untouched.
func RequestValidationMiddleware(logger *observability.Logger) gin.HandlerFunc {
	schemaLoader := AutoLoadSchemas()

	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		schemaName := schemaLoader.DetermineRequestSchemaFromPath(path, method)
		if schemaName == "" {
			c.Next()
			return
		}

		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation")
		defer span.End()

		body, err := c.GetRawData()
		if err != nil {
			StandardizeHTTPError(c, http.StatusBadRequest, "Failed to read request body", err.Error())
			c.Abort()
			return
		}
		// Restore the body so handlers can bind it
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		var requestData interface{}
		if err := json.Unmarshal(body, &requestData); err != nil {
			logger.Warn(ctx, "Request body is not valid JSON", map[string]interface{}{
				"method": method,
				"path":   path,
			})
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request data",
				"message": "Request body must be valid JSON",
				"method":  method,
				"path":    path,
			})
			c.Abort()
			return
		}

		if err := schemaLoader.ValidateData(requestData, schemaName); err != nil {
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"method":      method,
				"path":        path,
				"schema_name": schemaName,
				"error":       err.Error(),
			})
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request data",
				"message": "Request data does not match the API specification",
				"method":  method,
				"path":    path,
				"schema":  schemaName,
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		c.Next()
	}
}
