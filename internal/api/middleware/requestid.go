package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header for the request trace id
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the key used to store the request id in the context
	RequestIDKey = "request_id"
)

// RequestID middleware ensures each request has a unique identifier for
// tracing. The name deliberately avoids "correlation id", which in this
// system is the provider's payment reconciliation key.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set(RequestIDKey, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request id from the gin context if present
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if requestID, ok := id.(string); ok {
			return requestID
		}
	}
	return ""
}
