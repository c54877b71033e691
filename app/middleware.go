package app

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// Recovery turns a panic in a handler into a 500 and logs the stack
func Recovery(log *logger.LogWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					WithField("method", c.Request.Method).
					WithField("path", c.Request.URL.Path).
					Errorf("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"errors": []gin.H{{"message": "internal server error"}},
				})
			}
		}()
		c.Next()
	}
}

// RequestLogger logs one line per request and echoes a request id,
// generating one when the client sent none
func RequestLogger(log *logger.LogWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		log.
			WithField("requestId", requestID).
			WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			WithField("latencyMs", time.Since(start).Milliseconds()).
			WithField("clientIp", c.ClientIP()).
			Debugf("request")
	}
}
