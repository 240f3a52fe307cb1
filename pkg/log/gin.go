package log

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// GinMiddleware attaches a request-scoped child logger to the request
// context, echoes X-Request-ID and logs the completed request.
// Paths listed in skip (for example the websocket upgrade) are logged at
// connect time only, since the request outlives the handler.
func GinMiddleware(logger zerolog.Logger, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Str(FieldClientIP, c.ClientIP()).
			Logger()

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		for _, p := range skip {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				return
			}
		}

		evt := child.Info().
			Int(FieldStatus, c.Writer.Status()).
			Float64(FieldLatency, float64(time.Since(start).Milliseconds()))

		if userID := c.GetString(FieldUserID); userID != "" {
			evt = evt.Str(FieldUserID, userID)
		}
		if role := c.GetString(FieldRole); role != "" {
			evt = evt.Str(FieldRole, role)
		}

		evt.Msg("request completed")
	}
}
