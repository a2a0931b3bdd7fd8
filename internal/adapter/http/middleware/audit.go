package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuditLog writes one audit line per successful state-changing request,
// naming the principal and the route template.
func AuditLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		event := log.Info().
			Str("action", c.Request.Method+" "+c.FullPath()).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("request_id", c.GetString(CtxRequestID)).
			Str("client_ip", c.ClientIP())
		if p, ok := PrincipalFrom(c); ok {
			event = event.Str("principal", p.ID.String()).Str("role", string(p.Role))
		}
		if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
			event = event.Str("idempotency_key", key)
		}
		event.Msg("audit")
	}
}
