package middleware

import (
	"net/http"
	"unicode"

	"eromax-ledger/pkg/apperror"
	"eromax-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxIdempotencyKeyLen = 128

// MaxBodySize returns middleware that limits the request body size.
// Once the limit is exceeded the reader returns an error and the
// request is rejected with 413 Payload Too Large.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// IdempotencyKey rejects malformed Idempotency-Key headers before they
// reach the cache. A missing header is allowed.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.Error(c, apperror.Validation("Idempotency-Key is too long"))
			c.Abort()
			return
		}
		for _, r := range key {
			if r > unicode.MaxASCII || unicode.IsControl(r) || unicode.IsSpace(r) {
				response.Error(c, apperror.Validation("Idempotency-Key must be printable ASCII"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
