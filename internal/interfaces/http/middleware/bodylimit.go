package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plebmarket/backend/internal/interfaces/http/dto"
)

// DefaultMaxBodyBytes caps operator request bodies. Bid and payout payloads
// are a few hundred bytes.
const DefaultMaxBodyBytes int64 = 64 << 10

// BodyLimit rejects declared bodies larger than maxBytes with 413 and caps
// chunked bodies while they are read. maxBytes <= 0 uses DefaultMaxBodyBytes.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size",
				GetRequestID(c),
			))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
