package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/plebmarket/backend/internal/interfaces/http/dto"
)

// OperatorToken guards operator routes with a static bearer token.
// token is either the plain secret or its bcrypt hash. An empty token
// disables the check.
func OperatorToken(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	match := tokenMatcher(token)

	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || got == "" || !match(got) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"operator token required",
				GetRequestID(c),
			))
			return
		}
		c.Next()
	}
}

func tokenMatcher(token string) func(string) bool {
	hash := []byte(token)
	if _, err := bcrypt.Cost(hash); err == nil {
		return func(got string) bool {
			return bcrypt.CompareHashAndPassword(hash, []byte(got)) == nil
		}
	}
	return func(got string) bool {
		return subtle.ConstantTimeCompare([]byte(got), hash) == 1
	}
}
