package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crewlink/internal/apperrors"
	"crewlink/internal/auth"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// AuthMiddleware validates the Authorization header and stores the user id on the context.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, "missing authorization")
			return
		}

		token, ok := auth.BearerToken(header)
		if !ok {
			abort(c, "invalid authorization header")
			return
		}

		userID, err := validator.Validate(token)
		if err != nil {
			abort(c, "invalid token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func abort(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason, "code": apperrors.CodeUnauthorized})
}
