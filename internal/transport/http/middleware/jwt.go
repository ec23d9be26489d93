package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bacopilot/internal/pkg/jwtutil"
	"bacopilot/internal/transport/http/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextEmailKey  = "email"
	ContextClaimsKey = "claims"
)

// Authenticator validates an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwtutil.Claims, error)
}

// AuthJWT requires an "Authorization: Bearer <token>" header accepted by auth
// and exposes the claims under the Context* keys.
func AuthJWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, message := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortUnauthorized(c, message)
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextEmailKey, claims.Email)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (token, problem string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", "invalid authorization scheme"
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "missing bearer token"
	}
	return value, ""
}

func abortUnauthorized(c *gin.Context, message string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, message)
	c.Abort()
}
