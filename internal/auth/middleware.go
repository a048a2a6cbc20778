package auth

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey contextKey = "authUserID"
	roleKey   contextKey = "authRole"
)

// GetUserID retrieves the authenticated subject from context.
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(userIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// GetRole retrieves the role claim of the authenticated subject.
func GetRole(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// JWTMiddleware validates bearer tokens and injects the subject and role into
// the request context. An empty secret or audience falls back to JWT_SECRET
// and JWT_AUDIENCE.
func JWTMiddleware(secret, audience string) gin.HandlerFunc {
	secret = firstNonEmpty(secret, os.Getenv("JWT_SECRET"))
	audience = firstNonEmpty(audience, os.Getenv("JWT_AUDIENCE"))

	var opts []jwt.ParserOption
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return func(c *gin.Context) {
		if secret == "" {
			unauthorized(c, "missing JWT secret")
			return
		}
		tokenString, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		claims, err := parseToken(tokenString, []byte(secret), opts...)
		switch {
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			unauthorized(c, "invalid audience")
			return
		case err != nil:
			unauthorized(c, "invalid token")
			return
		case claims.Subject == "":
			unauthorized(c, "missing subject")
			return
		}

		ctx := context.WithValue(c.Request.Context(), userIDKey, claims.Subject)
		ctx = context.WithValue(ctx, roleKey, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(userIDKey), claims.Subject)
		c.Set(string(roleKey), claims.Role)

		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role claim is not one of roles.
// It must run after JWTMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c.Request.Context())
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
