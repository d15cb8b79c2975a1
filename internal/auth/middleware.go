package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the shared secret for maintenance routes.
const APIKeyHeader = "Mark-Absent-Api-Key"

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID   string
	Role Role
	Name string
}

// Resolver maps a token subject to a live principal.
type Resolver interface {
	Resolve(ctx context.Context, subject string) (Principal, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, subject string) (Principal, error)

func (f ResolverFunc) Resolve(ctx context.Context, subject string) (Principal, error) {
	return f(ctx, subject)
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal set by the guard.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// BearerToken extracts the token from an Authorization header value.
// Anything other than "Bearer <token>" yields false.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// Require enforces bearer JWT tokens for one principal kind and attaches the
// resolved principal to the request context.
func Require(tokens *Tokens, role Role, resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			switch {
			case errors.Is(err, ErrExpired):
				unauthorized(c, "token expired")
			case errors.Is(err, ErrMalformed):
				unauthorized(c, "malformed token")
			default:
				unauthorized(c, "invalid token")
			}
			return
		}
		if claims.Role != role {
			unauthorized(c, "invalid token")
			return
		}
		principal, err := resolver.Resolve(c.Request.Context(), claims.Subject)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "token subject not resolved", "role", role, "error", err)
			unauthorized(c, "invalid authentication credentials")
			return
		}
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// APIKey guards machine-to-machine routes with a static shared secret.
// A missing header and a wrong key are treated the same.
func APIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(APIKeyHeader)
		if expected == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			unauthorized(c, "Unauthorized")
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "kind": "unauthorized"})
}
