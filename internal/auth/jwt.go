package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role names the principal kind a token was issued for.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// DefaultTTL applies when neither the caller nor the config sets one.
const DefaultTTL = 60 * time.Minute

// Token validation failures.
var (
	ErrUnauthorized = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
	ErrMalformed    = errors.New("token malformed")
)

// Claims represents JWT payload.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 session tokens. There is no revocation
// list: a token stays valid until it expires.
type Tokens struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds a token service with a shared signing key.
func NewTokens(key, issuer string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{key: []byte(key), issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source, used by tests.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	cp := *t
	cp.now = now
	return &cp
}

// Issue signs a token for subject. A ttl <= 0 uses the configured default.
func (t *Tokens) Issue(subject string, role Role, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = t.ttl
	}
	now := t.now()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a token and returns claims. Errors are ErrExpired,
// ErrMalformed or ErrUnauthorized.
func (t *Tokens) Parse(tokenStr string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		default:
			return Claims{}, ErrUnauthorized
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrUnauthorized
	}
	return *claims, nil
}
