// Package auth issues and validates the signed tokens that carry a caller's
// identity, role and session.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gosuda/prime/internal/domain"
)

// Claims holds the JWT token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}

const issuer = "prime"

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token") //nolint:gochecknoglobals // sentinel error

// ErrUnknownRole is returned when a token names a role the service does not know.
var ErrUnknownRole = errors.New("auth: unknown role") //nolint:gochecknoglobals // sentinel error

// IssueToken creates a signed JWT for u. An empty session ID is replaced by a
// fresh one.
func IssueToken(secret string, u domain.User, ttl time.Duration) (string, error) {
	if u.ID == "" {
		return "", errors.New("auth.IssueToken: empty user id")
	}
	if !u.Role.Valid() {
		return "", fmt.Errorf("auth.IssueToken: role %q: %w", u.Role, ErrUnknownRole)
	}
	if u.SessionID == "" {
		u.SessionID = uuid.NewString()
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		UserID:    u.ID,
		Role:      string(u.Role),
		SessionID: u.SessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT token string. Returns the embedded claims.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	if !token.Valid {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	return claims, nil
}

// User converts the claims into the caller identity.
func (c *Claims) User() (domain.User, error) {
	role := domain.Role(c.Role)
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("auth.Claims.User: role %q: %w", c.Role, ErrUnknownRole)
	}
	if c.UserID == "" {
		return domain.User{}, fmt.Errorf("auth.Claims.User: empty user id: %w", ErrInvalidToken)
	}
	return domain.User{ID: c.UserID, Role: role, SessionID: c.SessionID}, nil
}
