package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayasync/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenLifetime is how long a session token verifies after issue.
const DefaultTokenLifetime = 7 * 24 * time.Hour

var (
	// ErrTokenExpired also matches jwt.ErrTokenExpired.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

var (
	jwtSecret     = []byte("change-me-in-production")
	tokenLifetime = DefaultTokenLifetime
)

type Claims struct {
	UserID uuid.UUID       `json:"userID"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// ConfigureJWT sets the signing secret and token lifetime. Empty or
// non-positive values keep the current setting.
func ConfigureJWT(secret string, lifetime time.Duration) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if lifetime > 0 {
		tokenLifetime = lifetime
	}
}

func TokenLifetime() time.Duration {
	return tokenLifetime
}

func GenerateToken(user *models.User) (string, error) {
	return IssueToken(user, time.Now())
}

// IssueToken signs a session token for user issued at issuedAt and expiring
// one token lifetime later.
func IssueToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken verifies an HS256 session token. Failures wrap either
// ErrTokenExpired or ErrTokenInvalid.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}

	return claims, nil
}

// BearerToken extracts the credentials of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	const scheme = "Bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
