// Package auth backs the single administrative-override gate named in
// §4.8: one operator credential, not a multi-user table. Adapted from the
// teacher's JWT/bcrypt service, narrowed from its RBAC role hierarchy down
// to a single authenticated/not-authenticated check.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vatpac/stats-ingestor/internal/config"
)

var (
	// ErrInvalidCredentials is returned when the operator password fails
	// to verify against the configured hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the single operator's session token payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service issues and validates the operator's override token.
type Service struct {
	admin         config.Admin
	tokenDuration time.Duration
}

func NewService(admin config.Admin) *Service {
	return &Service{admin: admin, tokenDuration: 8 * time.Hour}
}

// Authenticate verifies username/password against the configured operator
// credential and issues a signed token on success.
func (s *Service) Authenticate(username, password string) (string, error) {
	if username != s.admin.Username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "stats-ingestor",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.admin.JWTSecret))
}

// ValidateToken verifies a bearer token presented to the override
// endpoint.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.admin.JWTSecret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// HashPassword hashes a plaintext operator password for storage in
// ADMIN_PASSWORD_HASH; exposed for the operator to generate their own
// configuration value, not called at request time.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
