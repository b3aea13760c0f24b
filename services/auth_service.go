package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"

	"github.com/dbt-cloudrun/dto"
)

// ErrInvalidAPIKey is returned when a key does not match the configured hash
var ErrInvalidAPIKey = eris.New("invalid API key")

// CompareAPIKey checks a plain key against its bcrypt hash
func CompareAPIKey(hash, key string) error {
	if hash == "" || key == "" {
		return ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}

	return nil
}

// GenerateToken signs a token for subject that expires after ttl
func GenerateToken(secret, subject string, ttl time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, eris.New("JWT secret is not configured")
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := dto.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, eris.Wrap(err, "failed to sign token")
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token and returns claims if valid
func ValidateToken(tokenString, secret string) (*dto.TokenClaims, error) {
	if secret == "" {
		return nil, eris.New("JWT secret is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &dto.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "invalid token")
	}

	if !token.Valid {
		return nil, eris.New("invalid token")
	}

	claims, ok := token.Claims.(*dto.TokenClaims)
	if !ok {
		return nil, eris.New("invalid token claims")
	}

	return claims, nil
}
