package dto

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents the claims accepted on bearer tokens for /daily.
// Only the registered claims are checked; the subject is logged.
type TokenClaims struct {
	jwt.RegisteredClaims
}
