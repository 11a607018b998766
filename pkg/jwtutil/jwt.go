package jwtutil

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSigningKey is returned when tokens are validated without a configured key
var ErrNoSigningKey = errors.New("JWT signing key not configured")

// UserClaims represents the JWT claims issued by the authentication service
type UserClaims struct {
	Email  string `json:"email"`
	UserID int64  `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTUtil validates bearer tokens
type JWTUtil struct {
	signingKey []byte
}

// NewJWTUtil creates a new JWT utility for the given HMAC signing key
func NewJWTUtil(signingKey string) *JWTUtil {
	return &JWTUtil{signingKey: []byte(signingKey)}
}

// GenerateToken signs a token for userID. Used by tooling and tests; tokens are
// normally issued by the authentication service.
func (j *JWTUtil) GenerateToken(email string, userID int64, claims jwt.RegisteredClaims) (string, error) {
	if len(j.signingKey) == 0 {
		return "", ErrNoSigningKey
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Email:            email,
		UserID:           userID,
		RegisteredClaims: claims,
	})
	return token.SignedString(j.signingKey)
}

// ValidateToken validates and parses the JWT token
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	if len(j.signingKey) == 0 {
		return nil, ErrNoSigningKey
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return j.signingKey, nil
		},
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
