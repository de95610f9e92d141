package utils

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtCustomClaims struct {
	UserID string `json:"user_id,omitempty"`
	ID     string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

func (c *jwtCustomClaims) customerID() string {
	for _, v := range []string{c.UserID, c.ID, c.Subject} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// GenerateToken creates a signed JWT for the provided customer ID.
func GenerateToken(secret, customerID string, ttl time.Duration) (string, error) {
	claims := &jwtCustomClaims{
		UserID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the embedded customer ID.
// Marketplace tokens carry it as user_id, id or sub.
func ParseToken(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*jwtCustomClaims); ok && token.Valid {
		if id := claims.customerID(); id != "" {
			return id, nil
		}
	}

	return "", jwt.ErrTokenInvalidClaims
}
