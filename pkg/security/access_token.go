package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrAccessTokenInvalid = errors.New("access token invalid or expired")

// MakeAccessToken signs a stateless HS256 bearer token for userID. Access
// tokens are never stored, validity is asserted by signature and expiry only
func MakeAccessToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"type": "access",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})

	return t.SignedString([]byte(secret))
}

// ParseAccessToken verifies signature and expiry and returns the subject
func ParseAccessToken(tokenStr, secret string) (userID string, err error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrAccessTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrAccessTokenInvalid
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrAccessTokenInvalid
	}

	exp, ok := claims["exp"].(float64)
	if !ok || time.Now().Unix() >= int64(exp) {
		return "", ErrAccessTokenInvalid
	}

	return sub, nil
}
