// Package admin exposes the management REST API: login plus CRUD and
// export over the stored secrets. It is mounted only when credentials
// are configured.
package admin

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkravets/keychat/internal/common"
)

// Claims carries the authenticated admin username alongside the
// registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string
}

func generateToken(username string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Username: username,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func usernameFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}
	return claims.Username, nil
}
