package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StreamClaims are the claims in a media-stream token. The telephony
// provider presents one of these before its websocket upgrade.
type StreamClaims struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

var jwtSecret []byte

// SetSecret installs the HMAC signing secret. Called once from main.
func SetSecret(secret []byte) {
	jwtSecret = secret
}

// GenerateStreamToken generates a token a provider account can use to open
// media streams.
func GenerateStreamToken(accountID string) (string, error) {
	claims := &StreamClaims{
		AccountID: accountID,
		Role:      "media",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateStreamToken validates a media-stream token and returns its claims.
func ValidateStreamToken(tokenString string) (*StreamClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &StreamClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*StreamClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}
