package middleware

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
)

const (
	exp = 9          // Expires in 9 hours
	iss = "heimdall" // Issuer
)

// DeriveSecretKey stretches the configured API secret into the HMAC signing
// key. The salt is fixed: the derivation only has to be stable across
// restarts, not to protect stored credentials.
func DeriveSecretKey(apiSecret string) string {
	key := argon2.IDKey([]byte(apiSecret), []byte(iss+"-api"), 3, 64*1024, 2, 32)
	return base64.RawStdEncoding.EncodeToString(key)
}

// GenerateToken issues a signed token for an API client.
func GenerateToken(secretKey, subject string, issuedAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": issuedAt.Add(time.Duration(exp) * time.Hour).Unix(),
		"iat": issuedAt.Unix(),
		"iss": iss,
		"sub": subject,
	})

	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token string. Expiry and the HMAC
// signing method are enforced.
func VerifyToken(secretKey, tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return token, nil
}
