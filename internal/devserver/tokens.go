package devserver

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// Claims carries the user id and the key generation the token was signed
// under; bumping the server's generation invalidates every access token
// issued before.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string `json:"user_id"`
	Generation int    `json:"gen"`
	Kind       string `json:"kind"`
}

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// GenerateToken signs an HS256 token for userID.
func GenerateToken(userID, kind, jti string, generation int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:     userID,
		Generation: generation,
		Kind:       kind,
	})
	return token.SignedString(secret)
}

// ParseToken validates signature, expiry and kind.
func ParseToken(tokenString, kind string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Kind != kind {
		return nil, errInvalidToken
	}
	return claims, nil
}
