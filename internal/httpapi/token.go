// Package httpapi exposes the HTTP trigger surface: vault unlock, credential
// upload, on-demand sync and the Google login handshake.
package httpapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/models"
)

const (
	tokenIssuer   = "calhub"
	tokenAudience = "calhub-api"
)

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// GenerateToken creates a signed API token for the user.
func GenerateToken(userID models.UserID, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: int64(userID),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and validates an API token, returning the user id.
func ValidateToken(tokenString, secret string) (models.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(tokenAudience))
	if err != nil {
		return 0, common.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, common.ErrInvalidToken
	}
	return models.UserID(claims.UserID), nil
}
