// Package auth implements the token codec and password hashing used by the
// credential service: HS256-signed JWTs with an explicit token type claim,
// and bcrypt for stored passwords.
package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aimathteacher/backend/internal/common"
)

// Token types carried in the "typ" claim. An access token is never accepted
// where a refresh token is required and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims extends the registered JWT claims with the account email and the
// token type.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
}

// UserID parses the subject claim into a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

// GenerateAccessToken mints a short-lived access token for userID.
func GenerateAccessToken(userID int64, email string, secretKey []byte, validity time.Duration) (string, error) {
	return generate(userID, email, TokenTypeAccess, secretKey, validity)
}

// GenerateRefreshToken mints a long-lived refresh token for userID.
func GenerateRefreshToken(userID int64, secretKey []byte, validity time.Duration) (string, error) {
	return generate(userID, "", TokenTypeRefresh, secretKey, validity)
}

func generate(userID int64, email, tokenType string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Email:     email,
		TokenType: tokenType,
	})
	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and expiry of tokenString and returns its
// claims. Any malformed, forged, or expired token yields
// common.ErrInvalidToken; callers must additionally check TokenType.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
