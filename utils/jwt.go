package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 72 * time.Hour

// GenerateJWT issues an HS256 token carrying the userId, role and premium claims the API
// reads.
func GenerateJWT(userID, role string, premium bool, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if userID == "" {
		return "", errors.New("user id is empty")
	}
	claims := jwt.MapClaims{
		"userId":  userID,
		"role":    role,
		"premium": premium,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
