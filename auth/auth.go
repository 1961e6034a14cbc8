package auth

import (
	"errors"
	"time"

	"storyserver/models"

	jwt "github.com/dgrijalva/jwt-go"
)

// JwtKey はトークンの署名に使う鍵。起動時に SetSecret で設定する
var JwtKey []byte

// TokenTTL is the lifetime of tokens issued by GenerateToken.
const TokenTTL = 72 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

func SetSecret(secret string) {
	JwtKey = []byte(secret)
}

// GenerateToken signs a token for the given user.
func GenerateToken(userID, username string) (string, error) {
	claims := &models.MyClaims{
		UserID:   userID,
		Username: username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(TokenTTL).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JwtKey)
}

// ParseToken verifies tokenString and returns its claims.
func ParseToken(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return JwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func IsValidToken(tokenString string) (bool, error) {
	if _, err := ParseToken(tokenString); err != nil {
		return false, err
	}
	return true, nil
}
