package middlewares

import (
	"errors"
	"strings"

	"storyserver/auth"
	"storyserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrTokenRequired = errors.New("Token is required")

// リクエストからJWTトークンを取得し、クレームを解析して返します。
// ブラウザの WebSocket はヘッダーを付けられないので ?token= も受け付ける
func GetUserIDFromToken(c *gin.Context, logger *zap.Logger) (*models.MyClaims, error) {
	tokenString := c.GetHeader("Authorization")
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		return nil, ErrTokenRequired
	}

	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		logger.Warn("Failed to parse JWT token", zap.Error(err))
		return nil, err
	}
	return claims, nil
}
