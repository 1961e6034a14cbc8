package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// コンテキストに保存するキー
const (
	UserIDKey   = "UserID"
	UsernameKey = "Username"
)

// トークンを検証し、ユーザーIDをコンテキストにセットするミドルウェア
func AuthMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetUserIDFromToken(c, logger)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}
