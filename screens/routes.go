package screens

import (
	"storyserver/multiplayer/actions"
	"storyserver/multiplayer/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RegisterRoutes は /api 以下のルーティングを登録する。
// auth は全エンドポイントの前段に置く認証ミドルウェア
func RegisterRoutes(router gin.IRouter, svc *actions.Service, notifier storage.Notifier, upgrader *websocket.Upgrader, auth gin.HandlerFunc, logger *zap.Logger) {
	api := router.Group("/api", auth)

	api.GET("/genres", Genres)
	api.POST("/create-room", func(c *gin.Context) {
		CreateRoom(c, svc, logger)
	})
	api.POST("/join-room", func(c *gin.Context) {
		JoinRoom(c, svc, logger)
	})

	room := api.Group("/room/:code")
	room.GET("", func(c *gin.Context) {
		GetRoom(c, svc, logger)
	})
	room.GET("/ws", func(c *gin.Context) {
		RoomFeed(c, svc, notifier, upgrader, logger)
	})
	room.POST("/vote-genre", func(c *gin.Context) {
		VoteGenre(c, svc, logger)
	})
	room.POST("/vote-choice", func(c *gin.Context) {
		VoteChoice(c, svc, logger)
	})
	room.POST("/start-story", func(c *gin.Context) {
		StartStory(c, svc, logger)
	})
	room.POST("/process-choice", func(c *gin.Context) {
		ProcessChoice(c, svc, logger)
	})
	room.POST("/transfer-host", func(c *gin.Context) {
		TransferHost(c, svc, logger)
	})
	room.POST("/leave", func(c *gin.Context) {
		LeaveRoom(c, svc, logger)
	})
	room.POST("/chat/send", func(c *gin.Context) {
		SendChat(c, svc, logger)
	})
	room.POST("/clear-host-notification", func(c *gin.Context) {
		ClearHostNotification(c, svc, logger)
	})
}
