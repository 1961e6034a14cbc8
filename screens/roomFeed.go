package screens

import (
	"context"
	"errors"
	"time"

	"storyserver/middlewares"
	"storyserver/multiplayer/actions"
	"storyserver/multiplayer/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingPeriod = 10 * time.Second // 10秒ごとにPingを送信
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
)

// RoomFeed はルームの状態を WebSocket で配信する。
// 接続時に一度、その後はルームが保存されるたびに RoomView を送る
func RoomFeed(c *gin.Context, svc *actions.Service, notifier storage.Notifier, upgrader *websocket.Upgrader, logger *zap.Logger) {
	code := c.Param("code")
	userID := c.GetString(middlewares.UserIDKey)

	view, err := loadView(c, svc, code, userID)
	if err != nil {
		respondError(c, logger, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates, unsubscribe, err := notifier.Subscribe(ctx, view.RoomCode)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade がエラーレスポンスを書き込み済み
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()
	logger.Info("Room feed opened", zap.String("roomCode", view.RoomCode), zap.String("userID", userID))

	// Pongハンドラの設定
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// クライアントからのメッセージは読み捨て、切断を検知したら終了
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeView(conn, view); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			view, err := loadView(c, svc, code, userID)
			if err != nil {
				closeFeed(conn, err, logger)
				return
			}
			if err := writeView(conn, view); err != nil {
				logger.Info("Room feed write failed", zap.String("roomCode", view.RoomCode), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Info("Error sending ping, closing room feed", zap.Error(err))
				return
			}
		}
	}
}

func writeView(conn *websocket.Conn, view RoomView) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(view)
}

// closeFeed ends the feed when the room is gone or the user no longer belongs to it.
func closeFeed(conn *websocket.Conn, err error, logger *zap.Logger) {
	code := websocket.CloseInternalServerErr
	switch {
	case errors.Is(err, actions.ErrRoomNotFound):
		code = websocket.CloseNormalClosure
	case actions.StatusOf(err) < 500:
		code = websocket.ClosePolicyViolation
	default:
		logger.Error("Room feed reload failed", zap.Error(err))
	}
	msg := websocket.FormatCloseMessage(code, err.Error())
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
