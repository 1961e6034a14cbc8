package screens

import (
	"errors"
	"io"
	"net/http"

	"storyserver/middlewares"
	"storyserver/multiplayer/actions"
	"storyserver/multiplayer/generator"
	"storyserver/multiplayer/lifecycle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type joinRoomRequest struct {
	RoomCode string `json:"roomCode" binding:"required"`
}

type voteGenreRequest struct {
	GenreID string `json:"genreId" binding:"required"`
}

type voteChoiceRequest struct {
	ChoiceID string `json:"choiceId" binding:"required"`
}

type startStoryRequest struct {
	Character         string            `json:"character"`
	PersonalityTraits map[string]string `json:"personalityTraits"`
}

type processChoiceRequest struct {
	SelectedChoiceID string `json:"selectedChoiceId"`
}

type transferHostRequest struct {
	NewHostID string `json:"newHostId" binding:"required"`
}

type leaveRequest struct {
	SaveAndExit bool `json:"saveAndExit"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// respondError はエラーの種類に応じたステータスで {error} を返す
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := actions.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("roomCode", c.Param("code")),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	var notAll *lifecycle.NotAllVotedError
	if errors.As(err, &notAll) {
		c.JSON(status, gin.H{
			"error":              "Not all participants have voted",
			"participants":       notAll.Participants,
			"voters":             notAll.Voters,
			"isTieBreakerVoting": notAll.TieBreaker,
		})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindOptional binds a JSON body that may be empty.
func bindOptional(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

func bindRequired(c *gin.Context, obj interface{}, logger *zap.Logger) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		logger.Info("Failed to bind request", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

// ルームを作成するハンドラー
func CreateRoom(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	userID := c.GetString(middlewares.UserIDKey)
	room, err := svc.CreateRoom(c.Request.Context(), userID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("Room created", zap.String("roomCode", room.RoomCode), zap.String("hostID", userID))
	c.JSON(http.StatusCreated, gin.H{
		"roomCode":     room.RoomCode,
		"status":       room.Status,
		"participants": nonNil(room.Participants),
	})
}

// ルームに参加するハンドラー
func JoinRoom(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req joinRoomRequest
	if !bindRequired(c, &req, logger) {
		return
	}
	userID := c.GetString(middlewares.UserIDKey)
	room, err := svc.JoinRoom(c.Request.Context(), req.RoomCode, userID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomCode":     room.RoomCode,
		"hostId":       room.HostID,
		"status":       room.Status,
		"participants": nonNil(room.Participants),
		"isHost":       room.HostID == userID,
	})
}

// ポーリング用にルームの全状態を返すハンドラー
func GetRoom(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	view, err := loadView(c, svc, c.Param("code"), c.GetString(middlewares.UserIDKey))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func loadView(c *gin.Context, svc *actions.Service, code, userID string) (RoomView, error) {
	ctx := c.Request.Context()
	room, err := svc.ViewRoom(ctx, code, userID)
	if err != nil {
		return RoomView{}, err
	}
	story, err := svc.StoryFor(ctx, room)
	if err != nil && !errors.Is(err, actions.ErrStoryNotFound) {
		return RoomView{}, err
	}
	return newRoomView(room, story, userID), nil
}

func VoteGenre(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req voteGenreRequest
	if !bindRequired(c, &req, logger) {
		return
	}
	ballot, err := svc.VoteGenre(c.Request.Context(), c.Param("code"), c.GetString(middlewares.UserIDKey), req.GenreID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"genreVotes": plain(ballot)})
}

func VoteChoice(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req voteChoiceRequest
	if !bindRequired(c, &req, logger) {
		return
	}
	ballot, err := svc.VoteChoice(c.Request.Context(), c.Param("code"), c.GetString(middlewares.UserIDKey), req.ChoiceID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"choiceVotes": plain(ballot)})
}

// ジャンル投票を締めてストーリーを開始するハンドラー（ホストのみ）
func StartStory(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req startStoryRequest
	if !bindOptional(c, &req) {
		return
	}
	story, err := svc.StartStory(c.Request.Context(), c.Param("code"), c.GetString(middlewares.UserIDKey), actions.StartOptions{
		Character:         req.Character,
		PersonalityTraits: req.PersonalityTraits,
	})
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "playing",
		"selectedGenre": story.Genre,
		"story":         newStoryView(story),
	})
}

// 選択肢の投票を集計して物語を進めるハンドラー（ホストのみ）
func ProcessChoice(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req processChoiceRequest
	if !bindOptional(c, &req) {
		return
	}
	out, err := svc.ProcessChoice(c.Request.Context(), c.Param("code"), c.GetString(middlewares.UserIDKey), req.SelectedChoiceID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func TransferHost(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req transferHostRequest
	if !bindRequired(c, &req, logger) {
		return
	}
	room, err := svc.TransferHost(c.Request.Context(), c.Param("code"), c.GetString(middlewares.UserIDKey), req.NewHostID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Host transferred",
		"hostId":       room.HostID,
		"participants": nonNil(room.Participants),
	})
}

func LeaveRoom(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req leaveRequest
	if !bindOptional(c, &req) {
		return
	}
	res, err := svc.LeaveRoom(c.Request.Context(), c.Param("code"), c.GetString(middlewares.UserIDKey), req.SaveAndExit)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Left the room",
		"wasHost":    res.WasHost,
		"storySaved": res.SaveCopy,
	})
}

func SendChat(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	var req chatRequest
	if !bindRequired(c, &req, logger) {
		return
	}
	msg, err := svc.SendChat(c.Request.Context(), c.Param("code"),
		c.GetString(middlewares.UserIDKey), c.GetString(middlewares.UsernameKey), req.Message)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatMessage": msg})
}

func ClearHostNotification(c *gin.Context, svc *actions.Service, logger *zap.Logger) {
	if err := svc.ClearHostNotification(c.Request.Context(), c.Param("code"), c.GetString(middlewares.UserIDKey)); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification cleared"})
}

// Genres はジャンル一覧を返す
func Genres(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"genres": generator.Genres()})
}
