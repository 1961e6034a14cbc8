package actions

import (
	"context"
	"sync"

	"storyserver/models"
	"storyserver/multiplayer/lifecycle"

	"golang.org/x/time/rate"
)

// ChatLimiter rate limits chat messages per user.
type ChatLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewChatLimiter(limit rate.Limit, burst int) *ChatLimiter {
	return &ChatLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether userID may send a message now.
func (l *ChatLimiter) Allow(userID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Prune forgets users whose bucket has refilled, and returns how many are left.
func (l *ChatLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, lim := range l.limiters {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.limiters, id)
		}
	}
	return len(l.limiters)
}

// SendChat appends a message to the room chat log.
func (s *Service) SendChat(ctx context.Context, code, userID, username, message string) (models.ChatMessage, error) {
	if s.Chat != nil && !s.Chat.Allow(userID) {
		return models.ChatMessage{}, ErrRateLimited
	}
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return models.ChatMessage{}, err
	}
	msg := models.ChatMessage{
		UserID:    userID,
		Username:  username,
		Message:   message,
		Timestamp: s.now().UTC(),
	}
	if err := lifecycle.AppendMessage(room, msg); err != nil {
		return models.ChatMessage{}, err
	}
	if err := s.Rooms.Save(ctx, room); err != nil {
		return models.ChatMessage{}, err
	}
	return room.Messages[len(room.Messages)-1], nil
}
