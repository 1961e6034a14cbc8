package storage

import (
	"context"
	"time"

	"storyserver/models"

	"go.uber.org/zap"
)

// NotifyingRooms wraps a RoomStore so that every save drops the cached document
// and tells subscribers. Cache and notify failures are logged only.
type NotifyingRooms struct {
	inner    RoomStore
	cache    RoomCache
	notifier Notifier
	logger   *zap.Logger
}

func NewNotifyingRooms(inner RoomStore, cache RoomCache, notifier Notifier, logger *zap.Logger) *NotifyingRooms {
	return &NotifyingRooms{inner: inner, cache: cache, notifier: notifier, logger: logger}
}

func (s *NotifyingRooms) Create(ctx context.Context, room *models.Room) error {
	return s.inner.Create(ctx, room)
}

func (s *NotifyingRooms) LoadByCode(ctx context.Context, code string) (*models.Room, error) {
	return s.inner.LoadByCode(ctx, code)
}

func (s *NotifyingRooms) Save(ctx context.Context, room *models.Room) error {
	if err := s.inner.Save(ctx, room); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, room.RoomCode); err != nil {
		s.logger.Warn("Failed to invalidate cached room", zap.String("roomCode", room.RoomCode), zap.Error(err))
	}
	if err := s.notifier.Publish(ctx, room.RoomCode); err != nil {
		s.logger.Warn("Failed to publish room update", zap.String("roomCode", room.RoomCode), zap.Error(err))
	}
	return nil
}

func (s *NotifyingRooms) DeleteUntouchedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.inner.DeleteUntouchedSince(ctx, cutoff)
}
