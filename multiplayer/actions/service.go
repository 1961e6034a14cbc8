// Package actions implements the room operations behind the HTTP endpoints.
// Every operation loads the room, mutates it in memory and saves it whole;
// nothing is locked, so concurrent operations on one room are last-write-wins.
package actions

import (
	"context"
	"errors"
	"time"

	"storyserver/models"
	"storyserver/multiplayer/generator"
	"storyserver/multiplayer/lifecycle"
	"storyserver/multiplayer/storage"

	"go.uber.org/zap"
)

// RoomTTL is how long a room survives without being saved.
const RoomTTL = 24 * time.Hour

// Service wires the room operations to their collaborators.
type Service struct {
	Rooms     storage.RoomStore
	Stories   storage.StoryStore
	Generator generator.Generator
	// Cache is optional; without it every view reads the store.
	Cache  storage.RoomCache
	Copies storage.CopyQueue
	Chat   *ChatLimiter
	Logger *zap.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) loadRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := s.Rooms.LoadByCode(ctx, lifecycle.NormalizeCode(code))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Service) loadStory(ctx context.Context, room *models.Room) (*models.Story, error) {
	if room.StoryID == 0 {
		return nil, ErrStoryNotFound
	}
	story, err := s.Stories.Load(ctx, room.StoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return story, nil
}

// ExpireRooms deletes rooms nobody has touched for RoomTTL.
func (s *Service) ExpireRooms(ctx context.Context) (int64, error) {
	return s.Rooms.DeleteUntouchedSince(ctx, s.now().Add(-RoomTTL))
}

// StoryFor returns the room's story, or nil before the story has started.
func (s *Service) StoryFor(ctx context.Context, room *models.Room) (*models.Story, error) {
	if room.StoryID == 0 {
		return nil, nil
	}
	return s.loadStory(ctx, room)
}
