// Package storage persists rooms and stories and carries the Redis-backed
// helpers around them: the polled view cache, save notifications and the
// retry queue for personal story copies.
package storage

import (
	"context"
	"errors"
	"time"

	"storyserver/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrCodeTaken = errors.New("room code already in use")
)

// RoomStore loads and saves whole room documents. Save overwrites the stored
// row; there is no version check.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	LoadByCode(ctx context.Context, code string) (*models.Room, error)
	Save(ctx context.Context, room *models.Room) error
	DeleteUntouchedSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoryStore loads and saves story documents.
type StoryStore interface {
	Create(ctx context.Context, story *models.Story) error
	Load(ctx context.Context, id uint) (*models.Story, error)
	Save(ctx context.Context, story *models.Story) error
	// UpsertCopy writes src as userID's personal copy of the multiplayer story
	// played in roomCode, updating the copy if one exists.
	UpsertCopy(ctx context.Context, userID, roomCode string, src *models.Story) error
	// Reassign moves story id to userID, dropping userID's own copy for the
	// same room so that each user keeps exactly one.
	Reassign(ctx context.Context, id uint, userID string) error
}

// RoomCache holds serialized room documents for pollers.
type RoomCache interface {
	Get(ctx context.Context, code string) ([]byte, error)
	Set(ctx context.Context, code string, view []byte) error
	Invalidate(ctx context.Context, code string) error
}

// Notifier signals that a room was saved.
type Notifier interface {
	Publish(ctx context.Context, code string) error
	// Subscribe delivers one signal per save until cancel is called.
	Subscribe(ctx context.Context, code string) (updates <-chan struct{}, cancel func(), err error)
}

// CopyJob asks for a personal copy of a story to be written.
type CopyJob struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	RoomCode string `json:"roomCode"`
	StoryID  uint   `json:"storyId"`
	Attempts int    `json:"attempts"`
}

// CopyQueue holds copy jobs that failed inline.
type CopyQueue interface {
	Enqueue(ctx context.Context, job CopyJob) error
	// Dequeue returns ErrNotFound when the queue is empty.
	Dequeue(ctx context.Context) (CopyJob, error)
}
