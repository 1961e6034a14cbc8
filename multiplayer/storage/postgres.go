package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyserver/models"

	"gorm.io/gorm"
)

// PostgresRooms is the gorm-backed RoomStore.
type PostgresRooms struct {
	db *gorm.DB
}

func NewPostgresRooms(db *gorm.DB) *PostgresRooms {
	return &PostgresRooms{db: db}
}

func (s *PostgresRooms) Create(ctx context.Context, room *models.Room) error {
	err := s.db.WithContext(ctx).Create(room).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *PostgresRooms) LoadByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).Where("room_code = ?", code).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	return &room, nil
}

func (s *PostgresRooms) Save(ctx context.Context, room *models.Room) error {
	if err := s.db.WithContext(ctx).Save(room).Error; err != nil {
		return fmt.Errorf("save room %s: %w", room.RoomCode, err)
	}
	return nil
}

// DeleteUntouchedSince hard-deletes rooms not updated since cutoff, freeing
// their codes.
func (s *PostgresRooms) DeleteUntouchedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Unscoped().
		Where("updated_at <= ?", cutoff).
		Delete(&models.Room{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired rooms: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PostgresStories is the gorm-backed StoryStore.
type PostgresStories struct {
	db *gorm.DB
}

func NewPostgresStories(db *gorm.DB) *PostgresStories {
	return &PostgresStories{db: db}
}

func (s *PostgresStories) Create(ctx context.Context, story *models.Story) error {
	if err := s.db.WithContext(ctx).Create(story).Error; err != nil {
		return fmt.Errorf("create story: %w", err)
	}
	return nil
}

func (s *PostgresStories) Load(ctx context.Context, id uint) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).First(&story, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load story %d: %w", id, err)
	}
	return &story, nil
}

func (s *PostgresStories) Save(ctx context.Context, story *models.Story) error {
	if err := s.db.WithContext(ctx).Save(story).Error; err != nil {
		return fmt.Errorf("save story %d: %w", story.ID, err)
	}
	return nil
}

func (s *PostgresStories) UpsertCopy(ctx context.Context, userID, roomCode string, src *models.Story) error {
	db := s.db.WithContext(ctx)

	var existing models.Story
	err := db.Where("user_id = ? AND room_code = ? AND is_multiplayer = ?", userID, roomCode, true).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cp := copyOf(src, userID, roomCode)
		if err := db.Create(cp).Error; err != nil {
			return fmt.Errorf("create story copy for %s: %w", userID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("find story copy for %s: %w", userID, err)
	}

	cp := copyOf(src, userID, roomCode)
	cp.Model = existing.Model
	if err := db.Save(cp).Error; err != nil {
		return fmt.Errorf("update story copy for %s: %w", userID, err)
	}
	return nil
}

// Reassign gives story id to userID. A multiplayer story doubles as its
// owner's personal copy, so any copy userID already holds for the same room
// is deleted in the same transaction.
func (s *PostgresStories) Reassign(ctx context.Context, id uint, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		err := tx.First(&story, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("reassign story %d: %w", id, err)
		}

		if story.IsMultiplayer {
			err := tx.Unscoped().
				Where("user_id = ? AND room_code = ? AND is_multiplayer = ? AND id <> ?", userID, story.RoomCode, true, id).
				Delete(&models.Story{}).Error
			if err != nil {
				return fmt.Errorf("drop story copy for %s: %w", userID, err)
			}
		}

		if err := tx.Model(&story).Update("user_id", userID).Error; err != nil {
			return fmt.Errorf("reassign story %d: %w", id, err)
		}
		return nil
	})
}

// copyOf returns src as a new, unsaved multiplayer story owned by userID.
func copyOf(src *models.Story, userID, roomCode string) *models.Story {
	cp := src.Clone()
	cp.Model = gorm.Model{}
	cp.UserID = userID
	cp.RoomCode = roomCode
	cp.IsMultiplayer = true
	return cp
}
