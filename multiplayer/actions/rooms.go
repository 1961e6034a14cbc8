package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storyserver/models"
	"storyserver/multiplayer/generator"
	"storyserver/multiplayer/lifecycle"
	"storyserver/multiplayer/storage"
	"storyserver/multiplayer/votes"

	"go.uber.org/zap"
)

// codeAttempts bounds the retries on room code collisions.
const codeAttempts = 5

// CreateRoom opens a new waiting room hosted by hostID.
func (s *Service) CreateRoom(ctx context.Context, hostID string) (*models.Room, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := lifecycle.GenerateCode()
		if err != nil {
			return nil, err
		}
		room := lifecycle.NewRoom(code, hostID)
		err = s.Rooms.Create(ctx, room)
		if errors.Is(err, storage.ErrCodeTaken) {
			s.Logger.Info("Room code collision, retrying", zap.String("roomCode", code))
			continue
		}
		if err != nil {
			return nil, err
		}
		return room, nil
	}
	return nil, ErrNoFreeCode
}

// JoinRoom adds userID to the room with the given code.
func (s *Service) JoinRoom(ctx context.Context, code, userID string) (*models.Room, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	changed, err := lifecycle.Join(room, userID)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.Rooms.Save(ctx, room); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// ViewRoom returns the room for a member. Reads go through the cache when one
// is configured; a stale or broken cache entry falls back to the store.
func (s *Service) ViewRoom(ctx context.Context, code, userID string) (*models.Room, error) {
	code = lifecycle.NormalizeCode(code)
	room := s.cachedRoom(ctx, code)
	if room == nil {
		var err error
		room, err = s.loadRoom(ctx, code)
		if err != nil {
			return nil, err
		}
		s.cacheRoom(ctx, room)
	}
	if !lifecycle.IsMember(room, userID) {
		return nil, lifecycle.ErrNotMember
	}
	return room, nil
}

func (s *Service) cachedRoom(ctx context.Context, code string) *models.Room {
	if s.Cache == nil {
		return nil
	}
	b, err := s.Cache.Get(ctx, code)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.Logger.Warn("Room cache read failed", zap.String("roomCode", code), zap.Error(err))
		}
		return nil
	}
	var room models.Room
	if err := json.Unmarshal(b, &room); err != nil {
		s.Logger.Warn("Discarding unreadable cached room", zap.String("roomCode", code), zap.Error(err))
		return nil
	}
	return &room
}

func (s *Service) cacheRoom(ctx context.Context, room *models.Room) {
	if s.Cache == nil {
		return
	}
	b, err := json.Marshal(room)
	if err != nil {
		s.Logger.Warn("Failed to encode room for cache", zap.String("roomCode", room.RoomCode), zap.Error(err))
		return
	}
	if err := s.Cache.Set(ctx, room.RoomCode, b); err != nil {
		s.Logger.Warn("Room cache write failed", zap.String("roomCode", room.RoomCode), zap.Error(err))
	}
}

// VoteGenre records a genre vote and returns the updated genre ballot.
func (s *Service) VoteGenre(ctx context.Context, code, userID, genreID string) (votes.Ballot, error) {
	if _, ok := generator.LookupGenre(genreID); !ok {
		return nil, lifecycle.ErrInvalidGenre
	}
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CastGenreVote(room, userID, genreID); err != nil {
		return nil, err
	}
	if err := s.Rooms.Save(ctx, room); err != nil {
		return nil, err
	}
	return room.GenreVotes, nil
}

// VoteChoice records a vote for one of the current story choices and returns
// the updated choice ballot.
func (s *Service) VoteChoice(ctx context.Context, code, userID, choiceID string) (votes.Ballot, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if !lifecycle.IsMember(room, userID) {
		return nil, lifecycle.ErrNotMember
	}
	if err := lifecycle.RequireStatus(room, models.StatusPlaying); err != nil {
		return nil, err
	}
	story, err := s.loadStory(ctx, room)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CastChoiceVote(room, story, userID, choiceID); err != nil {
		return nil, err
	}
	if err := s.Rooms.Save(ctx, room); err != nil {
		return nil, err
	}
	return room.ChoiceVotes, nil
}

// TransferHost hands the host role to a participant. The multiplayer story, if
// any, follows the new host; failing to move it is logged only.
func (s *Service) TransferHost(ctx context.Context, code, callerID, newHostID string) (*models.Room, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.TransferHost(room, callerID, newHostID); err != nil {
		return nil, err
	}
	if err := s.Rooms.Save(ctx, room); err != nil {
		return nil, err
	}
	if room.StoryID != 0 {
		if err := s.Stories.Reassign(ctx, room.StoryID, newHostID); err != nil {
			s.Logger.Warn("Failed to reassign story to new host",
				zap.String("roomCode", room.RoomCode),
				zap.Uint("storyID", room.StoryID),
				zap.Error(err))
		}
	}
	return room, nil
}

// LeaveRoom removes userID from the room. With saveAndExit the user keeps a
// personal copy of the story played so far.
func (s *Service) LeaveRoom(ctx context.Context, code, userID string, saveAndExit bool) (lifecycle.LeaveResult, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return lifecycle.LeaveResult{}, err
	}
	res, err := lifecycle.Leave(room, userID, saveAndExit)
	if err != nil {
		return lifecycle.LeaveResult{}, err
	}

	if res.SaveCopy && room.StoryID != 0 {
		story, err := s.loadStory(ctx, room)
		if err != nil {
			return lifecycle.LeaveResult{}, fmt.Errorf("load story for save-and-exit: %w", err)
		}
		s.saveCopy(ctx, userID, room.RoomCode, story)
	}

	if err := s.Rooms.Save(ctx, room); err != nil {
		return lifecycle.LeaveResult{}, err
	}
	return res, nil
}

// ClearHostNotification drops the new-host notice once a client has shown it.
func (s *Service) ClearHostNotification(ctx context.Context, code, userID string) error {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	if err := lifecycle.ClearHostNotification(room, userID); err != nil {
		return err
	}
	return s.Rooms.Save(ctx, room)
}
