package actions

import (
	"context"
	"fmt"

	"storyserver/models"
	"storyserver/multiplayer/generator"
	"storyserver/multiplayer/lifecycle"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// StartOptions are the host's choices for the opening segment.
type StartOptions struct {
	Character         string
	PersonalityTraits map[string]string
}

// StartStory resolves the genre vote, generates the opening segment and moves
// the room into play.
func (s *Service) StartStory(ctx context.Context, code, callerID string, opts StartOptions) (*models.Story, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if !lifecycle.IsHost(room, callerID) {
		return nil, lifecycle.ErrNotHost
	}
	if err := lifecycle.RequireStatus(room, models.StatusVotingGenre); err != nil {
		return nil, err
	}
	genreID, err := lifecycle.ResolveGenre(room)
	if err != nil {
		return nil, err
	}
	if _, ok := generator.LookupGenre(genreID); !ok {
		return nil, lifecycle.ErrInvalidGenre
	}

	traits := make(datatypes.JSONMap, len(opts.PersonalityTraits))
	for k, v := range opts.PersonalityTraits {
		traits[k] = v
	}
	story := &models.Story{
		UserID:            room.HostID,
		Title:             generator.StoryTitle(genreID),
		Genre:             genreID,
		Character:         opts.Character,
		PersonalityTraits: traits,
		IsMultiplayer:     true,
		RoomCode:          room.RoomCode,
	}

	seg, err := s.Generator.Generate(ctx, generator.Request{
		GenreID:           genreID,
		PersonalityTraits: story.TraitList(),
		Character:         story.Character,
		IsMultiplayer:     true,
	})
	if err != nil {
		s.Logger.Error("Opening segment generation failed", zap.String("roomCode", room.RoomCode), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	story.Content = seg.Content
	story.Choices = seg.Choices
	story.IsStoryComplete = seg.IsStoryComplete

	// 生成に時間がかかるので、書き込む直前にルームを読み直す
	room, err = s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	// 重複したリクエストが先にストーリーを開始していれば何も作らない
	if err := lifecycle.RequireStatus(room, models.StatusVotingGenre); err != nil {
		return nil, err
	}
	if room.SelectedGenre != "" {
		return nil, fmt.Errorf("%w: genre already selected", lifecycle.ErrWrongStatus)
	}

	if err := s.Stories.Create(ctx, story); err != nil {
		return nil, err
	}
	if err := lifecycle.Transition(room, models.StatusPlaying); err != nil {
		return nil, err
	}
	room.SelectedGenre = genreID
	room.StoryID = story.ID
	room.CurrentChoiceIndex = story.CurrentChoiceIndex
	room.ChoiceVotes.Clear()
	room.TiedChoicesForVoting = nil
	room.SetEvaluation(nil)
	if err := s.Rooms.Save(ctx, room); err != nil {
		return nil, err
	}

	s.Logger.Info("Story started",
		zap.String("roomCode", room.RoomCode),
		zap.String("genre", genreID),
		zap.Uint("storyID", story.ID))
	return story, nil
}
