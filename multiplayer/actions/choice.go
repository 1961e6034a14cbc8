package actions

import (
	"context"
	"fmt"

	"storyserver/models"
	"storyserver/multiplayer/generator"
	"storyserver/multiplayer/lifecycle"

	"go.uber.org/zap"
)

// StoryExcerpt is the part of the story returned after a resolution.
type StoryExcerpt struct {
	Content            string          `json:"content"`
	Choices            []models.Choice `json:"choices"`
	CurrentChoiceIndex int             `json:"currentChoiceIndex"`
	IsStoryComplete    bool            `json:"isStoryComplete"`
}

// ChoiceOutcome is the result of ProcessChoice. Either the vote tied and
// HasTie is set, or the story advanced and Story is set.
type ChoiceOutcome struct {
	HasTie               bool                     `json:"hasTie"`
	TiedChoices          []string                 `json:"tiedChoices,omitempty"`
	IsTieBreakerVoting   bool                     `json:"isTieBreakerVoting"`
	RequiresHostDecision bool                     `json:"requiresHostDecision,omitempty"`
	Message              string                   `json:"message,omitempty"`
	Story                *StoryExcerpt            `json:"story,omitempty"`
	LastChoiceEvaluation *models.ChoiceEvaluation `json:"lastChoiceEvaluation"`
}

// ProcessChoice resolves the current choice vote. Without selectedChoiceID it
// needs every eligible voter to have voted; a first tie starts a tie-breaker
// re-vote and a second tie asks the host to decide. With selectedChoiceID the
// host picks among the tied choices directly.
//
// IsProcessing is set while the generator runs but nothing checks it, so two
// concurrent calls can both resolve the same vote.
func (s *Service) ProcessChoice(ctx context.Context, code, callerID, selectedChoiceID string) (out *ChoiceOutcome, err error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	roomCode := room.RoomCode
	marked := false
	defer func() {
		if err != nil && (marked || StatusOf(err) >= 500) {
			s.resetProcessing(ctx, roomCode)
		}
	}()

	if !lifecycle.IsHost(room, callerID) {
		return nil, lifecycle.ErrNotHost
	}
	if err := lifecycle.RequireStatus(room, models.StatusPlaying); err != nil {
		return nil, err
	}
	story, err := s.loadStory(ctx, room)
	if err != nil {
		return nil, err
	}
	if len(room.ChoiceVotes) == 0 {
		return nil, lifecycle.ErrNoVotes
	}

	tieBreaker := room.InTieBreaker()
	active := room.ChoiceVotes.Options()
	if tieBreaker {
		active = room.TiedChoicesForVoting
	}
	ballot := room.ChoiceVotes.Restrict(active)
	eligible := lifecycle.EligibleVoters(room)
	if selectedChoiceID == "" && !ballot.QuorumMet(eligible) {
		return nil, &lifecycle.NotAllVotedError{
			Participants: eligible,
			Voters:       ballot.Distinct(),
			TieBreaker:   tieBreaker,
		}
	}
	res := ballot.Tally()

	if selectedChoiceID == "" && res.Tied() {
		if tieBreaker {
			return &ChoiceOutcome{
				HasTie:               true,
				TiedChoices:          res.TiedAtMax,
				IsTieBreakerVoting:   true,
				RequiresHostDecision: true,
				Message:              "Still tied. The host must choose.",
			}, nil
		}
		room.TiedChoicesForVoting = res.TiedAtMax
		room.ChoiceVotes.Clear()
		if err := s.Rooms.Save(ctx, room); err != nil {
			return nil, err
		}
		return &ChoiceOutcome{
			HasTie:             true,
			TiedChoices:        res.TiedAtMax,
			IsTieBreakerVoting: true,
			Message:            "It's a tie! Vote again between the tied choices.",
		}, nil
	}

	winner := res.Winner
	if selectedChoiceID != "" {
		valid := res.TiedAtMax
		if tieBreaker {
			valid = room.TiedChoicesForVoting
		}
		if !containsString(valid, selectedChoiceID) {
			return nil, lifecycle.ErrInvalidChoice
		}
		winner = selectedChoiceID
	}
	if winner == "" {
		return nil, lifecycle.ErrNoVotes
	}
	choice, ok := story.FindChoice(winner)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChoiceMissing, winner)
	}

	room.IsProcessing = true
	room.SetEvaluation(nil)
	if err := s.Rooms.Save(ctx, room); err != nil {
		return nil, err
	}
	marked = true

	seg, err := s.Generator.Generate(ctx, generator.Request{
		GenreID:           story.Genre,
		PersonalityTraits: story.TraitList(),
		Character:         story.Character,
		PreviousContent:   story.Content,
		LastChoice:        &generator.LastChoice{ID: choice.ID, Text: choice.Text},
		ChoiceHistory:     story.ChoiceHistory,
		IsMultiplayer:     true,
	})
	if err != nil {
		s.Logger.Error("Story continuation failed", zap.String("roomCode", room.RoomCode), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	record := models.ChoiceRecord{SegmentIndex: story.CurrentChoiceIndex, ChoiceID: choice.ID}
	if seg.LastChoiceEvaluation != nil {
		record.Quality = seg.LastChoiceEvaluation.Quality
	}
	story.Content = seg.Content
	story.Choices = seg.Choices
	story.CurrentChoiceIndex++
	story.IsStoryComplete = seg.IsStoryComplete
	story.ChoiceHistory = append(story.ChoiceHistory, record)
	if err := s.Stories.Save(ctx, story); err != nil {
		return nil, err
	}

	// 生成中に投票やチャットが入っているかもしれないので読み直す
	room, err = s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	room.ChoiceVotes.Clear()
	room.TiedChoicesForVoting = nil
	room.CurrentChoiceIndex = story.CurrentChoiceIndex
	room.IsProcessing = false
	room.SetEvaluation(seg.LastChoiceEvaluation)
	if story.IsStoryComplete {
		if err := lifecycle.Transition(room, models.StatusCompleted); err != nil {
			return nil, err
		}
		s.fanOutCopies(ctx, room, story)
	}
	if err := s.Rooms.Save(ctx, room); err != nil {
		return nil, err
	}

	return &ChoiceOutcome{
		Story: &StoryExcerpt{
			Content:            story.Content,
			Choices:            story.Choices,
			CurrentChoiceIndex: story.CurrentChoiceIndex,
			IsStoryComplete:    story.IsStoryComplete,
		},
		LastChoiceEvaluation: seg.LastChoiceEvaluation,
	}, nil
}

// resetProcessing clears IsProcessing on a best-effort basis.
func (s *Service) resetProcessing(ctx context.Context, code string) {
	room, err := s.Rooms.LoadByCode(ctx, code)
	if err != nil {
		s.Logger.Error("Failed to reload room to reset processing flag", zap.String("roomCode", code), zap.Error(err))
		return
	}
	if !room.IsProcessing {
		return
	}
	room.IsProcessing = false
	if err := s.Rooms.Save(ctx, room); err != nil {
		s.Logger.Error("Failed to reset processing flag", zap.String("roomCode", code), zap.Error(err))
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
