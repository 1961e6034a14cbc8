package screens

import (
	"time"

	"storyserver/models"
	"storyserver/multiplayer/votes"
)

// HostNotification tells clients who just became host.
type HostNotification struct {
	UserID string `json:"userId"`
}

// StoryView is the story as shown to room members.
type StoryView struct {
	ID                 uint            `json:"id"`
	Title              string          `json:"title"`
	Genre              string          `json:"genre"`
	Character          string          `json:"character,omitempty"`
	Content            string          `json:"content"`
	Choices            []models.Choice `json:"choices"`
	CurrentChoiceIndex int             `json:"currentChoiceIndex"`
	IsStoryComplete    bool            `json:"isStoryComplete"`
}

// RoomView はポーリングで返すルームの状態
type RoomView struct {
	RoomCode             string                   `json:"roomCode"`
	HostID               string                   `json:"hostId"`
	HostActive           bool                     `json:"hostActive"`
	IsHost               bool                     `json:"isHost"`
	Participants         []string                 `json:"participants"`
	Status               models.RoomStatus        `json:"status"`
	GenreVotes           map[string][]string      `json:"genreVotes"`
	SelectedGenre        string                   `json:"selectedGenre"`
	StoryID              uint                     `json:"storyId,omitempty"`
	ChoiceVotes          map[string][]string      `json:"choiceVotes"`
	TiedChoicesForVoting []string                 `json:"tiedChoicesForVoting"`
	CurrentChoiceIndex   int                      `json:"currentChoiceIndex"`
	IsProcessing         bool                     `json:"isProcessing"`
	LastChoiceEvaluation *models.ChoiceEvaluation `json:"lastChoiceEvaluation"`
	Messages             []models.ChatMessage     `json:"messages"`
	NewHostNotification  *HostNotification        `json:"newHostNotification"`
	Story                *StoryView               `json:"story,omitempty"`
	CreatedAt            time.Time                `json:"createdAt"`
	UpdatedAt            time.Time                `json:"updatedAt"`
}

func newRoomView(room *models.Room, story *models.Story, viewerID string) RoomView {
	view := RoomView{
		RoomCode:             room.RoomCode,
		HostID:               room.HostID,
		HostActive:           room.HostActive,
		IsHost:               room.HostID == viewerID,
		Participants:         nonNil(room.Participants),
		Status:               room.Status,
		GenreVotes:           plain(room.GenreVotes),
		SelectedGenre:        room.SelectedGenre,
		StoryID:              room.StoryID,
		ChoiceVotes:          plain(room.ChoiceVotes),
		TiedChoicesForVoting: nonNil(room.TiedChoicesForVoting),
		CurrentChoiceIndex:   room.CurrentChoiceIndex,
		IsProcessing:         room.IsProcessing,
		LastChoiceEvaluation: room.Evaluation(),
		Messages:             append([]models.ChatMessage{}, room.Messages...),
		CreatedAt:            room.CreatedAt,
		UpdatedAt:            room.UpdatedAt,
	}
	if room.NewHostUserID != "" {
		view.NewHostNotification = &HostNotification{UserID: room.NewHostUserID}
	}
	if story != nil {
		view.Story = newStoryView(story)
	}
	return view
}

func newStoryView(story *models.Story) *StoryView {
	return &StoryView{
		ID:                 story.ID,
		Title:              story.Title,
		Genre:              story.Genre,
		Character:          story.Character,
		Content:            story.Content,
		Choices:            append([]models.Choice{}, story.Choices...),
		CurrentChoiceIndex: story.CurrentChoiceIndex,
		IsStoryComplete:    story.IsStoryComplete,
	}
}

// plain converts a ballot into a map that always encodes as an object.
func plain(b votes.Ballot) map[string][]string {
	out := make(map[string][]string, len(b))
	for option, voters := range b {
		out[option] = append([]string{}, voters...)
	}
	return out
}

func nonNil(list []string) []string {
	return append([]string{}, list...)
}
