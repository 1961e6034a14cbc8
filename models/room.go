package models

import (
	"time"

	"storyserver/multiplayer/votes"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RoomStatus is the lifecycle state of a multiplayer room.
type RoomStatus string

const (
	StatusWaiting     RoomStatus = "waiting"
	StatusVotingGenre RoomStatus = "voting-genre"
	StatusPlaying     RoomStatus = "playing"
	StatusCompleted   RoomStatus = "completed"
)

// MaxChatMessages bounds the chat log kept on a room.
const MaxChatMessages = 100

// ChatMessage is one entry of the room chat log.
type ChatMessage struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ChoiceEvaluation is the generator's verdict on the last resolved choice.
type ChoiceEvaluation struct {
	Quality string `json:"quality"`
	Message string `json:"message"`
}

// Room モデルの定義
//
// A room is stored as one row and always saved whole, so concurrent writers
// overwrite each other (last write wins).
type Room struct {
	gorm.Model
	RoomCode     string                      `gorm:"size:6;uniqueIndex;not null"`
	HostID       string                      `gorm:"not null"`
	HostActive   bool                        `gorm:"not null"`
	Participants datatypes.JSONSlice[string] `gorm:"type:jsonb"` // host excluded
	Status       RoomStatus                  `gorm:"size:16;not null"`

	GenreVotes    votes.Ballot `gorm:"type:jsonb;not null;default:'{}'"`
	SelectedGenre string
	StoryID       uint

	ChoiceVotes          votes.Ballot                `gorm:"type:jsonb;not null;default:'{}'"`
	TiedChoicesForVoting datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CurrentChoiceIndex   int
	IsProcessing         bool
	LastEvaluation       datatypes.JSONType[*ChoiceEvaluation] `gorm:"type:jsonb"`

	Messages datatypes.JSONSlice[ChatMessage] `gorm:"type:jsonb"`

	NewHostUserID      string
	BlockedRejoinUsers datatypes.JSONSlice[string] `gorm:"type:jsonb"`
}

// Evaluation returns the last choice evaluation, or nil.
func (r *Room) Evaluation() *ChoiceEvaluation {
	return r.LastEvaluation.Data()
}

// SetEvaluation replaces the last choice evaluation; nil clears it.
func (r *Room) SetEvaluation(e *ChoiceEvaluation) {
	r.LastEvaluation = datatypes.NewJSONType(e)
}

// InTieBreaker reports whether a restricted re-vote is in progress.
func (r *Room) InTieBreaker() bool {
	return len(r.TiedChoicesForVoting) > 0
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	out := *r
	out.Participants = append(datatypes.JSONSlice[string](nil), r.Participants...)
	out.GenreVotes = r.GenreVotes.Clone()
	out.ChoiceVotes = r.ChoiceVotes.Clone()
	out.TiedChoicesForVoting = append(datatypes.JSONSlice[string](nil), r.TiedChoicesForVoting...)
	out.Messages = append(datatypes.JSONSlice[ChatMessage](nil), r.Messages...)
	out.BlockedRejoinUsers = append(datatypes.JSONSlice[string](nil), r.BlockedRejoinUsers...)
	if e := r.Evaluation(); e != nil {
		cp := *e
		out.SetEvaluation(&cp)
	}
	return &out
}
