package models

import (
	"fmt"
	"sort"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Choice is one option offered at the end of a story segment.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ChoiceRecord records which choice resolved a segment.
type ChoiceRecord struct {
	SegmentIndex int    `json:"segmentIndex"`
	ChoiceID     string `json:"choiceId"`
	Quality      string `json:"quality,omitempty"`
}

// Story モデルの定義
//
// Multiplayer stories carry the room code; on completion every member gets an
// independently owned copy with the same code.
type Story struct {
	gorm.Model
	UserID             string `gorm:"index;not null"` // owner
	Title              string
	Genre              string
	Character          string
	Content            string                            `gorm:"type:text"`
	Choices            datatypes.JSONSlice[Choice]       `gorm:"type:jsonb"`
	CurrentChoiceIndex int
	PersonalityTraits  datatypes.JSONMap                 `gorm:"type:jsonb"`
	ChoiceHistory      datatypes.JSONSlice[ChoiceRecord] `gorm:"type:jsonb"`
	IsStoryComplete    bool
	IsMultiplayer      bool
	RoomCode           string `gorm:"size:6;index"`
}

// FindChoice returns the current choice with the given id.
func (s *Story) FindChoice(id string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// TraitList flattens the stored traits into their values, ordered by trait name.
func (s *Story) TraitList() []string {
	keys := make([]string, 0, len(s.PersonalityTraits))
	for k := range s.PersonalityTraits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	traits := make([]string, 0, len(keys))
	for _, k := range keys {
		traits = append(traits, fmt.Sprint(s.PersonalityTraits[k]))
	}
	return traits
}

// Clone returns a deep copy of the story.
func (s *Story) Clone() *Story {
	out := *s
	out.Choices = append(datatypes.JSONSlice[Choice](nil), s.Choices...)
	out.ChoiceHistory = append(datatypes.JSONSlice[ChoiceRecord](nil), s.ChoiceHistory...)
	if s.PersonalityTraits != nil {
		out.PersonalityTraits = make(datatypes.JSONMap, len(s.PersonalityTraits))
		for k, v := range s.PersonalityTraits {
			out.PersonalityTraits[k] = v
		}
	}
	return &out
}
