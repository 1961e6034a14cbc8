// Package lifecycle enforces the room state machine and the membership and
// voting rules applied to a loaded room before it is saved.
package lifecycle

import (
	"fmt"

	"storyserver/models"
)

var transitions = map[models.RoomStatus][]models.RoomStatus{
	models.StatusWaiting:     {models.StatusVotingGenre},
	models.StatusVotingGenre: {models.StatusPlaying},
	models.StatusPlaying:     {models.StatusPlaying, models.StatusCompleted},
}

// CanTransition reports whether a room may move from one status to another.
func CanTransition(from, to models.RoomStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the room to status to, rejecting moves the state machine does
// not allow. completed has no outgoing moves.
func Transition(r *models.Room, to models.RoomStatus) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Status, to)
	}
	r.Status = to
	return nil
}

// RequireStatus fails unless the room is in one of the given statuses.
func RequireStatus(r *models.Room, allowed ...models.RoomStatus) error {
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	if r.Status == models.StatusCompleted {
		return ErrRoomCompleted
	}
	return fmt.Errorf("%w: room is %s", ErrWrongStatus, r.Status)
}
