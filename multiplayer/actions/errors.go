package actions

import (
	"errors"
	"net/http"

	"storyserver/multiplayer/lifecycle"
)

var (
	ErrRoomNotFound  = errors.New("Room not found")
	ErrStoryNotFound = errors.New("Story not found")
	ErrRateLimited   = errors.New("you are sending messages too quickly")
	// ErrChoiceMissing means the winning choice is not among the story's
	// current choices; the room and story disagree.
	ErrChoiceMissing = errors.New("selected choice not found in story")
	ErrGeneration    = errors.New("story generation failed")
	ErrNoFreeCode    = errors.New("could not allocate a room code")
)

var badRequest = []error{
	lifecycle.ErrRoomCompleted,
	lifecycle.ErrWrongStatus,
	lifecycle.ErrIllegalTransition,
	lifecycle.ErrHostMustTransfer,
	lifecycle.ErrNotParticipant,
	lifecycle.ErrNoVotes,
	lifecycle.ErrGenreUndetermined,
	lifecycle.ErrGenreAlreadySet,
	lifecycle.ErrInvalidGenre,
	lifecycle.ErrInvalidChoice,
	lifecycle.ErrMessageEmpty,
	lifecycle.ErrMessageTooLong,
}

// StatusOf maps an operation error to its HTTP status.
func StatusOf(err error) int {
	var notAll *lifecycle.NotAllVotedError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &notAll):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrNotHost), errors.Is(err, lifecycle.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrStoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
