package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrNotHost           = errors.New("only the host can perform this action")
	ErrNotMember         = errors.New("you are not a member of this room")
	ErrRoomCompleted     = errors.New("this story has already been completed")
	ErrWrongStatus       = errors.New("room is not in the right state for this action")
	ErrIllegalTransition = errors.New("illegal room status transition")
	ErrHostMustTransfer  = errors.New("Transfer host to another participant before exiting")
	ErrNotParticipant    = errors.New("new host must be a participant in this room")
	ErrNoVotes           = errors.New("no votes have been cast")
	ErrGenreUndetermined = errors.New("Could not determine selected genre")
	ErrGenreAlreadySet   = errors.New("genre has already been selected")
	ErrInvalidGenre      = errors.New("invalid genre")
	ErrInvalidChoice     = errors.New("invalid choice")
	ErrMessageEmpty      = errors.New("message cannot be empty")
	ErrMessageTooLong    = errors.New("message is too long")
)

// NotAllVotedError is returned when a resolution is attempted before every
// eligible voter has voted.
type NotAllVotedError struct {
	Participants int
	Voters       int
	TieBreaker   bool
}

func (e *NotAllVotedError) Error() string {
	return fmt.Sprintf("not all participants have voted (%d of %d)", e.Voters, e.Participants)
}
