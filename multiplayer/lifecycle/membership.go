package lifecycle

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode/utf8"

	"storyserver/models"
	"storyserver/multiplayer/votes"
)

const (
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength    = 6
	MaxMessageLen = 500
)

// GenerateCode returns a random room code.
func GenerateCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeCode upper-cases and trims a user-typed room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewRoom returns a waiting room hosted by hostID. The host is not listed
// among the participants.
func NewRoom(code, hostID string) *models.Room {
	return &models.Room{
		RoomCode:    code,
		HostID:      hostID,
		HostActive:  true,
		Status:      models.StatusWaiting,
		GenreVotes:  votes.Ballot{},
		ChoiceVotes: votes.Ballot{},
	}
}

func IsHost(r *models.Room, userID string) bool {
	return r.HostID == userID
}

func IsParticipant(r *models.Room, userID string) bool {
	return contains(r.Participants, userID)
}

// IsMember reports whether userID is the host or a participant.
func IsMember(r *models.Room, userID string) bool {
	return IsHost(r, userID) || IsParticipant(r, userID)
}

// CanVote reports whether userID's vote counts: any participant, and the host
// only while active.
func CanVote(r *models.Room, userID string) bool {
	if IsParticipant(r, userID) {
		return true
	}
	return IsHost(r, userID) && r.HostActive
}

// EligibleVoters is the number of votes needed for quorum: every participant,
// plus the host while active and not already listed as a participant.
func EligibleVoters(r *models.Room) int {
	n := len(r.Participants)
	if r.HostActive && !IsParticipant(r, r.HostID) {
		n++
	}
	return n
}

// Members returns the host followed by the participants, without duplicates.
func Members(r *models.Room) []string {
	out := []string{r.HostID}
	for _, p := range r.Participants {
		if !contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// Join adds userID to the room. Joining a room one already belongs to is a
// no-op, except that a host who left comes back as active host. It reports
// whether the room changed.
//
// blockedRejoinUsers is not consulted here: users who left without saving can
// join again.
func Join(r *models.Room, userID string) (bool, error) {
	if r.Status == models.StatusCompleted {
		return false, ErrRoomCompleted
	}
	if IsHost(r, userID) {
		if r.HostActive {
			return false, nil
		}
		r.HostActive = true
		return true, nil
	}
	if IsParticipant(r, userID) {
		return false, nil
	}
	r.Participants = append(r.Participants, userID)
	return true, nil
}

// LeaveResult describes what Leave did.
type LeaveResult struct {
	WasHost  bool
	SaveCopy bool
}

// Leave removes userID from the room and strips their votes. An active host
// cannot leave while participants remain; a host leaving an otherwise empty
// room stays host but is marked inactive so the room survives for a rejoin.
// Unless saveAndExit is set the user is recorded in blockedRejoinUsers.
//
// StoryID and Status are left as they are.
func Leave(r *models.Room, userID string, saveAndExit bool) (LeaveResult, error) {
	if !IsMember(r, userID) {
		return LeaveResult{}, ErrNotMember
	}

	res := LeaveResult{WasHost: IsHost(r, userID), SaveCopy: saveAndExit}
	if res.WasHost {
		if len(r.Participants) > 0 && r.HostActive {
			return LeaveResult{}, ErrHostMustTransfer
		}
		r.HostActive = false
	} else {
		r.Participants = remove(r.Participants, userID)
	}

	r.GenreVotes.Remove(userID)
	r.ChoiceVotes.Remove(userID)

	if !saveAndExit && !contains(r.BlockedRejoinUsers, userID) {
		r.BlockedRejoinUsers = append(r.BlockedRejoinUsers, userID)
	}
	return res, nil
}

// TransferHost hands the host role from callerID to newHostID, who must be a
// participant. The old host stays in the room as a participant.
func TransferHost(r *models.Room, callerID, newHostID string) error {
	if !IsHost(r, callerID) {
		return ErrNotHost
	}
	if !IsParticipant(r, newHostID) {
		return ErrNotParticipant
	}

	oldHost := r.HostID
	r.Participants = remove(r.Participants, newHostID)
	if !contains(r.Participants, oldHost) {
		r.Participants = append(r.Participants, oldHost)
	}
	r.HostID = newHostID
	r.HostActive = true
	r.NewHostUserID = newHostID
	return nil
}

// ClearHostNotification drops the new-host notice.
func ClearHostNotification(r *models.Room, userID string) error {
	if !IsMember(r, userID) {
		return ErrNotMember
	}
	r.NewHostUserID = ""
	return nil
}

// AppendMessage validates msg and appends it to the chat log, evicting the
// oldest entries beyond models.MaxChatMessages.
func AppendMessage(r *models.Room, msg models.ChatMessage) error {
	if !IsMember(r, msg.UserID) {
		return ErrNotMember
	}
	msg.Message = strings.TrimSpace(msg.Message)
	if msg.Message == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(msg.Message) > MaxMessageLen {
		return ErrMessageTooLong
	}

	r.Messages = append(r.Messages, msg)
	if over := len(r.Messages) - models.MaxChatMessages; over > 0 {
		r.Messages = append(r.Messages[:0:0], r.Messages[over:]...)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove[S ~[]string](list S, s string) S {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
