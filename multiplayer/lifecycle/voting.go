package lifecycle

import (
	"storyserver/models"
)

// CastGenreVote records userID's genre vote. A host who left must rejoin first. The first vote moves a waiting room
// into genre voting. genreID must already be validated against the catalog.
func CastGenreVote(r *models.Room, userID, genreID string) error {
	if !CanVote(r, userID) {
		return ErrNotMember
	}
	if err := RequireStatus(r, models.StatusWaiting, models.StatusVotingGenre); err != nil {
		return err
	}
	if r.Status == models.StatusWaiting {
		if err := Transition(r, models.StatusVotingGenre); err != nil {
			return err
		}
	}
	r.GenreVotes.Cast(genreID, userID)
	return nil
}

// CastChoiceVote records userID's vote for one of the story's current choices.
// During a tie-breaker only the tied choices may be voted for.
func CastChoiceVote(r *models.Room, story *models.Story, userID, choiceID string) error {
	if !CanVote(r, userID) {
		return ErrNotMember
	}
	if err := RequireStatus(r, models.StatusPlaying); err != nil {
		return err
	}
	if _, ok := story.FindChoice(choiceID); !ok {
		return ErrInvalidChoice
	}
	if r.InTieBreaker() && !contains(r.TiedChoicesForVoting, choiceID) {
		return ErrInvalidChoice
	}
	r.ChoiceVotes.Cast(choiceID, userID)
	return nil
}

// ResolveGenre picks the winning genre once every eligible voter has voted.
// A tie goes to the host's vote; if the host voted for none of the tied genres
// the genre cannot be determined.
func ResolveGenre(r *models.Room) (string, error) {
	if r.SelectedGenre != "" {
		return "", ErrGenreAlreadySet
	}
	if len(r.GenreVotes) == 0 {
		return "", ErrNoVotes
	}
	eligible := EligibleVoters(r)
	if !r.GenreVotes.QuorumMet(eligible) {
		return "", &NotAllVotedError{Participants: eligible, Voters: r.GenreVotes.Distinct()}
	}

	res := r.GenreVotes.Tally()
	if !res.Tied() {
		return res.Winner, nil
	}
	if hostVote, ok := r.GenreVotes.VoteOf(r.HostID); ok && contains(res.TiedAtMax, hostVote) {
		return hostVote, nil
	}
	return "", ErrGenreUndetermined
}
