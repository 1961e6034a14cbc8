// Package votes holds the ballot container shared by genre and choice voting.
//
// A Ballot maps an option id to the voters who picked it. A voter appears under at
// most one option; Cast and Remove are the only ways voters get in or out, and an
// option whose voter list becomes empty is dropped.
package votes

import (
	"database/sql/driver"
	"sort"

	"gorm.io/datatypes"
)

// Ballot maps option id to voter ids.
type Ballot map[string][]string

// Result is the outcome of tallying a ballot.
type Result struct {
	Counts    map[string]int
	Max       int
	Winner    string   // first option at Max in option id order, empty when Max is 0
	TiedAtMax []string // every option at Max, sorted; empty when Max is 0
	Voters    int      // distinct voters
}

// Tied reports whether more than one option shares the top count.
func (r Result) Tied() bool {
	return len(r.TiedAtMax) > 1
}

// Cast records voter's vote for option, dropping any vote the voter held before.
func (b *Ballot) Cast(option, voter string) {
	if *b == nil {
		*b = Ballot{}
	}
	b.Remove(voter)
	(*b)[option] = append((*b)[option], voter)
}

// Remove strips voter from every option. It reports whether anything was removed.
func (b *Ballot) Remove(voter string) bool {
	removed := false
	for option, voters := range *b {
		kept := voters[:0:0]
		for _, v := range voters {
			if v == voter {
				removed = true
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) == 0 {
			delete(*b, option)
		} else {
			(*b)[option] = kept
		}
	}
	return removed
}

// Clear drops every vote.
func (b *Ballot) Clear() {
	*b = Ballot{}
}

// VoteOf returns the option voter currently holds.
func (b Ballot) VoteOf(voter string) (string, bool) {
	for option, voters := range b {
		for _, v := range voters {
			if v == voter {
				return option, true
			}
		}
	}
	return "", false
}

// Options returns the option ids that hold at least one vote, sorted.
func (b Ballot) Options() []string {
	options := make([]string, 0, len(b))
	for option, voters := range b {
		if len(voters) > 0 {
			options = append(options, option)
		}
	}
	sort.Strings(options)
	return options
}

// Restrict returns a copy holding only the listed options.
func (b Ballot) Restrict(options []string) Ballot {
	out := Ballot{}
	for _, option := range options {
		if voters, ok := b[option]; ok && len(voters) > 0 {
			out[option] = append([]string(nil), voters...)
		}
	}
	return out
}

// Distinct counts distinct voters across all options. Duplicates are folded even
// though Cast never produces them, since ballots are also read back from storage.
func (b Ballot) Distinct() int {
	seen := make(map[string]struct{})
	for _, voters := range b {
		for _, v := range voters {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// QuorumMet reports whether at least eligible distinct voters have voted.
func (b Ballot) QuorumMet(eligible int) bool {
	return b.Distinct() >= eligible
}

// Tally counts votes per option.
func (b Ballot) Tally() Result {
	res := Result{Counts: make(map[string]int, len(b)), Voters: b.Distinct()}
	for _, option := range b.Options() {
		n := distinctCount(b[option])
		res.Counts[option] = n
		switch {
		case n > res.Max:
			res.Max = n
			res.Winner = option
			res.TiedAtMax = []string{option}
		case n == res.Max && n > 0:
			res.TiedAtMax = append(res.TiedAtMax, option)
		}
	}
	return res
}

// Clone returns a deep copy.
func (b Ballot) Clone() Ballot {
	if b == nil {
		return nil
	}
	out := make(Ballot, len(b))
	for option, voters := range b {
		out[option] = append([]string(nil), voters...)
	}
	return out
}

func distinctCount(voters []string) int {
	seen := make(map[string]struct{}, len(voters))
	for _, v := range voters {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Value stores the ballot as a JSON object.
func (b Ballot) Value() (driver.Value, error) {
	if b == nil {
		b = Ballot{}
	}
	return datatypes.NewJSONType(map[string][]string(b)).Value()
}

// Scan reads a ballot stored by Value.
func (b *Ballot) Scan(src interface{}) error {
	var j datatypes.JSONType[map[string][]string]
	if err := j.Scan(src); err != nil {
		return err
	}
	*b = Ballot(j.Data())
	if *b == nil {
		*b = Ballot{}
	}
	return nil
}

// GormDataType tells gorm to treat the ballot as a JSON column.
func (Ballot) GormDataType() string {
	return "json"
}
