package votes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCast(t *testing.T) {
	t.Run("same vote twice leaves tally unchanged", func(t *testing.T) {
		var b Ballot
		b.Cast("fantasy", "u1")
		before := b.Tally()
		b.Cast("fantasy", "u1")
		after := b.Tally()

		assert.Equal(t, before.Counts, after.Counts)
		assert.Equal(t, []string{"u1"}, b["fantasy"])
	})

	t.Run("switching moves the voter", func(t *testing.T) {
		b := Ballot{}
		b.Cast("a", "u1")
		b.Cast("a", "u2")
		b.Cast("b", "u1")

		assert.Equal(t, []string{"u2"}, b["a"])
		assert.Equal(t, []string{"u1"}, b["b"])
		assert.Equal(t, 2, b.Distinct())
	})

	t.Run("switching away from a lone vote drops the option", func(t *testing.T) {
		b := Ballot{}
		b.Cast("a", "u1")
		b.Cast("b", "u1")

		_, ok := b["a"]
		assert.False(t, ok)
		assert.Equal(t, []string{"b"}, b.Options())
	})
}

func TestRemove(t *testing.T) {
	b := Ballot{"a": {"u1", "u2"}, "b": {"u3"}}

	assert.True(t, b.Remove("u3"))
	assert.False(t, b.Remove("nobody"))
	assert.Equal(t, Ballot{"a": {"u1", "u2"}}, b)
}

func TestVoteOf(t *testing.T) {
	b := Ballot{"a": {"u1"}, "b": {"u2"}}

	option, ok := b.VoteOf("u2")
	require.True(t, ok)
	assert.Equal(t, "b", option)

	_, ok = b.VoteOf("u9")
	assert.False(t, ok)
}

func TestTally(t *testing.T) {
	testCases := []struct {
		name      string
		ballot    Ballot
		max       int
		winner    string
		tiedAtMax []string
		tied      bool
	}{
		{
			name:   "empty ballot has no winner",
			ballot: Ballot{},
		},
		{
			name:      "single leader",
			ballot:    Ballot{"c1": {"u1", "u2"}, "c2": {"u3"}},
			max:       2,
			winner:    "c1",
			tiedAtMax: []string{"c1"},
		},
		{
			name:      "two-way tie",
			ballot:    Ballot{"c2": {"u2"}, "c1": {"u1"}},
			max:       1,
			winner:    "c1",
			tiedAtMax: []string{"c1", "c2"},
			tied:      true,
		},
		{
			name:      "tie at the top ignores lower options",
			ballot:    Ballot{"c1": {"u1", "u2"}, "c2": {"u3", "u4"}, "c3": {"u5"}},
			max:       2,
			winner:    "c1",
			tiedAtMax: []string{"c1", "c2"},
			tied:      true,
		},
		{
			name:      "duplicate voter entries count once",
			ballot:    Ballot{"c1": {"u1", "u1"}, "c2": {"u2"}},
			max:       1,
			winner:    "c1",
			tiedAtMax: []string{"c1", "c2"},
			tied:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.ballot.Tally()
			assert.Equal(t, tc.max, res.Max)
			assert.Equal(t, tc.winner, res.Winner)
			assert.Equal(t, tc.tiedAtMax, res.TiedAtMax)
			assert.Equal(t, tc.tied, res.Tied())
		})
	}
}

func TestQuorumMet(t *testing.T) {
	t.Run("zero votes never meets a positive quorum", func(t *testing.T) {
		b := Ballot{}
		for eligible := 1; eligible < 5; eligible++ {
			assert.False(t, b.QuorumMet(eligible))
		}
	})

	t.Run("counts distinct voters not entries", func(t *testing.T) {
		b := Ballot{"a": {"u1"}, "b": {"u1"}}
		assert.False(t, b.QuorumMet(2))
		assert.True(t, b.QuorumMet(1))
	})

	t.Run("all eligible voted", func(t *testing.T) {
		b := Ballot{}
		b.Cast("fantasy", "host")
		b.Cast("fantasy", "p1")
		assert.True(t, b.QuorumMet(2))
	})
}

func TestRestrict(t *testing.T) {
	b := Ballot{"c1": {"u1"}, "c2": {"u2"}, "c3": {"u3"}}

	r := b.Restrict([]string{"c1", "c3", "missing"})
	assert.Equal(t, Ballot{"c1": {"u1"}, "c3": {"u3"}}, r)

	r["c1"][0] = "changed"
	assert.Equal(t, "u1", b["c1"][0])
}

func TestValueScan(t *testing.T) {
	b := Ballot{"c1": {"u1", "u2"}}
	v, err := b.Value()
	require.NoError(t, err)

	var got Ballot
	require.NoError(t, got.Scan(v))
	assert.Equal(t, b, got)

	var empty Ballot
	require.NoError(t, empty.Scan([]byte("null")))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
