package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func userIDs(c []Candidate) []string {
	ids := make([]string, 0, len(c))
	for _, x := range c {
		ids = append(ids, x.UserID)
	}
	return ids
}

func TestRankTeachers(t *testing.T) {
	in := []Candidate{
		{UserID: "u1", Reputation: 50, Level: 3},
		{UserID: "u2", Reputation: 90, Level: 4},
		{UserID: "u3", Reputation: 90, Level: 2},
		{UserID: "u4", Reputation: 10, Level: 1},
	}

	got := RankTeachers(in, 3)

	assert.Equal(t, []string{"u3", "u2", "u1"}, userIDs(got))
	assert.Equal(t, "u1", in[0].UserID, "input must not be reordered")
}

func TestRankLearners(t *testing.T) {
	in := []Candidate{
		{UserID: "u1", Reputation: 5, Level: 1},
		{UserID: "u2", Reputation: 40, Level: 2},
		{UserID: "u3", Reputation: 70, Level: 2},
		{UserID: "u4", Reputation: 1, Level: 2, SkillName: "b"},
		{UserID: "u4", Reputation: 1, Level: 2, SkillName: "a"},
	}

	got := RankLearners(in, 0)

	assert.Equal(t, []string{"u3", "u2", "u4", "u4", "u1"}, userIDs(got))
	assert.Equal(t, "a", got[2].SkillName)
}

func TestRankTeachers_LimitTen(t *testing.T) {
	in := make([]Candidate, 25)
	for i := range in {
		in[i] = Candidate{UserID: string(rune('a' + i)), Reputation: i}
	}

	got := RankTeachers(in, DefaultSuggestionLimit)

	assert.Len(t, got, DefaultSuggestionLimit)
	assert.Equal(t, 24, got[0].Reputation)
}
