package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-diagnosis-service/internal/domain"
)

func edge(id, source, target string) domain.Edge {
	return domain.Edge{ID: id, Source: source, Target: target}
}

func TestCompareScenario(t *testing.T) {
	goal := []domain.Edge{edge("g1", "c1", "link1"), edge("g2", "link1", "c2")}
	learner := []domain.Edge{edge("l1", "c1", "link1"), edge("l2", "x", "c1")}

	got := Compare(goal, learner)

	assert.Equal(t, []domain.EdgeRef{{Source: "c1", Target: "link1", EdgeID: "g1"}}, got.Correct)
	assert.Equal(t, []domain.EdgeRef{{Source: "link1", Target: "c2", EdgeID: "g2"}}, got.Missing)
	assert.Equal(t, []domain.EdgeRef{{Source: "x", Target: "c1", EdgeID: "l2"}}, got.Excessive)
	assert.Equal(t, 0.5, got.Score)
	assert.Equal(t, 2, got.TotalGoalEdges)
}

func TestCompareEmptyGoalScoresOne(t *testing.T) {
	got := Compare(nil, []domain.Edge{edge("l1", "a", "b")})
	assert.Equal(t, 1.0, got.Score)
	assert.Zero(t, got.TotalGoalEdges)
	assert.Len(t, got.Excessive, 1)

	got = Compare(nil, nil)
	assert.Equal(t, 1.0, got.Score)
	assert.Empty(t, got.Correct)
	assert.Empty(t, got.Missing)
	assert.Empty(t, got.Excessive)
}

func TestCompareIgnoresEdgeIDs(t *testing.T) {
	goal := []domain.Edge{edge("same", "a", "b")}
	learner := []domain.Edge{edge("same", "b", "a")}

	got := Compare(goal, learner)
	assert.Empty(t, got.Correct)
	assert.Len(t, got.Missing, 1)
	assert.Len(t, got.Excessive, 1)
	assert.Equal(t, 0.0, got.Score)
}

func TestCompareIsDeterministicAcrossOrderings(t *testing.T) {
	goal := []domain.Edge{edge("g1", "a", "b"), edge("g2", "b", "c"), edge("g3", "c", "d")}
	learner := []domain.Edge{edge("l1", "c", "d"), edge("l2", "z", "a"), edge("l3", "a", "b")}
	reversed := []domain.Edge{learner[2], learner[1], learner[0]}

	first := Compare(goal, learner)
	assert.Equal(t, first, Compare(goal, learner))

	other := Compare(goal, reversed)
	assert.Equal(t, first.Correct, other.Correct)
	assert.Equal(t, first.Missing, other.Missing)
	assert.Equal(t, first.Score, other.Score)
	assert.ElementsMatch(t, first.Excessive, other.Excessive)
}

func TestComparePartitionAndBounds(t *testing.T) {
	cases := []struct {
		name    string
		goal    []domain.Edge
		learner []domain.Edge
	}{
		{"empty", nil, nil},
		{"no learner", []domain.Edge{edge("g1", "a", "b")}, nil},
		{"duplicate goal pair", []domain.Edge{edge("g1", "a", "b"), edge("g2", "a", "b")}, []domain.Edge{edge("l1", "a", "b")}},
		{"duplicate learner pair", []domain.Edge{edge("g1", "a", "b")}, []domain.Edge{edge("l1", "a", "b"), edge("l2", "a", "b")}},
		{"only excessive", []domain.Edge{edge("g1", "a", "b")}, []domain.Edge{edge("l1", "q", "r")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compare(tc.goal, tc.learner)
			assert.Equal(t, len(tc.goal), len(got.Correct)+len(got.Missing))
			assert.Equal(t, len(tc.goal), got.TotalGoalEdges)
			assert.GreaterOrEqual(t, got.Score, 0.0)
			assert.LessOrEqual(t, got.Score, 1.0)
		})
	}
}

func TestScoreRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 0.33, Score(1, 3))
	assert.Equal(t, 0.67, Score(2, 3))
	assert.Equal(t, 1.0, Score(0, 0))
}

func TestClassifyCoverage(t *testing.T) {
	goal := []domain.Edge{edge("g1", "c1", "link1"), edge("g2", "link1", "c2")}
	learner := []domain.Edge{edge("l1", "c1", "link1"), edge("l2", "x", "c1")}

	got := Classify(goal, learner)
	require.Len(t, got, len(learner)+1)

	assert.Equal(t, KindCorrect, got[0].Kind)
	assert.Equal(t, "l1", got[0].ID())
	assert.Equal(t, KindExcessive, got[1].Kind)
	assert.Equal(t, "l2", got[1].ID())
	assert.Equal(t, KindMissing, got[2].Kind)
	assert.Equal(t, "missing-link1-c2", got[2].ID())
	assert.Equal(t, domain.EdgeKey{Source: "link1", Target: "c2"}, got[2].Key())

	assert.Equal(t, Counts{Correct: 1, Excessive: 1, Missing: 1}, Count(got))
}

func TestClassifyDuplicateLearnerPair(t *testing.T) {
	goal := []domain.Edge{edge("g1", "a", "b")}
	learner := []domain.Edge{edge("l1", "a", "b"), edge("l2", "a", "b")}

	got := Classify(goal, learner)
	require.Len(t, got, 2)
	assert.Equal(t, KindCorrect, got[0].Kind)
	assert.Equal(t, KindExcessive, got[1].Kind)

	// The comparator still treats the pair as one correct relation.
	result := Compare(goal, learner)
	assert.Len(t, result.Correct, 1)
	assert.Empty(t, result.Excessive)
	assert.Equal(t, 1.0, result.Score)
}

func TestClassifyWithStaleResultYieldsNeutral(t *testing.T) {
	goal := []domain.Edge{edge("g1", "a", "b")}
	stored := Compare(goal, []domain.Edge{edge("l1", "a", "b")})

	current := []domain.Edge{edge("l1", "a", "b"), edge("l9", "b", "c")}
	got := ClassifyWith(stored, current)

	require.Len(t, got, 2)
	assert.Equal(t, KindCorrect, got[0].Kind)
	assert.Equal(t, KindNeutral, got[1].Kind)
}

func TestClassifyNeverNeutralForSameInputs(t *testing.T) {
	goal := []domain.Edge{edge("g1", "a", "b"), edge("g2", "b", "c")}
	learner := []domain.Edge{edge("l1", "b", "c"), edge("l2", "c", "a"), edge("l3", "b", "c")}

	for _, c := range Classify(goal, learner) {
		assert.NotEqual(t, KindNeutral, c.Kind, "edge %s", c.ID())
	}
}
