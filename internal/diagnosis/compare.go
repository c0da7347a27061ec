// Package diagnosis compares a learner map against a goal map.
//
// Edges are matched by their ordered (source, target) pair. Multiple edges
// over the same pair are one logical relation to the comparator, while the
// classifier labels every edge instance on its own.
package diagnosis

import (
	"math"

	"kb-diagnosis-service/internal/domain"
)

// Compare diffs the learner edges against the goal edges. Each output list
// keeps the relative order of the input it was filtered from.
func Compare(goal, learner []domain.Edge) domain.DiagnosisResult {
	learnerKeys := keySet(learner)
	goalKeys := keySet(goal)

	result := domain.DiagnosisResult{
		Correct:        make([]domain.EdgeRef, 0, len(goal)),
		Missing:        make([]domain.EdgeRef, 0),
		Excessive:      make([]domain.EdgeRef, 0),
		TotalGoalEdges: len(goal),
	}
	for _, e := range goal {
		if _, ok := learnerKeys[e.Key()]; ok {
			result.Correct = append(result.Correct, ref(e))
		} else {
			result.Missing = append(result.Missing, ref(e))
		}
	}
	for _, e := range learner {
		if _, ok := goalKeys[e.Key()]; !ok {
			result.Excessive = append(result.Excessive, ref(e))
		}
	}
	result.Score = Score(len(result.Correct), result.TotalGoalEdges)
	return result
}

// Score is correct/total rounded to two decimals. An empty goal map scores 1.
func Score(correct, total int) float64 {
	if total <= 0 {
		return 1
	}
	return Round(float64(correct)/float64(total), 2)
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func keySet(edges []domain.Edge) map[domain.EdgeKey]struct{} {
	set := make(map[domain.EdgeKey]struct{}, len(edges))
	for _, e := range edges {
		set[e.Key()] = struct{}{}
	}
	return set
}

func ref(e domain.Edge) domain.EdgeRef {
	return domain.EdgeRef{Source: e.Source, Target: e.Target, EdgeID: e.ID}
}
