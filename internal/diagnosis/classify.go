package diagnosis

import "kb-diagnosis-service/internal/domain"

// Kind labels a classified edge.
type Kind string

const (
	KindCorrect   Kind = "correct"
	KindExcessive Kind = "excessive"
	KindNeutral   Kind = "neutral"
	KindMissing   Kind = "missing"
)

// ClassifiedEdge is either a learner edge instance (correct, excessive or
// neutral) or a goal relation the learner did not draw (missing). Missing
// entries have no Edge, only the Missing key.
type ClassifiedEdge struct {
	Kind    Kind
	Edge    domain.Edge
	Missing domain.EdgeKey
}

// ID is the learner edge id, or a placeholder derived from the pair for
// missing entries.
func (c ClassifiedEdge) ID() string {
	if c.Kind == KindMissing {
		return "missing-" + c.Missing.Source + "-" + c.Missing.Target
	}
	return c.Edge.ID
}

// Key returns the (source, target) pair of the entry.
func (c ClassifiedEdge) Key() domain.EdgeKey {
	if c.Kind == KindMissing {
		return c.Missing
	}
	return c.Edge.Key()
}

// Classify labels every learner edge and appends one entry per missing goal
// relation.
func Classify(goal, learner []domain.Edge) []ClassifiedEdge {
	return ClassifyWith(Compare(goal, learner), learner)
}

// ClassifyWith labels learner edges against an existing diagnosis result.
// Learner edges whose pair the result does not mention are neutral; that only
// happens when the result was computed from different edges, e.g. a stored
// diagnosis of an earlier attempt.
//
// The first learner instance of a correct pair is correct; later instances of
// the same pair are excessive.
func ClassifyWith(result domain.DiagnosisResult, learner []domain.Edge) []ClassifiedEdge {
	excessive := refSet(result.Excessive)
	correct := refSet(result.Correct)
	matched := make(map[domain.EdgeKey]bool, len(correct))

	out := make([]ClassifiedEdge, 0, len(learner)+len(result.Missing))
	for _, e := range learner {
		key := e.Key()
		kind := KindNeutral
		switch {
		case excessive[key]:
			kind = KindExcessive
		case correct[key] && matched[key]:
			kind = KindExcessive
		case correct[key]:
			kind = KindCorrect
			matched[key] = true
		}
		out = append(out, ClassifiedEdge{Kind: kind, Edge: e})
	}
	for _, m := range result.Missing {
		out = append(out, ClassifiedEdge{
			Kind:    KindMissing,
			Missing: domain.EdgeKey{Source: m.Source, Target: m.Target},
		})
	}
	return out
}

// Counts tallies classified edges by kind.
type Counts struct {
	Correct   int `json:"correct"`
	Excessive int `json:"excessive"`
	Neutral   int `json:"neutral"`
	Missing   int `json:"missing"`
}

// Count summarizes a classification.
func Count(edges []ClassifiedEdge) Counts {
	var c Counts
	for _, e := range edges {
		switch e.Kind {
		case KindCorrect:
			c.Correct++
		case KindExcessive:
			c.Excessive++
		case KindNeutral:
			c.Neutral++
		case KindMissing:
			c.Missing++
		}
	}
	return c
}

func refSet(refs []domain.EdgeRef) map[domain.EdgeKey]bool {
	set := make(map[domain.EdgeKey]bool, len(refs))
	for _, r := range refs {
		set[domain.EdgeKey{Source: r.Source, Target: r.Target}] = true
	}
	return set
}
