package memory

import (
	"context"
	"sync"
	"time"

	"kb-diagnosis-service/internal/domain"
)

// Store is an in-memory implementation of the app repositories. A single
// mutex makes each status transition and its diagnosis insert atomic.
type Store struct {
	mu          sync.RWMutex
	goalMaps    map[string]domain.GoalMap
	assignments map[string]domain.Assignment
	users       map[string]domain.User
	learnerMaps map[string]domain.LearnerMap // by id
	byOwner     map[ownerKey]string          // (assignment, user) -> learner map id
	diagnoses   []domain.Diagnosis
}

type ownerKey struct {
	assignmentID string
	userID       string
}

func NewStore() *Store {
	return &Store{
		goalMaps:    make(map[string]domain.GoalMap),
		assignments: make(map[string]domain.Assignment),
		users:       make(map[string]domain.User),
		learnerMaps: make(map[string]domain.LearnerMap),
		byOwner:     make(map[ownerKey]string),
	}
}

func (s *Store) PutGoalMap(gm domain.GoalMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goalMaps[gm.ID] = gm
}

func (s *Store) PutAssignment(a domain.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
}

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// LoadGoalMap lets the store back a GoalMapRepository cache.
func (s *Store) LoadGoalMap(_ context.Context, goalMapID string) (domain.GoalMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gm, ok := s.goalMaps[goalMapID]
	if !ok {
		return domain.GoalMap{}, domain.ErrGoalMapNotFound
	}
	return gm, nil
}

func (s *Store) GetGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error) {
	return s.LoadGoalMap(ctx, goalMapID)
}

func (s *Store) GetAssignment(_ context.Context, assignmentID string) (domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	return a, nil
}

func (s *Store) GetLearnerMap(_ context.Context, assignmentID, userID string) (domain.LearnerMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerKey{assignmentID, userID}]
	if !ok {
		return domain.LearnerMap{}, domain.ErrLearnerMapNotFound
	}
	return snapshot(s.learnerMaps[id]), nil
}

func (s *Store) SaveLearnerMap(_ context.Context, lm domain.LearnerMap) (domain.LearnerMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey{lm.AssignmentID, lm.UserID}
	if id, ok := s.byOwner[key]; ok {
		existing := s.learnerMaps[id]
		if existing.Status != domain.StatusDraft {
			return domain.LearnerMap{}, domain.ErrAlreadySubmitted
		}
		existing.Nodes = cloneNodes(lm.Nodes)
		existing.Edges = cloneEdges(lm.Edges)
		existing.ControlText = lm.ControlText
		existing.UpdatedAt = lm.UpdatedAt
		s.learnerMaps[id] = existing
		return snapshot(existing), nil
	}

	lm.Nodes = cloneNodes(lm.Nodes)
	lm.Edges = cloneEdges(lm.Edges)
	s.learnerMaps[lm.ID] = lm
	s.byOwner[key] = lm.ID
	return snapshot(lm), nil
}

func (s *Store) SubmitLearnerMap(_ context.Context, learnerMapID string, attempt int, at time.Time, diag *domain.Diagnosis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lm, ok := s.learnerMaps[learnerMapID]
	if !ok {
		return domain.ErrLearnerMapNotFound
	}
	if lm.Status != domain.StatusDraft || lm.Attempt != attempt {
		return domain.ErrAlreadySubmitted
	}
	submittedAt := at
	lm.Status = domain.StatusSubmitted
	lm.SubmittedAt = &submittedAt
	lm.UpdatedAt = at
	s.learnerMaps[learnerMapID] = lm
	if diag != nil {
		s.diagnoses = append(s.diagnoses, *diag)
	}
	return nil
}

func (s *Store) StartNewAttempt(_ context.Context, learnerMapID string, attempt int, at time.Time) (domain.LearnerMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lm, ok := s.learnerMaps[learnerMapID]
	if !ok {
		return domain.LearnerMap{}, domain.ErrNoPreviousAttempt
	}
	if lm.Status != domain.StatusSubmitted || lm.Attempt != attempt {
		return domain.LearnerMap{}, domain.ErrPreviousAttemptNotSubmitted
	}
	lm.Status = domain.StatusDraft
	lm.Attempt++
	lm.SubmittedAt = nil
	lm.UpdatedAt = at
	s.learnerMaps[learnerMapID] = lm
	return snapshot(lm), nil
}

func (s *Store) ListLearnerMaps(_ context.Context, assignmentID string) ([]domain.LearnerMap, error) {
	return s.filterLearnerMaps(assignmentID, func(domain.LearnerMap) bool { return true }), nil
}

func (s *Store) ListSubmittedLearnerMaps(_ context.Context, assignmentID string) ([]domain.LearnerMap, error) {
	return s.filterLearnerMaps(assignmentID, func(lm domain.LearnerMap) bool { return lm.Status.Final() }), nil
}

func (s *Store) ListDiagnoses(_ context.Context, assignmentID string) ([]domain.Diagnosis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Diagnosis, 0)
	for _, d := range s.diagnoses {
		if lm, ok := s.learnerMaps[d.LearnerMapID]; ok && lm.AssignmentID == assignmentID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListLearnerMapDiagnoses(_ context.Context, learnerMapID string) ([]domain.Diagnosis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Diagnosis, 0)
	for _, d := range s.diagnoses {
		if d.LearnerMapID == learnerMapID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			names[id] = u.Name
		}
	}
	return names, nil
}

func (s *Store) filterLearnerMaps(assignmentID string, keep func(domain.LearnerMap) bool) []domain.LearnerMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LearnerMap, 0)
	for _, lm := range s.learnerMaps {
		if lm.AssignmentID == assignmentID && keep(lm) {
			out = append(out, snapshot(lm))
		}
	}
	return out
}

// snapshot copies lm so callers cannot reach the stored slices.
func snapshot(lm domain.LearnerMap) domain.LearnerMap {
	lm.Nodes = cloneNodes(lm.Nodes)
	lm.Edges = cloneEdges(lm.Edges)
	if lm.SubmittedAt != nil {
		at := *lm.SubmittedAt
		lm.SubmittedAt = &at
	}
	return lm
}

func cloneNodes(nodes []domain.Node) []domain.Node {
	return append([]domain.Node(nil), nodes...)
}

func cloneEdges(edges []domain.Edge) []domain.Edge {
	return append([]domain.Edge(nil), edges...)
}
