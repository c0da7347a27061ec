package app

import (
	"context"
	"time"

	"kb-diagnosis-service/internal/domain"
)

// GoalMapRepository loads goal maps (from cache/backing store).
type GoalMapRepository interface {
	GetGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error)
}

// AssignmentRepository loads assignments.
type AssignmentRepository interface {
	GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error)
}

// LearnerMapRepository abstracts learner map storage (in-memory, SQL).
type LearnerMapRepository interface {
	GetLearnerMap(ctx context.Context, assignmentID, userID string) (domain.LearnerMap, error)
	// SaveLearnerMap inserts the map, or updates nodes, edges and control text
	// of the existing (assignment, user) row. It fails with
	// domain.ErrAlreadySubmitted when the stored row is not a draft.
	SaveLearnerMap(ctx context.Context, lm domain.LearnerMap) (domain.LearnerMap, error)
	// SubmitLearnerMap moves a draft at the given attempt to submitted and
	// stores diag (if any) as one atomic step. A map that is no longer that
	// draft yields domain.ErrAlreadySubmitted and nothing is written.
	SubmitLearnerMap(ctx context.Context, learnerMapID string, attempt int, at time.Time, diag *domain.Diagnosis) error
	// StartNewAttempt moves a submitted map at the given attempt back to draft
	// with attempt+1 and no submission time, or fails with
	// domain.ErrPreviousAttemptNotSubmitted.
	StartNewAttempt(ctx context.Context, learnerMapID string, attempt int, at time.Time) (domain.LearnerMap, error)
	ListLearnerMaps(ctx context.Context, assignmentID string) ([]domain.LearnerMap, error)
	ListSubmittedLearnerMaps(ctx context.Context, assignmentID string) ([]domain.LearnerMap, error)
}

// DiagnosisRepository reads persisted diagnoses.
type DiagnosisRepository interface {
	ListDiagnoses(ctx context.Context, assignmentID string) ([]domain.Diagnosis, error)
	ListLearnerMapDiagnoses(ctx context.Context, learnerMapID string) ([]domain.Diagnosis, error)
}

// UserRepository resolves display names; unknown ids are simply absent.
type UserRepository interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Repositories bundles the ports the services depend on.
type Repositories struct {
	GoalMaps    GoalMapRepository
	Assignments AssignmentRepository
	LearnerMaps LearnerMapRepository
	Diagnoses   DiagnosisRepository
	Users       UserRepository
}

// Recorder receives workflow signals (metrics).
type Recorder interface {
	ObserveSubmission(outcome string)
	ObserveScore(score float64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string) {}
func (nopRecorder) ObserveScore(float64)     {}
