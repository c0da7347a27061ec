package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"kb-diagnosis-service/internal/diagnosis"
	"kb-diagnosis-service/internal/domain"
	"kb-diagnosis-service/internal/logger"
)

// Submission outcomes reported to the Recorder.
const (
	OutcomeSubmitted        = "submitted"
	OutcomeAlreadySubmitted = "already_submitted"
	OutcomeNotFound         = "not_found"
	OutcomeError            = "error"
)

// SubmitResult is returned by a successful submission.
type SubmitResult struct {
	DiagnosisID    string
	Result         domain.DiagnosisResult
	Classification []diagnosis.ClassifiedEdge
}

// DiagnosisService runs the learner map submission workflow.
type DiagnosisService struct {
	repos    Repositories
	recorder Recorder
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewDiagnosisService(repos Repositories, log *logger.Logger, recorder Recorder) *DiagnosisService {
	return NewDiagnosisServiceWithClock(repos, log, recorder, time.Now)
}

// NewDiagnosisServiceWithClock allows deterministic timestamps in tests.
func NewDiagnosisServiceWithClock(repos Repositories, log *logger.Logger, recorder Recorder, now func() time.Time) *DiagnosisService {
	if log == nil {
		log = logger.Nop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &DiagnosisService{
		repos:    repos,
		recorder: recorder,
		log:      log.With("service", "DiagnosisService"),
		now:      func() time.Time { return now().UTC() },
		newID:    uuid.NewString,
	}
}

// Submit diagnoses the user's current draft for the assignment and marks it
// submitted. Only one submission per attempt can succeed.
func (s *DiagnosisService) Submit(ctx context.Context, userID, assignmentID string) (SubmitResult, error) {
	res, err := s.submit(ctx, userID, assignmentID)
	s.recorder.ObserveSubmission(outcome(err))
	if err != nil {
		s.log.Warn("submit rejected", "userId", userID, "assignmentId", assignmentID, "error", err)
		return SubmitResult{}, err
	}
	s.recorder.ObserveScore(res.Result.Score)
	s.log.Info("learner map submitted",
		"userId", userID,
		"assignmentId", assignmentID,
		"diagnosisId", res.DiagnosisID,
		"score", res.Result.Score,
	)
	return res, nil
}

func (s *DiagnosisService) submit(ctx context.Context, userID, assignmentID string) (SubmitResult, error) {
	lm, err := s.repos.LearnerMaps.GetLearnerMap(ctx, assignmentID, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	if lm.Status != domain.StatusDraft {
		return SubmitResult{}, domain.ErrAlreadySubmitted
	}

	goal, err := s.repos.GoalMaps.GetGoalMap(ctx, lm.GoalMapID)
	if err != nil {
		return SubmitResult{}, err
	}

	result := diagnosis.Compare(goal.Edges, lm.Edges)
	now := s.now()
	diag := domain.Diagnosis{
		ID:             s.newID(),
		GoalMapID:      goal.ID,
		LearnerMapID:   lm.ID,
		Attempt:        lm.Attempt,
		Score:          result.Score,
		Correct:        result.Correct,
		Missing:        result.Missing,
		Excessive:      result.Excessive,
		TotalGoalEdges: result.TotalGoalEdges,
		CreatedAt:      now,
	}
	if err := s.repos.LearnerMaps.SubmitLearnerMap(ctx, lm.ID, lm.Attempt, now, &diag); err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		DiagnosisID:    diag.ID,
		Result:         result,
		Classification: diagnosis.ClassifyWith(result, lm.Edges),
	}, nil
}

// StartNewAttempt reopens a submitted learner map as a draft of the next
// attempt. Earlier diagnoses are kept.
func (s *DiagnosisService) StartNewAttempt(ctx context.Context, userID, assignmentID string) (domain.LearnerMap, error) {
	lm, err := s.repos.LearnerMaps.GetLearnerMap(ctx, assignmentID, userID)
	if errors.Is(err, domain.ErrLearnerMapNotFound) {
		return domain.LearnerMap{}, domain.ErrNoPreviousAttempt
	}
	if err != nil {
		return domain.LearnerMap{}, err
	}
	if lm.Status != domain.StatusSubmitted {
		return domain.LearnerMap{}, domain.ErrPreviousAttemptNotSubmitted
	}

	updated, err := s.repos.LearnerMaps.StartNewAttempt(ctx, lm.ID, lm.Attempt, s.now())
	if err != nil {
		return domain.LearnerMap{}, err
	}
	s.log.Info("new attempt started", "userId", userID, "assignmentId", assignmentID, "attempt", updated.Attempt)
	return updated, nil
}

// SaveDraft creates the learner map on first save and replaces its graph
// while it is still a draft.
func (s *DiagnosisService) SaveDraft(ctx context.Context, userID, assignmentID string, nodes []domain.Node, edges []domain.Edge) (domain.LearnerMap, error) {
	lm, err := s.currentDraft(ctx, userID, assignmentID)
	if err != nil {
		return domain.LearnerMap{}, err
	}
	lm.Nodes = nodes
	lm.Edges = edges
	lm.UpdatedAt = s.now()
	return s.repos.LearnerMaps.SaveLearnerMap(ctx, lm)
}

// SubmitControlText submits free text for the no-map control condition. It
// follows the same terminal rules as Submit but produces no diagnosis. The
// text replaces any drafted nodes and edges.
func (s *DiagnosisService) SubmitControlText(ctx context.Context, userID, assignmentID, text string) (domain.LearnerMap, error) {
	lm, err := s.currentDraft(ctx, userID, assignmentID)
	if err != nil {
		s.recorder.ObserveSubmission(outcome(err))
		return domain.LearnerMap{}, err
	}
	now := s.now()
	lm.ControlText = text
	lm.Nodes = nil
	lm.Edges = nil
	lm.UpdatedAt = now

	lm, err = s.repos.LearnerMaps.SaveLearnerMap(ctx, lm)
	if err == nil {
		err = s.repos.LearnerMaps.SubmitLearnerMap(ctx, lm.ID, lm.Attempt, now, nil)
	}
	s.recorder.ObserveSubmission(outcome(err))
	if err != nil {
		return domain.LearnerMap{}, err
	}

	lm.Status = domain.StatusSubmitted
	lm.SubmittedAt = &now
	s.log.Info("control text submitted", "userId", userID, "assignmentId", assignmentID)
	return lm, nil
}

// History lists every diagnosis of the user's learner map, oldest attempt first.
func (s *DiagnosisService) History(ctx context.Context, userID, assignmentID string) ([]domain.Diagnosis, error) {
	lm, err := s.repos.LearnerMaps.GetLearnerMap(ctx, assignmentID, userID)
	if err != nil {
		return nil, err
	}
	diags, err := s.repos.Diagnoses.ListLearnerMapDiagnoses(ctx, lm.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Attempt != diags[j].Attempt {
			return diags[i].Attempt < diags[j].Attempt
		}
		return diags[i].CreatedAt.Before(diags[j].CreatedAt)
	})
	return diags, nil
}

// currentDraft returns the user's draft, or a fresh first-attempt map when
// none exists yet.
func (s *DiagnosisService) currentDraft(ctx context.Context, userID, assignmentID string) (domain.LearnerMap, error) {
	lm, err := s.repos.LearnerMaps.GetLearnerMap(ctx, assignmentID, userID)
	switch {
	case err == nil:
		if lm.Status != domain.StatusDraft {
			return domain.LearnerMap{}, domain.ErrAlreadySubmitted
		}
		return lm, nil
	case !errors.Is(err, domain.ErrLearnerMapNotFound):
		return domain.LearnerMap{}, err
	}

	assignment, err := s.repos.Assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.LearnerMap{}, err
	}
	now := s.now()
	return domain.LearnerMap{
		ID:           s.newID(),
		AssignmentID: assignmentID,
		GoalMapID:    assignment.GoalMapID,
		UserID:       userID,
		Status:       domain.StatusDraft,
		Attempt:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSubmitted
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return OutcomeAlreadySubmitted
	case IsNotFound(err):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
