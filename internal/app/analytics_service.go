package app

import (
	"context"
	"errors"
	"sort"

	"kb-diagnosis-service/internal/domain"
	"kb-diagnosis-service/internal/logger"
)

// AnalyticsService aggregates diagnoses per assignment. Reads take no locks
// and may miss a submission that is still being written.
type AnalyticsService struct {
	repos Repositories
	log   *logger.Logger
}

func NewAnalyticsService(repos Repositories, log *logger.Logger) *AnalyticsService {
	if log == nil {
		log = logger.Nop()
	}
	return &AnalyticsService{repos: repos, log: log.With("service", "AnalyticsService")}
}

// AssignmentAnalytics builds per-learner rows and a summary for an assignment
// owned by teacherID. A missing assignment and one owned by someone else both
// yield domain.ErrAssignmentNotFound.
func (s *AnalyticsService) AssignmentAnalytics(ctx context.Context, teacherID, assignmentID string) (domain.AssignmentAnalytics, error) {
	assignment, err := s.repos.Assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.AssignmentAnalytics{}, err
	}
	if assignment.CreatedBy != teacherID {
		return domain.AssignmentAnalytics{}, domain.ErrAssignmentNotFound
	}

	goal, err := s.repos.GoalMaps.GetGoalMap(ctx, assignment.GoalMapID)
	if err != nil {
		return domain.AssignmentAnalytics{}, err
	}
	maps, err := s.repos.LearnerMaps.ListLearnerMaps(ctx, assignmentID)
	if err != nil {
		return domain.AssignmentAnalytics{}, err
	}
	diags, err := s.repos.Diagnoses.ListDiagnoses(ctx, assignmentID)
	if err != nil {
		return domain.AssignmentAnalytics{}, err
	}

	latest := latestAttempts(maps)
	userIDs := make([]string, 0, len(latest))
	for userID := range latest {
		userIDs = append(userIDs, userID)
	}
	names, err := s.repos.Users.DisplayNames(ctx, userIDs)
	if err != nil {
		return domain.AssignmentAnalytics{}, err
	}

	byAttempt := indexDiagnoses(diags)
	rows := make([]domain.LearnerRow, 0, len(latest))
	for _, lm := range latest {
		row := domain.LearnerRow{
			UserID:         lm.UserID,
			UserName:       names[lm.UserID],
			LearnerMapID:   lm.ID,
			Status:         lm.Status,
			Attempt:        lm.Attempt,
			SubmittedAt:    lm.SubmittedAt,
			TotalGoalEdges: len(goal.Edges),
		}
		if d, ok := byAttempt[attemptKey{lm.ID, lm.Attempt}]; ok && lm.Status.Final() {
			score := d.Score
			row.Score = &score
			row.Correct = len(d.Correct)
			row.Missing = len(d.Missing)
			row.Excessive = len(d.Excessive)
			row.TotalGoalEdges = d.TotalGoalEdges
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UserName != rows[j].UserName {
			return rows[i].UserName < rows[j].UserName
		}
		return rows[i].UserID < rows[j].UserID
	})

	s.log.Debug("assignment analytics built", "assignmentId", assignmentID, "learners", len(rows))
	return domain.AssignmentAnalytics{
		Assignment: domain.AssignmentInfo{ID: assignment.ID, Title: assignment.Title},
		GoalMap: domain.GoalMapInfo{
			ID:        goal.ID,
			Title:     goal.Title,
			Direction: goal.Direction,
			NodeCount: len(goal.Nodes),
			EdgeCount: len(goal.Edges),
		},
		Learners: rows,
		Summary:  summarize(rows),
	}, nil
}

// PeerStats ranks the user's best score against the scores of every other
// user's submitted learner maps on the assignment. A user without any
// diagnosis is ranked with a best score of 0; HasSubmission reports that case.
func (s *AnalyticsService) PeerStats(ctx context.Context, userID, assignmentID string) (domain.PeerStats, error) {
	maps, err := s.repos.LearnerMaps.ListSubmittedLearnerMaps(ctx, assignmentID)
	if err != nil {
		return domain.PeerStats{}, err
	}
	diags, err := s.repos.Diagnoses.ListDiagnoses(ctx, assignmentID)
	if err != nil {
		return domain.PeerStats{}, err
	}

	owner := make(map[string]string, len(maps))
	for _, lm := range maps {
		if lm.Status.Final() {
			owner[lm.ID] = lm.UserID
		}
	}

	var own, peers []float64
	for _, d := range diags {
		uid, ok := owner[d.LearnerMapID]
		if !ok {
			continue
		}
		if uid == userID {
			own = append(own, d.Score)
		} else {
			peers = append(peers, d.Score)
		}
	}

	stats := domain.PeerStats{HasSubmission: len(own) > 0}
	best := 0.0
	for i, score := range own {
		if i == 0 || score > best {
			best = score
		}
	}
	if stats.HasSubmission {
		stats.UserBestScore = &best
	}
	if len(peers) == 0 {
		return stats, nil
	}

	summary := scoreStats(peers)
	pct := percentile(peers, best)
	stats.Count = len(peers)
	stats.AvgScore = summary.AvgScore
	stats.MedianScore = summary.MedianScore
	stats.HighestScore = summary.HighestScore
	stats.LowestScore = summary.LowestScore
	stats.UserPercentile = &pct
	return stats, nil
}

type attemptKey struct {
	learnerMapID string
	attempt      int
}

// latestAttempts keeps one learner map per user: the highest attempt, ties
// broken by the latest update.
func latestAttempts(maps []domain.LearnerMap) map[string]domain.LearnerMap {
	latest := make(map[string]domain.LearnerMap, len(maps))
	for _, lm := range maps {
		cur, ok := latest[lm.UserID]
		if !ok || newer(lm, cur) {
			latest[lm.UserID] = lm
		}
	}
	return latest
}

func newer(a, b domain.LearnerMap) bool {
	if a.Attempt != b.Attempt {
		return a.Attempt > b.Attempt
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

// indexDiagnoses keys diagnoses by learner map and attempt, keeping the most
// recently created one if a store ever returns duplicates.
func indexDiagnoses(diags []domain.Diagnosis) map[attemptKey]domain.Diagnosis {
	out := make(map[attemptKey]domain.Diagnosis, len(diags))
	for _, d := range diags {
		key := attemptKey{d.LearnerMapID, d.Attempt}
		if cur, ok := out[key]; !ok || d.CreatedAt.After(cur.CreatedAt) {
			out[key] = d
		}
	}
	return out
}

func summarize(rows []domain.LearnerRow) domain.AnalyticsSummary {
	summary := domain.AnalyticsSummary{TotalLearners: len(rows)}
	scores := make([]float64, 0, len(rows))
	for _, row := range rows {
		switch {
		case row.Status.Final():
			summary.SubmittedCount++
		case row.Status == domain.StatusDraft:
			summary.DraftCount++
		}
		if row.Score != nil {
			scores = append(scores, *row.Score)
		}
	}
	summary.ScoreStats = scoreStats(scores)
	return summary
}

// IsNotFound reports whether err is one of the caller-facing not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrAssignmentNotFound) ||
		errors.Is(err, domain.ErrGoalMapNotFound) ||
		errors.Is(err, domain.ErrLearnerMapNotFound)
}
