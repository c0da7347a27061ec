package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"kb-diagnosis-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name"`
}

type goalMapRow struct {
	bun.BaseModel `bun:"table:goal_maps,alias:gm"`

	ID        string        `bun:"id,pk"`
	Title     string        `bun:"title"`
	Direction string        `bun:"direction"`
	Nodes     []domain.Node `bun:"nodes,type:jsonb"`
	Edges     []domain.Edge `bun:"edges,type:jsonb"`
}

type assignmentRow struct {
	bun.BaseModel `bun:"table:assignments,alias:a"`

	ID        string `bun:"id,pk"`
	Title     string `bun:"title"`
	GoalMapID string `bun:"goal_map_id"`
	CreatedBy string `bun:"created_by"`
}

type learnerMapRow struct {
	bun.BaseModel `bun:"table:learner_maps,alias:lm"`

	ID           string        `bun:"id,pk"`
	AssignmentID string        `bun:"assignment_id"`
	GoalMapID    string        `bun:"goal_map_id"`
	UserID       string        `bun:"user_id"`
	Nodes        []domain.Node `bun:"nodes,type:jsonb"`
	Edges        []domain.Edge `bun:"edges,type:jsonb"`
	ControlText  string        `bun:"control_text"`
	Status       string        `bun:"status"`
	Attempt      int           `bun:"attempt"`
	SubmittedAt  *time.Time    `bun:"submitted_at"`
	CreatedAt    time.Time     `bun:"created_at"`
	UpdatedAt    time.Time     `bun:"updated_at"`
}

type diagnosisRow struct {
	bun.BaseModel `bun:"table:diagnoses,alias:d"`

	ID             string           `bun:"id,pk"`
	GoalMapID      string           `bun:"goal_map_id"`
	LearnerMapID   string           `bun:"learner_map_id"`
	Attempt        int              `bun:"attempt"`
	Score          float64          `bun:"score"`
	Correct        []domain.EdgeRef `bun:"correct,type:jsonb"`
	Missing        []domain.EdgeRef `bun:"missing,type:jsonb"`
	Excessive      []domain.EdgeRef `bun:"excessive,type:jsonb"`
	TotalGoalEdges int              `bun:"total_goal_edges"`
	CreatedAt      time.Time        `bun:"created_at"`
}

func (r goalMapRow) toDomain() domain.GoalMap {
	return domain.GoalMap{
		ID:        r.ID,
		Title:     r.Title,
		Direction: domain.Direction(r.Direction),
		Nodes:     r.Nodes,
		Edges:     r.Edges,
	}
}

func (r learnerMapRow) toDomain() domain.LearnerMap {
	lm := domain.LearnerMap{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		GoalMapID:    r.GoalMapID,
		UserID:       r.UserID,
		Nodes:        r.Nodes,
		Edges:        r.Edges,
		ControlText:  r.ControlText,
		Status:       domain.LearnerStatus(r.Status),
		Attempt:      r.Attempt,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.SubmittedAt != nil {
		at := r.SubmittedAt.UTC()
		lm.SubmittedAt = &at
	}
	return lm
}

func newLearnerMapRow(lm domain.LearnerMap) learnerMapRow {
	return learnerMapRow{
		ID:           lm.ID,
		AssignmentID: lm.AssignmentID,
		GoalMapID:    lm.GoalMapID,
		UserID:       lm.UserID,
		Nodes:        nonNil(lm.Nodes),
		Edges:        nonNil(lm.Edges),
		ControlText:  lm.ControlText,
		Status:       string(lm.Status),
		Attempt:      lm.Attempt,
		SubmittedAt:  lm.SubmittedAt,
		CreatedAt:    lm.CreatedAt,
		UpdatedAt:    lm.UpdatedAt,
	}
}

func (r diagnosisRow) toDomain() domain.Diagnosis {
	return domain.Diagnosis{
		ID:             r.ID,
		GoalMapID:      r.GoalMapID,
		LearnerMapID:   r.LearnerMapID,
		Attempt:        r.Attempt,
		Score:          r.Score,
		Correct:        nonNil(r.Correct),
		Missing:        nonNil(r.Missing),
		Excessive:      nonNil(r.Excessive),
		TotalGoalEdges: r.TotalGoalEdges,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func newDiagnosisRow(d domain.Diagnosis) diagnosisRow {
	return diagnosisRow{
		ID:             d.ID,
		GoalMapID:      d.GoalMapID,
		LearnerMapID:   d.LearnerMapID,
		Attempt:        d.Attempt,
		Score:          d.Score,
		Correct:        nonNil(d.Correct),
		Missing:        nonNil(d.Missing),
		Excessive:      nonNil(d.Excessive),
		TotalGoalEdges: d.TotalGoalEdges,
		CreatedAt:      d.CreatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
