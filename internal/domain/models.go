package domain

import (
	"encoding/json"
	"time"
)

// Position is a node's canvas coordinate. It is carried through untouched.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a concept or link node of a map. Identity is ID.
type Node struct {
	ID       string          `json:"id" yaml:"id"`
	Position Position        `json:"position" yaml:"position"`
	Kind     string          `json:"type,omitempty" yaml:"kind,omitempty"`
	Data     json.RawMessage `json:"data,omitempty" yaml:"-"`
}

// Edge is a directed relation between two nodes.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Kind   string `json:"type,omitempty" yaml:"kind,omitempty"`
}

// Key returns the comparison identity of the edge. The edge's own ID never
// takes part in comparison.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}

// EdgeKey identifies a logical relation by its ordered endpoints.
type EdgeKey struct {
	Source string
	Target string
}

func (k EdgeKey) String() string {
	return k.Source + "-" + k.Target
}

// EdgeRef is the persisted form of a diagnosed edge.
type EdgeRef struct {
	Source string `json:"source"`
	Target string `json:"target"`
	EdgeID string `json:"edgeId,omitempty"`
}

// Direction describes how a goal map's relations may be read.
type Direction string

const (
	DirectionBi    Direction = "bi"
	DirectionUni   Direction = "uni"
	DirectionMulti Direction = "multi"
)

// GoalMap is the teacher-authored reference graph.
type GoalMap struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// Assignment binds a goal map to a class exercise. CreatedBy is the owning teacher.
type Assignment struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	GoalMapID string `json:"goalMapId" yaml:"goalMapId"`
	CreatedBy string `json:"createdBy" yaml:"createdBy"`
}

// User carries the display name shown in analytics.
type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// LearnerStatus is the lifecycle state of a learner map attempt.
type LearnerStatus string

const (
	StatusDraft     LearnerStatus = "draft"
	StatusSubmitted LearnerStatus = "submitted"
	StatusGraded    LearnerStatus = "graded"
)

// Final reports whether the status is visible to aggregation.
func (s LearnerStatus) Final() bool {
	return s == StatusSubmitted || s == StatusGraded
}

// LearnerMap is one student's map for an assignment. The row is reused across
// attempts; Attempt starts at 1.
type LearnerMap struct {
	ID           string        `json:"id"`
	AssignmentID string        `json:"assignmentId"`
	GoalMapID    string        `json:"goalMapId"`
	UserID       string        `json:"userId"`
	Nodes        []Node        `json:"nodes"`
	Edges        []Edge        `json:"edges"`
	ControlText  string        `json:"controlText,omitempty"`
	Status       LearnerStatus `json:"status"`
	Attempt      int           `json:"attempt"`
	SubmittedAt  *time.Time    `json:"submittedAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// DiagnosisResult is the outcome of comparing a learner map against a goal map.
type DiagnosisResult struct {
	Correct        []EdgeRef `json:"correct"`
	Missing        []EdgeRef `json:"missing"`
	Excessive      []EdgeRef `json:"excessive"`
	Score          float64   `json:"score"`
	TotalGoalEdges int       `json:"totalGoalEdges"`
}

// Diagnosis is the immutable record of one submitted attempt.
type Diagnosis struct {
	ID             string    `json:"id"`
	GoalMapID      string    `json:"goalMapId"`
	LearnerMapID   string    `json:"learnerMapId"`
	Attempt        int       `json:"attempt"`
	Score          float64   `json:"score"`
	Correct        []EdgeRef `json:"correct"`
	Missing        []EdgeRef `json:"missing"`
	Excessive      []EdgeRef `json:"excessive"`
	TotalGoalEdges int       `json:"totalGoalEdges"`
	CreatedAt      time.Time `json:"createdAt"`
}
