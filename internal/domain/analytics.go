package domain

import "time"

// AssignmentInfo is the assignment header of an analytics payload.
type AssignmentInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// GoalMapInfo summarizes the goal map an assignment is graded against.
type GoalMapInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Direction Direction `json:"direction"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
}

// LearnerRow is one student's latest attempt joined with its diagnosis.
// Score is nil when the attempt has no diagnosis.
type LearnerRow struct {
	UserID         string        `json:"userId"`
	UserName       string        `json:"userName"`
	LearnerMapID   string        `json:"learnerMapId"`
	Status         LearnerStatus `json:"status"`
	Score          *float64      `json:"score"`
	Attempt        int           `json:"attempt"`
	SubmittedAt    *time.Time    `json:"submittedAt"`
	Correct        int           `json:"correct"`
	Missing        int           `json:"missing"`
	Excessive      int           `json:"excessive"`
	TotalGoalEdges int           `json:"totalGoalEdges"`
}

// ScoreStats are computed over non-null scores only; every field is nil when
// there is no score.
type ScoreStats struct {
	AvgScore     *float64 `json:"avgScore"`
	MedianScore  *float64 `json:"medianScore"`
	HighestScore *float64 `json:"highestScore"`
	LowestScore  *float64 `json:"lowestScore"`
}

// AnalyticsSummary aggregates the learner rows of an assignment.
type AnalyticsSummary struct {
	TotalLearners  int `json:"totalLearners"`
	SubmittedCount int `json:"submittedCount"`
	DraftCount     int `json:"draftCount"`
	ScoreStats
}

// AssignmentAnalytics is the payload consumed by the export serializer.
type AssignmentAnalytics struct {
	Assignment AssignmentInfo   `json:"assignment"`
	GoalMap    GoalMapInfo      `json:"goalMap"`
	Learners   []LearnerRow     `json:"learners"`
	Summary    AnalyticsSummary `json:"summary"`
}

// PeerStats compares one student against same-assignment peers.
type PeerStats struct {
	Count          int      `json:"count"`
	AvgScore       *float64 `json:"avgScore"`
	MedianScore    *float64 `json:"medianScore"`
	HighestScore   *float64 `json:"highestScore"`
	LowestScore    *float64 `json:"lowestScore"`
	UserPercentile *float64 `json:"userPercentile"`
	UserBestScore  *float64 `json:"userBestScore"`
	HasSubmission  bool     `json:"hasSubmission"`
}
