package domain

import "errors"

var (
	// ErrAssignmentNotFound is returned when an assignment is missing or not owned by the caller.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrGoalMapNotFound is returned when a goal map is missing, including a learner map
	// that references a deleted goal map.
	ErrGoalMapNotFound = errors.New("goal map not found")
	// ErrLearnerMapNotFound indicates no learner map exists for the user and assignment.
	ErrLearnerMapNotFound = errors.New("learner map not found")
	// ErrAlreadySubmitted rejects a second submission of the same attempt.
	ErrAlreadySubmitted = errors.New("learner map already submitted")
	// ErrPreviousAttemptNotSubmitted rejects a new attempt while the current one is open.
	ErrPreviousAttemptNotSubmitted = errors.New("previous attempt not submitted")
	// ErrNoPreviousAttempt rejects a new attempt when nothing was ever started.
	ErrNoPreviousAttempt = errors.New("no previous attempt")
	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
