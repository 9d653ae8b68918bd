package models

import (
	"time"
)

// ChallengeStatus represents the lifecycle state of a challenge
type ChallengeStatus string

const (
	ChallengeActive       ChallengeStatus = "active"        // Submissions open
	ChallengeNeedsGrading ChallengeStatus = "needs_grading" // Closed, staff grading submissions
	ChallengeGraded       ChallengeStatus = "graded"        // Results announced, terminal
)

// IsTerminal returns true if the status is a terminal state
func (s ChallengeStatus) IsTerminal() bool {
	return s == ChallengeGraded
}

// Challenge represents a community coding challenge
type Challenge struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Status       ChallengeStatus `json:"status"`
	RewardPoints int             `json:"reward_points"`
	CreatedAt    time.Time       `json:"created_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	GradedAt     *time.Time      `json:"graded_at,omitempty"`
}

// CreateChallengeRequest represents a request to activate a new challenge
type CreateChallengeRequest struct {
	Name         string `json:"name"`
	RewardPoints int    `json:"reward_points"`
}
