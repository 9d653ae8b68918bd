package models

import (
	"time"
)

// Grade represents the grading outcome of a submission
type Grade string

const (
	GradeUngraded Grade = "ungraded"
	GradePass     Grade = "pass"
	GradeFail     Grade = "fail"
)

// IsFinal returns true once a grade has been assigned
func (g Grade) IsFinal() bool {
	return g == GradePass || g == GradeFail
}

// Submission represents one participant's submission channel for a challenge.
// The channel is owned by the submission for its whole lifetime: the two are
// created together and must be deleted together.
type Submission struct {
	ID          string     `json:"id"`
	ChallengeID string     `json:"challenge_id"`
	UserID      string     `json:"user_id"`
	ChannelID   string     `json:"channel_id"`
	Grade       Grade      `json:"grade"`
	CreatedAt   time.Time  `json:"created_at"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
}
