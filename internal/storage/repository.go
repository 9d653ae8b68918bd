package storage

import (
	"context"
	"time"

	"github.com/cortex-community/cortex-engine/internal/models"
)

// Repository defines the interface for challenge persistence
type Repository interface {
	// Challenges
	CreateChallenge(ctx context.Context, c *models.Challenge) error
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	UpdateChallenge(ctx context.Context, c *models.Challenge) error
	ListChallenges(ctx context.Context) ([]*models.Challenge, error)

	// Submissions
	CreateSubmission(ctx context.Context, s *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	SubmissionByParticipant(ctx context.Context, userID, challengeID string) (*models.Submission, error)
	SubmissionByChannel(ctx context.Context, channelID string) (*models.Submission, error)
	SubmissionsByChallenge(ctx context.Context, challengeID string) ([]*models.Submission, error)
	UpdateSubmission(ctx context.Context, s *models.Submission) error
	DeleteSubmission(ctx context.Context, id string) error
	SubmissionsPastRetention(ctx context.Context, cutoff time.Time) ([]*models.Submission, error)

	// Members
	GetMember(ctx context.Context, userID string) (*models.Member, error)
	UpsertMember(ctx context.Context, m *models.Member) error
	TopMembers(ctx context.Context, limit int) ([]*models.Member, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
