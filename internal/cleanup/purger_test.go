package cleanup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cortex-community/cortex-engine/internal/chat/chattest"
	"github.com/cortex-community/cortex-engine/internal/models"
	"github.com/cortex-community/cortex-engine/internal/storage/storagetest"
)

func seedGradedSubmission(t *testing.T, repo *storagetest.Repo, gateway *chattest.Gateway, gradedAt time.Time) *models.Submission {
	t.Helper()
	ctx := context.Background()

	channel, err := gateway.CreateChannel(ctx, "ada-submission", "cat-1")
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	ch := &models.Challenge{
		ID:           "ch-" + channel.ID,
		Name:         "Old Challenge",
		Status:       models.ChallengeGraded,
		RewardPoints: 10,
		CreatedAt:    gradedAt.Add(-48 * time.Hour),
		GradedAt:     &gradedAt,
	}
	if err := repo.CreateChallenge(ctx, ch); err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}

	sub := &models.Submission{
		ID:          "sub-" + channel.ID,
		ChallengeID: ch.ID,
		UserID:      "user-1",
		ChannelID:   channel.ID,
		Grade:       models.GradePass,
		CreatedAt:   ch.CreatedAt,
	}
	if err := repo.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}
	return sub
}

func TestPurgeDeletesExpiredChannelAndRecord(t *testing.T) {
	repo := storagetest.NewRepo()
	gateway := chattest.NewGateway()
	seedGradedSubmission(t, repo, gateway, time.Now().Add(-48*time.Hour))

	purger := NewPurger(repo, gateway, time.Hour, 24*time.Hour)
	purger.Purge(context.Background())

	if gateway.ChannelCount() != 0 {
		t.Errorf("expected channel deleted, %d remain", gateway.ChannelCount())
	}
	if repo.SubmissionCount() != 0 {
		t.Errorf("expected record deleted, %d remain", repo.SubmissionCount())
	}
}

func TestPurgeKeepsRecentSubmissions(t *testing.T) {
	repo := storagetest.NewRepo()
	gateway := chattest.NewGateway()
	seedGradedSubmission(t, repo, gateway, time.Now().Add(-1*time.Hour))

	purger := NewPurger(repo, gateway, time.Hour, 24*time.Hour)
	purger.Purge(context.Background())

	if gateway.ChannelCount() != 1 {
		t.Error("expected channel inside the retention window to survive")
	}
	if repo.SubmissionCount() != 1 {
		t.Error("expected record inside the retention window to survive")
	}
}

func TestPurgeKeepsRecordWhenChannelDeleteFails(t *testing.T) {
	repo := storagetest.NewRepo()
	gateway := chattest.NewGateway()
	seedGradedSubmission(t, repo, gateway, time.Now().Add(-48*time.Hour))
	gateway.DeleteChannelErr = fmt.Errorf("rate limited")

	purger := NewPurger(repo, gateway, time.Hour, 24*time.Hour)
	purger.Purge(context.Background())

	// The record must survive for the next cycle to retry
	if repo.SubmissionCount() != 1 {
		t.Error("expected record to survive a failed channel delete")
	}
}
