package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/config"
	"github.com/cortex-community/cortex-engine/internal/guard"
	"github.com/cortex-community/cortex-engine/internal/messages"
	"github.com/cortex-community/cortex-engine/internal/models"
	"github.com/cortex-community/cortex-engine/internal/storage"
)

// activationKey serializes challenge activation so at most one challenge is
// non-terminal at any time
const activationKey = "challenge:active"

// Lifecycle drives challenges through active, needs_grading and graded.
// Transitions are one-way; Close and Finish commit the new status even when
// per-channel side effects partially failed, and report those failures to
// the caller for operator follow-up.
type Lifecycle struct {
	repo    storage.Repository
	engine  *Engine
	gateway chat.Gateway
	catalog *messages.Catalog
	locks   *guard.KeyedMutex
	guild   config.GuildConfig
	logger  *slog.Logger
}

// NewLifecycle creates a new challenge lifecycle manager
func NewLifecycle(repo storage.Repository, engine *Engine, gateway chat.Gateway, catalog *messages.Catalog, locks *guard.KeyedMutex, guild config.GuildConfig) *Lifecycle {
	return &Lifecycle{
		repo:    repo,
		engine:  engine,
		gateway: gateway,
		catalog: catalog,
		locks:   locks,
		guild:   guild,
		logger:  slog.Default().With("component", "lifecycle"),
	}
}

// CurrentActive returns the active challenge, or ErrNoActiveChallenge
func (l *Lifecycle) CurrentActive(ctx context.Context) (*models.Challenge, error) {
	return findActive(ctx, l.repo)
}

// CurrentUngraded returns the challenge awaiting grading, if any
func (l *Lifecycle) CurrentUngraded(ctx context.Context) (*models.Challenge, error) {
	challenges, err := l.repo.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	for _, c := range challenges {
		if c.Status == models.ChallengeNeedsGrading {
			return c, nil
		}
	}
	return nil, nil
}

// Activate starts a new challenge and announces it. Activation is rejected
// while any earlier challenge is still active or being graded.
func (l *Lifecycle) Activate(ctx context.Context, req models.CreateChallengeRequest) (*models.Challenge, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("challenge name is required")
	}
	if req.RewardPoints <= 0 {
		return nil, fmt.Errorf("reward points must be positive")
	}

	l.locks.Lock(activationKey)
	defer l.locks.Unlock(activationKey)

	challenges, err := l.repo.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	for _, c := range challenges {
		if !c.Status.IsTerminal() {
			return nil, fmt.Errorf("challenge %s is still open: %w", c.ID, ErrChallengeActive)
		}
	}

	ch := &models.Challenge{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Status:       models.ChallengeActive,
		RewardPoints: req.RewardPoints,
		CreatedAt:    time.Now(),
	}

	if err := l.repo.CreateChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	l.logger.Info("challenge activated", "challenge_id", ch.ID, "name", ch.Name, "reward", ch.RewardPoints)

	announcement := chat.Message{
		Content: fmt.Sprintf("%s\n\nA new challenge has started: **%s**! Reward: **%d** points.",
			chat.RoleMention(l.guild.AnnouncementRoleID), ch.Name, ch.RewardPoints),
		Buttons: []chat.Button{
			{CustomID: CustomIDOpenSubmission, Label: "Open Submission", Style: chat.StylePrimary},
		},
	}
	if err := l.gateway.SendMessage(ctx, l.guild.AnnouncementChannelID, announcement); err != nil {
		l.logger.Warn("failed to announce new challenge", "challenge_id", ch.ID, "error", err)
	}

	return ch, nil
}

// Close ends the submission phase: every submission channel is locked and
// the challenge moves to needs_grading. The status change commits even when
// some channels failed to lock; those failures are returned for reporting.
func (l *Lifecycle) Close(ctx context.Context, challengeID string) error {
	lockKey := "challenge:" + challengeID
	l.locks.Lock(lockKey)
	defer l.locks.Unlock(lockKey)

	ch, err := l.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("failed to read challenge: %w", err)
	}
	if ch == nil {
		return fmt.Errorf("challenge %s: %w", challengeID, ErrInvalidState)
	}
	if ch.Status != models.ChallengeActive {
		return fmt.Errorf("challenge %s is %s: %w", challengeID, ch.Status, ErrInvalidState)
	}

	lockErr := l.engine.LockAll(ctx, challengeID)
	if lockErr != nil {
		l.logger.Error("lock pass finished with failures", "challenge_id", challengeID, "error", lockErr)
	}

	now := time.Now()
	ch.Status = models.ChallengeNeedsGrading
	ch.ClosedAt = &now

	if err := l.repo.UpdateChallenge(ctx, ch); err != nil {
		return errors.Join(lockErr, fmt.Errorf("failed to persist challenge close: %w", err))
	}

	l.logger.Info("challenge closed", "challenge_id", challengeID)

	return lockErr
}

// Finish announces results and settles every submission: outcomes, point
// awards and the retention notice. The challenge moves to graded. Like
// Close, the status change commits even when some channels failed.
func (l *Lifecycle) Finish(ctx context.Context, challengeID string) error {
	lockKey := "challenge:" + challengeID
	l.locks.Lock(lockKey)
	defer l.locks.Unlock(lockKey)

	ch, err := l.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("failed to read challenge: %w", err)
	}
	if ch == nil {
		return fmt.Errorf("challenge %s: %w", challengeID, ErrInvalidState)
	}
	switch ch.Status {
	case models.ChallengeNeedsGrading:
	case models.ChallengeActive:
		return fmt.Errorf("challenge %s must be closed before finishing: %w", challengeID, ErrChallengeActive)
	default:
		return fmt.Errorf("challenge %s is %s: %w", challengeID, ch.Status, ErrInvalidState)
	}

	subs, err := l.repo.SubmissionsByChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}

	finishErr := l.engine.FinishAll(ctx, ch, subs)
	if finishErr != nil {
		l.logger.Error("finish pass finished with failures", "challenge_id", challengeID, "error", finishErr)
	}

	if err := l.announceResults(ctx, ch, subs); err != nil {
		l.logger.Warn("failed to announce results", "challenge_id", challengeID, "error", err)
		finishErr = errors.Join(finishErr, err)
	}

	now := time.Now()
	ch.Status = models.ChallengeGraded
	ch.GradedAt = &now

	if err := l.repo.UpdateChallenge(ctx, ch); err != nil {
		return errors.Join(finishErr, fmt.Errorf("failed to persist challenge finish: %w", err))
	}

	l.logger.Info("challenge finished", "challenge_id", challengeID, "submissions", len(subs))

	return finishErr
}
