package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/config"
	"github.com/cortex-community/cortex-engine/internal/guard"
	"github.com/cortex-community/cortex-engine/internal/messages"
	"github.com/cortex-community/cortex-engine/internal/models"
	"github.com/cortex-community/cortex-engine/internal/storage"
)

// Button custom IDs wired to the interaction dispatcher
const (
	CustomIDOpenSubmission  = "challenge-open-submission"
	CustomIDCloseSubmission = "challenge-close-submission"
	CustomIDGradePass       = "challenge-grade-pass"
	CustomIDGradeFail       = "challenge-grade-fail"
)

// Engine runs the submission workflow: opening and closing submission
// channels, grading, and the bulk lock/finish passes over a whole challenge.
//
// Every mutating operation takes a per-key lock, re-reads current state under
// that lock, performs external side effects first, and persists last. A crash
// between side effect and persist leaves an orphaned channel rather than a
// record pointing at nothing.
type Engine struct {
	repo        storage.Repository
	gateway     chat.Gateway
	catalog     *messages.Catalog
	locks       *guard.KeyedMutex
	guild       config.GuildConfig
	parallelism int
	logger      *slog.Logger
}

// NewEngine creates a new submission workflow engine
func NewEngine(repo storage.Repository, gateway chat.Gateway, catalog *messages.Catalog, locks *guard.KeyedMutex, guild config.GuildConfig, parallelism int) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{
		repo:        repo,
		gateway:     gateway,
		catalog:     catalog,
		locks:       locks,
		guild:       guild,
		parallelism: parallelism,
		logger:      slog.Default().With("component", "engine"),
	}
}

// findActive returns the single active challenge, or ErrNoActiveChallenge
func findActive(ctx context.Context, repo storage.Repository) (*models.Challenge, error) {
	challenges, err := repo.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	for _, c := range challenges {
		if c.Status == models.ChallengeActive {
			return c, nil
		}
	}
	return nil, ErrNoActiveChallenge
}

// OpenSubmission creates a submission channel for a participant in the
// active challenge. The channel is visible only to the participant and
// staff, and carries the welcome message with a close button.
func (e *Engine) OpenSubmission(ctx context.Context, actorID string) (*models.Submission, *chat.Channel, error) {
	active, err := findActive(ctx, e.repo)
	if err != nil {
		return nil, nil, err
	}

	lockKey := "open:" + actorID + ":" + active.ID
	e.locks.Lock(lockKey)
	defer e.locks.Unlock(lockKey)

	// Re-read under the lock: a concurrent open for the same participant
	// may have won the race, and the challenge may have closed meanwhile.
	current, err := e.repo.GetChallenge(ctx, active.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to re-read challenge: %w", err)
	}
	if current == nil || current.Status != models.ChallengeActive {
		return nil, nil, ErrNoActiveChallenge
	}

	existing, err := e.repo.SubmissionByParticipant(ctx, actorID, current.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing submission: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrDuplicateSubmission
	}

	displayName := actorID
	member, err := e.gateway.GetMember(ctx, actorID)
	if err != nil {
		e.logger.Warn("failed to resolve member, using ID as display name", "user_id", actorID, "error", err)
	} else if member != nil {
		displayName = member.DisplayName
	}

	channel, err := e.gateway.CreateChannel(ctx, channelName(displayName), e.guild.SubmissionCategoryID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create submission channel: %w", err)
	}

	// From here on the channel exists; any failure before the record write
	// leaves it orphaned and must say so.
	if err := e.gateway.SetRoleView(ctx, channel.ID, e.guild.EveryoneRoleID, false); err != nil {
		return nil, nil, e.orphaned(channel.ID, actorID, fmt.Errorf("failed to hide channel: %w", err))
	}
	if err := e.gateway.SetRoleView(ctx, channel.ID, e.guild.StaffRoleID, true); err != nil {
		return nil, nil, e.orphaned(channel.ID, actorID, fmt.Errorf("failed to grant staff view: %w", err))
	}
	if err := e.gateway.SetMemberView(ctx, channel.ID, actorID, true); err != nil {
		return nil, nil, e.orphaned(channel.ID, actorID, fmt.Errorf("failed to grant member view: %w", err))
	}

	welcome := chat.Message{
		Content: e.catalog.WelcomeFor(displayName),
		Buttons: []chat.Button{
			{CustomID: CustomIDCloseSubmission, Label: "Close Submission", Style: chat.StyleDanger},
		},
	}
	if err := e.gateway.SendMessage(ctx, channel.ID, welcome); err != nil {
		return nil, nil, e.orphaned(channel.ID, actorID, fmt.Errorf("failed to send welcome message: %w", err))
	}

	if e.guild.ParticipantRoleID != "" {
		if err := e.gateway.AddRole(ctx, actorID, e.guild.ParticipantRoleID); err != nil {
			e.logger.Warn("failed to grant participant role", "user_id", actorID, "error", err)
		}
	}

	sub := &models.Submission{
		ID:          uuid.New().String(),
		ChallengeID: current.ID,
		UserID:      actorID,
		ChannelID:   channel.ID,
		Grade:       models.GradeUngraded,
		CreatedAt:   time.Now(),
	}

	if err := e.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, nil, e.orphaned(channel.ID, actorID, fmt.Errorf("failed to persist submission: %w", err))
	}

	e.logger.Info("submission opened",
		"submission_id", sub.ID, "challenge_id", current.ID,
		"user_id", actorID, "channel_id", channel.ID)

	return sub, channel, nil
}

// CloseSubmission withdraws a participant's submission: the channel is
// deleted first, then the record. Only the owner may close it.
func (e *Engine) CloseSubmission(ctx context.Context, actorID, chanID string) error {
	sub, err := e.repo.SubmissionByChannel(ctx, chanID)
	if err != nil {
		return fmt.Errorf("failed to look up submission: %w", err)
	}
	if sub == nil {
		return ErrSubmissionNotFound
	}
	if sub.UserID != actorID {
		return ErrNotSubmissionOwner
	}

	lockKey := "submission:" + sub.ID
	e.locks.Lock(lockKey)
	defer e.locks.Unlock(lockKey)

	current, err := e.repo.GetSubmission(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to re-read submission: %w", err)
	}
	if current == nil {
		return ErrSubmissionNotFound
	}

	if err := e.gateway.DeleteChannel(ctx, current.ChannelID); err != nil {
		return fmt.Errorf("failed to delete channel %s: %w", current.ChannelID, err)
	}

	// The channel is gone; a failed record delete leaves a stale row that
	// the retention purge will report, so it is not fatal here.
	if err := e.repo.DeleteSubmission(ctx, current.ID); err != nil {
		e.logger.Warn("failed to delete submission record after channel removal",
			"submission_id", current.ID, "channel_id", current.ChannelID, "error", err)
		return nil
	}

	e.logger.Info("submission closed",
		"submission_id", current.ID, "user_id", actorID, "channel_id", current.ChannelID)

	return nil
}

// Grade records a final grade on the submission owning a channel. Grading is
// only possible once the challenge has stopped accepting submissions, and a
// final grade is immutable.
func (e *Engine) Grade(ctx context.Context, chanID string, pass bool) (*models.Submission, error) {
	sub, err := e.repo.SubmissionByChannel(ctx, chanID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up submission: %w", err)
	}
	if sub == nil {
		return nil, ErrSubmissionNotFound
	}

	lockKey := "submission:" + sub.ID
	e.locks.Lock(lockKey)
	defer e.locks.Unlock(lockKey)

	current, err := e.repo.GetSubmission(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read submission: %w", err)
	}
	if current == nil {
		return nil, ErrSubmissionNotFound
	}
	if current.Grade.IsFinal() {
		return nil, ErrAlreadyGraded
	}

	ch, err := e.repo.GetChallenge(ctx, current.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge: %w", err)
	}
	if ch == nil {
		return nil, fmt.Errorf("challenge %s: %w", current.ChallengeID, ErrInvalidState)
	}
	switch ch.Status {
	case models.ChallengeNeedsGrading:
	case models.ChallengeActive:
		return nil, ErrChallengeActive
	default:
		return nil, ErrInvalidState
	}

	marker := " ✅"
	grade := models.GradePass
	if !pass {
		marker = " ❌"
		grade = models.GradeFail
	}

	channel, err := e.gateway.GetChannel(ctx, current.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel %s: %w", current.ChannelID, err)
	}
	if err := e.gateway.RenameChannel(ctx, current.ChannelID, channel.Name+marker); err != nil {
		return nil, fmt.Errorf("failed to mark channel %s: %w", current.ChannelID, err)
	}

	now := time.Now()
	current.Grade = grade
	current.GradedAt = &now

	if err := e.repo.UpdateSubmission(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to persist grade: %w", err)
	}

	e.logger.Info("submission graded",
		"submission_id", current.ID, "challenge_id", current.ChallengeID, "grade", grade)

	return current, nil
}

// LockAll seals every submission channel of a challenge: the participant
// loses view access, staff keep it, and each channel gets the lock notice
// with the grading buttons. Failures on individual channels are collected;
// the pass never aborts early.
func (e *Engine) LockAll(ctx context.Context, challengeID string) error {
	subs, err := e.repo.SubmissionsByChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}

	return e.forEachSubmission(ctx, subs, func(ctx context.Context, sub *models.Submission) error {
		if err := e.gateway.SetMemberView(ctx, sub.ChannelID, sub.UserID, false); err != nil {
			return fmt.Errorf("submission %s: failed to revoke member view: %w", sub.ID, err)
		}
		if err := e.gateway.SetRoleView(ctx, sub.ChannelID, e.guild.StaffRoleID, true); err != nil {
			return fmt.Errorf("submission %s: failed to grant staff view: %w", sub.ID, err)
		}

		notice := chat.Message{
			Content: e.catalog.SubmissionLocked,
			Buttons: []chat.Button{
				{CustomID: CustomIDGradePass, Label: "Pass", Style: chat.StyleSuccess},
				{CustomID: CustomIDGradeFail, Label: "Fail", Style: chat.StyleDanger},
			},
		}
		if err := e.gateway.SendMessage(ctx, sub.ChannelID, notice); err != nil {
			return fmt.Errorf("submission %s: failed to send lock notice: %w", sub.ID, err)
		}
		return nil
	})
}

// FinishAll delivers outcomes for every submission of a finished challenge:
// the participant regains view access, receives the outcome and retention
// notices, and is awarded points. Ungraded submissions are settled as fails.
func (e *Engine) FinishAll(ctx context.Context, ch *models.Challenge, subs []*models.Submission) error {
	return e.forEachSubmission(ctx, subs, func(ctx context.Context, sub *models.Submission) error {
		if err := e.gateway.SetMemberView(ctx, sub.ChannelID, sub.UserID, true); err != nil {
			return fmt.Errorf("submission %s: failed to restore member view: %w", sub.ID, err)
		}

		outcome := e.catalog.OutcomeFail
		award := ch.RewardPoints / 2
		if sub.Grade == models.GradePass {
			outcome = e.catalog.OutcomePass
			award = ch.RewardPoints
		}

		if err := e.gateway.SendMessage(ctx, sub.ChannelID, chat.Message{Content: outcome}); err != nil {
			return fmt.Errorf("submission %s: failed to send outcome: %w", sub.ID, err)
		}
		if err := e.gateway.SendMessage(ctx, sub.ChannelID, chat.Message{Content: e.catalog.RetentionNotice}); err != nil {
			return fmt.Errorf("submission %s: failed to send retention notice: %w", sub.ID, err)
		}

		if err := e.award(ctx, sub.UserID, award); err != nil {
			return fmt.Errorf("submission %s: failed to award points: %w", sub.ID, err)
		}
		return nil
	})
}

// forEachSubmission fans the op over submissions with bounded parallelism.
// Per-item errors are joined and returned together once all items ran.
func (e *Engine) forEachSubmission(ctx context.Context, subs []*models.Submission, op func(context.Context, *models.Submission) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	errs := make([]error, len(subs))
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			errs[i] = op(ctx, sub)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// orphaned records a channel that exists with no submission row behind it.
// The channel is left in place for operator cleanup.
func (e *Engine) orphaned(channelID, actorID string, err error) error {
	e.logger.Error("channel left without a submission record",
		"channel_id", channelID, "user_id", actorID, "error", err)
	return fmt.Errorf("channel %s: %w: %w", channelID, ErrOrphanedChannel, err)
}

func (e *Engine) award(ctx context.Context, userID string, points int) error {
	if points <= 0 {
		return nil
	}

	member, err := e.repo.GetMember(ctx, userID)
	if err != nil {
		return err
	}
	if member == nil {
		member = &models.Member{UserID: userID, CreatedAt: time.Now()}
	}
	member.Points += points

	return e.repo.UpsertMember(ctx, member)
}

// channelName derives a submission channel name from a display name
func channelName(displayName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(displayName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "participant"
	}
	return name + "-submission"
}
