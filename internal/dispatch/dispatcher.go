// Package dispatch routes inbound platform interactions to the challenge
// workflow and the points economy. It owns delivery deduplication, staff
// authorization and the mapping of workflow errors to user-facing replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cortex-community/cortex-engine/internal/challenge"
	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/config"
	"github.com/cortex-community/cortex-engine/internal/messages"
	"github.com/cortex-community/cortex-engine/internal/models"
	"github.com/cortex-community/cortex-engine/internal/points"
)

// Slash commands handled by the dispatcher
const (
	CommandStartChallenge  = "start-challenge"
	CommandCloseChallenge  = "close-challenge"
	CommandFinishChallenge = "finish-challenge"
	CommandGivePoints      = "give-points"
	CommandTakePoints      = "take-points"
	CommandSetPoints       = "set-points"
	CommandPayPoints       = "pay-points"
	CommandBalance         = "points"
	CommandLeaderboard     = "leaderboard"
)

// Ack is the reply sent back for an interaction. Ephemeral replies are
// visible only to the actor.
type Ack struct {
	Message   string `json:"message"`
	Ephemeral bool   `json:"ephemeral"`
}

// Deduper filters repeat deliveries of the same interaction
type Deduper interface {
	FirstDelivery(ctx context.Context, interactionID string) (bool, error)
}

// Dispatcher routes interactions to their handlers
type Dispatcher struct {
	engine    *challenge.Engine
	lifecycle *challenge.Lifecycle
	points    *points.Service
	gateway   chat.Gateway
	deduper   Deduper
	catalog   *messages.Catalog
	guild     config.GuildConfig
	logger    *slog.Logger
}

// NewDispatcher creates a new interaction dispatcher
func NewDispatcher(engine *challenge.Engine, lifecycle *challenge.Lifecycle, pointsSvc *points.Service, gateway chat.Gateway, deduper Deduper, catalog *messages.Catalog, guild config.GuildConfig) *Dispatcher {
	return &Dispatcher{
		engine:    engine,
		lifecycle: lifecycle,
		points:    pointsSvc,
		gateway:   gateway,
		deduper:   deduper,
		catalog:   catalog,
		guild:     guild,
		logger:    slog.Default().With("component", "dispatch"),
	}
}

// Dispatch handles one interaction delivery. Repeat deliveries of the same
// interaction ID are acknowledged with an empty reply and no effects.
func (d *Dispatcher) Dispatch(ctx context.Context, event chat.InteractionEvent) Ack {
	if d.deduper != nil && event.ID != "" {
		first, err := d.deduper.FirstDelivery(ctx, event.ID)
		if err != nil {
			// Dedup is best effort; the per-key locks and re-reads keep
			// repeated handling safe, so process anyway.
			d.logger.Warn("dedup check failed, processing anyway", "interaction_id", event.ID, "error", err)
		} else if !first {
			d.logger.Debug("dropped duplicate delivery", "interaction_id", event.ID)
			return Ack{}
		}
	}

	switch event.Kind {
	case "button":
		return d.dispatchButton(ctx, event)
	case "command":
		return d.dispatchCommand(ctx, event)
	default:
		d.logger.Warn("unknown interaction kind", "kind", event.Kind, "interaction_id", event.ID)
		return Ack{Message: d.catalog.GenericError, Ephemeral: true}
	}
}

func (d *Dispatcher) dispatchButton(ctx context.Context, event chat.InteractionEvent) Ack {
	switch event.CustomID {
	case challenge.CustomIDOpenSubmission:
		_, channel, err := d.engine.OpenSubmission(ctx, event.ActorID)
		if err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: d.catalog.ChannelCreatedFor(channel.Name), Ephemeral: true}

	case challenge.CustomIDCloseSubmission:
		if err := d.engine.CloseSubmission(ctx, event.ActorID, event.ChannelID); err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: d.catalog.ChannelDeleted, Ephemeral: true}

	case challenge.CustomIDGradePass, challenge.CustomIDGradeFail:
		if ack, ok := d.requireStaff(ctx, event.ActorID); !ok {
			return ack
		}
		pass := event.CustomID == challenge.CustomIDGradePass
		sub, err := d.engine.Grade(ctx, event.ChannelID, pass)
		if err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: d.catalog.GradeRecordedFor(string(sub.Grade)), Ephemeral: true}

	default:
		d.logger.Warn("unknown button", "custom_id", event.CustomID, "interaction_id", event.ID)
		return Ack{Message: d.catalog.GenericError, Ephemeral: true}
	}
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, event chat.InteractionEvent) Ack {
	switch event.Command {
	case CommandStartChallenge:
		if ack, ok := d.requireStaff(ctx, event.ActorID); !ok {
			return ack
		}
		reward, err := strconv.Atoi(event.Options["reward"])
		if err != nil {
			return Ack{Message: d.catalog.InvalidAmount, Ephemeral: true}
		}
		ch, err := d.lifecycle.Activate(ctx, models.CreateChallengeRequest{
			Name:         event.Options["name"],
			RewardPoints: reward,
		})
		if err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: fmt.Sprintf("Challenge **%s** is live.", ch.Name), Ephemeral: true}

	case CommandCloseChallenge:
		if ack, ok := d.requireStaff(ctx, event.ActorID); !ok {
			return ack
		}
		active, err := d.lifecycle.CurrentActive(ctx)
		if err != nil {
			return d.failure(event, err)
		}
		if err := d.lifecycle.Close(ctx, active.ID); err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: fmt.Sprintf("Challenge **%s** is closed. Submission channels are locked for grading.", active.Name), Ephemeral: true}

	case CommandFinishChallenge:
		if ack, ok := d.requireStaff(ctx, event.ActorID); !ok {
			return ack
		}
		ungraded, err := d.lifecycle.CurrentUngraded(ctx)
		if err != nil {
			return d.failure(event, err)
		}
		if ungraded == nil {
			return Ack{Message: d.catalog.InvalidState, Ephemeral: true}
		}
		if err := d.lifecycle.Finish(ctx, ungraded.ID); err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: fmt.Sprintf("Challenge **%s** is finished. Results are announced.", ungraded.Name), Ephemeral: true}

	case CommandGivePoints:
		return d.staffAdjustment(ctx, event, d.points.Give)

	case CommandTakePoints:
		return d.staffAdjustment(ctx, event, d.points.Take)

	case CommandSetPoints:
		if ack, ok := d.requireStaff(ctx, event.ActorID); !ok {
			return ack
		}
		target, amount, ack, ok := d.targetAndAmount(event)
		if !ok {
			return ack
		}
		if err := d.points.Set(ctx, target, amount); err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: fmt.Sprintf("Set %s's balance to **%d** points.", d.displayName(ctx, target), amount), Ephemeral: true}

	case CommandPayPoints:
		target, amount, ack, ok := d.targetAndAmount(event)
		if !ok {
			return ack
		}
		remaining, err := d.points.Pay(ctx, event.ActorID, target, amount)
		if err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: fmt.Sprintf("Paid **%d** points to %s. You have **%d** left.", amount, d.displayName(ctx, target), remaining), Ephemeral: true}

	case CommandBalance:
		target := event.Options["user"]
		if target == "" {
			target = event.ActorID
		}
		balance, err := d.points.Get(ctx, target)
		if err != nil {
			return d.failure(event, err)
		}
		return Ack{Message: fmt.Sprintf("%s has **%d** points.", d.displayName(ctx, target), balance), Ephemeral: true}

	case CommandLeaderboard:
		return d.leaderboard(ctx, event)

	default:
		d.logger.Warn("unknown command", "command", event.Command, "interaction_id", event.ID)
		return Ack{Message: d.catalog.GenericError, Ephemeral: true}
	}
}

// staffAdjustment runs a staff-only two-party balance operation
func (d *Dispatcher) staffAdjustment(ctx context.Context, event chat.InteractionEvent, op func(ctx context.Context, actorID, targetID string, amount int) (int, error)) Ack {
	if ack, ok := d.requireStaff(ctx, event.ActorID); !ok {
		return ack
	}
	target, amount, ack, ok := d.targetAndAmount(event)
	if !ok {
		return ack
	}
	balance, err := op(ctx, event.ActorID, target, amount)
	if err != nil {
		return d.failure(event, err)
	}
	return Ack{Message: fmt.Sprintf("%s now has **%d** points.", d.displayName(ctx, target), balance), Ephemeral: true}
}

func (d *Dispatcher) leaderboard(ctx context.Context, event chat.InteractionEvent) Ack {
	top, err := d.points.Leaderboard(ctx, 10)
	if err != nil {
		return d.failure(event, err)
	}
	if len(top) == 0 {
		return Ack{Message: "The leaderboard is empty.", Ephemeral: true}
	}

	var b strings.Builder
	b.WriteString("**Leaderboard**\n")
	for i, member := range top {
		fmt.Fprintf(&b, "%d. %s: %d points\n", i+1, d.displayName(ctx, member.UserID), member.Points)
	}
	return Ack{Message: b.String()}
}

// requireStaff checks the actor holds the staff role. The check happens at
// the dispatch boundary so the workflow engine never sees unauthorized
// grading calls.
func (d *Dispatcher) requireStaff(ctx context.Context, actorID string) (Ack, bool) {
	member, err := d.gateway.GetMember(ctx, actorID)
	if err != nil {
		d.logger.Error("failed to resolve actor for staff check", "actor_id", actorID, "error", err)
		return Ack{Message: d.catalog.GenericError, Ephemeral: true}, false
	}
	if !member.HasRole(d.guild.StaffRoleID) {
		return Ack{Message: d.catalog.StaffOnly, Ephemeral: true}, false
	}
	return Ack{}, true
}

func (d *Dispatcher) targetAndAmount(event chat.InteractionEvent) (string, int, Ack, bool) {
	target := event.Options["user"]
	if target == "" {
		return "", 0, Ack{Message: d.catalog.GenericError, Ephemeral: true}, false
	}
	amount, err := strconv.Atoi(event.Options["amount"])
	if err != nil {
		return "", 0, Ack{Message: d.catalog.InvalidAmount, Ephemeral: true}, false
	}
	return target, amount, Ack{}, true
}

func (d *Dispatcher) displayName(ctx context.Context, userID string) string {
	member, err := d.gateway.GetMember(ctx, userID)
	if err != nil || member == nil {
		return userID
	}
	return member.DisplayName
}

// failure maps workflow errors to their user-facing replies. Unexpected
// errors are logged and answered with the generic message.
func (d *Dispatcher) failure(event chat.InteractionEvent, err error) Ack {
	reply := d.catalog.GenericError

	switch {
	case errors.Is(err, challenge.ErrNoActiveChallenge):
		reply = d.catalog.NoActiveChallenge
	case errors.Is(err, challenge.ErrDuplicateSubmission):
		reply = d.catalog.DuplicateSubmission
	case errors.Is(err, challenge.ErrAlreadyGraded):
		reply = d.catalog.AlreadyGraded
	case errors.Is(err, challenge.ErrInvalidState):
		// Covers ErrChallengeActive too, which wraps it
		reply = d.catalog.InvalidState
	case errors.Is(err, challenge.ErrSubmissionNotFound):
		reply = d.catalog.NotSubmissionOwner
	case errors.Is(err, challenge.ErrNotSubmissionOwner):
		reply = d.catalog.NotSubmissionOwner
	case errors.Is(err, points.ErrInvalidAmount):
		reply = d.catalog.InvalidAmount
	case errors.Is(err, points.ErrSelfTarget):
		reply = d.catalog.SelfTarget
	case errors.Is(err, points.ErrInsufficientPoints):
		reply = d.catalog.InsufficientPoints
	default:
		d.logger.Error("interaction failed",
			"interaction_id", event.ID, "kind", event.Kind,
			"custom_id", event.CustomID, "command", event.Command,
			"actor_id", event.ActorID, "error", err)
	}

	return Ack{Message: reply, Ephemeral: true}
}
