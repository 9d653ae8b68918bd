package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortex-community/cortex-engine/internal/challenge"
	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/chat/chattest"
	"github.com/cortex-community/cortex-engine/internal/config"
	"github.com/cortex-community/cortex-engine/internal/guard"
	"github.com/cortex-community/cortex-engine/internal/messages"
	"github.com/cortex-community/cortex-engine/internal/models"
	"github.com/cortex-community/cortex-engine/internal/points"
	"github.com/cortex-community/cortex-engine/internal/storage/storagetest"
)

var testGuild = config.GuildConfig{
	StaffRoleID:           "role-staff",
	EveryoneRoleID:        "role-everyone",
	ParticipantRoleID:     "role-participant",
	SubmissionCategoryID:  "cat-submissions",
	AnnouncementChannelID: "chan-announce",
	AnnouncementRoleID:    "role-announce",
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]bool)}
}

func (d *memoryDeduper) FirstDelivery(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

type fixture struct {
	dispatcher *Dispatcher
	lifecycle  *challenge.Lifecycle
	engine     *challenge.Engine
	repo       *storagetest.Repo
	gateway    *chattest.Gateway
	deduper    *memoryDeduper
}

func newFixture() *fixture {
	repo := storagetest.NewRepo()
	gateway := chattest.NewGateway()
	locks := guard.NewKeyedMutex()
	catalog := messages.Default()
	deduper := newMemoryDeduper()

	engine := challenge.NewEngine(repo, gateway, catalog, locks, testGuild, 4)
	lifecycle := challenge.NewLifecycle(repo, engine, gateway, catalog, locks, testGuild)
	pointsSvc := points.NewService(repo, locks)
	dispatcher := NewDispatcher(engine, lifecycle, pointsSvc, gateway, deduper, catalog, testGuild)

	return &fixture{
		dispatcher: dispatcher,
		lifecycle:  lifecycle,
		engine:     engine,
		repo:       repo,
		gateway:    gateway,
		deduper:    deduper,
	}
}

func (f *fixture) startChallenge(t *testing.T) *models.Challenge {
	t.Helper()
	ch, err := f.lifecycle.Activate(context.Background(), models.CreateChallengeRequest{
		Name:         "Sorting Showdown",
		RewardPoints: 100,
	})
	require.NoError(t, err)
	return ch
}

func buttonEvent(id, customID, actorID, channelID string) chat.InteractionEvent {
	return chat.InteractionEvent{
		ID:        id,
		Kind:      "button",
		CustomID:  customID,
		ActorID:   actorID,
		ChannelID: channelID,
	}
}

func commandEvent(id, command, actorID string, options map[string]string) chat.InteractionEvent {
	return chat.InteractionEvent{
		ID:      id,
		Kind:    "command",
		Command: command,
		ActorID: actorID,
		Options: options,
	}
}

func TestDispatchOpenSubmission(t *testing.T) {
	f := newFixture()
	f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-1", challenge.CustomIDOpenSubmission, "user-1", ""))

	assert.True(t, ack.Ephemeral)
	assert.Contains(t, ack.Message, "ada-submission")
	assert.Equal(t, 1, f.gateway.ChannelCount())
}

func TestDispatchDropsDuplicateDelivery(t *testing.T) {
	f := newFixture()
	f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")

	event := buttonEvent("i-1", challenge.CustomIDOpenSubmission, "user-1", "")

	first := f.dispatcher.Dispatch(context.Background(), event)
	assert.NotEmpty(t, first.Message)

	second := f.dispatcher.Dispatch(context.Background(), event)
	assert.Empty(t, second.Message)
	assert.Equal(t, 1, f.gateway.ChannelCount())
}

func TestDispatchProcessesWhenDedupUnavailable(t *testing.T) {
	f := newFixture()
	f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")
	f.deduper.err = fmt.Errorf("redis down")

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-1", challenge.CustomIDOpenSubmission, "user-1", ""))

	assert.Contains(t, ack.Message, "ada-submission")
}

func TestDispatchNoActiveChallengeReply(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("user-1", "Ada")

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-1", challenge.CustomIDOpenSubmission, "user-1", ""))

	assert.Equal(t, messages.Default().NoActiveChallenge, ack.Message)
	assert.True(t, ack.Ephemeral)
}

func TestDispatchDuplicateSubmissionReply(t *testing.T) {
	f := newFixture()
	f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")

	f.dispatcher.Dispatch(context.Background(), buttonEvent("i-1", challenge.CustomIDOpenSubmission, "user-1", ""))
	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-2", challenge.CustomIDOpenSubmission, "user-1", ""))

	assert.Equal(t, messages.Default().DuplicateSubmission, ack.Message)
}

func TestDispatchCloseSubmission(t *testing.T) {
	f := newFixture()
	f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")

	_, channel, err := f.engine.OpenSubmission(context.Background(), "user-1")
	require.NoError(t, err)

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-2", challenge.CustomIDCloseSubmission, "user-1", channel.ID))

	assert.Equal(t, messages.Default().ChannelDeleted, ack.Message)
	assert.Equal(t, 0, f.gateway.ChannelCount())
}

func TestDispatchCloseByStrangerRejected(t *testing.T) {
	f := newFixture()
	f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")
	f.gateway.AddMember("user-2", "Mallory")

	_, channel, err := f.engine.OpenSubmission(context.Background(), "user-1")
	require.NoError(t, err)

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-2", challenge.CustomIDCloseSubmission, "user-2", channel.ID))

	assert.Equal(t, messages.Default().NotSubmissionOwner, ack.Message)
	assert.Equal(t, 1, f.gateway.ChannelCount())
}

func TestDispatchGradeRequiresStaff(t *testing.T) {
	f := newFixture()
	ch := f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")

	_, channel, err := f.engine.OpenSubmission(context.Background(), "user-1")
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.Close(context.Background(), ch.ID))

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-2", challenge.CustomIDGradePass, "user-1", channel.ID))

	assert.Equal(t, messages.Default().StaffOnly, ack.Message)
}

func TestDispatchGradeByStaff(t *testing.T) {
	f := newFixture()
	ch := f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")
	f.gateway.AddMember("staff-1", "Root", "role-staff")

	_, channel, err := f.engine.OpenSubmission(context.Background(), "user-1")
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.Close(context.Background(), ch.ID))

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-2", challenge.CustomIDGradePass, "staff-1", channel.ID))
	assert.Contains(t, ack.Message, "pass")

	ack = f.dispatcher.Dispatch(context.Background(), buttonEvent("i-3", challenge.CustomIDGradeFail, "staff-1", channel.ID))
	assert.Equal(t, messages.Default().AlreadyGraded, ack.Message)
}

func TestDispatchStartChallengeStaffOnly(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("user-1", "Ada")

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandStartChallenge, "user-1", map[string]string{
		"name":   "Sorting Showdown",
		"reward": "100",
	}))

	assert.Equal(t, messages.Default().StaffOnly, ack.Message)
}

func TestDispatchChallengeLifecycleCommands(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("staff-1", "Root", "role-staff")
	ctx := context.Background()

	ack := f.dispatcher.Dispatch(ctx, commandEvent("i-1", CommandStartChallenge, "staff-1", map[string]string{
		"name":   "Sorting Showdown",
		"reward": "100",
	}))
	assert.Contains(t, ack.Message, "Sorting Showdown")

	active, err := f.lifecycle.CurrentActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeActive, active.Status)

	ack = f.dispatcher.Dispatch(ctx, commandEvent("i-2", CommandCloseChallenge, "staff-1", nil))
	assert.Contains(t, ack.Message, "closed")

	ack = f.dispatcher.Dispatch(ctx, commandEvent("i-3", CommandFinishChallenge, "staff-1", nil))
	assert.Contains(t, ack.Message, "finished")

	final, err := f.repo.GetChallenge(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeGraded, final.Status)
}

func TestDispatchCloseChallengeWithoutActive(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("staff-1", "Root", "role-staff")

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandCloseChallenge, "staff-1", nil))
	assert.Equal(t, messages.Default().NoActiveChallenge, ack.Message)
}

func TestDispatchGivePointsStaffOnly(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("user-1", "Ada")

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandGivePoints, "user-1", map[string]string{
		"user":   "user-2",
		"amount": "10",
	}))

	assert.Equal(t, messages.Default().StaffOnly, ack.Message)
}

func TestDispatchGivePoints(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("staff-1", "Root", "role-staff")
	f.gateway.AddMember("user-1", "Ada")

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandGivePoints, "staff-1", map[string]string{
		"user":   "user-1",
		"amount": "40",
	}))

	assert.Contains(t, ack.Message, "**40**")
	assert.Equal(t, 40, f.repo.Points("user-1"))
}

func TestDispatchGivePointsSelfRejected(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("staff-1", "Root", "role-staff")

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandGivePoints, "staff-1", map[string]string{
		"user":   "staff-1",
		"amount": "40",
	}))

	assert.Equal(t, messages.Default().SelfTarget, ack.Message)
}

func TestDispatchBadAmountRejected(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("staff-1", "Root", "role-staff")

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandTakePoints, "staff-1", map[string]string{
		"user":   "user-1",
		"amount": "lots",
	}))

	assert.Equal(t, messages.Default().InvalidAmount, ack.Message)
}

func TestDispatchPayPoints(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("user-1", "Ada")
	f.gateway.AddMember("user-2", "Grace")
	f.repo.SeedMember("user-1", 100)

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandPayPoints, "user-1", map[string]string{
		"user":   "user-2",
		"amount": "30",
	}))

	assert.Contains(t, ack.Message, "**30**")
	assert.Equal(t, 70, f.repo.Points("user-1"))
	assert.Equal(t, 30, f.repo.Points("user-2"))
}

func TestDispatchPayInsufficient(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("user-1", "Ada")
	f.repo.SeedMember("user-1", 5)

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandPayPoints, "user-1", map[string]string{
		"user":   "user-2",
		"amount": "30",
	}))

	assert.Equal(t, messages.Default().InsufficientPoints, ack.Message)
}

func TestDispatchBalance(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("user-1", "Ada")
	f.repo.SeedMember("user-1", 55)

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandBalance, "user-1", nil))

	assert.Contains(t, ack.Message, "Ada")
	assert.Contains(t, ack.Message, "**55**")
}

func TestDispatchLeaderboard(t *testing.T) {
	f := newFixture()
	f.gateway.AddMember("user-1", "Ada")
	f.gateway.AddMember("user-2", "Grace")
	f.repo.SeedMember("user-1", 10)
	f.repo.SeedMember("user-2", 90)

	ack := f.dispatcher.Dispatch(context.Background(), commandEvent("i-1", CommandLeaderboard, "user-1", nil))

	assert.Contains(t, ack.Message, "1. Grace: 90 points")
	assert.Contains(t, ack.Message, "2. Ada: 10 points")
	assert.False(t, ack.Ephemeral)
}

func TestDispatchUnknownInteraction(t *testing.T) {
	f := newFixture()

	ack := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-1", "mystery-button", "user-1", ""))
	assert.Equal(t, messages.Default().GenericError, ack.Message)

	ack = f.dispatcher.Dispatch(context.Background(), chat.InteractionEvent{ID: "i-2", Kind: "modal"})
	assert.Equal(t, messages.Default().GenericError, ack.Message)
}

func TestDispatchDistinctInteractionsBothProcessed(t *testing.T) {
	f := newFixture()
	f.startChallenge(t)
	f.gateway.AddMember("user-1", "Ada")
	f.gateway.AddMember("user-2", "Grace")

	ack1 := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-1", challenge.CustomIDOpenSubmission, "user-1", ""))
	ack2 := f.dispatcher.Dispatch(context.Background(), buttonEvent("i-2", challenge.CustomIDOpenSubmission, "user-2", ""))

	assert.NotEmpty(t, ack1.Message)
	assert.NotEmpty(t, ack2.Message)
	assert.Equal(t, 2, f.gateway.ChannelCount())
}
