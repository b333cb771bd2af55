package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/training-hub/training-hub/internal/application/command"
	"github.com/training-hub/training-hub/internal/domain/badge"
	"github.com/training-hub/training-hub/internal/domain/campaign"
	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeActivityRepo struct {
	xpByUser   map[string]int
	daysByUser map[string]map[string]time.Time
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{
		xpByUser:   make(map[string]int),
		daysByUser: make(map[string]map[string]time.Time),
	}
}

func (r *fakeActivityRepo) RecordActivity(_ context.Context, userID string, day time.Time, xpDelta, _ int) error {
	r.xpByUser[userID] += xpDelta
	if r.daysByUser[userID] == nil {
		r.daysByUser[userID] = make(map[string]time.Time)
	}
	r.daysByUser[userID][timeutil.DayKey(day)] = day
	return nil
}

func (r *fakeActivityRepo) ActiveDays(_ context.Context, userID string, _ time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range r.daysByUser[userID] {
		out = append(out, d)
	}
	return out, nil
}

func (r *fakeActivityRepo) TotalXP(_ context.Context, userID string) (int, error) {
	return r.xpByUser[userID], nil
}

func (r *fakeActivityRepo) UsersActiveSince(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

type fakeEnrollmentRepo struct {
	byKey map[string]*enrollment.Enrollment
}

func (r *fakeEnrollmentRepo) key(userID, campaignID string) string { return userID + "/" + campaignID }

func (r *fakeEnrollmentRepo) GetOrCreate(ctx context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	return r.Get(ctx, userID, campaignID)
}

func (r *fakeEnrollmentRepo) Get(_ context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	e, ok := r.byKey[r.key(userID, campaignID)]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return e, nil
}

func (r *fakeEnrollmentRepo) Save(_ context.Context, e *enrollment.Enrollment) error {
	r.byKey[r.key(e.UserID, e.CampaignID)] = e
	return nil
}

func (r *fakeEnrollmentRepo) ListByUser(_ context.Context, _ string) ([]*enrollment.Enrollment, error) {
	return nil, nil
}

func (r *fakeEnrollmentRepo) CountCompletedByUser(_ context.Context, userID string) (int, error) {
	count := 0
	for _, e := range r.byKey {
		if e.UserID == userID && e.CompletedAt != nil {
			count++
		}
	}
	return count, nil
}

type fakeCampaignRepo struct {
	byID map[string]*campaign.Campaign
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id string) (*campaign.Campaign, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrCampaignNotFound
	}
	return c, nil
}
func (r *fakeCampaignRepo) List(_ context.Context) ([]*campaign.Campaign, error) { return nil, nil }
func (r *fakeCampaignRepo) Save(_ context.Context, _ *campaign.Campaign) error   { return nil }

type fakePublisher struct {
	published []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) byType(t shared.EventType) []shared.Event {
	var out []shared.Event
	for _, e := range p.published {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeBadgeRepo struct {
	held map[string]map[string]time.Time
}

func newFakeBadgeRepo() *fakeBadgeRepo {
	return &fakeBadgeRepo{held: make(map[string]map[string]time.Time)}
}

func (r *fakeBadgeRepo) HeldBadgeIDs(_ context.Context, userID string) (map[string]bool, error) {
	out := make(map[string]bool)
	for id := range r.held[userID] {
		out[id] = true
	}
	return out, nil
}

func (r *fakeBadgeRepo) EarnedBadges(_ context.Context, _ string) ([]badge.Earned, error) {
	return nil, nil
}

func (r *fakeBadgeRepo) Award(_ context.Context, userID, badgeID string, earnedAt time.Time) error {
	if r.held[userID] == nil {
		r.held[userID] = make(map[string]time.Time)
	}
	r.held[userID][badgeID] = earnedAt
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func twoModuleCampaign() *campaign.Campaign {
	return &campaign.Campaign{
		ID:    "go-basics",
		Title: "Go Basics",
		Items: []campaign.Item{
			{ID: "m1", VideoID: "v1", QuestionCount: 3},
			{ID: "m2", VideoID: "v2", QuestionCount: 3},
		},
		Computed: campaign.Computed{TotalItems: 2, TotalXP: 200},
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
}

func newHandlerUnderTest(
	activity *fakeActivityRepo,
	enrollments *fakeEnrollmentRepo,
	pub *fakePublisher,
) *OnModuleCompletedHandler {
	campaigns := &fakeCampaignRepo{byID: map[string]*campaign.Campaign{"go-basics": twoModuleCampaign()}}
	return NewOnModuleCompletedHandler(activity, enrollments, campaigns, pub, nil, time.UTC).
		WithClock(fixedNow)
}

func completionEvent(moduleID string, xp int) shared.ModuleCompletedEvent {
	return shared.NewModuleCompletedEvent("user-1", "go-basics", moduleID, 0, 2, xp)
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestOnModuleCompleted_GrantsXPAndRecordsDay(t *testing.T) {
	activity := newFakeActivityRepo()
	enrollments := &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}
	e := enrollment.New("user-1", "go-basics", fixedNow())
	e.MarkModuleFinished("m1", 3, fixedNow())
	enrollments.byKey["user-1/go-basics"] = e
	pub := &fakePublisher{}

	h := newHandlerUnderTest(activity, enrollments, pub)
	err := h.Handle(completionEvent("m1", 100))

	assert.NoError(t, err)
	assert.Equal(t, 100, activity.xpByUser["user-1"])

	xpEvents := pub.byType(shared.EventXPGained)
	assert.Len(t, xpEvents, 1)
	gained := xpEvents[0].(shared.XPGainedEvent)
	assert.Equal(t, 100, gained.Amount)
	assert.Equal(t, 100, gained.NewTotal)
}

func TestOnModuleCompleted_LevelUpOnBoundary(t *testing.T) {
	activity := newFakeActivityRepo()
	enrollments := &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}
	e := enrollment.New("user-1", "go-basics", fixedNow())
	e.MarkModuleFinished("m1", 3, fixedNow())
	enrollments.byKey["user-1/go-basics"] = e
	pub := &fakePublisher{}

	h := newHandlerUnderTest(activity, enrollments, pub)
	// 100 XP moves the total from 0 to 100: level 1 -> 2.
	err := h.Handle(completionEvent("m1", 100))

	assert.NoError(t, err)
	levelUps := pub.byType(shared.EventLevelUp)
	assert.Len(t, levelUps, 1)
	up := levelUps[0].(shared.LevelUpEvent)
	assert.Equal(t, 1, up.OldLevel)
	assert.Equal(t, 2, up.NewLevel)
}

func TestOnModuleCompleted_NoLevelUpInsideLevel(t *testing.T) {
	activity := newFakeActivityRepo()
	enrollments := &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}
	e := enrollment.New("user-1", "go-basics", fixedNow())
	e.MarkModuleFinished("m1", 3, fixedNow())
	enrollments.byKey["user-1/go-basics"] = e
	pub := &fakePublisher{}

	h := newHandlerUnderTest(activity, enrollments, pub)
	err := h.Handle(completionEvent("m1", 40))

	assert.NoError(t, err)
	assert.Empty(t, pub.byType(shared.EventLevelUp))
}

func TestOnModuleCompleted_StreakUpdatedAndMilestone(t *testing.T) {
	activity := newFakeActivityRepo()
	// Two prior consecutive days already on record.
	_ = activity.RecordActivity(context.Background(), "user-1", fixedNow().AddDate(0, 0, -2), 10, 1)
	_ = activity.RecordActivity(context.Background(), "user-1", fixedNow().AddDate(0, 0, -1), 10, 1)

	enrollments := &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}
	e := enrollment.New("user-1", "go-basics", fixedNow())
	e.MarkModuleFinished("m1", 3, fixedNow())
	enrollments.byKey["user-1/go-basics"] = e
	pub := &fakePublisher{}

	h := newHandlerUnderTest(activity, enrollments, pub)
	err := h.Handle(completionEvent("m1", 40))

	assert.NoError(t, err)

	updates := pub.byType(shared.EventStreakUpdated)
	assert.Len(t, updates, 1)
	assert.Equal(t, 3, updates[0].(shared.StreakUpdatedEvent).CurrentStreak)

	milestones := pub.byType(shared.EventStreakMilestone)
	assert.Len(t, milestones, 1, "day three is a milestone")
	assert.Equal(t, 3, milestones[0].(shared.StreakMilestoneEvent).Days)
}

func TestOnModuleCompleted_LastModuleFinishesCampaign(t *testing.T) {
	activity := newFakeActivityRepo()
	enrollments := &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}
	e := enrollment.New("user-1", "go-basics", fixedNow())
	e.MarkModuleFinished("m1", 3, fixedNow())
	e.MarkModuleFinished("m2", 3, fixedNow())
	enrollments.byKey["user-1/go-basics"] = e
	pub := &fakePublisher{}

	h := newHandlerUnderTest(activity, enrollments, pub)
	err := h.Handle(completionEvent("m2", 100))

	assert.NoError(t, err)

	completions := pub.byType(shared.EventCampaignCompleted)
	assert.Len(t, completions, 1)
	done := completions[0].(shared.CampaignCompletedEvent)
	assert.Equal(t, "go-basics", done.CampaignID)
	assert.Equal(t, 200, done.TotalXP)
	assert.NotNil(t, e.CompletedAt)

	// Replay: the enrollment is already completed, no second event.
	err = h.Handle(completionEvent("m2", 100))
	assert.NoError(t, err)
	assert.Len(t, pub.byType(shared.EventCampaignCompleted), 1)
}

func TestOnModuleCompleted_IncompleteCampaignStaysOpen(t *testing.T) {
	activity := newFakeActivityRepo()
	enrollments := &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}
	e := enrollment.New("user-1", "go-basics", fixedNow())
	e.MarkModuleFinished("m1", 3, fixedNow())
	enrollments.byKey["user-1/go-basics"] = e
	pub := &fakePublisher{}

	h := newHandlerUnderTest(activity, enrollments, pub)
	err := h.Handle(completionEvent("m1", 100))

	assert.NoError(t, err)
	assert.Empty(t, pub.byType(shared.EventCampaignCompleted))
	assert.Nil(t, e.CompletedAt)
}

func TestOnModuleCompleted_IgnoresForeignEvents(t *testing.T) {
	pub := &fakePublisher{}
	h := newHandlerUnderTest(newFakeActivityRepo(), &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}, pub)

	err := h.Handle(shared.NewXPGainedEvent("user-1", 10, 10, "module_completion", "m1"))

	assert.NoError(t, err)
	assert.Empty(t, pub.published)
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE TRIGGER
// ══════════════════════════════════════════════════════════════════════════════

func TestOnBadgeTrigger_AwardsOnCampaignCompleted(t *testing.T) {
	badgeRepo := newFakeBadgeRepo()
	enrollments := &fakeEnrollmentRepo{byKey: map[string]*enrollment.Enrollment{}}
	e := enrollment.New("user-1", "go-basics", fixedNow())
	e.MarkCampaignCompleted(fixedNow())
	enrollments.byKey["user-1/go-basics"] = e

	pub := &fakePublisher{}
	recalc := command.NewRecalculateBadgesHandler(badgeRepo, enrollments, newFakeActivityRepo(), nil, pub).
		WithClock(fixedNow)
	h := NewOnBadgeTriggerHandler(recalc, nil)

	err := h.Handle(shared.NewCampaignCompletedEvent("user-1", "go-basics", fixedNow(), 200))

	assert.NoError(t, err)
	assert.Contains(t, badgeRepo.held["user-1"], "campaigns-1")
	assert.Len(t, pub.byType(shared.EventBadgeEarned), 1)
}

func TestOnBadgeTrigger_SubscribesToAllTriggerTypes(t *testing.T) {
	h := NewOnBadgeTriggerHandler(nil, nil)
	types := h.EventTypes()

	assert.Contains(t, types, shared.EventCampaignCompleted)
	assert.Contains(t, types, shared.EventLevelUp)
	assert.Contains(t, types, shared.EventStreakMilestone)
}
