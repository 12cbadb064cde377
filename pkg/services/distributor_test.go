package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vigild/vigil/pkg/models"
)

func TestTickDeliversToOnDutyGuardians(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "1010101010101010", models.ReportPending, false)
	for id := int64(1); id <= 3; id++ {
		env.seedReviewer(t, id, models.TierGuardian, true)
	}

	env.adapter.On("SendDM", mock.Anything, mock.Anything, mock.Anything).Return(int64(500), nil)

	require.NoError(t, d.Tick(ctx))

	// All three guardians are needed toward the required weight of 5.
	engaged, err := env.store.Assignments.ListEngagedReviewerIDs(ctx, report.ID)
	require.NoError(t, err)
	assert.Len(t, engaged, 3)

	// First delivery moves the report into analysis.
	loaded, err := env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportInAnalysis, loaded.Status)
}

func TestTickSkipsReporterAndAccused(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "2020202020202020", models.ReportPending, false)
	// The reporter and the accused are on duty but must never review.
	env.seedReviewer(t, report.ReporterID, models.TierGuardian, true)
	env.seedReviewer(t, report.AccusedID, models.TierGuardian, true)
	env.seedReviewer(t, 3, models.TierGuardian, true)

	env.adapter.On("SendDM", mock.Anything, mock.Anything, mock.Anything).Return(int64(500), nil)

	require.NoError(t, d.Tick(ctx))

	engaged, err := env.store.Assignments.ListEngagedReviewerIDs(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, engaged)
}

func TestDispenseCooldownExcludesReviewer(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	// Reviewer dispensed another report 5 minutes ago; the cooldown runs
	// another 5 minutes.
	reviewer := env.seedReviewer(t, 1, models.TierGuardian, true)
	until := env.now.Add(5 * time.Minute)
	require.NoError(t, env.store.Reviewers.SetDispenseCooldown(ctx, reviewer.ID, until))

	report := env.seedReport(t, "3030303030303030", models.ReportPending, false)

	require.NoError(t, d.Tick(ctx))

	engaged, err := env.store.Assignments.ListEngagedReviewerIDs(ctx, report.ID)
	require.NoError(t, err)
	assert.Empty(t, engaged, "a reviewer on dispense cooldown is not eligible")
}

func TestTierFallbackAddsModeratorsForAgedReports(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	env.seedReviewer(t, 1, models.TierGuardian, true)
	env.seedReviewer(t, 2, models.TierModerator, true)

	fresh := env.seedReport(t, "4040404040404040", models.ReportPending, false)
	tiers, err := d.candidateTiers(ctx, fresh, env.now)
	require.NoError(t, err)
	assert.Equal(t, []models.Tier{models.TierGuardian}, tiers)

	aged := env.seedReport(t, "5050505050505050", models.ReportPending, false)
	tiers, err = d.candidateTiers(ctx, aged, env.now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Contains(t, tiers, models.TierModerator)
	assert.Contains(t, tiers, models.TierAdministrator)
}

func TestTierFallbackPremiumWithFewGuardians(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	env.seedReviewer(t, 1, models.TierGuardian, true)
	env.seedReviewer(t, 2, models.TierModerator, true)

	premium := env.seedReport(t, "6060606060606060", models.ReportPending, true)
	tiers, err := d.candidateTiers(ctx, premium, env.now)
	require.NoError(t, err)
	assert.Contains(t, tiers, models.TierGuardian)
	assert.Contains(t, tiers, models.TierModerator)
}

func TestTierFallbackNoGuardiansOnDuty(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	env.seedReviewer(t, 2, models.TierModerator, true)

	report := env.seedReport(t, "7070707070707070", models.ReportPending, false)
	tiers, err := d.candidateTiers(ctx, report, env.now)
	require.NoError(t, err)
	assert.Equal(t, []models.Tier{models.TierModerator, models.TierAdministrator}, tiers)
}

func TestNeededDeliveriesCountsOutstandingConservatively(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "8080808080808080", models.ReportInAnalysis, false)

	// Two votes of weight 1 plus one live delivery: 5 - 2 - 1 = 2 wanted.
	require.NoError(t, env.store.Votes.Insert(ctx, &models.Vote{ReportID: report.ID, ReviewerID: 1, Choice: models.VoteOK, Weight: 1, CastAt: env.now}))
	require.NoError(t, env.store.Votes.Insert(ctx, &models.Vote{ReportID: report.ID, ReviewerID: 2, Choice: models.VoteSerious, Weight: 1, CastAt: env.now}))
	require.NoError(t, env.store.Assignments.Insert(ctx, &models.Assignment{
		ReportID: report.ID, ReviewerID: 3,
		State: models.AssignmentDelivered, DeliveredAt: env.now, ExpiresAt: env.now.Add(5 * time.Minute),
	}, 10))

	needed, err := d.neededDeliveries(ctx, report, env.now)
	require.NoError(t, err)
	assert.Equal(t, 2, needed)
}

func TestTickDeliversSecondRoundForAppealedReport(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	verdictAt := env.now.Add(-time.Hour)
	firstVerdict := models.VerdictSerious
	report := &models.Report{
		Hash: "9191919191919191", ReporterID: 1000, AccusedID: 2000,
		GuildID: 1, ChannelID: 10, Reason: "flood",
		Status: models.ReportAppealed, FinalVerdict: &firstVerdict, VerdictAt: &verdictAt,
		CreatedAt: env.now.Add(-2 * time.Hour),
	}
	require.NoError(t, env.store.Reports.Create(ctx, report))

	// Round one closed at weight 5; those voters stay excluded.
	for id := int64(1); id <= 5; id++ {
		env.seedReviewer(t, id, models.TierGuardian, true)
		require.NoError(t, env.store.Votes.Insert(ctx, &models.Vote{
			ReportID: report.ID, ReviewerID: id, Choice: models.VoteSerious,
			Weight: 1, CastAt: verdictAt.Add(-time.Minute),
		}))
	}
	env.seedReviewer(t, 6, models.TierGuardian, true)
	env.seedReviewer(t, 7, models.TierGuardian, true)

	env.adapter.On("SendDM", mock.Anything, mock.Anything, mock.Anything).Return(int64(510), nil)

	needed, err := d.neededDeliveries(ctx, report, env.now)
	require.NoError(t, err)
	assert.Equal(t, 5, needed, "the appeal round wants a fresh required-weight")

	require.NoError(t, d.Tick(ctx))

	engaged, err := env.store.Assignments.ListEngagedReviewerIDs(ctx, report.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{6, 7}, engaged, "only reviewers without a first-round vote are eligible")
}

func TestCaptureGraceHoldsEmptyReports(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	env.seedReviewer(t, 1, models.TierGuardian, true)

	// Report created 2 seconds ago with no evidence captured yet.
	report := &models.Report{
		Hash: "9090909090909090", ReporterID: 1000, AccusedID: 2000,
		GuildID: 1, ChannelID: 10, Reason: "flood",
		Status: models.ReportPending, CreatedAt: env.now.Add(-2 * time.Second),
	}
	require.NoError(t, env.store.Reports.Create(ctx, report))

	require.NoError(t, d.Tick(ctx))

	engaged, err := env.store.Assignments.ListEngagedReviewerIDs(ctx, report.ID)
	require.NoError(t, err)
	assert.Empty(t, engaged, "zero-evidence reports wait out the capture grace")
}

func TestAcceptShowsEvidenceAndArmsDeadline(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "a0a0a0a0a0a0a0a0", models.ReportInAnalysis, false)
	env.seedReviewer(t, 1, models.TierGuardian, true)
	require.NoError(t, env.store.Messages.BulkInsert(ctx, []models.CapturedMessage{
		{ReportID: report.ID, AuthorID: report.AccusedID, Content: "bad words", SentAt: env.now.Add(-time.Minute)},
	}))

	assignment := &models.Assignment{
		ReportID: report.ID, ReviewerID: 1, DMMessageID: 600,
		State: models.AssignmentDelivered, DeliveredAt: env.now, ExpiresAt: env.now.Add(5 * time.Minute),
	}
	require.NoError(t, env.store.Assignments.Insert(ctx, assignment, 10))

	env.adapter.On("EditDM", mock.Anything, int64(1), int64(600), mock.Anything).Return(nil)

	require.NoError(t, d.Accept(ctx, report.ID, 1))

	loaded, err := env.store.Assignments.Get(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAccepted, loaded.State)
	require.NotNil(t, loaded.VoteDeadline)
	assert.WithinDuration(t, env.now.Add(5*time.Minute), *loaded.VoteDeadline, time.Second)

	env.adapter.AssertCalled(t, "EditDM", mock.Anything, int64(1), int64(600), mock.Anything)
}

func TestAcceptRaceSurfacesNoSlot(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "b0b0b0b0b0b0b0b0", models.ReportInAnalysis, false)
	env.seedReviewer(t, 1, models.TierGuardian, true)
	env.adapter.On("EditDM", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	assignment := &models.Assignment{
		ReportID: report.ID, ReviewerID: 1,
		State: models.AssignmentDelivered, DeliveredAt: env.now, ExpiresAt: env.now.Add(5 * time.Minute),
	}
	require.NoError(t, env.store.Assignments.Insert(ctx, assignment, 10))

	require.NoError(t, d.Accept(ctx, report.ID, 1))
	assert.ErrorIs(t, d.Accept(ctx, report.ID, 1), models.ErrNoSlotAvailable)
}

func TestDispenseSetsCooldown(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "c0c0c0c0c0c0c0c0", models.ReportInAnalysis, false)
	env.seedReviewer(t, 1, models.TierGuardian, true)

	assignment := &models.Assignment{
		ReportID: report.ID, ReviewerID: 1, DMMessageID: 700,
		State: models.AssignmentDelivered, DeliveredAt: env.now, ExpiresAt: env.now.Add(5 * time.Minute),
	}
	require.NoError(t, env.store.Assignments.Insert(ctx, assignment, 10))
	env.adapter.On("DeleteDM", mock.Anything, int64(1), int64(700)).Return(nil)

	require.NoError(t, d.Dispense(ctx, report.ID, 1))

	loaded, err := env.store.Assignments.Get(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentDispensed, loaded.State)

	reviewer, err := env.store.Reviewers.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, reviewer.DispenseCooldownUntil)
	assert.WithinDuration(t, env.now.Add(10*time.Minute), *reviewer.DispenseCooldownUntil, time.Second)
}

func TestSweepExpiredFreesDeliveries(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "d0d0d0d0d0d0d0d0", models.ReportInAnalysis, false)
	assignment := &models.Assignment{
		ReportID: report.ID, ReviewerID: 1, DMMessageID: 800,
		State: models.AssignmentDelivered, DeliveredAt: env.now.Add(-10 * time.Minute), ExpiresAt: env.now.Add(-5 * time.Minute),
	}
	require.NoError(t, env.store.Assignments.Insert(ctx, assignment, 10))
	env.adapter.On("DeleteDM", mock.Anything, int64(1), int64(800)).Return(nil)

	require.NoError(t, d.SweepExpired(ctx))

	loaded, err := env.store.Assignments.Get(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentExpired, loaded.State)
	env.adapter.AssertCalled(t, "DeleteDM", mock.Anything, int64(1), int64(800))
}

func TestSweepOverdueVotesPenalizesExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	d := env.distributor(t)
	ctx := context.Background()

	report := env.seedReport(t, "e0e0e0e0e0e0e0e0", models.ReportInAnalysis, false)
	env.seedReviewer(t, 1, models.TierGuardian, true)
	require.NoError(t, env.store.Reviewers.AdjustPointsXP(ctx, 1, 20, 40))

	accepted := env.now.Add(-10 * time.Minute)
	deadline := env.now.Add(-5 * time.Minute)
	assignment := &models.Assignment{
		ReportID: report.ID, ReviewerID: 1,
		State: models.AssignmentAccepted, DeliveredAt: accepted, ExpiresAt: accepted.Add(5 * time.Minute),
		AcceptedAt: &accepted, VoteDeadline: &deadline,
	}
	require.NoError(t, env.store.Assignments.Insert(ctx, assignment, 10))
	env.adapter.On("SendDM", mock.Anything, int64(1), mock.Anything).Return(int64(900), nil)

	require.NoError(t, d.SweepOverdueVotes(ctx))
	// A second sweep finds nothing; the penalty applies exactly once.
	require.NoError(t, d.SweepOverdueVotes(ctx))

	loaded, err := env.store.Assignments.Get(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentInactive, loaded.State)

	reviewer, err := env.store.Reviewers.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 15, reviewer.Points)
	assert.Equal(t, 30, reviewer.Experience)
	require.NotNil(t, reviewer.InactivityCooldownUntil)
}
