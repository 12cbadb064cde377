package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vigild/vigil/pkg/chat"
	"github.com/vigild/vigil/pkg/models"
)

func TestDecideRuleTable(t *testing.T) {
	cfg := models.DefaultGuildConfig(1)

	tests := []struct {
		name     string
		tally    models.Tally
		verdict  models.Verdict
		duration time.Duration
	}{
		{"ok majority", models.Tally{OK: 3, Serious: 2}, models.VerdictImprocedente, 0},
		{"overwhelming grave", models.Tally{Serious: 4, Intimidated: 1}, models.VerdictSerious, 24 * time.Hour},
		{"weighted moderator grave", models.Tally{Serious: 5}, models.VerdictSerious, 24 * time.Hour},
		{"grave three", models.Tally{Serious: 3, OK: 2}, models.VerdictSerious, 12 * time.Hour},
		{"mixed intimidated grave", models.Tally{Intimidated: 3, Serious: 2}, models.VerdictIntimidatedSerious, 6 * time.Hour},
		{"intimidated only", models.Tally{Intimidated: 3, OK: 2}, models.VerdictIntimidated, time.Hour},
		{"no rule matches", models.Tally{OK: 2, Intimidated: 2, Serious: 1}, models.VerdictImprocedente, 0},
		// First-match ordering: OK wins an exact 3-3 split with Serious.
		{"ok beats grave tie", models.Tally{OK: 3, Serious: 3}, models.VerdictImprocedente, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, duration := Decide(tt.tally, cfg)
			assert.Equal(t, tt.verdict, verdict)
			assert.Equal(t, tt.duration, duration)
		})
	}
}

func TestDecidePremiumOverridesDurationNotKind(t *testing.T) {
	cfg := models.DefaultGuildConfig(1)
	cfg.SeriousBanHours = 48

	verdict, duration := Decide(models.Tally{Serious: 4}, cfg)
	assert.Equal(t, models.VerdictSerious, verdict)
	assert.Equal(t, 48*time.Hour, duration)
}

func TestThreeOKVotesFinalizeImprocedente(t *testing.T) {
	env := newTestEnv(t)
	v := env.verdict(t)
	ctx := context.Background()

	report := env.seedReport(t, "aaaa000011112222", models.ReportInAnalysis, false)
	for id := int64(1); id <= 3; id++ {
		env.seedReviewer(t, id, models.TierGuardian, true)
		env.seedAcceptedAssignment(t, report.ID, id)
	}

	require.NoError(t, v.CastVote(ctx, report.ID, 1, models.VoteOK))
	require.NoError(t, v.CastVote(ctx, report.ID, 2, models.VoteOK))

	loaded, err := env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportInAnalysis, loaded.Status, "two votes stay below the threshold")

	require.NoError(t, v.CastVote(ctx, report.ID, 3, models.VoteOK))

	loaded, err = env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFinalized, loaded.Status)
	require.NotNil(t, loaded.FinalVerdict)
	assert.Equal(t, models.VerdictImprocedente, *loaded.FinalVerdict)

	// No punishment, no verdict DM for a dismissed report.
	env.adapter.AssertNotCalled(t, "ApplyTimeout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.adapter.AssertNotCalled(t, "SendDM", mock.Anything, report.AccusedID, mock.Anything)

	// Each OK voter earned 10 XP.
	for id := int64(1); id <= 3; id++ {
		reviewer, err := env.store.Reviewers.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 10, reviewer.Experience)
	}
}

func TestFourGraveVotesApplyDayTimeout(t *testing.T) {
	env := newTestEnv(t)
	v := env.verdict(t)
	ctx := context.Background()

	report := env.seedReport(t, "bbbb000011112222", models.ReportInAnalysis, false)
	for id := int64(1); id <= 4; id++ {
		env.seedReviewer(t, id, models.TierGuardian, true)
		env.seedAcceptedAssignment(t, report.ID, id)
	}

	env.adapter.On("WaitReady", mock.Anything, mock.Anything).Return(nil)
	env.adapter.On("ResolveGuild", mock.Anything, report.GuildID).Return(&chat.GuildInfo{ID: report.GuildID}, nil)
	env.adapter.On("ResolveMember", mock.Anything, report.GuildID, report.AccusedID).Return(&chat.MemberInfo{UserID: report.AccusedID}, nil)
	env.adapter.On("ApplyTimeout", mock.Anything, report.GuildID, report.AccusedID, 24*time.Hour, "auto - Grave").Return(nil)
	env.adapter.On("SendDM", mock.Anything, report.AccusedID, mock.Anything).Return(int64(77), nil)

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, v.CastVote(ctx, report.ID, id, models.VoteSerious))
	}

	// 3 weight is below the threshold of 5; the fourth vote decides.
	loaded, err := env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportInAnalysis, loaded.Status)

	require.NoError(t, v.CastVote(ctx, report.ID, 4, models.VoteSerious))

	loaded, err = env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFinalized, loaded.Status)
	require.NotNil(t, loaded.FinalVerdict)
	assert.Equal(t, models.VerdictSerious, *loaded.FinalVerdict)

	env.adapter.AssertCalled(t, "ApplyTimeout", mock.Anything, report.GuildID, report.AccusedID, 24*time.Hour, "auto - Grave")

	// Each Grave voter earned 20 XP, and the punishment was audited.
	for id := int64(1); id <= 4; id++ {
		reviewer, err := env.store.Reviewers.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 20, reviewer.Experience)
	}
	logs, err := env.store.Punishments.ListByGuild(ctx, report.GuildID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].Err)
	assert.Equal(t, 24, logs[0].DurationHours)
}

func TestSingleModeratorVoteDecides(t *testing.T) {
	env := newTestEnv(t)
	v := env.verdict(t)
	ctx := context.Background()

	report := env.seedReport(t, "cccc000011112222", models.ReportInAnalysis, false)
	env.seedReviewer(t, 9, models.TierModerator, true)
	env.seedAcceptedAssignment(t, report.ID, 9)

	env.adapter.On("WaitReady", mock.Anything, mock.Anything).Return(nil)
	env.adapter.On("ResolveGuild", mock.Anything, mock.Anything).Return(&chat.GuildInfo{ID: report.GuildID}, nil)
	env.adapter.On("ResolveMember", mock.Anything, mock.Anything, mock.Anything).Return(&chat.MemberInfo{UserID: report.AccusedID}, nil)
	env.adapter.On("ApplyTimeout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	env.adapter.On("SendDM", mock.Anything, report.AccusedID, mock.Anything).Return(int64(78), nil)

	require.NoError(t, v.CastVote(ctx, report.ID, 9, models.VoteSerious))

	loaded, err := env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFinalized, loaded.Status)
	require.NotNil(t, loaded.FinalVerdict)
	assert.Equal(t, models.VerdictSerious, *loaded.FinalVerdict)

	env.adapter.AssertCalled(t, "ApplyTimeout", mock.Anything, report.GuildID, report.AccusedID, 24*time.Hour, "auto - Grave")
}

func TestDuplicateVoteRejected(t *testing.T) {
	env := newTestEnv(t)
	v := env.verdict(t)
	ctx := context.Background()

	report := env.seedReport(t, "dddd000011112222", models.ReportInAnalysis, false)
	env.seedReviewer(t, 1, models.TierGuardian, true)
	env.seedAcceptedAssignment(t, report.ID, 1)

	require.NoError(t, v.CastVote(ctx, report.ID, 1, models.VoteOK))
	err := v.CastVote(ctx, report.ID, 1, models.VoteOK)
	assert.ErrorIs(t, err, models.ErrNoSlotAvailable, "the voted assignment no longer accepts votes")
}

func TestVoteOnClosedReportRejected(t *testing.T) {
	env := newTestEnv(t)
	v := env.verdict(t)
	ctx := context.Background()

	report := env.seedReport(t, "eeee000011112222", models.ReportFinalized, false)
	env.seedReviewer(t, 1, models.TierGuardian, true)

	err := v.CastVote(ctx, report.ID, 1, models.VoteOK)
	assert.ErrorIs(t, err, models.ErrReportClosed)
}

func TestAppealRoundPaysOnlyNewVoters(t *testing.T) {
	env := newTestEnv(t)
	v := env.verdict(t)
	ctx := context.Background()

	report := env.seedReport(t, "ffff000011112222", models.ReportInAnalysis, false)
	for id := int64(1); id <= 6; id++ {
		env.seedReviewer(t, id, models.TierGuardian, true)
	}

	env.adapter.On("WaitReady", mock.Anything, mock.Anything).Return(nil)
	env.adapter.On("ResolveGuild", mock.Anything, mock.Anything).Return(&chat.GuildInfo{ID: report.GuildID}, nil)
	env.adapter.On("ResolveMember", mock.Anything, mock.Anything, mock.Anything).Return(&chat.MemberInfo{UserID: report.AccusedID}, nil)
	env.adapter.On("ApplyTimeout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	env.adapter.On("SendDM", mock.Anything, report.AccusedID, mock.Anything).Return(int64(80), nil)

	// Round one: five guardians, 3 Grave / 2 OK => Grave 12h.
	for id := int64(1); id <= 5; id++ {
		env.seedAcceptedAssignment(t, report.ID, id)
		choice := models.VoteSerious
		if id > 3 {
			choice = models.VoteOK
		}
		require.NoError(t, v.CastVote(ctx, report.ID, id, choice))
	}

	loaded, err := env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportFinalized, loaded.Status)
	firstVerdictAt := *loaded.VerdictAt

	// The accused appeals. The first-round weight stays counted, so the
	// second verdict needs a full required-weight of fresh votes on top.
	ok, err := env.store.Reports.UpdateStatusCAS(ctx, report.ID,
		[]models.ReportStatus{models.ReportFinalized}, models.ReportAppealed, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	env.now = env.now.Add(time.Hour)
	env.seedAcceptedAssignment(t, report.ID, 6)
	require.NoError(t, v.CastVote(ctx, report.ID, 6, models.VoteOK))

	loaded, err = env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportAppealed, loaded.Status, "one fresh weight is below the appeal threshold")

	// A moderator's weight-5 vote completes the second round.
	env.seedReviewer(t, 9, models.TierModerator, true)
	env.seedAcceptedAssignment(t, report.ID, 9)
	require.NoError(t, v.CastVote(ctx, report.ID, 9, models.VoteOK))

	loaded, err = env.store.Reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFinalized, loaded.Status)
	assert.True(t, loaded.VerdictAt.After(firstVerdictAt))

	// Round-one voters keep their single payout; round-two voters get one.
	for id := int64(1); id <= 3; id++ {
		reviewer, err := env.store.Reviewers.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 20, reviewer.Experience, "round-one Grave voter paid once")
	}
	for id := int64(4); id <= 5; id++ {
		reviewer, err := env.store.Reviewers.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 10, reviewer.Experience, "round-one OK voter paid once")
	}
	for _, id := range []int64{6, 9} {
		reviewer, err := env.store.Reviewers.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 10, reviewer.Experience, "round-two voter paid once")
	}
}
