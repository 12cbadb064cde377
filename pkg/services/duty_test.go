package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigild/vigil/pkg/models"
)

func TestStartShiftRequiresReviewerTier(t *testing.T) {
	env := newTestEnv(t)
	d := env.duty(t)
	ctx := context.Background()

	env.seedReviewer(t, 1, models.TierUser, false)
	assert.ErrorIs(t, d.StartShift(ctx, 1), models.ErrNotAuthorized)

	env.seedReviewer(t, 2, models.TierGuardian, false)
	require.NoError(t, d.StartShift(ctx, 2))

	reviewer, err := env.store.Reviewers.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, reviewer.OnDuty)
	require.NotNil(t, reviewer.ShiftStart, "on duty implies a shift start")
}

func TestStartShiftBlockedByInactivityCooldown(t *testing.T) {
	env := newTestEnv(t)
	d := env.duty(t)
	ctx := context.Background()

	env.seedReviewer(t, 1, models.TierGuardian, false)
	require.NoError(t, env.store.Reviewers.SetInactivityCooldown(ctx, 1, env.now.Add(30*time.Minute)))

	assert.ErrorIs(t, d.StartShift(ctx, 1), models.ErrOnCooldown)
}

func TestStopShiftAwardsCompletedHours(t *testing.T) {
	env := newTestEnv(t)
	d := env.duty(t)
	ctx := context.Background()

	reviewer := env.seedReviewer(t, 1, models.TierGuardian, false)
	start := env.now.Add(-150 * time.Minute) // 2.5 hours => 2 completed
	reviewer.OnDuty = true
	reviewer.ShiftStart = &start
	require.NoError(t, env.store.Reviewers.Update(ctx, reviewer))

	points, err := d.StopShift(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, points)

	loaded, err := env.store.Reviewers.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, loaded.OnDuty)
	assert.Nil(t, loaded.ShiftStart)
	assert.Equal(t, 2, loaded.Points)
	assert.Equal(t, 4, loaded.Experience)
}

func TestStopShiftWhenOffDuty(t *testing.T) {
	env := newTestEnv(t)
	d := env.duty(t)

	env.seedReviewer(t, 1, models.TierGuardian, false)
	_, err := d.StopShift(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNotAuthorized)
}

func TestAccrueTickCreditsOnDutyReviewers(t *testing.T) {
	env := newTestEnv(t)
	d := env.duty(t)
	ctx := context.Background()

	env.seedReviewer(t, 1, models.TierGuardian, true)
	env.seedReviewer(t, 2, models.TierModerator, true)
	env.seedReviewer(t, 3, models.TierGuardian, false)

	require.NoError(t, d.AccrueTick(ctx))

	for _, id := range []int64{1, 2} {
		reviewer, err := env.store.Reviewers.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, reviewer.Points)
		assert.Equal(t, 2, reviewer.Experience)
	}

	idle, err := env.store.Reviewers.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, idle.Points)
}

func TestExamCooldownAndPromotion(t *testing.T) {
	env := newTestEnv(t)
	d := env.duty(t)
	ctx := context.Background()

	env.seedReviewer(t, 1, models.TierUser, false)

	require.NoError(t, d.FailExam(ctx, 1))
	reviewer, err := env.store.Reviewers.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, reviewer.ExamCooldownUntil)
	assert.WithinDuration(t, env.now.Add(24*time.Hour), *reviewer.ExamCooldownUntil, time.Second)

	require.NoError(t, d.PassExam(ctx, 1))
	reviewer, err = env.store.Reviewers.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TierGuardian, reviewer.Tier)

	// A second pass leaves the tier alone.
	require.NoError(t, d.PassExam(ctx, 1))
	reviewer, err = env.store.Reviewers.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TierGuardian, reviewer.Tier)
}
