package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vigild/vigil/pkg/config"
	"github.com/vigild/vigil/pkg/events"
	"github.com/vigild/vigil/pkg/logging"
	"github.com/vigild/vigil/pkg/metrics"
	"github.com/vigild/vigil/pkg/models"
	"github.com/vigild/vigil/pkg/repository"
)

// examCooldown blocks an exam retake after a fail.
const examCooldown = 24 * time.Hour

// DutyService tracks reviewer shifts and the point economy around them.
type DutyService struct {
	store   *repository.Store
	bus     *events.Bus
	cfg     config.EngineConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDutyService creates a new duty service
func NewDutyService(store *repository.Store, bus *events.Bus, cfg config.EngineConfig, logger *logging.Logger, m *metrics.Metrics) *DutyService {
	return &DutyService{
		store:   store,
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// StartShift puts the reviewer on duty.
func (s *DutyService) StartShift(ctx context.Context, reviewerID int64) error {
	reviewer, err := s.store.Reviewers.Get(ctx, reviewerID)
	if err != nil {
		return err
	}
	if !reviewer.Tier.CanReview() {
		return fmt.Errorf("%w: tier %s cannot go on duty", models.ErrNotAuthorized, reviewer.Tier)
	}

	now := s.now()
	if reviewer.OnInactivityCooldown(now) {
		return fmt.Errorf("%w: inactivity cooldown until %s", models.ErrOnCooldown,
			reviewer.InactivityCooldownUntil.Format(time.RFC3339))
	}
	if reviewer.OnDuty {
		return fmt.Errorf("%w: already on duty", models.ErrOnCooldown)
	}

	if err := s.store.Reviewers.SetDuty(ctx, reviewerID, true, &now); err != nil {
		return fmt.Errorf("start shift: %w", err)
	}

	s.metrics.ReviewersOnDuty.Inc()
	s.logger.Info("shift started", zap.Int64("reviewer_id", reviewerID))
	s.bus.Publish(events.Event{Type: events.EventShiftStarted, ReviewerID: reviewerID})
	return nil
}

// StopShift takes the reviewer off duty and awards PointsPerHour for each
// completed hour on shift.
func (s *DutyService) StopShift(ctx context.Context, reviewerID int64) (pointsEarned int, err error) {
	reviewer, err := s.store.Reviewers.Get(ctx, reviewerID)
	if err != nil {
		return 0, err
	}
	if !reviewer.OnDuty || reviewer.ShiftStart == nil {
		return 0, fmt.Errorf("%w: not on duty", models.ErrNotAuthorized)
	}

	now := s.now()
	hours := int(now.Sub(*reviewer.ShiftStart) / time.Hour)
	pointsEarned = hours * s.cfg.PointsPerHour

	if err := s.store.Reviewers.SetDuty(ctx, reviewerID, false, nil); err != nil {
		return 0, fmt.Errorf("stop shift: %w", err)
	}
	if pointsEarned > 0 {
		if err := s.store.Reviewers.AdjustPointsXP(ctx, reviewerID, pointsEarned, pointsEarned*2); err != nil {
			return 0, fmt.Errorf("shift payout: %w", err)
		}
	}

	s.metrics.ReviewersOnDuty.Dec()
	s.logger.Info("shift stopped",
		zap.Int64("reviewer_id", reviewerID),
		zap.Int("points_earned", pointsEarned),
	)
	s.bus.Publish(events.Event{Type: events.EventShiftStopped, ReviewerID: reviewerID})
	return pointsEarned, nil
}

// AccrueTick credits the hourly points to every on-duty reviewer. Safety net
// for reviewers who never stop their shift.
func (s *DutyService) AccrueTick(ctx context.Context) error {
	reviewers, err := s.store.Reviewers.ListOnDuty(ctx, models.ReviewerTiers)
	if err != nil {
		return fmt.Errorf("list on duty: %w", err)
	}

	for _, reviewer := range reviewers {
		if err := s.store.Reviewers.AdjustPointsXP(ctx, reviewer.ID, s.cfg.PointsPerHour, s.cfg.PointsPerHour*2); err != nil {
			s.logger.Error("hourly accrual failed", zap.Int64("reviewer_id", reviewer.ID), zap.Error(err))
		}
	}

	if len(reviewers) > 0 {
		s.logger.Infof("hourly points credited to %d reviewers on duty", len(reviewers))
	}
	return nil
}

// FailExam stamps the retake cooldown after a failed guardian exam.
func (s *DutyService) FailExam(ctx context.Context, reviewerID int64) error {
	if _, err := s.store.Reviewers.Get(ctx, reviewerID); err != nil {
		return err
	}
	return s.store.Reviewers.SetExamCooldown(ctx, reviewerID, s.now().Add(examCooldown))
}

// PassExam promotes a User to Guardian. Any other tier is left untouched:
// tiers only move upward.
func (s *DutyService) PassExam(ctx context.Context, reviewerID int64) error {
	reviewer, err := s.store.Reviewers.Get(ctx, reviewerID)
	if err != nil {
		return err
	}
	if reviewer.Tier != models.TierUser {
		return nil
	}
	if err := s.store.Reviewers.SetTier(ctx, reviewerID, models.TierGuardian); err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	s.logger.Info("reviewer promoted to guardian", zap.Int64("reviewer_id", reviewerID))
	return nil
}
