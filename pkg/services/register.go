package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vigild/vigil/pkg/logging"
	"github.com/vigild/vigil/pkg/models"
	"github.com/vigild/vigil/pkg/repository"
)

// minAccountAge gates guardian eligibility: young platform accounts cannot
// join the reviewer pool.
const minAccountAge = 3 * 30 * 24 * time.Hour

// RegistrationService creates reviewer profiles. The full registration form
// lives outside the core; this is the gate every other operation checks.
type RegistrationService struct {
	store  *repository.Store
	logger *logging.Logger
	now    func() time.Time
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(store *repository.Store, logger *logging.Logger) *RegistrationService {
	return &RegistrationService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a Reviewer at tier User.
func (s *RegistrationService) Register(ctx context.Context, userID int64, username string, accountCreatedAt time.Time) (*models.Reviewer, error) {
	existing, err := s.store.Reviewers.Get(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotRegistered) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	reviewer := &models.Reviewer{
		ID:               userID,
		Username:         username,
		Tier:             models.TierUser,
		AccountCreatedAt: accountCreatedAt,
	}
	if err := s.store.Reviewers.Create(ctx, reviewer); err != nil {
		return nil, fmt.Errorf("create reviewer: %w", err)
	}

	s.logger.Info("reviewer registered", zap.Int64("reviewer_id", userID))
	return reviewer, nil
}

// CheckGuardianEligibility verifies the account-age gate before the exam.
func (s *RegistrationService) CheckGuardianEligibility(ctx context.Context, userID int64) error {
	reviewer, err := s.store.Reviewers.Get(ctx, userID)
	if err != nil {
		return err
	}
	if reviewer.Tier != models.TierUser {
		return fmt.Errorf("%w: already %s", models.ErrNotAuthorized, reviewer.Tier)
	}
	if reviewer.OnExamCooldown(s.now()) {
		return fmt.Errorf("%w: exam retake blocked until %s", models.ErrOnCooldown,
			reviewer.ExamCooldownUntil.Format(time.RFC3339))
	}
	if s.now().Sub(reviewer.AccountCreatedAt) < minAccountAge {
		return fmt.Errorf("%w: account must be at least 3 months old", models.ErrNotAuthorized)
	}
	return nil
}
