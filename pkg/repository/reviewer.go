package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// reviewerRepositoryImpl implements ReviewerRepository
type reviewerRepositoryImpl struct {
	db *gorm.DB
}

// NewReviewerRepository creates a new reviewer repository
func NewReviewerRepository(db *gorm.DB) ReviewerRepository {
	return &reviewerRepositoryImpl{db: db}
}

// Get retrieves a reviewer by platform user id
func (r *reviewerRepositoryImpl) Get(ctx context.Context, id int64) (*models.Reviewer, error) {
	var reviewer models.Reviewer
	result := r.db.WithContext(ctx).First(&reviewer, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotRegistered
		}
		return nil, result.Error
	}
	return &reviewer, nil
}

// Create persists a new reviewer
func (r *reviewerRepositoryImpl) Create(ctx context.Context, reviewer *models.Reviewer) error {
	return r.db.WithContext(ctx).Create(reviewer).Error
}

// Update persists every field of the reviewer
func (r *reviewerRepositoryImpl) Update(ctx context.Context, reviewer *models.Reviewer) error {
	return r.db.WithContext(ctx).Save(reviewer).Error
}

// ListOnDuty retrieves on-duty reviewers of the given tiers
func (r *reviewerRepositoryImpl) ListOnDuty(ctx context.Context, tiers []models.Tier) ([]models.Reviewer, error) {
	var reviewers []models.Reviewer
	result := r.db.WithContext(ctx).
		Where("on_duty = ?", true).
		Where("tier IN ?", tiers).
		Find(&reviewers)
	return reviewers, result.Error
}

// ListByTiers retrieves every reviewer of the given tiers
func (r *reviewerRepositoryImpl) ListByTiers(ctx context.Context, tiers []models.Tier) ([]models.Reviewer, error) {
	var reviewers []models.Reviewer
	result := r.db.WithContext(ctx).
		Where("tier IN ?", tiers).
		Find(&reviewers)
	return reviewers, result.Error
}

// CountOnDutyByTier counts on-duty reviewers of one tier
func (r *reviewerRepositoryImpl) CountOnDutyByTier(ctx context.Context, tier models.Tier) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Reviewer{}).
		Where("on_duty = ? AND tier = ?", true, tier).
		Count(&count)
	return count, result.Error
}

// AdjustPointsXP applies both deltas in one statement, clamping at zero.
// The CASE expression keeps the clamp race-free under concurrent adjusters
// and is portable across postgres and sqlite.
func (r *reviewerRepositoryImpl) AdjustPointsXP(ctx context.Context, id int64, deltaPoints, deltaXP int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Reviewer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"points":     gorm.Expr("CASE WHEN points + ? < 0 THEN 0 ELSE points + ? END", deltaPoints, deltaPoints),
			"experience": gorm.Expr("CASE WHEN experience + ? < 0 THEN 0 ELSE experience + ? END", deltaXP, deltaXP),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotRegistered
	}
	return nil
}

// SetDuty updates the shift flag and its start timestamp together
func (r *reviewerRepositoryImpl) SetDuty(ctx context.Context, id int64, onDuty bool, shiftStart *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Reviewer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"on_duty": onDuty, "shift_start": shiftStart})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotRegistered
	}
	return nil
}

// SetTier updates the reviewer's tier
func (r *reviewerRepositoryImpl) SetTier(ctx context.Context, id int64, tier models.Tier) error {
	result := r.db.WithContext(ctx).
		Model(&models.Reviewer{}).
		Where("id = ?", id).
		Update("tier", tier)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotRegistered
	}
	return nil
}

// SetDispenseCooldown stamps the dispense cooldown expiry
func (r *reviewerRepositoryImpl) SetDispenseCooldown(ctx context.Context, id int64, until time.Time) error {
	return r.setCooldown(ctx, id, "dispense_cooldown_until", until)
}

// SetInactivityCooldown stamps the inactivity cooldown expiry
func (r *reviewerRepositoryImpl) SetInactivityCooldown(ctx context.Context, id int64, until time.Time) error {
	return r.setCooldown(ctx, id, "inactivity_cooldown_until", until)
}

// SetExamCooldown stamps the exam retake cooldown expiry
func (r *reviewerRepositoryImpl) SetExamCooldown(ctx context.Context, id int64, until time.Time) error {
	return r.setCooldown(ctx, id, "exam_cooldown_until", until)
}

func (r *reviewerRepositoryImpl) setCooldown(ctx context.Context, id int64, column string, until time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Reviewer{}).
		Where("id = ?", id).
		Update(column, until)
	if result.Error != nil {
		return fmt.Errorf("failed to set %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotRegistered
	}
	return nil
}
