package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// captchaRepositoryImpl implements CaptchaRepository
type captchaRepositoryImpl struct {
	db *gorm.DB
}

// NewCaptchaRepository creates a new captcha repository
func NewCaptchaRepository(db *gorm.DB) CaptchaRepository {
	return &captchaRepositoryImpl{db: db}
}

// Insert persists a new pending challenge
func (r *captchaRepositoryImpl) Insert(ctx context.Context, captcha *models.Captcha) error {
	return r.db.WithContext(ctx).Create(captcha).Error
}

// GetPendingByReviewer retrieves the reviewer's open challenge, if any
func (r *captchaRepositoryImpl) GetPendingByReviewer(ctx context.Context, reviewerID int64) (*models.Captcha, error) {
	var captcha models.Captcha
	result := r.db.WithContext(ctx).
		Where("reviewer_id = ? AND status = ?", reviewerID, models.CaptchaPending).
		Order("issued_at DESC").
		First(&captcha)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &captcha, nil
}

// HasPendingSince reports whether a challenge was issued after the instant
func (r *captchaRepositoryImpl) HasPendingSince(ctx context.Context, reviewerID int64, since time.Time) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Captcha{}).
		Where("reviewer_id = ? AND status = ? AND issued_at >= ?", reviewerID, models.CaptchaPending, since).
		Count(&count)
	return count > 0, result.Error
}

// HasPassSince reports whether the reviewer answered correctly after the instant
func (r *captchaRepositoryImpl) HasPassSince(ctx context.Context, reviewerID int64, since time.Time) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Captcha{}).
		Where("reviewer_id = ? AND status = ? AND answered_at >= ?", reviewerID, models.CaptchaAnswered, since).
		Count(&count)
	return count > 0, result.Error
}

// MarkAnswered transitions Pending -> Answered
func (r *captchaRepositoryImpl) MarkAnswered(ctx context.Context, id int64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Captcha{}).
		Where("id = ? AND status = ?", id, models.CaptchaPending).
		Updates(map[string]interface{}{"status": models.CaptchaAnswered, "answered_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpiredPending returns pending challenges past their TTL
func (r *captchaRepositoryImpl) ListExpiredPending(ctx context.Context, now time.Time) ([]models.Captcha, error) {
	var captchas []models.Captcha
	result := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.CaptchaPending, now).
		Find(&captchas)
	return captchas, result.Error
}

// MarkExpired transitions Pending -> Expired and records the penalty taken
func (r *captchaRepositoryImpl) MarkExpired(ctx context.Context, id int64, pointsPenalized int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Captcha{}).
		Where("id = ? AND status = ?", id, models.CaptchaPending).
		Updates(map[string]interface{}{"status": models.CaptchaExpired, "points_penalized": pointsPenalized})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
