package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// messageRepositoryImpl implements MessageRepository
type messageRepositoryImpl struct {
	db *gorm.DB
}

// NewMessageRepository creates a new captured-message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepositoryImpl{db: db}
}

// BulkInsert persists the whole evidence snapshot in one batch
func (r *messageRepositoryImpl) BulkInsert(ctx context.Context, messages []models.CapturedMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(messages, 100).Error
}

// ListByReport retrieves the evidence newest first
func (r *messageRepositoryImpl) ListByReport(ctx context.Context, reportID int64) ([]models.CapturedMessage, error) {
	var messages []models.CapturedMessage
	result := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("sent_at DESC").
		Order("id DESC").
		Find(&messages)
	return messages, result.Error
}

// CountByReport counts the captured messages of a report
func (r *messageRepositoryImpl) CountByReport(ctx context.Context, reportID int64) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.CapturedMessage{}).
		Where("report_id = ?", reportID).
		Count(&count)
	return count, result.Error
}
