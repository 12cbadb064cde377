package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// reportRepositoryImpl implements ReportRepository
type reportRepositoryImpl struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepositoryImpl{db: db}
}

// Create persists a new report
func (r *reportRepositoryImpl) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// Get retrieves a report by surrogate id
func (r *reportRepositoryImpl) Get(ctx context.Context, id int64) (*models.Report, error) {
	var report models.Report
	result := r.db.WithContext(ctx).First(&report, "id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &report, nil
}

// GetByHash retrieves a report by its user-facing hash
func (r *reportRepositoryImpl) GetByHash(ctx context.Context, hash string) (*models.Report, error) {
	var report models.Report
	result := r.db.WithContext(ctx).First(&report, "hash = ?", hash)
	if result.Error != nil {
		return nil, result.Error
	}
	return &report, nil
}

// CountOpenByGuild counts a guild's reports in the given status
func (r *reportRepositoryImpl) CountOpenByGuild(ctx context.Context, guildID int64, status models.ReportStatus) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("guild_id = ? AND status = ?", guildID, status).
		Count(&count)
	return count, result.Error
}

// ListActionable returns reports still collecting votes, premium first, then
// oldest, then id as the stable tie-break.
func (r *reportRepositoryImpl) ListActionable(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	result := r.db.WithContext(ctx).
		Where("status IN ?", []models.ReportStatus{models.ReportPending, models.ReportInAnalysis, models.ReportAppealed}).
		Order("is_premium DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&reports)
	return reports, result.Error
}

// UpdateStatusCAS transitions status only from one of the expected values.
func (r *reportRepositoryImpl) UpdateStatusCAS(ctx context.Context, id int64, from []models.ReportStatus, to models.ReportStatus, verdict *models.Verdict, verdictAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if verdict != nil {
		updates["final_verdict"] = *verdict
	}
	if verdictAt != nil {
		updates["verdict_at"] = *verdictAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetAppealMessage records the DM message carrying the appeal button
func (r *reportRepositoryImpl) SetAppealMessage(ctx context.Context, id int64, messageID int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ?", id).
		Update("appeal_message_id", messageID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("report not found")
	}
	return nil
}
