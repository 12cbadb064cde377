package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// assignmentRepositoryImpl implements AssignmentRepository
type assignmentRepositoryImpl struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepositoryImpl{db: db}
}

// Insert creates a Delivered assignment inside one transaction that holds
// the slot constraints: no second active assignment for the same reviewer on
// the same report, and at most maxOutstanding live deliveries per report.
func (r *assignmentRepositoryImpl) Insert(ctx context.Context, assignment *models.Assignment, maxOutstanding int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.Assignment{}).
			Where("report_id = ? AND reviewer_id = ?", assignment.ReportID, assignment.ReviewerID).
			Where("state IN ?", []models.AssignmentState{models.AssignmentDelivered, models.AssignmentAccepted}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return models.ErrNoSlotAvailable
		}

		var outstanding int64
		if err := tx.Model(&models.Assignment{}).
			Where("report_id = ? AND state = ? AND expires_at > ?",
				assignment.ReportID, models.AssignmentDelivered, assignment.DeliveredAt).
			Count(&outstanding).Error; err != nil {
			return err
		}
		if int(outstanding) >= maxOutstanding {
			return models.ErrNoSlotAvailable
		}

		return tx.Create(assignment).Error
	})
}

// Get retrieves an assignment by id
func (r *assignmentRepositoryImpl) Get(ctx context.Context, id int64) (*models.Assignment, error) {
	var assignment models.Assignment
	result := r.db.WithContext(ctx).First(&assignment, "id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &assignment, nil
}

// GetActive retrieves the reviewer's live assignment on a report, if any
func (r *assignmentRepositoryImpl) GetActive(ctx context.Context, reportID, reviewerID int64) (*models.Assignment, error) {
	var assignment models.Assignment
	result := r.db.WithContext(ctx).
		Where("report_id = ? AND reviewer_id = ?", reportID, reviewerID).
		Where("state IN ?", []models.AssignmentState{models.AssignmentDelivered, models.AssignmentAccepted}).
		First(&assignment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrNoSlotAvailable
		}
		return nil, result.Error
	}
	return &assignment, nil
}

// UpdateStateCAS transitions state only from the expected value
func (r *assignmentRepositoryImpl) UpdateStateCAS(ctx context.Context, id int64, from, to models.AssignmentState) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetDMMessageID records the delivered DM once the send returns
func (r *assignmentRepositoryImpl) SetDMMessageID(ctx context.Context, id int64, messageID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("dm_message_id", messageID).Error
}

// MarkAccepted transitions Delivered -> Accepted and arms the vote deadline
func (r *assignmentRepositoryImpl) MarkAccepted(ctx context.Context, id int64, at time.Time, deadline time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND state = ?", id, models.AssignmentDelivered).
		Updates(map[string]interface{}{
			"state":         models.AssignmentAccepted,
			"accepted_at":   at,
			"vote_deadline": deadline,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpiredDelivered returns Delivered assignments past their TTL
func (r *assignmentRepositoryImpl) ListExpiredDelivered(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	result := r.db.WithContext(ctx).
		Where("state = ? AND expires_at <= ?", models.AssignmentDelivered, now).
		Find(&assignments)
	return assignments, result.Error
}

// ListOverdueAccepted returns Accepted assignments past their vote deadline
func (r *assignmentRepositoryImpl) ListOverdueAccepted(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	result := r.db.WithContext(ctx).
		Where("state = ? AND vote_deadline IS NOT NULL AND vote_deadline <= ?", models.AssignmentAccepted, now).
		Find(&assignments)
	return assignments, result.Error
}

// CountOutstanding counts Delivered assignments still within TTL
func (r *assignmentRepositoryImpl) CountOutstanding(ctx context.Context, reportID int64, now time.Time) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("report_id = ? AND state = ? AND expires_at > ?", reportID, models.AssignmentDelivered, now).
		Count(&count)
	return count, result.Error
}

// ListEngagedReviewerIDs returns reviewers holding a live assignment on the report
func (r *assignmentRepositoryImpl) ListEngagedReviewerIDs(ctx context.Context, reportID int64) ([]int64, error) {
	var ids []int64
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("report_id = ?", reportID).
		Where("state IN ?", []models.AssignmentState{models.AssignmentDelivered, models.AssignmentAccepted}).
		Pluck("reviewer_id", &ids)
	return ids, result.Error
}

// ListActiveByReviewer returns the reviewer's live assignments across reports
func (r *assignmentRepositoryImpl) ListActiveByReviewer(ctx context.Context, reviewerID int64) ([]models.Assignment, error) {
	var assignments []models.Assignment
	result := r.db.WithContext(ctx).
		Where("reviewer_id = ?", reviewerID).
		Where("state IN ?", []models.AssignmentState{models.AssignmentDelivered, models.AssignmentAccepted}).
		Find(&assignments)
	return assignments, result.Error
}
