package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// voteRepositoryImpl implements VoteRepository
type voteRepositoryImpl struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepositoryImpl{db: db}
}

// Insert records a vote. The unique index on (report_id, reviewer_id) is
// the arbiter under races; violations surface as ErrDuplicateVote.
func (r *voteRepositoryImpl) Insert(ctx context.Context, vote *models.Vote) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Vote{}).
			Where("report_id = ? AND reviewer_id = ?", vote.ReportID, vote.ReviewerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrDuplicateVote
		}
		return tx.Create(vote).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrDuplicateVote
		}
		return err
	}
	return nil
}

// Tally recomputes the weighted totals per choice for a report
func (r *voteRepositoryImpl) Tally(ctx context.Context, reportID int64) (models.Tally, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("report_id = ?", reportID)
	return r.tally(query)
}

// TallyBefore sums only the votes cast up to and including the instant
func (r *voteRepositoryImpl) TallyBefore(ctx context.Context, reportID int64, before time.Time) (models.Tally, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("report_id = ? AND cast_at <= ?", reportID, before)
	return r.tally(query)
}

func (r *voteRepositoryImpl) tally(query *gorm.DB) (models.Tally, error) {
	type row struct {
		Choice models.VoteChoice
		Total  int
	}
	var rows []row
	err := query.
		Select("choice, COALESCE(SUM(weight), 0) AS total").
		Group("choice").
		Scan(&rows).Error
	if err != nil {
		return models.Tally{}, err
	}

	var tally models.Tally
	for _, r := range rows {
		switch r.Choice {
		case models.VoteOK:
			tally.OK = r.Total
		case models.VoteIntimidated:
			tally.Intimidated = r.Total
		case models.VoteSerious:
			tally.Serious = r.Total
		}
	}
	return tally, nil
}

// ListByReport retrieves every vote of a report in cast order
func (r *voteRepositoryImpl) ListByReport(ctx context.Context, reportID int64) ([]models.Vote, error) {
	var votes []models.Vote
	result := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("cast_at ASC").
		Order("id ASC").
		Find(&votes)
	return votes, result.Error
}

// Exists reports whether the reviewer already voted on the report
func (r *voteRepositoryImpl) Exists(ctx context.Context, reportID, reviewerID int64) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("report_id = ? AND reviewer_id = ?", reportID, reviewerID).
		Count(&count)
	return count > 0, result.Error
}
