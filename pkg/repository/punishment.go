package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// punishmentRepositoryImpl implements PunishmentRepository
type punishmentRepositoryImpl struct {
	db *gorm.DB
}

// NewPunishmentRepository creates a new punishment-log repository
func NewPunishmentRepository(db *gorm.DB) PunishmentRepository {
	return &punishmentRepositoryImpl{db: db}
}

// Insert records one punishment application attempt
func (r *punishmentRepositoryImpl) Insert(ctx context.Context, log *models.PunishmentLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByGuild retrieves recent punishment records for a guild
func (r *punishmentRepositoryImpl) ListByGuild(ctx context.Context, guildID int64, limit int) ([]models.PunishmentLog, error) {
	var logs []models.PunishmentLog
	result := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("applied_at DESC").
		Limit(limit).
		Find(&logs)
	return logs, result.Error
}
