package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vigild/vigil/pkg/models"
)

// premiumRepositoryImpl implements PremiumRepository
type premiumRepositoryImpl struct {
	db *gorm.DB
}

// NewPremiumRepository creates a new premium repository
func NewPremiumRepository(db *gorm.DB) PremiumRepository {
	return &premiumRepositoryImpl{db: db}
}

// IsActive reports whether the guild has a live premium plan
func (r *premiumRepositoryImpl) IsActive(ctx context.Context, guildID int64, now time.Time) (bool, error) {
	var server models.PremiumServer
	result := r.db.WithContext(ctx).First(&server, "guild_id = ?", guildID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, result.Error
	}
	return server.ActiveAt(now), nil
}

// Upsert creates or replaces the guild's premium row
func (r *premiumRepositoryImpl) Upsert(ctx context.Context, server *models.PremiumServer) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"start_at", "end_at"}),
		}).
		Create(server).Error
}

// GetConfig returns the guild's overrides, or defaults when no row exists
func (r *premiumRepositoryImpl) GetConfig(ctx context.Context, guildID int64) (*models.GuildConfig, error) {
	var cfg models.GuildConfig
	result := r.db.WithContext(ctx).First(&cfg, "guild_id = ?", guildID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.DefaultGuildConfig(guildID), nil
		}
		return nil, result.Error
	}
	return &cfg, nil
}

// UpsertConfig creates or replaces the guild's config row
func (r *premiumRepositoryImpl) UpsertConfig(ctx context.Context, cfg *models.GuildConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"log_channel_id", "intimidated_hours", "intimidated_serious_hours",
				"serious_hours", "serious_ban_hours",
			}),
		}).
		Create(cfg).Error
}
