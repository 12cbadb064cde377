package models

import "time"

// PremiumServer marks a guild with an active premium plan.
type PremiumServer struct {
	GuildID   int64     `gorm:"primaryKey;column:guild_id" json:"guild_id"`
	StartAt   time.Time `gorm:"column:start_at;not null" json:"start_at"`
	EndAt     time.Time `gorm:"column:end_at;not null" json:"end_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// ActiveAt reports whether the plan covers the given instant.
func (p *PremiumServer) ActiveAt(now time.Time) bool {
	return !now.Before(p.StartAt) && now.Before(p.EndAt)
}

// GuildConfig holds per-guild policy overrides. At most one row per guild;
// only premium guilds may override punishment durations and the log channel.
type GuildConfig struct {
	GuildID                 int64     `gorm:"primaryKey;column:guild_id" json:"guild_id"`
	LogChannelID            *int64    `gorm:"column:log_channel_id" json:"log_channel_id,omitempty"`
	IntimidatedHours        int       `gorm:"column:intimidated_hours;not null;default:1" json:"intimidated_hours"`
	IntimidatedSeriousHours int       `gorm:"column:intimidated_serious_hours;not null;default:6" json:"intimidated_serious_hours"`
	SeriousHours            int       `gorm:"column:serious_hours;not null;default:12" json:"serious_hours"`
	SeriousBanHours         int       `gorm:"column:serious_ban_hours;not null;default:24" json:"serious_ban_hours"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// DefaultGuildConfig returns the stock punishment durations.
func DefaultGuildConfig(guildID int64) *GuildConfig {
	return &GuildConfig{
		GuildID:                 guildID,
		IntimidatedHours:        1,
		IntimidatedSeriousHours: 6,
		SeriousHours:            12,
		SeriousBanHours:         24,
	}
}

// PunishmentLog records one punishment application attempt.
type PunishmentLog struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ReportID      int64     `gorm:"column:report_id;not null;index" json:"report_id"`
	GuildID       int64     `gorm:"column:guild_id;not null;index" json:"guild_id"`
	AccusedID     int64     `gorm:"column:accused_id;not null" json:"accused_id"`
	Verdict       Verdict   `gorm:"column:verdict;type:varchar(30);not null" json:"verdict"`
	DurationHours int       `gorm:"column:duration_hours;not null" json:"duration_hours"`
	AppliedAt     time.Time `gorm:"column:applied_at;autoCreateTime" json:"applied_at"`
	Err           string    `gorm:"column:err;type:text" json:"err,omitempty"`
}
