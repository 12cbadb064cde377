package models

import "time"

// Tier is the reviewer category. Tiers only move upward, and only
// User -> Guardian happens automatically (exam pass); the rest is staff.
type Tier string

const (
	TierUser          Tier = "User"
	TierGuardian      Tier = "Guardian"
	TierModerator     Tier = "Moderator"
	TierAdministrator Tier = "Administrator"
)

// ReviewerTiers are the tiers allowed to review reports.
var ReviewerTiers = []Tier{TierGuardian, TierModerator, TierAdministrator}

// Weight returns the vote weight carried by the tier.
func (t Tier) Weight() int {
	switch t {
	case TierModerator, TierAdministrator:
		return 5
	default:
		return 1
	}
}

// CanReview reports whether the tier may receive review assignments.
func (t Tier) CanReview() bool {
	switch t {
	case TierGuardian, TierModerator, TierAdministrator:
		return true
	default:
		return false
	}
}

// Reviewer is a registered user of the service. The primary key is the
// opaque platform user id.
type Reviewer struct {
	ID                      int64      `gorm:"primaryKey;column:id" json:"id"`
	Username                string     `gorm:"column:username;type:varchar(100);not null" json:"username"`
	Tier                    Tier       `gorm:"column:tier;type:varchar(20);not null;default:User" json:"tier"`
	Points                  int        `gorm:"column:points;not null;default:0" json:"points"`
	Experience              int        `gorm:"column:experience;not null;default:0" json:"experience"`
	OnDuty                  bool       `gorm:"column:on_duty;not null;default:false" json:"on_duty"`
	ShiftStart              *time.Time `gorm:"column:shift_start" json:"shift_start,omitempty"`
	ExamCooldownUntil       *time.Time `gorm:"column:exam_cooldown_until" json:"exam_cooldown_until,omitempty"`
	DispenseCooldownUntil   *time.Time `gorm:"column:dispense_cooldown_until" json:"dispense_cooldown_until,omitempty"`
	InactivityCooldownUntil *time.Time `gorm:"column:inactivity_cooldown_until" json:"inactivity_cooldown_until,omitempty"`
	AccountCreatedAt        time.Time  `gorm:"column:account_created_at;not null" json:"account_created_at"`
	CreatedAt               time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// VoteWeight returns the weight this reviewer's vote carries.
func (r *Reviewer) VoteWeight() int {
	return r.Tier.Weight()
}

// OnDispenseCooldown reports whether the reviewer dispensed a report recently.
func (r *Reviewer) OnDispenseCooldown(now time.Time) bool {
	return r.DispenseCooldownUntil != nil && r.DispenseCooldownUntil.After(now)
}

// OnInactivityCooldown reports whether the reviewer was penalised for
// inactivity recently.
func (r *Reviewer) OnInactivityCooldown(now time.Time) bool {
	return r.InactivityCooldownUntil != nil && r.InactivityCooldownUntil.After(now)
}

// OnExamCooldown reports whether a failed exam still blocks a retake.
func (r *Reviewer) OnExamCooldown(now time.Time) bool {
	return r.ExamCooldownUntil != nil && r.ExamCooldownUntil.After(now)
}
