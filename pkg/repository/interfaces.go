package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vigild/vigil/pkg/models"
)

// ReviewerRepository owns reviewer profiles, points and cooldowns.
type ReviewerRepository interface {
	Get(ctx context.Context, id int64) (*models.Reviewer, error)
	Create(ctx context.Context, reviewer *models.Reviewer) error
	Update(ctx context.Context, reviewer *models.Reviewer) error
	ListOnDuty(ctx context.Context, tiers []models.Tier) ([]models.Reviewer, error)
	ListByTiers(ctx context.Context, tiers []models.Tier) ([]models.Reviewer, error)
	CountOnDutyByTier(ctx context.Context, tier models.Tier) (int64, error)

	// AdjustPointsXP applies both deltas atomically, clamping the results at
	// zero. Negative balances never persist.
	AdjustPointsXP(ctx context.Context, id int64, deltaPoints, deltaXP int) error

	SetDuty(ctx context.Context, id int64, onDuty bool, shiftStart *time.Time) error
	SetTier(ctx context.Context, id int64, tier models.Tier) error
	SetDispenseCooldown(ctx context.Context, id int64, until time.Time) error
	SetInactivityCooldown(ctx context.Context, id int64, until time.Time) error
	SetExamCooldown(ctx context.Context, id int64, until time.Time) error
}

// ReportRepository owns reports and their status transitions.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	Get(ctx context.Context, id int64) (*models.Report, error)
	GetByHash(ctx context.Context, hash string) (*models.Report, error)
	CountOpenByGuild(ctx context.Context, guildID int64, status models.ReportStatus) (int64, error)

	// ListActionable returns reports still collecting votes, ordered premium
	// first, then oldest, then id.
	ListActionable(ctx context.Context) ([]models.Report, error)

	// UpdateStatusCAS transitions status only when the current value is one
	// of from. Returns false when no row matched, without error.
	UpdateStatusCAS(ctx context.Context, id int64, from []models.ReportStatus, to models.ReportStatus, verdict *models.Verdict, verdictAt *time.Time) (bool, error)

	SetAppealMessage(ctx context.Context, id int64, messageID int64) error
}

// MessageRepository owns captured evidence snapshots.
type MessageRepository interface {
	BulkInsert(ctx context.Context, messages []models.CapturedMessage) error
	ListByReport(ctx context.Context, reportID int64) ([]models.CapturedMessage, error)
	CountByReport(ctx context.Context, reportID int64) (int64, error)
}

// VoteRepository owns votes. Insert enforces one vote per (report, reviewer).
type VoteRepository interface {
	Insert(ctx context.Context, vote *models.Vote) error
	Tally(ctx context.Context, reportID int64) (models.Tally, error)

	// TallyBefore sums only the votes cast up to and including the instant.
	// Used to split an appealed report's first-round weight from the rest.
	TallyBefore(ctx context.Context, reportID int64, before time.Time) (models.Tally, error)
	ListByReport(ctx context.Context, reportID int64) ([]models.Vote, error)
	Exists(ctx context.Context, reportID, reviewerID int64) (bool, error)
}

// AssignmentRepository owns outstanding review requests.
type AssignmentRepository interface {
	// Insert creates a Delivered assignment, failing with
	// models.ErrNoSlotAvailable when the reviewer already holds an active
	// assignment on the report or the report is at its outstanding cap.
	Insert(ctx context.Context, assignment *models.Assignment, maxOutstanding int) error

	Get(ctx context.Context, id int64) (*models.Assignment, error)
	GetActive(ctx context.Context, reportID, reviewerID int64) (*models.Assignment, error)

	// UpdateStateCAS transitions state only from the expected value.
	UpdateStateCAS(ctx context.Context, id int64, from, to models.AssignmentState) (bool, error)

	// SetDMMessageID records the delivered DM once the send returns.
	SetDMMessageID(ctx context.Context, id int64, messageID int64) error

	// MarkAccepted transitions Delivered -> Accepted and arms the vote deadline.
	MarkAccepted(ctx context.Context, id int64, at time.Time, deadline time.Time) (bool, error)

	ListExpiredDelivered(ctx context.Context, now time.Time) ([]models.Assignment, error)
	ListOverdueAccepted(ctx context.Context, now time.Time) ([]models.Assignment, error)
	CountOutstanding(ctx context.Context, reportID int64, now time.Time) (int64, error)

	// ListEngagedReviewerIDs returns reviewers with any assignment on the
	// report in a state that blocks redelivery (Delivered or Accepted).
	ListEngagedReviewerIDs(ctx context.Context, reportID int64) ([]int64, error)
	ListActiveByReviewer(ctx context.Context, reviewerID int64) ([]models.Assignment, error)
}

// PremiumRepository owns premium plans and per-guild configuration.
type PremiumRepository interface {
	IsActive(ctx context.Context, guildID int64, now time.Time) (bool, error)
	Upsert(ctx context.Context, server *models.PremiumServer) error

	// GetConfig returns the guild's overrides, or the defaults when the
	// guild has no row.
	GetConfig(ctx context.Context, guildID int64) (*models.GuildConfig, error)
	UpsertConfig(ctx context.Context, cfg *models.GuildConfig) error
}

// CaptchaRepository owns liveness challenges.
type CaptchaRepository interface {
	Insert(ctx context.Context, captcha *models.Captcha) error
	GetPendingByReviewer(ctx context.Context, reviewerID int64) (*models.Captcha, error)
	HasPendingSince(ctx context.Context, reviewerID int64, since time.Time) (bool, error)
	HasPassSince(ctx context.Context, reviewerID int64, since time.Time) (bool, error)
	MarkAnswered(ctx context.Context, id int64, at time.Time) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]models.Captcha, error)
	MarkExpired(ctx context.Context, id int64, pointsPenalized int) (bool, error)
}

// PunishmentRepository owns the punishment audit trail.
type PunishmentRepository interface {
	Insert(ctx context.Context, log *models.PunishmentLog) error
	ListByGuild(ctx context.Context, guildID int64, limit int) ([]models.PunishmentLog, error)
}

// Store bundles every repository behind one handle. Services receive the
// Store; nothing outside this package touches gorm directly.
type Store struct {
	Reviewers   ReviewerRepository
	Reports     ReportRepository
	Messages    MessageRepository
	Votes       VoteRepository
	Assignments AssignmentRepository
	Premium     PremiumRepository
	Captchas    CaptchaRepository
	Punishments PunishmentRepository
}

// NewStore wires every repository implementation over one gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Reviewers:   NewReviewerRepository(db),
		Reports:     NewReportRepository(db),
		Messages:    NewMessageRepository(db),
		Votes:       NewVoteRepository(db),
		Assignments: NewAssignmentRepository(db),
		Premium:     NewPremiumRepository(db),
		Captchas:    NewCaptchaRepository(db),
		Punishments: NewPunishmentRepository(db),
	}
}
