package models

import "time"

// ReportStatus is the life-cycle state of a report.
type ReportStatus string

const (
	ReportPending    ReportStatus = "Pending"
	ReportInAnalysis ReportStatus = "InAnalysis"
	ReportFinalized  ReportStatus = "Finalized"
	ReportAppealed   ReportStatus = "Appealed"
)

// Verdict is the resolved outcome of a report.
type Verdict string

const (
	VerdictImprocedente       Verdict = "Improcedente"
	VerdictIntimidated        Verdict = "Intimidated"
	VerdictIntimidatedSerious Verdict = "Intimidated+Grave"
	VerdictSerious            Verdict = "Grave"
)

// Report is one user-submitted accusation. The surrogate id stays internal;
// the 16-hex-char hash is the identifier surfaced to users.
type Report struct {
	ID              int64        `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Hash            string       `gorm:"column:hash;type:varchar(16);uniqueIndex;not null" json:"hash"`
	ReporterID      int64        `gorm:"column:reporter_id;not null" json:"reporter_id"`
	AccusedID       int64        `gorm:"column:accused_id;not null;index" json:"accused_id"`
	GuildID         int64        `gorm:"column:guild_id;not null;index" json:"guild_id"`
	ChannelID       int64        `gorm:"column:channel_id;not null" json:"channel_id"`
	Reason          string       `gorm:"column:reason;type:text;not null" json:"reason"`
	IsPremium       bool         `gorm:"column:is_premium;not null;default:false" json:"is_premium"`
	Status          ReportStatus `gorm:"column:status;type:varchar(20);not null;default:Pending;index" json:"status"`
	FinalVerdict    *Verdict     `gorm:"column:final_verdict;type:varchar(30)" json:"final_verdict,omitempty"`
	VerdictAt       *time.Time   `gorm:"column:verdict_at" json:"verdict_at,omitempty"`
	AppealMessageID *int64       `gorm:"column:appeal_message_id" json:"-"`
	CreatedAt       time.Time    `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Open reports whether the report can still collect votes.
func (r *Report) Open() bool {
	switch r.Status {
	case ReportPending, ReportInAnalysis, ReportAppealed:
		return true
	default:
		return false
	}
}

// AppealWindowOpen reports whether the accused may still appeal the verdict.
func (r *Report) AppealWindowOpen(now time.Time) bool {
	return r.Status == ReportFinalized && r.VerdictAt != nil &&
		now.Sub(*r.VerdictAt) <= 24*time.Hour
}

// CapturedMessage is an immutable snapshot of one channel message taken when
// the report was created. The set is frozen at capture time.
type CapturedMessage struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ReportID       int64     `gorm:"column:report_id;not null;index" json:"report_id"`
	AuthorID       int64     `gorm:"column:author_id;not null" json:"author_id"`
	Content        string    `gorm:"column:content;type:text;not null" json:"content"`
	AttachmentURLs string    `gorm:"column:attachment_urls;type:text" json:"attachment_urls"`
	SentAt         time.Time `gorm:"column:sent_at;not null" json:"sent_at"`
}
