package models

import "time"

// AssignmentState is the state of one outstanding review request.
type AssignmentState string

const (
	AssignmentDelivered AssignmentState = "Delivered"
	AssignmentAccepted  AssignmentState = "Accepted"
	AssignmentDispensed AssignmentState = "Dispensed"
	AssignmentExpired   AssignmentState = "Expired"
	AssignmentVoted     AssignmentState = "Voted"
	AssignmentInactive  AssignmentState = "Inactive"
)

// Active reports whether the assignment still occupies the reviewer.
func (s AssignmentState) Active() bool {
	return s == AssignmentDelivered || s == AssignmentAccepted
}

// Assignment is a review request delivered to one reviewer for one report.
// A Delivered assignment expires at DeliveredAt + the delivery TTL; an
// Accepted one is bound by its vote deadline instead.
type Assignment struct {
	ID           int64           `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ReportID     int64           `gorm:"column:report_id;not null;index:idx_assignment_report" json:"report_id"`
	ReviewerID   int64           `gorm:"column:reviewer_id;not null;index:idx_assignment_reviewer" json:"reviewer_id"`
	DMMessageID  int64           `gorm:"column:dm_message_id" json:"-"`
	State        AssignmentState `gorm:"column:state;type:varchar(20);not null;default:Delivered;index" json:"state"`
	DeliveredAt  time.Time       `gorm:"column:delivered_at;not null" json:"delivered_at"`
	ExpiresAt    time.Time       `gorm:"column:expires_at;not null;index" json:"expires_at"`
	AcceptedAt   *time.Time      `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	VoteDeadline *time.Time      `gorm:"column:vote_deadline;index" json:"vote_deadline,omitempty"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}
