package models

import "time"

// VoteChoice is a reviewer's judgement on a report.
type VoteChoice string

const (
	VoteOK          VoteChoice = "OK"
	VoteIntimidated VoteChoice = "Intimidated"
	VoteSerious     VoteChoice = "Serious"
)

// Valid reports whether the choice is one of the three known values.
func (c VoteChoice) Valid() bool {
	switch c {
	case VoteOK, VoteIntimidated, VoteSerious:
		return true
	default:
		return false
	}
}

// Vote is one reviewer's weighted judgement. Append-only; unique per
// (report, reviewer).
type Vote struct {
	ID         int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ReportID   int64      `gorm:"column:report_id;not null;uniqueIndex:uq_vote_report_reviewer" json:"report_id"`
	ReviewerID int64      `gorm:"column:reviewer_id;not null;uniqueIndex:uq_vote_report_reviewer" json:"reviewer_id"`
	Choice     VoteChoice `gorm:"column:choice;type:varchar(20);not null" json:"choice"`
	Weight     int        `gorm:"column:weight;not null;default:1" json:"weight"`
	CastAt     time.Time  `gorm:"column:cast_at;autoCreateTime" json:"cast_at"`
}

// Tally is the weighted vote total of one report, split per choice.
type Tally struct {
	OK          int
	Intimidated int
	Serious     int
}

// Total is the summed weight across all choices.
func (t Tally) Total() int {
	return t.OK + t.Intimidated + t.Serious
}
