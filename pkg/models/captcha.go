package models

import "time"

// CaptchaKind is the challenge family.
type CaptchaKind string

const (
	CaptchaArithmetic CaptchaKind = "arithmetic"
	CaptchaTrivia     CaptchaKind = "trivia"
	CaptchaSequence   CaptchaKind = "sequence"
)

// CaptchaStatus is the life-cycle state of one liveness challenge.
type CaptchaStatus string

const (
	CaptchaPending  CaptchaStatus = "Pending"
	CaptchaAnswered CaptchaStatus = "Answered"
	CaptchaExpired  CaptchaStatus = "Expired"
)

// Captcha is one liveness challenge sent to a long-shift reviewer.
type Captcha struct {
	ID              int64         `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ReviewerID      int64         `gorm:"column:reviewer_id;not null;index" json:"reviewer_id"`
	Code            string        `gorm:"column:code;type:varchar(6);not null;index" json:"code"`
	Kind            CaptchaKind   `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Question        string        `gorm:"column:question;type:text;not null" json:"question"`
	Answer          string        `gorm:"column:answer;type:varchar(100);not null" json:"-"`
	Status          CaptchaStatus `gorm:"column:status;type:varchar(20);not null;default:Pending;index" json:"status"`
	DMMessageID     int64         `gorm:"column:dm_message_id" json:"-"`
	IssuedAt        time.Time     `gorm:"column:issued_at;not null" json:"issued_at"`
	ExpiresAt       time.Time     `gorm:"column:expires_at;not null;index" json:"expires_at"`
	AnsweredAt      *time.Time    `gorm:"column:answered_at" json:"answered_at,omitempty"`
	PointsPenalized int           `gorm:"column:points_penalized;not null;default:0" json:"points_penalized"`
}
