package models

import (
	"time"
)

type KycStatus string

const (
	StatusPending  KycStatus = "pending"
	StatusAccepted KycStatus = "accepted"
	StatusDeclined KycStatus = "declined"
	StatusReview   KycStatus = "review"
	StatusExpired  KycStatus = "expired"
)

func (s KycStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusReview, StatusExpired:
		return true
	default:
		return false
	}
}

// KycSession is one verification attempt for one user. The reference is the
// identifier shared with the provider and is immutable once created. Sessions
// are never deleted; only the status changes after creation.
type KycSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Reference    string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference"`
	Status       KycStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	IframeURL    string    `gorm:"type:text" json:"iframe_url"`
	AllowedTypes string    `gorm:"type:varchar(128)" json:"allowed_types"`
	RunsCount    int       `gorm:"not null;default:0" json:"runs_count"`
	TTLSeconds   int       `gorm:"not null;default:300" json:"ttl_seconds"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (KycSession) TableName() string {
	return "kyc_sessions"
}
