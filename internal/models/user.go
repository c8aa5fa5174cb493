package models

import (
	"time"
)

// User is the local mirror of an application user. The ID is issued by the
// upstream application, not generated here, so a plain string key is used.
type User struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Email     *string   `gorm:"type:varchar(255)" json:"email,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// Relationships
	Sessions []KycSession `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
