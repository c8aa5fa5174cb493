package models

import (
	"time"
)

// KycWebhook is an append-only audit record of one inbound provider callback.
// The provider may call back multiple times for the same reference, so there
// is no uniqueness constraint on it.
type KycWebhook struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Reference      string    `gorm:"type:varchar(128);not null;index" json:"reference"`
	RawPayload     string    `gorm:"type:text;not null" json:"raw_payload"`
	SignatureValid bool      `gorm:"not null;default:false" json:"signature_valid"`
	ReceivedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"received_at"`
}

func (KycWebhook) TableName() string {
	return "kyc_webhooks"
}
