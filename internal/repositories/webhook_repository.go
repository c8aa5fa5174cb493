package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/MAnasLatif/kyc/internal/models"
)

// WebhookRepository is the append-only store for inbound provider callbacks.
type WebhookRepository interface {
	Create(record *models.KycWebhook) error
	LatestByReference(reference string) (*models.KycWebhook, error)
}

type webhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &webhookRepository{db: db}
}

func (r *webhookRepository) Create(record *models.KycWebhook) error {
	return r.db.Create(record).Error
}

func (r *webhookRepository) LatestByReference(reference string) (*models.KycWebhook, error) {
	var record models.KycWebhook
	err := r.db.
		Where("reference = ?", reference).
		Order("received_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
