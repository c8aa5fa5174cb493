package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/MAnasLatif/kyc/internal/models"
)

// SessionRepository is the storage port for verification sessions.
// Lookup methods return (nil, nil) when no row matches.
type SessionRepository interface {
	Create(session *models.KycSession) error
	GetByReference(reference string) (*models.KycSession, error)
	LatestByUser(userID string) (*models.KycSession, error)
	ListByUser(userID string) ([]models.KycSession, error)
	UpdateStatus(reference string, status models.KycStatus) (int64, error)
	ExpireStale(now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *models.KycSession) error {
	return r.db.Create(session).Error
}

func (r *sessionRepository) GetByReference(reference string) (*models.KycSession, error) {
	var session models.KycSession
	if err := r.db.First(&session, "reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) LatestByUser(userID string) (*models.KycSession, error) {
	var session models.KycSession
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) ListByUser(userID string) ([]models.KycSession, error) {
	var sessions []models.KycSession
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateStatus returns the number of rows touched so callers can tell an
// unknown reference apart from a successful update.
func (r *sessionRepository) UpdateStatus(reference string, status models.KycStatus) (int64, error) {
	result := r.db.Model(&models.KycSession{}).
		Where("reference = ?", reference).
		Update("status", status)
	return result.RowsAffected, result.Error
}

// ExpireStale flips pending sessions whose TTL has elapsed to expired.
func (r *sessionRepository) ExpireStale(now time.Time) (int64, error) {
	result := r.db.Model(&models.KycSession{}).
		Where("status = ?", models.StatusPending).
		Where("created_at + (ttl_seconds * interval '1 second') < ?", now).
		Update("status", models.StatusExpired)
	return result.RowsAffected, result.Error
}
