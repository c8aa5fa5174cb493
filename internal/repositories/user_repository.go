package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MAnasLatif/kyc/internal/models"
)

// UserRepository mirrors upstream application users locally.
type UserRepository interface {
	Upsert(id string, email *string) (*models.User, error)
	GetByID(id string) (*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Upsert creates the user if absent. An email update only happens when an
// email was actually supplied; a nil email never clears a stored one.
func (r *userRepository) Upsert(id string, email *string) (*models.User, error) {
	user := &models.User{ID: id, Email: email}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}
	if email != nil {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email"}),
		}
	}

	if err := r.db.Clauses(onConflict).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
