package repository

import (
	"context"
	"errors"

	"tableside/internal/models"

	"gorm.io/gorm"
)

// UserRepository is the read surface this service needs from the account
// domain: profile lookups and the moderator check.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	IsModerator(ctx context.Context, id uint) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewTransientError(err)
	}
	return &user, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewTransientError(err)
	}
	return users, nil
}

func (r *userRepository) IsModerator(ctx context.Context, id uint) (bool, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "is_moderator").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, models.NewNotFoundError("User", id)
		}
		return false, models.NewTransientError(err)
	}
	return user.IsModerator, nil
}
