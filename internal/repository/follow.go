// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"tableside/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository defines the interface for follow-edge data operations.
// User and restaurant follows are two structurally identical relations.
type FollowRepository interface {
	CreateUserFollow(ctx context.Context, followerID, followeeID uint) (bool, error)
	DeleteUserFollow(ctx context.Context, followerID, followeeID uint) (bool, error)
	FolloweeIDs(ctx context.Context, followerID uint) ([]uint, error)
	Followees(ctx context.Context, followerID uint) ([]models.User, error)
	CreateRestaurantFollow(ctx context.Context, followerID, restaurantID uint) (bool, error)
	DeleteRestaurantFollow(ctx context.Context, followerID, restaurantID uint) (bool, error)
	FollowedRestaurantIDs(ctx context.Context, followerID uint) ([]uint, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// CreateUserFollow inserts the edge unless it already exists; duplicate
// follows are conflict-ignored, matching the toggle semantics of likes.
func (r *followRepository) CreateUserFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserFollow{FollowerID: followerID, FolloweeID: followeeID})
	if res.Error != nil {
		return false, models.NewTransientError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) DeleteUserFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.UserFollow{})
	if res.Error != nil {
		return false, models.NewTransientError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) FolloweeIDs(ctx context.Context, followerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.UserFollow{}).
		Where("follower_id = ?", followerID).
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	return ids, nil
}

func (r *followRepository) Followees(ctx context.Context, followerID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN user_follows f ON users.id = f.followee_id").
		Where("f.follower_id = ?", followerID).
		Find(&users).Error
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	return users, nil
}

func (r *followRepository) CreateRestaurantFollow(ctx context.Context, followerID, restaurantID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RestaurantFollow{FollowerID: followerID, RestaurantID: restaurantID})
	if res.Error != nil {
		return false, models.NewTransientError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) DeleteRestaurantFollow(ctx context.Context, followerID, restaurantID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND restaurant_id = ?", followerID, restaurantID).
		Delete(&models.RestaurantFollow{})
	if res.Error != nil {
		return false, models.NewTransientError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) FollowedRestaurantIDs(ctx context.Context, followerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.RestaurantFollow{}).
		Where("follower_id = ?", followerID).
		Pluck("restaurant_id", &ids).Error
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	return ids, nil
}
