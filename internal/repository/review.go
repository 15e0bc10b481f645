// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"tableside/internal/models"

	"gorm.io/gorm"
)

// ReviewRepository is the read surface this service needs from the review
// domain: enough to validate that comments target an existing review.
type ReviewRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Review, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) GetByID(ctx context.Context, id uint) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Review", id)
		}
		return nil, models.NewTransientError(err)
	}
	return &review, nil
}
