// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"tableside/internal/models"
	"tableside/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PresenceRepository stores one overwritable presence row per user.
type PresenceRepository interface {
	Upsert(ctx context.Context, record *models.PresenceRecord) error
	Get(ctx context.Context, userID uint) (*models.PresenceRecord, error)
	ListByUserIDs(ctx context.Context, userIDs []uint) ([]models.PresenceRecord, error)
}

type presenceRepository struct {
	db      *gorm.DB
	log     *observability.RepoLogger
	metrics *observability.DatabaseMetrics
}

// NewPresenceRepository creates a new presence repository
func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepository{
		db:      db,
		log:     observability.NewRepoLogger("presence_records"),
		metrics: observability.NewDatabaseMetrics(db),
	}
}

func (r *presenceRepository) Upsert(ctx context.Context, record *models.PresenceRecord) error {
	defer r.metrics.TrackQuery("upsert", "presence_records")()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "page", "last_seen_at"}),
		}).
		Create(record).Error
	if err != nil {
		r.log.LogError(ctx, err, "upsert")
		return models.NewTransientError(err)
	}
	return nil
}

func (r *presenceRepository) Get(ctx context.Context, userID uint) (*models.PresenceRecord, error) {
	var record models.PresenceRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("PresenceRecord", userID)
		}
		return nil, models.NewTransientError(err)
	}
	return &record, nil
}

func (r *presenceRepository) ListByUserIDs(ctx context.Context, userIDs []uint) ([]models.PresenceRecord, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var records []models.PresenceRecord
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&records).Error
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	return records, nil
}
