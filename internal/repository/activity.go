// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"tableside/internal/models"
	"tableside/internal/observability"

	"gorm.io/gorm"
)

// ActivityRepository defines the interface for the append-only activity log.
type ActivityRepository interface {
	Append(ctx context.Context, entry *models.ActivityEntry) error
	ListByActors(ctx context.Context, actorIDs []uint, limit int) ([]models.ActivityEntry, error)
}

type activityRepository struct {
	db      *gorm.DB
	log     *observability.RepoLogger
	metrics *observability.DatabaseMetrics
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{
		db:      db,
		log:     observability.NewRepoLogger("activity_entries"),
		metrics: observability.NewDatabaseMetrics(db),
	}
}

func (r *activityRepository) Append(ctx context.Context, entry *models.ActivityEntry) error {
	defer r.metrics.TrackQuery("append", "activity_entries")()
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.log.LogError(ctx, err, "append")
		return models.NewTransientError(err)
	}
	return nil
}

// ListByActors returns the most recent entries by the given actors. The id
// tiebreak keeps equal-timestamp entries in a stable order across re-fetches.
// Callers are responsible for the empty-actors short circuit; an empty IN
// clause never reaches the store.
func (r *activityRepository) ListByActors(
	ctx context.Context,
	actorIDs []uint,
	limit int,
) ([]models.ActivityEntry, error) {
	defer r.metrics.TrackQuery("list_by_actors", "activity_entries")()
	var entries []models.ActivityEntry
	err := r.db.WithContext(ctx).
		Where("actor_id IN ?", actorIDs).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	return entries, nil
}
