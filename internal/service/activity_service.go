package service

import (
	"context"
	"encoding/json"

	"tableside/internal/feed"
	"tableside/internal/models"
	"tableside/internal/observability"
	"tableside/internal/realtime"
	"tableside/internal/repository"
)

// ActivityService computes per-user feeds on read and appends entries to the
// activity log on behalf of the other services.
type ActivityService struct {
	activityRepo repository.ActivityRepository
	followRepo   repository.FollowRepository
	publisher    *feed.Publisher
	maxLimit     int
}

// NewActivityService creates a new ActivityService. maxLimit caps FeedFor's
// limit argument; zero falls back to 100.
func NewActivityService(
	activityRepo repository.ActivityRepository,
	followRepo repository.FollowRepository,
	publisher *feed.Publisher,
	maxLimit int,
) *ActivityService {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &ActivityService{
		activityRepo: activityRepo,
		followRepo:   followRepo,
		publisher:    publisher,
		maxLimit:     maxLimit,
	}
}

// FeedFor returns the most recent actions of the users the viewer follows,
// newest first with an id tiebreak. A viewer following nobody gets an empty
// feed without touching the activity table: some stores treat an empty IN
// clause ambiguously, so the short circuit is explicit.
func (s *ActivityService) FeedFor(ctx context.Context, userID uint, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}

	followeeIDs, err := s.followRepo.FolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(followeeIDs) == 0 {
		return []models.ActivityEntry{}, nil
	}

	return s.activityRepo.ListByActors(ctx, followeeIDs, limit)
}

// Record appends one entry to the activity log and announces it on the
// activity channel. The append is the primary effect; a failed announcement
// is logged and swallowed.
func (s *ActivityService) Record(ctx context.Context, entry *models.ActivityEntry) error {
	if err := s.activityRepo.Append(ctx, entry); err != nil {
		return err
	}

	if s.publisher != nil {
		record, err := json.Marshal(entry)
		if err != nil {
			observability.LogSideEffectFailure(ctx, "activity_event", err, map[string]interface{}{"entry_id": entry.ID})
			return nil
		}
		ev := feed.Event{
			Table:  realtime.TableActivity,
			Kind:   feed.EventInsert,
			Record: record,
		}
		if err := s.publisher.PublishChange(ctx, ev); err != nil {
			observability.LogSideEffectFailure(ctx, "activity_event", err, map[string]interface{}{"entry_id": entry.ID})
		}
	}
	return nil
}
