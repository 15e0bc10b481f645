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

// FollowService manages the follow graph: user-to-user and user-to-restaurant
// edges with identical toggle semantics.
type FollowService struct {
	followRepo repository.FollowRepository
	publisher  *feed.Publisher
	recorder   ActivityRecorder
}

// NewFollowService creates a new FollowService.
func NewFollowService(
	followRepo repository.FollowRepository,
	publisher *feed.Publisher,
	recorder ActivityRecorder,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		publisher:  publisher,
		recorder:   recorder,
	}
}

// Follow creates a directed edge. Self-follows are rejected; duplicates are
// absorbed by the storage constraint and fire no side effects.
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewValidationError("You cannot follow yourself")
	}

	created, err := s.followRepo.CreateUserFollow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	s.publishFollowEvent(ctx, feed.EventInsert, followerID, followeeID)
	s.recordFollow(ctx, &models.ActivityEntry{
		ActorID:    followerID,
		Kind:       models.ActivityUserFollowed,
		TargetType: models.TargetUser,
		TargetID:   followeeID,
	})
	return nil
}

// Unfollow removes the edge; removing an absent edge is a no-op.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	removed, err := s.followRepo.DeleteUserFollow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if removed {
		s.publishFollowEvent(ctx, feed.EventDelete, followerID, followeeID)
	}
	return nil
}

// FollowRestaurant mirrors Follow for the restaurant relation.
func (s *FollowService) FollowRestaurant(ctx context.Context, followerID, restaurantID uint) error {
	created, err := s.followRepo.CreateRestaurantFollow(ctx, followerID, restaurantID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	s.recordFollow(ctx, &models.ActivityEntry{
		ActorID:    followerID,
		Kind:       models.ActivityRestaurantFollowed,
		TargetType: models.TargetRestaurant,
		TargetID:   restaurantID,
	})
	return nil
}

// UnfollowRestaurant removes the restaurant edge; absent is a no-op.
func (s *FollowService) UnfollowRestaurant(ctx context.Context, followerID, restaurantID uint) error {
	_, err := s.followRepo.DeleteRestaurantFollow(ctx, followerID, restaurantID)
	return err
}

// Followees lists the users the given user follows.
func (s *FollowService) Followees(ctx context.Context, userID uint) ([]models.User, error) {
	return s.followRepo.Followees(ctx, userID)
}

// FollowedRestaurantIDs lists the restaurants the given user follows.
func (s *FollowService) FollowedRestaurantIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.followRepo.FollowedRestaurantIDs(ctx, userID)
}

func (s *FollowService) publishFollowEvent(ctx context.Context, kind feed.EventKind, followerID, followeeID uint) {
	if s.publisher == nil {
		return
	}
	record, err := json.Marshal(models.UserFollow{FollowerID: followerID, FolloweeID: followeeID})
	if err != nil {
		observability.LogSideEffectFailure(ctx, "follow_event", err, map[string]interface{}{"follower": followerID})
		return
	}
	ev := feed.Event{
		Table:  realtime.TableUserFollows,
		Kind:   kind,
		Record: record,
	}
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		observability.LogSideEffectFailure(ctx, "follow_event", err, map[string]interface{}{"follower": followerID})
	}
}

func (s *FollowService) recordFollow(ctx context.Context, entry *models.ActivityEntry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		observability.LogSideEffectFailure(ctx, "activity_entry", err, map[string]interface{}{
			"kind":  entry.Kind,
			"actor": entry.ActorID,
		})
	}
}
