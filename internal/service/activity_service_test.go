package service

import (
	"context"
	"testing"
	"time"

	"tableside/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// activityRepoStub is a stub for repository.ActivityRepository.
type activityRepoStub struct {
	appendFn      func(context.Context, *models.ActivityEntry) error
	listByActorFn func(context.Context, []uint, int) ([]models.ActivityEntry, error)
}

func (s *activityRepoStub) Append(ctx context.Context, entry *models.ActivityEntry) error {
	return s.appendFn(ctx, entry)
}
func (s *activityRepoStub) ListByActors(ctx context.Context, actorIDs []uint, limit int) ([]models.ActivityEntry, error) {
	return s.listByActorFn(ctx, actorIDs, limit)
}

func noopActivityRepo() *activityRepoStub {
	return &activityRepoStub{
		appendFn: func(_ context.Context, _ *models.ActivityEntry) error { return nil },
		listByActorFn: func(_ context.Context, _ []uint, _ int) ([]models.ActivityEntry, error) {
			return nil, nil
		},
	}
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	createUserFollowFn       func(context.Context, uint, uint) (bool, error)
	deleteUserFollowFn       func(context.Context, uint, uint) (bool, error)
	followeeIDsFn            func(context.Context, uint) ([]uint, error)
	followeesFn              func(context.Context, uint) ([]models.User, error)
	createRestaurantFollowFn func(context.Context, uint, uint) (bool, error)
	deleteRestaurantFollowFn func(context.Context, uint, uint) (bool, error)
	followedRestaurantIDsFn  func(context.Context, uint) ([]uint, error)
}

func (s *followRepoStub) CreateUserFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.createUserFollowFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) DeleteUserFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.deleteUserFollowFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) FolloweeIDs(ctx context.Context, followerID uint) ([]uint, error) {
	return s.followeeIDsFn(ctx, followerID)
}
func (s *followRepoStub) Followees(ctx context.Context, followerID uint) ([]models.User, error) {
	return s.followeesFn(ctx, followerID)
}
func (s *followRepoStub) CreateRestaurantFollow(ctx context.Context, followerID, restaurantID uint) (bool, error) {
	return s.createRestaurantFollowFn(ctx, followerID, restaurantID)
}
func (s *followRepoStub) DeleteRestaurantFollow(ctx context.Context, followerID, restaurantID uint) (bool, error) {
	return s.deleteRestaurantFollowFn(ctx, followerID, restaurantID)
}
func (s *followRepoStub) FollowedRestaurantIDs(ctx context.Context, followerID uint) ([]uint, error) {
	return s.followedRestaurantIDsFn(ctx, followerID)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		createUserFollowFn:       func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		deleteUserFollowFn:       func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		followeeIDsFn:            func(_ context.Context, _ uint) ([]uint, error) { return nil, nil },
		followeesFn:              func(_ context.Context, _ uint) ([]models.User, error) { return nil, nil },
		createRestaurantFollowFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		deleteRestaurantFollowFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		followedRestaurantIDsFn:  func(_ context.Context, _ uint) ([]uint, error) { return nil, nil },
	}
}

func TestActivityService_FeedFor_EmptyFollowShortCircuit(t *testing.T) {
	t.Parallel()

	activityRepo := noopActivityRepo()
	activityRepo.listByActorFn = func(_ context.Context, _ []uint, _ int) ([]models.ActivityEntry, error) {
		t.Fatal("activity query must not run when the viewer follows nobody")
		return nil, nil
	}
	followRepo := noopFollowRepo()
	followRepo.followeeIDsFn = func(_ context.Context, _ uint) ([]uint, error) { return []uint{}, nil }

	svc := NewActivityService(activityRepo, followRepo, nil, 100)
	entries, err := svc.FeedFor(context.Background(), 1, 50)

	require.NoError(t, err)
	require.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestActivityService_FeedFor_PassesFolloweesAndLimit(t *testing.T) {
	t.Parallel()

	var gotActors []uint
	var gotLimit int
	activityRepo := noopActivityRepo()
	activityRepo.listByActorFn = func(_ context.Context, actorIDs []uint, limit int) ([]models.ActivityEntry, error) {
		gotActors = actorIDs
		gotLimit = limit
		return []models.ActivityEntry{{ID: 1}}, nil
	}
	followRepo := noopFollowRepo()
	followRepo.followeeIDsFn = func(_ context.Context, _ uint) ([]uint, error) {
		return []uint{4, 7, 9}, nil
	}

	svc := NewActivityService(activityRepo, followRepo, nil, 100)
	entries, err := svc.FeedFor(context.Background(), 1, 25)

	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, []uint{4, 7, 9}, gotActors)
	assert.Equal(t, 25, gotLimit)
}

func TestActivityService_FeedFor_ClampsLimit(t *testing.T) {
	t.Parallel()

	var gotLimit int
	activityRepo := noopActivityRepo()
	activityRepo.listByActorFn = func(_ context.Context, _ []uint, limit int) ([]models.ActivityEntry, error) {
		gotLimit = limit
		return nil, nil
	}
	followRepo := noopFollowRepo()
	followRepo.followeeIDsFn = func(_ context.Context, _ uint) ([]uint, error) { return []uint{2}, nil }

	svc := NewActivityService(activityRepo, followRepo, nil, 100)

	_, err := svc.FeedFor(context.Background(), 1, 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)

	_, err = svc.FeedFor(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)

	_, err = svc.FeedFor(context.Background(), 1, -3)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
}

func TestActivityService_Record_AppendsEntry(t *testing.T) {
	t.Parallel()

	var appended *models.ActivityEntry
	activityRepo := noopActivityRepo()
	activityRepo.appendFn = func(_ context.Context, entry *models.ActivityEntry) error {
		appended = entry
		return nil
	}

	svc := NewActivityService(activityRepo, noopFollowRepo(), nil, 100)
	entry := &models.ActivityEntry{
		ActorID:    4,
		Kind:       models.ActivityCommentPosted,
		TargetType: models.TargetReview,
		TargetID:   8,
		CreatedAt:  time.Now(),
	}

	require.NoError(t, svc.Record(context.Background(), entry))
	assert.Same(t, entry, appended)
}

func TestActivityService_Record_AppendFailurePropagates(t *testing.T) {
	t.Parallel()

	activityRepo := noopActivityRepo()
	activityRepo.appendFn = func(_ context.Context, _ *models.ActivityEntry) error {
		return models.NewTransientError(assert.AnError)
	}

	svc := NewActivityService(activityRepo, noopFollowRepo(), nil, 100)
	err := svc.Record(context.Background(), &models.ActivityEntry{ActorID: 1})
	assert.Equal(t, "TRANSIENT_ERROR", models.ErrorCode(err))
}
