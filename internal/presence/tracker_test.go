package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"tableside/internal/feed"
	"tableside/internal/models"
	"tableside/internal/realtime"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// presenceRepoStub is a stub for repository.PresenceRepository.
type presenceRepoStub struct {
	upsertFn        func(context.Context, *models.PresenceRecord) error
	getFn           func(context.Context, uint) (*models.PresenceRecord, error)
	listByUserIDsFn func(context.Context, []uint) ([]models.PresenceRecord, error)
}

func (s *presenceRepoStub) Upsert(ctx context.Context, record *models.PresenceRecord) error {
	return s.upsertFn(ctx, record)
}
func (s *presenceRepoStub) Get(ctx context.Context, userID uint) (*models.PresenceRecord, error) {
	return s.getFn(ctx, userID)
}
func (s *presenceRepoStub) ListByUserIDs(ctx context.Context, userIDs []uint) ([]models.PresenceRecord, error) {
	return s.listByUserIDsFn(ctx, userIDs)
}

func noopPresenceRepo() *presenceRepoStub {
	return &presenceRepoStub{
		upsertFn: func(_ context.Context, _ *models.PresenceRecord) error { return nil },
		getFn: func(_ context.Context, userID uint) (*models.PresenceRecord, error) {
			return nil, models.NewNotFoundError("PresenceRecord", userID)
		},
		listByUserIDsFn: func(_ context.Context, _ []uint) ([]models.PresenceRecord, error) {
			return nil, nil
		},
	}
}

// degradedRegistry returns a registry whose backing store is unreachable, so
// room membership fails but nothing crashes.
func degradedRegistry() *realtime.Registry {
	return realtime.NewRegistry(feed.NewRedisFeed(nil))
}

func TestTracker_StatusFor_StalenessRule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fresh online reads online", func(t *testing.T) {
		t.Parallel()
		repo := noopPresenceRepo()
		repo.getFn = func(_ context.Context, userID uint) (*models.PresenceRecord, error) {
			return &models.PresenceRecord{
				UserID: userID, Status: models.PresenceOnline, LastSeenAt: time.Now().Add(-10 * time.Second),
			}, nil
		}
		tracker := NewTracker(repo, degradedRegistry(), 30*time.Second)
		status, err := tracker.StatusFor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.PresenceOnline, status)
	})

	t.Run("stale online reads offline", func(t *testing.T) {
		t.Parallel()
		// 61s exceeds twice the 30s heartbeat: the row is a leftover from a
		// connection that died without writing offline.
		repo := noopPresenceRepo()
		repo.getFn = func(_ context.Context, userID uint) (*models.PresenceRecord, error) {
			return &models.PresenceRecord{
				UserID: userID, Status: models.PresenceOnline, LastSeenAt: time.Now().Add(-61 * time.Second),
			}, nil
		}
		tracker := NewTracker(repo, degradedRegistry(), 30*time.Second)
		status, err := tracker.StatusFor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.PresenceOffline, status)
	})

	t.Run("boundary at exactly twice the interval is fresh", func(t *testing.T) {
		t.Parallel()
		record := models.PresenceRecord{
			Status: models.PresenceAway, LastSeenAt: time.Now(),
		}
		now := record.LastSeenAt.Add(60 * time.Second)
		assert.Equal(t, models.PresenceAway, record.EffectiveStatus(now, 30*time.Second))
		assert.Equal(t, models.PresenceOffline, record.EffectiveStatus(now.Add(time.Nanosecond), 30*time.Second))
	})

	t.Run("no record reads offline without error", func(t *testing.T) {
		t.Parallel()
		tracker := NewTracker(noopPresenceRepo(), degradedRegistry(), 30*time.Second)
		status, err := tracker.StatusFor(ctx, 404)
		require.NoError(t, err)
		assert.Equal(t, models.PresenceOffline, status)
	})
}

func TestTracker_StatusesFor_FillsMissingAsOffline(t *testing.T) {
	t.Parallel()

	repo := noopPresenceRepo()
	repo.listByUserIDsFn = func(_ context.Context, _ []uint) ([]models.PresenceRecord, error) {
		return []models.PresenceRecord{
			{UserID: 1, Status: models.PresenceOnline, LastSeenAt: time.Now()},
			{UserID: 2, Status: models.PresenceOnline, LastSeenAt: time.Now().Add(-5 * time.Minute)},
		}, nil
	}
	tracker := NewTracker(repo, degradedRegistry(), 30*time.Second)

	statuses, err := tracker.StatusesFor(context.Background(), []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOnline, statuses[1])
	assert.Equal(t, models.PresenceOffline, statuses[2], "stale row must read offline")
	assert.Equal(t, models.PresenceOffline, statuses[3], "unknown user must read offline")
}

func TestSession_HeartbeatAndStop(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var writes []models.PresenceRecord
	repo := noopPresenceRepo()
	repo.upsertFn = func(_ context.Context, record *models.PresenceRecord) error {
		mu.Lock()
		writes = append(writes, *record)
		mu.Unlock()
		return nil
	}

	tracker := NewTracker(repo, degradedRegistry(), 30*time.Second)
	ctx := context.Background()

	session := tracker.Start(ctx, 7, "/reviews/3")

	mu.Lock()
	require.NotEmpty(t, writes)
	first := writes[0]
	mu.Unlock()
	assert.Equal(t, uint(7), first.UserID)
	assert.Equal(t, models.PresenceOnline, first.Status)
	assert.Equal(t, "/reviews/3", first.Page)

	session.SetStatus(ctx, models.PresenceAway)
	session.SetPage(ctx, "/reviews/9")

	session.Stop(ctx)
	session.Stop(ctx) // idempotent

	mu.Lock()
	last := writes[len(writes)-1]
	count := len(writes)
	mu.Unlock()
	assert.Equal(t, models.PresenceOffline, last.Status)
	// start + set_status + set_page + one stop
	assert.Equal(t, 4, count)
}

func TestSession_SetStatus_RejectsOffline(t *testing.T) {
	t.Parallel()

	var statuses []models.PresenceStatus
	var mu sync.Mutex
	repo := noopPresenceRepo()
	repo.upsertFn = func(_ context.Context, record *models.PresenceRecord) error {
		mu.Lock()
		statuses = append(statuses, record.Status)
		mu.Unlock()
		return nil
	}

	tracker := NewTracker(repo, degradedRegistry(), 30*time.Second)
	session := tracker.Start(context.Background(), 7, "")
	defer session.Stop(context.Background())

	session.SetStatus(context.Background(), models.PresenceOffline)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statuses, 1, "offline must be reserved for Stop")
	assert.Equal(t, models.PresenceOnline, statuses[0])
}

func TestSession_SetStatus_IgnoresValuesOutsideEnum(t *testing.T) {
	t.Parallel()

	var statuses []models.PresenceStatus
	var mu sync.Mutex
	repo := noopPresenceRepo()
	repo.upsertFn = func(_ context.Context, record *models.PresenceRecord) error {
		mu.Lock()
		statuses = append(statuses, record.Status)
		mu.Unlock()
		return nil
	}

	tracker := NewTracker(repo, degradedRegistry(), 30*time.Second)
	session := tracker.Start(context.Background(), 7, "")
	defer session.Stop(context.Background())

	// raw client input arrives as an unchecked string
	session.SetStatus(context.Background(), models.PresenceStatus("banana"))
	session.SetStatus(context.Background(), models.PresenceStatus(""))
	session.SetStatus(context.Background(), models.PresenceAway)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statuses, 2, "only the away flip may write")
	assert.Equal(t, models.PresenceOnline, statuses[0])
	assert.Equal(t, models.PresenceAway, statuses[1])
	for _, status := range statuses {
		assert.Contains(t, []models.PresenceStatus{
			models.PresenceOnline, models.PresenceAway, models.PresenceOffline,
		}, status, "nothing outside the enum may reach storage")
	}
}

func TestTracker_WatchOnline_WholesaleReplacement(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := realtime.NewRegistry(feed.NewRedisFeed(client))
	defer registry.Close()

	tracker := NewTracker(noopPresenceRepo(), registry, 30*time.Second)
	tracker.WatchOnline(context.Background())
	defer tracker.Close()

	untrack42, err := registry.Track(context.Background(), 42, map[string]string{"page": "/feed"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		online := tracker.OnlineUsers()
		return len(online) == 1 && online[0] == 42
	}, 2*time.Second, 10*time.Millisecond)

	untrack99, err := registry.Track(context.Background(), 99, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(tracker.OnlineUsers()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// each leave event replaces the whole set, nothing lingers
	untrack42()
	require.Eventually(t, func() bool {
		online := tracker.OnlineUsers()
		return len(online) == 1 && online[0] == 99
	}, 2*time.Second, 10*time.Millisecond)

	untrack99()
	require.Eventually(t, func() bool {
		return len(tracker.OnlineUsers()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
