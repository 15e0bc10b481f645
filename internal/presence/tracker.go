// Package presence approximates "who is online" with a heartbeat-written
// presence row per user plus a broadcast room of tracked sessions. It is
// best-effort: an abrupt disconnect leaves a stale "online" row behind, so
// readers trust the last-seen timestamp, never the stored status alone.
package presence

import (
	"context"
	"sync"
	"time"

	"tableside/internal/feed"
	"tableside/internal/models"
	"tableside/internal/observability"
	"tableside/internal/realtime"
	"tableside/internal/repository"

	"github.com/samber/lo"
)

// DefaultHeartbeatInterval matches the reference cadence of one write per 30s.
const DefaultHeartbeatInterval = 30 * time.Second

// Tracker owns presence sessions for this process and mirrors the shared
// online room into a local set.
type Tracker struct {
	repo     repository.PresenceRepository
	registry *realtime.Registry
	interval time.Duration
	log      *observability.Logger

	mu       sync.RWMutex
	online   map[uint]feed.Member
	syncSub  *realtime.PresenceSubscription
	watching bool
}

// NewTracker creates a Tracker. A non-positive interval falls back to the
// default 30s cadence.
func NewTracker(repo repository.PresenceRepository, registry *realtime.Registry, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Tracker{
		repo:     repo,
		registry: registry,
		interval: interval,
		log:      observability.GlobalLogger,
		online:   make(map[uint]feed.Member),
	}
}

// Interval returns the heartbeat interval; readers derive staleness from it.
func (t *Tracker) Interval() time.Duration {
	return t.interval
}

// Session is one user's live presence: a repeating heartbeat plus membership
// in the online room. Stop is idempotent.
type Session struct {
	tracker *Tracker
	userID  uint

	mu      sync.Mutex
	page    string
	status  models.PresenceStatus
	untrack func()
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Start opens a presence session: writes {online, now, page}, announces the
// user in the online room, and begins the heartbeat. A failed initial write
// or track does not fail the session; presence degrades, it never crashes a
// caller.
func (t *Tracker) Start(ctx context.Context, userID uint, page string) *Session {
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		tracker: t,
		userID:  userID,
		page:    page,
		status:  models.PresenceOnline,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.writeHeartbeat(ctx)

	untrack, err := t.registry.Track(ctx, userID, map[string]string{"page": page})
	if err != nil {
		t.log.Warn("presence track failed, session continues without room membership",
			"user_id", userID, "error", err.Error())
		untrack = func() {}
	}
	s.untrack = untrack

	go s.heartbeatLoop(runCtx)
	return s
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.tracker.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeHeartbeat(context.Background())
		}
	}
}

// writeHeartbeat re-writes the user's presence row with the current status
// and page. Failures are logged and the loop continues on schedule.
func (s *Session) writeHeartbeat(ctx context.Context) {
	s.mu.Lock()
	record := &models.PresenceRecord{
		UserID:     s.userID,
		Status:     s.status,
		Page:       s.page,
		LastSeenAt: time.Now(),
	}
	s.mu.Unlock()

	if err := s.tracker.repo.Upsert(ctx, record); err != nil {
		observability.PresenceHeartbeats.WithLabelValues("error").Inc()
		s.tracker.log.Warn("presence heartbeat failed", "user_id", s.userID, "error", err.Error())
		return
	}
	observability.PresenceHeartbeats.WithLabelValues("ok").Inc()
}

// SetPage records a navigation: the page label changes, the status does not.
func (s *Session) SetPage(ctx context.Context, page string) {
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	s.writeHeartbeat(ctx)
}

// SetStatus flips between online and away; later heartbeats carry the new
// status. Offline is reserved for Stop, and values outside the enum are
// ignored so clients cannot persist arbitrary strings.
func (s *Session) SetStatus(ctx context.Context, status models.PresenceStatus) {
	if status != models.PresenceOnline && status != models.PresenceAway {
		return
	}
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.writeHeartbeat(ctx)
}

// Stop ends the session: halts the heartbeat, leaves the online room, and
// best-effort writes {offline, now}. The offline write can be lost on abrupt
// termination, which is exactly why readers apply the staleness rule.
func (s *Session) Stop(ctx context.Context) {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.untrack()

		s.mu.Lock()
		s.status = models.PresenceOffline
		record := &models.PresenceRecord{
			UserID:     s.userID,
			Status:     models.PresenceOffline,
			Page:       s.page,
			LastSeenAt: time.Now(),
		}
		s.mu.Unlock()

		if err := s.tracker.repo.Upsert(ctx, record); err != nil {
			s.tracker.log.Warn("presence offline write lost", "user_id", s.userID, "error", err.Error())
		}
	})
}

// WatchOnline subscribes the tracker to the shared room. Each sync event
// carries the entire membership; the local set is replaced wholesale, never
// merged, so entries from users who vanished without a leave event cannot
// accumulate.
func (t *Tracker) WatchOnline(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watching {
		return
	}
	t.watching = true
	t.syncSub = t.registry.SubscribeToPresence(ctx, func(members []feed.Member) {
		next := make(map[uint]feed.Member, len(members))
		for _, m := range members {
			next[m.UserID] = m
		}
		t.mu.Lock()
		t.online = next
		t.mu.Unlock()
	})
}

// OnlineUsers returns a snapshot of the local online set.
func (t *Tracker) OnlineUsers() []uint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Keys(t.online)
}

// StatusFor reads a user's effective status, applying the staleness rule:
// a row older than twice the heartbeat interval reads as offline no matter
// what it says.
func (t *Tracker) StatusFor(ctx context.Context, userID uint) (models.PresenceStatus, error) {
	record, err := t.repo.Get(ctx, userID)
	if err != nil {
		if models.ErrorCode(err) == "NOT_FOUND" {
			return models.PresenceOffline, nil
		}
		return models.PresenceOffline, err
	}
	return record.EffectiveStatus(time.Now(), t.interval), nil
}

// StatusesFor batch-reads effective statuses for a set of users.
func (t *Tracker) StatusesFor(ctx context.Context, userIDs []uint) (map[uint]models.PresenceStatus, error) {
	records, err := t.repo.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	statuses := make(map[uint]models.PresenceStatus, len(userIDs))
	for _, id := range userIDs {
		statuses[id] = models.PresenceOffline
	}
	for _, r := range records {
		statuses[r.UserID] = r.EffectiveStatus(now, t.interval)
	}
	return statuses, nil
}

// Close detaches the room subscription. Sessions are stopped individually.
func (t *Tracker) Close() {
	t.mu.Lock()
	sub := t.syncSub
	t.syncSub = nil
	t.watching = false
	t.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}
