package realtime

import (
	"context"
	"sync"

	"tableside/internal/feed"
)

// OnlineRoom is the fixed presence room name shared by every session.
const OnlineRoom = "online"

// presenceState holds the registry's single upstream presence room. The
// one-upstream-per-key rule applies to presence exactly as to table channels,
// keyed by the room name instead of a (table, filter) pair.
type presenceState struct {
	room      feed.PresenceRoom
	degraded  bool
	listeners map[*PresenceSubscription]func([]feed.Member)
}

// PresenceSubscription is the cancellable handle for a presence listener.
type PresenceSubscription struct {
	reg  *Registry
	once sync.Once
}

// SubscribeToPresence attaches a sync listener to the shared online room.
// The first listener opens the room; later listeners reuse it; the last
// unsubscribe closes it. Each sync delivers the entire membership snapshot.
func (r *Registry) SubscribeToPresence(ctx context.Context, onSync func(members []feed.Member)) *PresenceSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &PresenceSubscription{reg: r}
	if r.closed {
		return sub
	}

	if r.presence == nil {
		r.presence = &presenceState{listeners: make(map[*PresenceSubscription]func([]feed.Member))}
	}
	st := r.presence

	if st.room == nil && !st.degraded {
		room := r.feed.OpenPresenceRoom(OnlineRoom)
		room.OnSync(func(members []feed.Member) {
			// Membership is checked at delivery time, matching table channels.
			r.mu.RLock()
			var handlers []func([]feed.Member)
			if r.presence == st {
				handlers = make([]func([]feed.Member), 0, len(st.listeners))
				for _, h := range st.listeners {
					handlers = append(handlers, h)
				}
			}
			r.mu.RUnlock()
			for _, h := range handlers {
				h(members)
			}
		})
		if err := room.Subscribe(ctx); err != nil {
			st.degraded = true
			r.log.LogDegraded(ctx, "presence|"+OnlineRoom, err)
		} else {
			st.room = room
			r.log.LogChannelOpen(ctx, "presence|"+OnlineRoom)
		}
	}

	st.listeners[sub] = onSync
	return sub
}

// Unsubscribe detaches the listener; the last one closes the upstream room.
// Idempotent.
func (s *PresenceSubscription) Unsubscribe() {
	s.once.Do(func() {
		r := s.reg
		r.mu.Lock()
		st := r.presence
		if st == nil {
			r.mu.Unlock()
			return
		}
		delete(st.listeners, s)
		var room feed.PresenceRoom
		if len(st.listeners) == 0 {
			room = st.room
			r.presence = nil
		}
		r.mu.Unlock()

		if room != nil {
			if err := room.Close(); err != nil {
				r.log.LogDeliveryError(context.Background(), "presence|"+OnlineRoom, err)
			}
			r.log.LogChannelClose(context.Background(), "presence|"+OnlineRoom, "last listener detached")
		}
	})
}

// Track announces a user in the online room and returns an untrack function.
// Untrack is idempotent. Tracking does not require an active local presence
// subscription; the room is addressed directly so heartbeat writers without
// listeners stay cheap.
func (r *Registry) Track(ctx context.Context, userID uint, meta map[string]string) (func(), error) {
	room := r.feed.OpenPresenceRoom(OnlineRoom)
	if err := room.Track(ctx, userID, meta); err != nil {
		return func() {}, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = room.Untrack(context.Background(), userID)
		})
	}, nil
}
