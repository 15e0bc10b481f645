// Package realtime multiplexes the backing store's change feed to many local
// listeners. One upstream channel exists per (table, filterKey) no matter how
// many listeners attach; the last unsubscribe tears the upstream down.
package realtime

import (
	"context"
	"sync"

	"tableside/internal/feed"
	"tableside/internal/observability"
)

// Handlers holds per-kind callbacks for one listener. Any field may be nil.
// Callbacks run on the channel's delivery goroutine and must not block; long
// work stalls every later delivery on the same channel.
type Handlers struct {
	OnInsert feed.Handler
	OnUpdate feed.Handler
	OnDelete feed.Handler
}

// Registry owns the channel map. Construct one per process with NewRegistry
// and dispose with Close; it is not a package global.
type Registry struct {
	mu       sync.RWMutex
	feed     feed.Feed
	channels map[string]*channel
	presence *presenceState
	closed   bool
	log      *observability.FeedLogger
}

type channel struct {
	key       string
	table     string
	filterKey string
	upstream  feed.Channel
	degraded  bool
	listeners map[*Subscription]Handlers
}

// Subscription is the cancellable handle returned by Subscribe. Unsubscribe
// is synchronous and idempotent.
type Subscription struct {
	reg  *Registry
	ch   *channel
	once sync.Once
}

// NewRegistry creates a registry over the given feed.
func NewRegistry(f feed.Feed) *Registry {
	return &Registry{
		feed:     f,
		channels: make(map[string]*channel),
		log:      observability.NewFeedLogger("registry"),
	}
}

func channelKey(table, filterKey string) string {
	return table + "|" + filterKey
}

// Subscribe attaches a listener for changes on (table, filterKey). If an
// upstream channel for the pair already exists the listener joins it;
// otherwise one is opened. An upstream open failure leaves the channel
// degraded rather than failing the call: the returned handle still works and
// the caller falls back to fetch-on-demand.
func (r *Registry) Subscribe(ctx context.Context, table, filterKey string, h Handlers) *Subscription {
	key := channelKey(table, filterKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &Subscription{reg: r}
	if r.closed {
		// Closed registry hands out inert handles so shutdown races stay safe.
		return sub
	}

	ch, ok := r.channels[key]
	if !ok {
		ch = &channel{
			key:       key,
			table:     table,
			filterKey: filterKey,
			listeners: make(map[*Subscription]Handlers),
		}
		r.channels[key] = ch
		r.openUpstreamLocked(ctx, ch)
		observability.SubscriptionChannels.Set(float64(len(r.channels)))
	}

	sub.ch = ch
	ch.listeners[sub] = h
	observability.SubscriptionListeners.WithLabelValues(key).Set(float64(len(ch.listeners)))
	return sub
}

// openUpstreamLocked opens the single upstream subscription for a channel and
// wires fan-out. Caller holds r.mu.
func (r *Registry) openUpstreamLocked(ctx context.Context, ch *channel) {
	upstream := r.feed.OpenChannel(ch.table, ch.filterKey)

	deliver := func(pick func(Handlers) feed.Handler) feed.Handler {
		return func(ev feed.Event) {
			// Membership is checked at delivery time: a listener removed
			// while an event is in flight is never called.
			r.mu.RLock()
			handlers := make([]feed.Handler, 0, len(ch.listeners))
			for _, h := range ch.listeners {
				if fn := pick(h); fn != nil {
					handlers = append(handlers, fn)
				}
			}
			r.mu.RUnlock()

			observability.EventsDelivered.WithLabelValues(ch.table, string(ev.Kind)).Add(float64(len(handlers)))
			for _, fn := range handlers {
				fn(ev)
			}
		}
	}

	upstream.On(feed.EventInsert, deliver(func(h Handlers) feed.Handler { return h.OnInsert }))
	upstream.On(feed.EventUpdate, deliver(func(h Handlers) feed.Handler { return h.OnUpdate }))
	upstream.On(feed.EventDelete, deliver(func(h Handlers) feed.Handler { return h.OnDelete }))

	if err := upstream.Subscribe(ctx); err != nil {
		ch.degraded = true
		observability.DegradedChannels.Inc()
		r.log.LogDegraded(ctx, ch.key, err)
		return
	}

	ch.upstream = upstream
	r.log.LogChannelOpen(ctx, ch.key)
}

// Unsubscribe detaches the listener. When the last listener leaves, the
// upstream channel is closed and removed from the registry. Safe to call any
// number of times, including on handles whose upstream never opened.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.ch == nil {
			return
		}
		r := s.reg
		r.mu.Lock()
		ch := s.ch
		delete(ch.listeners, s)
		remaining := len(ch.listeners)
		var upstream feed.Channel
		if remaining == 0 {
			delete(r.channels, ch.key)
			upstream = ch.upstream
			ch.upstream = nil
			if ch.degraded {
				ch.degraded = false
				observability.DegradedChannels.Dec()
			}
			observability.SubscriptionChannels.Set(float64(len(r.channels)))
			// Drop the label series with the channel; per-review keys would
			// otherwise accumulate forever.
			observability.SubscriptionListeners.DeleteLabelValues(ch.key)
		} else {
			observability.SubscriptionListeners.WithLabelValues(ch.key).Set(float64(remaining))
		}
		r.mu.Unlock()

		if upstream != nil {
			if err := upstream.Close(); err != nil {
				r.log.LogDeliveryError(context.Background(), ch.key, err)
			}
			r.log.LogChannelClose(context.Background(), ch.key, "last listener detached")
		}
	})
}

// Degraded returns the keys of channels whose upstream failed to open.
func (r *Registry) Degraded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []string
	for key, ch := range r.channels {
		if ch.degraded {
			keys = append(keys, key)
		}
	}
	return keys
}

// ChannelCount reports the number of open upstream channels.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// ListenerCount reports the listeners attached for a (table, filterKey) pair.
func (r *Registry) ListenerCount(table, filterKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ch, ok := r.channels[channelKey(table, filterKey)]; ok {
		return len(ch.listeners)
	}
	return 0
}

// Close tears down every channel and rejects new work. Idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	channels := r.channels
	r.channels = make(map[string]*channel)
	presence := r.presence
	r.presence = nil
	upstreams := make(map[string]feed.Channel, len(channels))
	for _, ch := range channels {
		if ch.upstream != nil {
			upstreams[ch.key] = ch.upstream
			ch.upstream = nil
		}
		// Clear the flag so a straggling Unsubscribe cannot decrement the
		// gauge a second time.
		if ch.degraded {
			ch.degraded = false
			observability.DegradedChannels.Dec()
		}
		observability.SubscriptionListeners.DeleteLabelValues(ch.key)
	}
	observability.SubscriptionChannels.Set(0)
	r.mu.Unlock()

	if presence != nil && presence.room != nil {
		if err := presence.room.Close(); err != nil {
			r.log.LogDeliveryError(context.Background(), "presence|"+OnlineRoom, err)
		}
	}

	for key, upstream := range upstreams {
		if err := upstream.Close(); err != nil {
			r.log.LogDeliveryError(context.Background(), key, err)
		}
	}
	for _, ch := range channels {
		r.log.LogChannelClose(context.Background(), ch.key, "registry closed")
	}
}
