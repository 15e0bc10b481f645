// Package feed is the boundary to the backing store's change-notification
// protocol. Writes publish row-level events; channels deliver them filtered
// by table and an equality predicate; presence rooms broadcast membership
// snapshots. The transport is Redis pub/sub.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// EventKind classifies a row-level change.
type EventKind string

const (
	// EventInsert is a row insertion.
	EventInsert EventKind = "insert"
	// EventUpdate is a row update.
	EventUpdate EventKind = "update"
	// EventDelete is a row deletion (including soft deletes surfaced as such).
	EventDelete EventKind = "delete"
)

// Event is the envelope carried on a change channel. Record holds the row
// payload as emitted by the writer; decoding into typed variants happens at
// the registry boundary.
type Event struct {
	Table  string          `json:"table"`
	Kind   EventKind       `json:"kind"`
	Filter string          `json:"filter,omitempty"`
	Record json.RawMessage `json:"record,omitempty"`
}

// Handler consumes one decoded event envelope.
type Handler func(Event)

// Channel is a single upstream live-update subscription keyed by
// (table, filter). At most one handler per event kind.
type Channel interface {
	On(kind EventKind, handler Handler)
	Subscribe(ctx context.Context) error
	Close() error
}

// PresenceRoom is a named broadcast room delivering full membership snapshots.
type PresenceRoom interface {
	OnSync(handler func(members []Member))
	Track(ctx context.Context, userID uint, meta map[string]string) error
	Untrack(ctx context.Context, userID uint) error
	Subscribe(ctx context.Context) error
	Close() error
}

// Member is one tracked participant in a presence room.
type Member struct {
	UserID uint              `json:"user_id"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// Feed opens channels and presence rooms against the backing store.
type Feed interface {
	OpenChannel(table, filter string) Channel
	OpenPresenceRoom(room string) PresenceRoom
}

// ChannelName derives the pub/sub channel for a (table, filter) pair.
func ChannelName(table, filter string) string {
	if filter == "" {
		return "changes:" + table
	}
	return "changes:" + table + ":" + filter
}

func presenceDataKey(room string) string {
	return "presence:room:" + room
}

func presenceSyncChannel(room string) string {
	return "presence:sync:" + room
}

// RedisFeed implements Feed on Redis pub/sub. A nil client is allowed and
// makes every open fail, which callers treat as degraded (pull-only) mode.
type RedisFeed struct {
	rdb *redis.Client
}

// NewRedisFeed creates a RedisFeed using the provided client.
func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

// OpenChannel returns an unsubscribed channel for the given table and filter.
func (f *RedisFeed) OpenChannel(table, filter string) Channel {
	return &redisChannel{
		rdb:  f.rdb,
		name: ChannelName(table, filter),
	}
}

// OpenPresenceRoom returns an unsubscribed presence room.
func (f *RedisFeed) OpenPresenceRoom(room string) PresenceRoom {
	return &redisPresenceRoom{
		rdb:  f.rdb,
		room: room,
	}
}

type redisChannel struct {
	rdb  *redis.Client
	name string

	mu       sync.Mutex
	handlers map[EventKind]Handler
	sub      *redis.PubSub
	cancel   context.CancelFunc
	closed   bool
}

func (c *redisChannel) On(kind EventKind, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[EventKind]Handler)
	}
	c.handlers[kind] = handler
}

func (c *redisChannel) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("channel %s already closed", c.name)
	}
	if c.sub != nil {
		return nil
	}
	if c.rdb == nil {
		return fmt.Errorf("channel %s: no feed connection", c.name)
	}

	sub := c.rdb.Subscribe(ctx, c.name)
	// Force the subscription handshake so open failures surface here, not on
	// the first missed event.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("channel %s: subscribe: %w", c.name, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.sub = sub
	c.cancel = cancel

	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.dispatch(msg.Payload)
			}
		}
	}()

	return nil
}

func (c *redisChannel) dispatch(payload string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in channel %s handler: %v\n%s", c.name, r, debug.Stack())
		}
	}()

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("channel %s: undecodable event: %v", c.name, err)
		return
	}

	c.mu.Lock()
	handler := c.handlers[ev.Kind]
	c.mu.Unlock()

	if handler != nil {
		handler(ev)
	}
}

func (c *redisChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.sub != nil {
		return c.sub.Close()
	}
	return nil
}

type redisPresenceRoom struct {
	rdb  *redis.Client
	room string

	mu      sync.Mutex
	onSync  func(members []Member)
	sub     *redis.PubSub
	cancel  context.CancelFunc
	closed  bool
	tracked map[uint]struct{}
}

func (r *redisPresenceRoom) OnSync(handler func(members []Member)) {
	r.mu.Lock()
	r.onSync = handler
	r.mu.Unlock()
}

func (r *redisPresenceRoom) Subscribe(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("presence room %s already closed", r.room)
	}
	if r.sub != nil {
		return nil
	}
	if r.rdb == nil {
		return fmt.Errorf("presence room %s: no feed connection", r.room)
	}

	sub := r.rdb.Subscribe(ctx, presenceSyncChannel(r.room))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("presence room %s: subscribe: %w", r.room, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.sub = sub
	r.cancel = cancel

	ch := sub.Channel()
	go func() {
		// Deliver the current membership immediately so a late joiner does
		// not wait for the next track/untrack to learn who is here.
		r.deliverSnapshot(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				r.deliverSnapshot(runCtx)
			}
		}
	}()

	return nil
}

// deliverSnapshot reads the whole room membership and hands it to the sync
// handler. Snapshots replace, never merge: a consumer that misses one sync is
// corrected wholesale by the next.
func (r *redisPresenceRoom) deliverSnapshot(ctx context.Context) {
	defer func() {
		if re := recover(); re != nil {
			log.Printf("PANIC in presence room %s sync handler: %v\n%s", r.room, re, debug.Stack())
		}
	}()

	fields, err := r.rdb.HGetAll(ctx, presenceDataKey(r.room)).Result()
	if err != nil {
		log.Printf("presence room %s: snapshot read failed: %v", r.room, err)
		return
	}

	members := make([]Member, 0, len(fields))
	for rawID, rawMeta := range fields {
		id64, parseErr := strconv.ParseUint(rawID, 10, 32)
		if parseErr != nil {
			continue
		}
		m := Member{UserID: uint(id64)}
		if rawMeta != "" {
			_ = json.Unmarshal([]byte(rawMeta), &m.Meta)
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })

	r.mu.Lock()
	handler := r.onSync
	r.mu.Unlock()
	if handler != nil {
		handler(members)
	}
}

func (r *redisPresenceRoom) Track(ctx context.Context, userID uint, meta map[string]string) error {
	if r.rdb == nil {
		return fmt.Errorf("presence room %s: no feed connection", r.room)
	}
	payload := ""
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("presence room %s: marshal meta: %w", r.room, err)
		}
		payload = string(raw)
	}
	field := strconv.FormatUint(uint64(userID), 10)
	if err := r.rdb.HSet(ctx, presenceDataKey(r.room), field, payload).Err(); err != nil {
		return fmt.Errorf("presence room %s: track: %w", r.room, err)
	}
	r.mu.Lock()
	if r.tracked == nil {
		r.tracked = make(map[uint]struct{})
	}
	r.tracked[userID] = struct{}{}
	r.mu.Unlock()
	return r.rdb.Publish(ctx, presenceSyncChannel(r.room), "sync").Err()
}

func (r *redisPresenceRoom) Untrack(ctx context.Context, userID uint) error {
	if r.rdb == nil {
		return nil
	}
	field := strconv.FormatUint(uint64(userID), 10)
	if err := r.rdb.HDel(ctx, presenceDataKey(r.room), field).Err(); err != nil {
		return fmt.Errorf("presence room %s: untrack: %w", r.room, err)
	}
	r.mu.Lock()
	delete(r.tracked, userID)
	r.mu.Unlock()
	return r.rdb.Publish(ctx, presenceSyncChannel(r.room), "sync").Err()
}

func (r *redisPresenceRoom) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	tracked := make([]uint, 0, len(r.tracked))
	for id := range r.tracked {
		tracked = append(tracked, id)
	}
	cancel := r.cancel
	sub := r.sub
	r.mu.Unlock()

	// Best-effort removal of our own tracked members on teardown.
	ctx := context.Background()
	for _, id := range tracked {
		_ = r.Untrack(ctx, id)
	}

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		return sub.Close()
	}
	return nil
}
