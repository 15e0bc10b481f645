package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Publisher emits change events and mention notifications into the feed.
// A nil Redis-backed feed makes every publish a no-op so write paths keep
// working when live updates are down.
type Publisher struct {
	feed *RedisFeed
}

// NewPublisher creates a Publisher on the given feed.
func NewPublisher(f *RedisFeed) *Publisher {
	return &Publisher{feed: f}
}

// PublishChange emits one row-level change event. The event is published on
// the table-wide channel and, when a filter is set, on the filtered channel,
// so both kinds of subscribers see it.
func (p *Publisher) PublishChange(ctx context.Context, ev Event) error {
	if p == nil || p.feed == nil || p.feed.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := p.feed.rdb.Publish(ctx, ChannelName(ev.Table, ""), payload).Err(); err != nil {
		return fmt.Errorf("publish %s change: %w", ev.Table, err)
	}
	if ev.Filter != "" {
		if err := p.feed.rdb.Publish(ctx, ChannelName(ev.Table, ev.Filter), payload).Err(); err != nil {
			return fmt.Errorf("publish %s change (filtered): %w", ev.Table, err)
		}
	}
	return nil
}

// MentionNotification is the payload delivered to a mentioned user's channel.
type MentionNotification struct {
	CommentID uint   `json:"comment_id"`
	ReviewID  uint   `json:"review_id"`
	AuthorID  uint   `json:"author_id"`
	Excerpt   string `json:"excerpt"`
}

// UserChannel derives the notification channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// PublishMention sends a mention notification to one user's channel.
func (p *Publisher) PublishMention(ctx context.Context, userID uint, n MentionNotification) error {
	if p == nil || p.feed == nil || p.feed.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal mention: %w", err)
	}
	return p.feed.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}
