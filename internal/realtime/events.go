package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"tableside/internal/feed"
	"tableside/internal/models"
)

// Tables carried on the change feed.
const (
	TableComments     = "review_comments"
	TableCommentLikes = "comment_likes"
	TableActivity     = "activity_entries"
	TableUserFollows  = "user_follows"
)

// CommentEvent is the closed set of decoded comment-channel variants.
// Downstream code switches on the concrete type and never inspects raw
// payload shapes.
type CommentEvent interface {
	isCommentEvent()
}

// CommentInserted carries a newly created comment.
type CommentInserted struct {
	Comment models.Comment
}

// CommentUpdated carries the post-update state of a comment, including soft
// deletes, which update the row rather than removing it.
type CommentUpdated struct {
	Comment models.Comment
}

// CommentDeleted carries the id of a hard-deleted comment. Normal moderation
// is a soft delete and arrives as CommentUpdated.
type CommentDeleted struct {
	CommentID uint
}

func (CommentInserted) isCommentEvent() {}
func (CommentUpdated) isCommentEvent()  {}
func (CommentDeleted) isCommentEvent()  {}

// DecodeCommentEvent decodes a raw comment-channel envelope.
func DecodeCommentEvent(ev feed.Event) (CommentEvent, error) {
	switch ev.Kind {
	case feed.EventInsert, feed.EventUpdate:
		var c models.Comment
		if err := json.Unmarshal(ev.Record, &c); err != nil {
			return nil, fmt.Errorf("decode comment event: %w", err)
		}
		if ev.Kind == feed.EventInsert {
			return CommentInserted{Comment: c}, nil
		}
		return CommentUpdated{Comment: c}, nil
	case feed.EventDelete:
		var ref struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(ev.Record, &ref); err != nil {
			return nil, fmt.Errorf("decode comment delete event: %w", err)
		}
		return CommentDeleted{CommentID: ref.ID}, nil
	default:
		return nil, fmt.Errorf("unknown comment event kind %q", ev.Kind)
	}
}

// LikeEvent is the closed set of decoded like-channel variants.
type LikeEvent interface {
	isLikeEvent()
}

// LikeAdded carries a created like row.
type LikeAdded struct {
	Like models.CommentLike
}

// LikeRemoved carries a removed like row reference.
type LikeRemoved struct {
	CommentID uint
	UserID    uint
}

func (LikeAdded) isLikeEvent()   {}
func (LikeRemoved) isLikeEvent() {}

// DecodeLikeEvent decodes a raw like-channel envelope.
func DecodeLikeEvent(ev feed.Event) (LikeEvent, error) {
	var like models.CommentLike
	if err := json.Unmarshal(ev.Record, &like); err != nil {
		return nil, fmt.Errorf("decode like event: %w", err)
	}
	switch ev.Kind {
	case feed.EventInsert:
		return LikeAdded{Like: like}, nil
	case feed.EventDelete:
		return LikeRemoved{CommentID: like.CommentID, UserID: like.UserID}, nil
	default:
		return nil, fmt.Errorf("unknown like event kind %q", ev.Kind)
	}
}

// ActivityAppended carries a new activity entry. The activity channel only
// ever inserts.
type ActivityAppended struct {
	Entry models.ActivityEntry
}

// DecodeActivityEvent decodes a raw activity-channel envelope.
func DecodeActivityEvent(ev feed.Event) (ActivityAppended, error) {
	if ev.Kind != feed.EventInsert {
		return ActivityAppended{}, fmt.Errorf("unknown activity event kind %q", ev.Kind)
	}
	var entry models.ActivityEntry
	if err := json.Unmarshal(ev.Record, &entry); err != nil {
		return ActivityAppended{}, fmt.Errorf("decode activity event: %w", err)
	}
	return ActivityAppended{Entry: entry}, nil
}

// ReviewFilter is the equality predicate keying per-review comment channels.
func ReviewFilter(reviewID uint) string {
	return fmt.Sprintf("review_id=%d", reviewID)
}

// SubscribeToComments attaches a listener for all comment changes on one
// review, decoding events at the boundary. Decode failures are logged, never
// delivered. Returns the cancellable handle of the underlying subscription.
func (r *Registry) SubscribeToComments(ctx context.Context, reviewID uint, onChange func(CommentEvent)) *Subscription {
	handle := func(ev feed.Event) {
		decoded, err := DecodeCommentEvent(ev)
		if err != nil {
			r.log.LogDeliveryError(ctx, channelKey(TableComments, ReviewFilter(reviewID)), err)
			return
		}
		onChange(decoded)
	}
	return r.Subscribe(ctx, TableComments, ReviewFilter(reviewID), Handlers{
		OnInsert: handle,
		OnUpdate: handle,
		OnDelete: handle,
	})
}
