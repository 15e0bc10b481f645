// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// ActivityKind names the action an activity entry records.
type ActivityKind string

const (
	// ActivityCommentPosted records a comment created on a review.
	ActivityCommentPosted ActivityKind = "comment_posted"
	// ActivityCommentLiked records a like added to a comment.
	ActivityCommentLiked ActivityKind = "comment_liked"
	// ActivityUserFollowed records a user following another user.
	ActivityUserFollowed ActivityKind = "user_followed"
	// ActivityRestaurantFollowed records a user following a restaurant.
	ActivityRestaurantFollowed ActivityKind = "restaurant_followed"
	// ActivityReviewPosted records a review written for a restaurant.
	ActivityReviewPosted ActivityKind = "review_posted"
)

// TargetType values for ActivityEntry.
const (
	TargetReview     = "review"
	TargetComment    = "comment"
	TargetUser       = "user"
	TargetRestaurant = "restaurant"
)

// ActivityEntry is an append-only record of an action performed by a user.
// Feeds are computed on read by selecting entries whose actor the viewer
// follows; entries are never updated or deleted by this service.
type ActivityEntry struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index:idx_activity_actor_created" json:"actor_id"`
	Kind       ActivityKind      `gorm:"type:varchar(32);not null" json:"kind"`
	TargetType string            `gorm:"type:varchar(16);not null" json:"target_type"`
	TargetID   uint              `gorm:"not null" json:"target_id"`
	Metadata   map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"index:idx_activity_actor_created" json:"created_at"`

	Actor User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

// TableName specifies the table name for GORM
func (ActivityEntry) TableName() string {
	return "activity_entries"
}
