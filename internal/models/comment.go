// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DeletedCommentPlaceholder replaces the content of soft-deleted comments.
// The row survives so existing replies keep a valid parent reference.
const DeletedCommentPlaceholder = "[removed]"

// Comment represents a comment on a restaurant review. ParentID makes the
// set of comments for a review a forest of arbitrary depth.
type Comment struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ReviewID uint   `gorm:"not null;index" json:"review_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`
	Mentions []uint `gorm:"serializer:json" json:"mentions,omitempty"`
	// LikeCount is a derived aggregate, only ever moved by like/unlike.
	LikeCount int        `gorm:"not null;default:0" json:"like_count"`
	Deleted   bool       `gorm:"not null;default:false;index" json:"deleted"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	// Liked is filled per viewer at query time, never persisted.
	Liked bool `gorm:"-" json:"liked"`
}

// TableName specifies the table name for GORM
func (Comment) TableName() string {
	return "review_comments"
}

// CommentLike records one user's like on one comment.
// The combination of CommentID and UserID must be unique.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_user" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (CommentLike) TableName() string {
	return "comment_likes"
}

// CommentNode is a comment with its replies resolved, as returned by thread
// reconstruction. Replies are ordered by creation time ascending.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}
