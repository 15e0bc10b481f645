// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"tableside/internal/models"
	"tableside/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment and like operations.
// Author checks on mutations are row predicates so callers cannot bypass
// them; RowsAffected distinguishes "not yours" from "not there".
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListVisibleByReview(ctx context.Context, reviewID uint) ([]*models.Comment, error)
	CountVisible(ctx context.Context, reviewID uint) (int64, error)
	UpdateContent(ctx context.Context, commentID, authorID uint, content string, mentions []uint) (int64, error)
	SoftDelete(ctx context.Context, commentID, authorID uint) (int64, error)
	Hide(ctx context.Context, commentID uint) (int64, error)
	InsertLike(ctx context.Context, commentID, userID uint) (bool, error)
	DeleteLike(ctx context.Context, commentID, userID uint) (bool, error)
	LikedCommentIDs(ctx context.Context, userID uint, commentIDs []uint) ([]uint, error)
}

type commentRepository struct {
	db      *gorm.DB
	log     *observability.RepoLogger
	metrics *observability.DatabaseMetrics
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{
		db:      db,
		log:     observability.NewRepoLogger("review_comments"),
		metrics: observability.NewDatabaseMetrics(db),
	}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer r.metrics.TrackQuery("create", "review_comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewTransientError(err)
	}
	r.log.LogWrite(ctx, "create", map[string]interface{}{
		"comment_id": comment.ID,
		"review_id":  comment.ReviewID,
	})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewTransientError(err)
	}
	return &comment, nil
}

// ListVisibleByReview returns non-deleted comments in creation order. The
// ascending order is what thread reconstruction relies on for deterministic
// root and reply ordering.
func (r *commentRepository) ListVisibleByReview(
	ctx context.Context,
	reviewID uint,
) ([]*models.Comment, error) {
	defer r.metrics.TrackQuery("list_visible", "review_comments")()
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("review_id = ? AND deleted = ?", reviewID, false).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	return comments, nil
}

func (r *commentRepository) CountVisible(ctx context.Context, reviewID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("review_id = ? AND deleted = ?", reviewID, false).
		Count(&count).Error
	if err != nil {
		return 0, models.NewTransientError(err)
	}
	return count, nil
}

func (r *commentRepository) UpdateContent(
	ctx context.Context,
	commentID, authorID uint,
	content string,
	mentions []uint,
) (int64, error) {
	defer r.metrics.TrackQuery("update_content", "review_comments")()
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ? AND author_id = ? AND deleted = ?", commentID, authorID, false).
		Select("content", "mentions", "edited_at").
		Updates(models.Comment{Content: content, Mentions: mentions, EditedAt: &now})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update_content")
		return 0, models.NewTransientError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *commentRepository) SoftDelete(ctx context.Context, commentID, authorID uint) (int64, error) {
	defer r.metrics.TrackQuery("soft_delete", "review_comments")()
	res := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ? AND author_id = ? AND deleted = ?", commentID, authorID, false).
		Updates(map[string]interface{}{
			"content": models.DeletedCommentPlaceholder,
			"deleted": true,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "soft_delete")
		return 0, models.NewTransientError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogWrite(ctx, "soft_delete", map[string]interface{}{"comment_id": commentID})
	}
	return res.RowsAffected, nil
}

// Hide is the moderator path: same soft delete without the author predicate.
func (r *commentRepository) Hide(ctx context.Context, commentID uint) (int64, error) {
	defer r.metrics.TrackQuery("hide", "review_comments")()
	res := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ? AND deleted = ?", commentID, false).
		Updates(map[string]interface{}{
			"content": models.DeletedCommentPlaceholder,
			"deleted": true,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "hide")
		return 0, models.NewTransientError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogWrite(ctx, "hide", map[string]interface{}{"comment_id": commentID})
	}
	return res.RowsAffected, nil
}

// InsertLike inserts the (comment, user) pair unless it already exists.
// Concurrency correctness is delegated to the storage uniqueness constraint:
// two racing inserts conflict at the index, one wins, the other is a no-op.
func (r *commentRepository) InsertLike(ctx context.Context, commentID, userID uint) (bool, error) {
	defer r.metrics.TrackQuery("insert_like", "comment_likes")()
	var inserted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CommentLike{CommentID: commentID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true
		return tx.Model(&models.Comment{}).
			Where("id = ?", commentID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "insert_like")
		return false, models.NewTransientError(err)
	}
	return inserted, nil
}

// DeleteLike removes the pair if present; absent is a no-op, not an error.
func (r *commentRepository) DeleteLike(ctx context.Context, commentID, userID uint) (bool, error) {
	defer r.metrics.TrackQuery("delete_like", "comment_likes")()
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).
			Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&models.Comment{}).
			Where("id = ? AND like_count > 0", commentID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete_like")
		return false, models.NewTransientError(err)
	}
	return removed, nil
}

// LikedCommentIDs fetches the viewer's like-state for a batch of comments in
// one query.
func (r *commentRepository) LikedCommentIDs(
	ctx context.Context,
	userID uint,
	commentIDs []uint,
) ([]uint, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	return ids, nil
}
