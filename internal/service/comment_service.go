package service

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"tableside/internal/feed"
	"tableside/internal/models"
	"tableside/internal/observability"
	"tableside/internal/realtime"
	"tableside/internal/repository"

	"github.com/samber/lo"
)

const maxCommentLen = 10000

// ActivityRecorder appends entries to the activity log. Recording failures
// never fail the primary write.
type ActivityRecorder interface {
	Record(ctx context.Context, entry *models.ActivityEntry) error
}

// CommentService implements the comment store: reads, writes, moderation,
// the like toggle, and the post-write side effects (change events, mention
// notifications, activity entries).
type CommentService struct {
	commentRepo repository.CommentRepository
	reviewRepo  repository.ReviewRepository
	publisher   *feed.Publisher
	recorder    ActivityRecorder
	isModerator func(ctx context.Context, userID uint) (bool, error)
}

// NewCommentService creates a new CommentService. publisher and recorder may
// be nil; the corresponding side effects are then skipped.
func NewCommentService(
	commentRepo repository.CommentRepository,
	reviewRepo repository.ReviewRepository,
	publisher *feed.Publisher,
	recorder ActivityRecorder,
	isModerator func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		reviewRepo:  reviewRepo,
		publisher:   publisher,
		recorder:    recorder,
		isModerator: isModerator,
	}
}

// CreateCommentInput carries the fields for a new comment.
type CreateCommentInput struct {
	ReviewID uint
	AuthorID uint
	Content  string
	ParentID *uint
	Mentions []uint
}

// UpdateCommentInput carries the fields for an author edit.
type UpdateCommentInput struct {
	CommentID uint
	AuthorID  uint
	Content   string
	Mentions  []uint
}

// ListThread returns the review's visible comments as a forest, with the
// viewer's like state resolved in one batch query. viewerID zero means an
// anonymous read with no like state.
func (s *CommentService) ListThread(ctx context.Context, reviewID, viewerID uint) ([]*models.CommentNode, error) {
	comments, err := s.commentRepo.ListVisibleByReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if viewerID != 0 && len(comments) > 0 {
		ids := lo.Map(comments, func(c *models.Comment, _ int) uint { return c.ID })
		likedIDs, err := s.commentRepo.LikedCommentIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		liked := lo.SliceToMap(likedIDs, func(id uint) (uint, struct{}) { return id, struct{}{} })
		for _, c := range comments {
			_, c.Liked = liked[c.ID]
		}
	}

	return BuildThread(comments), nil
}

// CountVisible returns the number of non-deleted comments on a review. It
// matches the node count of ListThread on unchanged data.
func (s *CommentService) CountVisible(ctx context.Context, reviewID uint) (int64, error) {
	return s.commentRepo.CountVisible(ctx, reviewID)
}

// CreateComment validates and writes a new comment, then fires side effects:
// a change event on the review's comment channel, a notification per
// mentioned user, and an activity entry. Side-effect failures are logged and
// never roll back the committed comment.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}
	if _, err := s.reviewRepo.GetByID(ctx, in.ReviewID); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, models.NewValidationError("Parent comment does not exist")
		}
		if parent.Deleted {
			return nil, models.NewValidationError("Parent comment has been removed")
		}
		if parent.ReviewID != in.ReviewID {
			return nil, models.NewValidationError("Parent comment belongs to a different review")
		}
	}

	comment := &models.Comment{
		ReviewID: in.ReviewID,
		AuthorID: in.AuthorID,
		ParentID: in.ParentID,
		Content:  in.Content,
		Mentions: lo.Uniq(in.Mentions),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.publishCommentEvent(ctx, feed.EventInsert, comment)
	s.notifyMentions(ctx, comment)
	s.record(ctx, &models.ActivityEntry{
		ActorID:    in.AuthorID,
		Kind:       models.ActivityCommentPosted,
		TargetType: models.TargetReview,
		TargetID:   in.ReviewID,
		Metadata:   map[string]string{"comment_id": jsonID(comment.ID)},
	})

	return comment, nil
}

// UpdateComment edits a comment's content. Authorship is enforced as a row
// predicate inside the store; a zero-row update is resolved into the precise
// failure instead of a silent no-op.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	rows, err := s.commentRepo.UpdateContent(ctx, in.CommentID, in.AuthorID, in.Content, lo.Uniq(in.Mentions))
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, s.resolveMutationFailure(ctx, in.CommentID, in.AuthorID, "update")
	}

	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	s.publishCommentEvent(ctx, feed.EventUpdate, comment)
	return comment, nil
}

// SoftDeleteComment hides a comment authored by the caller. The row stays so
// replies keep a valid parent reference; content becomes the placeholder.
func (s *CommentService) SoftDeleteComment(ctx context.Context, commentID, authorID uint) error {
	rows, err := s.commentRepo.SoftDelete(ctx, commentID, authorID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.resolveMutationFailure(ctx, commentID, authorID, "delete")
	}

	if comment, err := s.commentRepo.GetByID(ctx, commentID); err == nil {
		s.publishCommentEvent(ctx, feed.EventUpdate, comment)
	}
	return nil
}

// ModerateComment hides any comment, available to moderators only.
func (s *CommentService) ModerateComment(ctx context.Context, commentID, moderatorID uint) error {
	if s.isModerator == nil {
		return models.NewUnauthorizedError("Moderation is not available")
	}
	ok, err := s.isModerator(ctx, moderatorID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("Only moderators can hide comments")
	}

	rows, err := s.commentRepo.Hide(ctx, commentID)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Already hidden or missing; distinguish for the caller.
		if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
			return err
		}
		return nil
	}

	if comment, err := s.commentRepo.GetByID(ctx, commentID); err == nil {
		s.publishCommentEvent(ctx, feed.EventUpdate, comment)
	}
	return nil
}

// Like records the (comment, user) pair. Safe to call when already liked:
// the storage uniqueness constraint absorbs the duplicate and no event fires.
func (s *CommentService) Like(ctx context.Context, commentID, userID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.Deleted {
		return models.NewValidationError("Cannot like a removed comment")
	}

	inserted, err := s.commentRepo.InsertLike(ctx, commentID, userID)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	s.publishLikeEvent(ctx, feed.EventInsert, comment, userID)
	s.record(ctx, &models.ActivityEntry{
		ActorID:    userID,
		Kind:       models.ActivityCommentLiked,
		TargetType: models.TargetComment,
		TargetID:   commentID,
		Metadata:   map[string]string{"review_id": jsonID(comment.ReviewID)},
	})
	return nil
}

// Unlike removes the pair. Safe to call when not liked; nothing fires.
func (s *CommentService) Unlike(ctx context.Context, commentID, userID uint) error {
	removed, err := s.commentRepo.DeleteLike(ctx, commentID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	if comment, err := s.commentRepo.GetByID(ctx, commentID); err == nil {
		s.publishLikeEvent(ctx, feed.EventDelete, comment, userID)
	}
	return nil
}

// resolveMutationFailure turns a zero-row authorized update into the precise
// error: missing row, already-deleted row, or someone else's row.
func (s *CommentService) resolveMutationFailure(ctx context.Context, commentID, authorID uint, op string) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.Deleted {
		return models.NewValidationError("Comment has already been removed")
	}
	if comment.AuthorID != authorID {
		return models.NewUnauthorizedError("You can only " + op + " your own comments")
	}
	return models.NewInternalError(nil)
}

func (s *CommentService) publishCommentEvent(ctx context.Context, kind feed.EventKind, comment *models.Comment) {
	if s.publisher == nil {
		return
	}
	record, err := json.Marshal(comment)
	if err != nil {
		observability.LogSideEffectFailure(ctx, "comment_event", err, map[string]interface{}{"comment_id": comment.ID})
		return
	}
	ev := feed.Event{
		Table:  realtime.TableComments,
		Kind:   kind,
		Filter: realtime.ReviewFilter(comment.ReviewID),
		Record: record,
	}
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		observability.LogSideEffectFailure(ctx, "comment_event", err, map[string]interface{}{"comment_id": comment.ID})
	}
}

func (s *CommentService) publishLikeEvent(ctx context.Context, kind feed.EventKind, comment *models.Comment, userID uint) {
	if s.publisher == nil {
		return
	}
	record, err := json.Marshal(models.CommentLike{CommentID: comment.ID, UserID: userID})
	if err != nil {
		observability.LogSideEffectFailure(ctx, "like_event", err, map[string]interface{}{"comment_id": comment.ID})
		return
	}
	ev := feed.Event{
		Table:  realtime.TableCommentLikes,
		Kind:   kind,
		Filter: realtime.ReviewFilter(comment.ReviewID),
		Record: record,
	}
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		observability.LogSideEffectFailure(ctx, "like_event", err, map[string]interface{}{"comment_id": comment.ID})
	}
}

// notifyMentions publishes one notification per mentioned user. Failures are
// logged only; the comment is already committed.
func (s *CommentService) notifyMentions(ctx context.Context, comment *models.Comment) {
	if s.publisher == nil || len(comment.Mentions) == 0 {
		return
	}
	excerpt := truncateExcerpt(comment.Content, 140)
	for _, userID := range comment.Mentions {
		if userID == comment.AuthorID {
			continue
		}
		n := feed.MentionNotification{
			CommentID: comment.ID,
			ReviewID:  comment.ReviewID,
			AuthorID:  comment.AuthorID,
			Excerpt:   excerpt,
		}
		if err := s.publisher.PublishMention(ctx, userID, n); err != nil {
			observability.LogSideEffectFailure(ctx, "mention_notification", err, map[string]interface{}{
				"comment_id":   comment.ID,
				"mention_user": userID,
			})
		}
	}
}

func (s *CommentService) record(ctx context.Context, entry *models.ActivityEntry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		observability.LogSideEffectFailure(ctx, "activity_entry", err, map[string]interface{}{
			"kind":  entry.Kind,
			"actor": entry.ActorID,
		})
	}
}

// truncateExcerpt caps a string at max bytes without splitting a multi-byte
// rune, so excerpts stay valid UTF-8.
func truncateExcerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
