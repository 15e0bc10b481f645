package server

import (
	"tableside/internal/middleware"
	"tableside/internal/models"
	"tableside/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListThreadHandler returns a review's visible comments as a nested thread
// (public; a bearer token adds the viewer's like state)
func (s *Server) ListThreadHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	reviewID, err := s.parseID(c, "reviewID")
	if err != nil {
		return nil
	}

	thread, err := s.commentService.ListThread(ctx, reviewID, middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"review_id": reviewID,
		"comments":  thread,
		"count":     service.CountNodes(thread),
	})
}

// CountVisibleHandler returns the number of visible comments on a review (public)
func (s *Server) CountVisibleHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	reviewID, err := s.parseID(c, "reviewID")
	if err != nil {
		return nil
	}

	count, err := s.commentService.CountVisible(ctx, reviewID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"review_id": reviewID, "count": count})
}

// CreateCommentHandler creates a comment or reply on a review (protected)
func (s *Server) CreateCommentHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	reviewID, err := s.parseID(c, "reviewID")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
		Mentions []uint `json:"mentions"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	created, err := s.commentService.CreateComment(ctx, service.CreateCommentInput{
		ReviewID: reviewID,
		AuthorID: userID,
		Content:  req.Content,
		ParentID: req.ParentID,
		Mentions: req.Mentions,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateCommentHandler edits a comment's content (only the author)
func (s *Server) UpdateCommentHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentID")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		Mentions []uint `json:"mentions"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	updated, err := s.commentService.UpdateComment(ctx, service.UpdateCommentInput{
		CommentID: commentID,
		AuthorID:  userID,
		Content:   req.Content,
		Mentions:  req.Mentions,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(updated)
}

// SoftDeleteCommentHandler removes a comment's content, leaving a placeholder
// so replies keep their position (only the author)
func (s *Server) SoftDeleteCommentHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentID")
	if err != nil {
		return nil
	}

	if err := s.commentService.SoftDeleteComment(ctx, commentID, userID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Comment removed"})
}

// ModerateCommentHandler hides a comment regardless of authorship (moderators only)
func (s *Server) ModerateCommentHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentID")
	if err != nil {
		return nil
	}

	if err := s.commentService.ModerateComment(ctx, commentID, userID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Comment hidden"})
}

// LikeHandler records the viewer's like on a comment; repeats are no-ops (protected)
func (s *Server) LikeHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentID")
	if err != nil {
		return nil
	}

	if err := s.commentService.Like(ctx, commentID, userID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"comment_id": commentID, "liked": true})
}

// UnlikeHandler removes the viewer's like on a comment; repeats are no-ops (protected)
func (s *Server) UnlikeHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentID")
	if err != nil {
		return nil
	}

	if err := s.commentService.Unlike(ctx, commentID, userID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"comment_id": commentID, "liked": false})
}
