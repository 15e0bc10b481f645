package server

import (
	"github.com/gofiber/fiber/v2"
)

// FollowUserHandler creates a follow edge to another user (protected)
func (s *Server) FollowUserHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	followeeID, err := s.parseID(c, "userID")
	if err != nil {
		return nil
	}

	if err := s.followService.Follow(ctx, userID, followeeID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"following": true, "user_id": followeeID})
}

// UnfollowUserHandler removes a follow edge to another user (protected)
func (s *Server) UnfollowUserHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	followeeID, err := s.parseID(c, "userID")
	if err != nil {
		return nil
	}

	if err := s.followService.Unfollow(ctx, userID, followeeID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"following": false, "user_id": followeeID})
}

// FollowRestaurantHandler follows a restaurant (protected)
func (s *Server) FollowRestaurantHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	restaurantID, err := s.parseID(c, "restaurantID")
	if err != nil {
		return nil
	}

	if err := s.followService.FollowRestaurant(ctx, userID, restaurantID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"following": true, "restaurant_id": restaurantID})
}

// UnfollowRestaurantHandler unfollows a restaurant (protected)
func (s *Server) UnfollowRestaurantHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	restaurantID, err := s.parseID(c, "restaurantID")
	if err != nil {
		return nil
	}

	if err := s.followService.UnfollowRestaurant(ctx, userID, restaurantID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"following": false, "restaurant_id": restaurantID})
}

// FolloweesHandler lists the users the viewer follows (protected)
func (s *Server) FolloweesHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	users, err := s.followService.Followees(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"followees": users})
}

// FeedHandler returns the viewer's activity feed, newest first (protected)
func (s *Server) FeedHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	limit := c.QueryInt("limit", 50)
	entries, err := s.activityService.FeedFor(ctx, userID, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

// OnlineUsersHandler returns the ids currently in the online room (public)
func (s *Server) OnlineUsersHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"online": s.tracker.OnlineUsers()})
}

// PresenceStatusHandler returns one user's effective presence (public)
func (s *Server) PresenceStatusHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	userID, err := s.parseID(c, "userID")
	if err != nil {
		return nil
	}

	status, err := s.tracker.StatusFor(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"user_id": userID, "status": status})
}

// DegradedChannelsHandler reports subscription channels whose live updates
// are currently unavailable (public)
func (s *Server) DegradedChannelsHandler(c *fiber.Ctx) error {
	degraded := s.registry.Degraded()
	if degraded == nil {
		degraded = []string{}
	}
	return c.JSON(fiber.Map{
		"degraded": degraded,
		"channels": s.registry.ChannelCount(),
	})
}
