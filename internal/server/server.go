// Package server contains HTTP and WebSocket handlers for the application's
// API endpoints. Handlers are thin consumer adapters: they call the store and
// open registry subscriptions; all state lives behind those boundaries.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"tableside/internal/cache"
	"tableside/internal/config"
	"tableside/internal/database"
	"tableside/internal/feed"
	"tableside/internal/middleware"
	"tableside/internal/models"
	"tableside/internal/presence"
	"tableside/internal/realtime"
	"tableside/internal/repository"
	"tableside/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	db              *gorm.DB
	app             *fiber.App
	registry        *realtime.Registry
	tracker         *presence.Tracker
	commentService  *service.CommentService
	followService   *service.FollowService
	activityService *service.ActivityService
	userRepo        repository.UserRepository
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.Connect(cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis first.
// A nil Redis client is allowed; live updates then run degraded and reads
// fall back to polling.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	storeFeed := feed.NewRedisFeed(redisClient)
	publisher := feed.NewPublisher(storeFeed)
	registry := realtime.NewRegistry(storeFeed)

	commentRepo := repository.NewCommentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	followRepo := repository.NewFollowRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)
	userRepo := repository.NewUserRepository(db)

	activityService := service.NewActivityService(activityRepo, followRepo, publisher, cfg.FeedMaxLimit)
	commentService := service.NewCommentService(commentRepo, reviewRepo, publisher, activityService, userRepo.IsModerator)
	followService := service.NewFollowService(followRepo, publisher, activityService)

	tracker := presence.NewTracker(presenceRepo, registry, cfg.HeartbeatInterval())
	tracker.WatchOnline(context.Background())

	middleware.InitMiddleware(cfg)

	s := &Server{
		config:          cfg,
		db:              db,
		registry:        registry,
		tracker:         tracker,
		commentService:  commentService,
		followService:   followService,
		activityService: activityService,
		userRepo:        userRepo,
	}
	s.app = s.buildApp()
	return s, nil
}

func (s *Server) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Tableside Social API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	prom := fiberprometheus.New("tableside")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	api := app.Group("/api")
	api.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	// Comment store
	api.Get("/reviews/:reviewID/comments", middleware.OptionalAuth, s.ListThreadHandler)
	api.Get("/reviews/:reviewID/comments/count", s.CountVisibleHandler)
	api.Post("/reviews/:reviewID/comments", middleware.AuthRequired, s.CreateCommentHandler)
	api.Patch("/comments/:commentID", middleware.AuthRequired, s.UpdateCommentHandler)
	api.Delete("/comments/:commentID", middleware.AuthRequired, s.SoftDeleteCommentHandler)
	api.Post("/comments/:commentID/moderate", middleware.AuthRequired, s.ModerateCommentHandler)
	api.Put("/comments/:commentID/like", middleware.AuthRequired, s.LikeHandler)
	api.Delete("/comments/:commentID/like", middleware.AuthRequired, s.UnlikeHandler)

	// Follow graph + activity feed
	api.Put("/follows/users/:userID", middleware.AuthRequired, s.FollowUserHandler)
	api.Delete("/follows/users/:userID", middleware.AuthRequired, s.UnfollowUserHandler)
	api.Put("/follows/restaurants/:restaurantID", middleware.AuthRequired, s.FollowRestaurantHandler)
	api.Delete("/follows/restaurants/:restaurantID", middleware.AuthRequired, s.UnfollowRestaurantHandler)
	api.Get("/follows/users", middleware.AuthRequired, s.FolloweesHandler)
	api.Get("/feed", middleware.AuthRequired, s.FeedHandler)

	// Presence
	api.Get("/presence/online", s.OnlineUsersHandler)
	api.Get("/presence/users/:userID", s.PresenceStatusHandler)
	api.Get("/realtime/degraded", s.DegradedChannelsHandler)

	// WebSocket upgrade for live updates and presence
	app.Use("/ws", middleware.AuthRequired, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/reviews/:reviewID/comments", s.CommentStreamHandler())
	app.Get("/ws/presence", s.PresenceStreamHandler())

	return app
}

// Start begins serving on the configured port.
func (s *Server) Start() error {
	log.Printf("tableside social service listening on :%s", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown tears everything down in dependency order: HTTP first so no new
// subscriptions arrive, then the tracker and the registry.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.tracker.Close()
	s.registry.Close()
	return err
}
