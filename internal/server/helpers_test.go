package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tableside/internal/database"
	"tableside/internal/models"
	"tableside/internal/repository"
	"tableside/internal/service"
)

// setupHandlerTestDB creates an in-memory sqlite DB with the full schema.
func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

// newTestServer wires a Server over the given DB with no feed connection, so
// handlers exercise real services and repositories while live updates stay
// inert.
func newTestServer(t *testing.T, db *gorm.DB) *Server {
	t.Helper()

	commentRepo := repository.NewCommentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	followRepo := repository.NewFollowRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	userRepo := repository.NewUserRepository(db)

	activityService := service.NewActivityService(activityRepo, followRepo, nil, 100)
	commentService := service.NewCommentService(commentRepo, reviewRepo, nil, activityService, userRepo.IsModerator)
	followService := service.NewFollowService(followRepo, nil, activityService)

	return &Server{
		db:              db,
		commentService:  commentService,
		followService:   followService,
		activityService: activityService,
		userRepo:        userRepo,
	}
}

// authedApp returns a fiber app that stamps every request as the given user.
func authedApp(userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	return app
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// seedReviewFixture creates a user, a restaurant, and a review to comment on.
func seedReviewFixture(t *testing.T, db *gorm.DB) (models.User, models.Review) {
	t.Helper()
	user := models.User{Username: "diner", Email: "diner@example.com", Password: "pw"}
	require.NoError(t, db.Create(&user).Error)
	restaurant := models.Restaurant{Name: "Lucia's", Slug: "lucias"}
	require.NoError(t, db.Create(&restaurant).Error)
	review := models.Review{RestaurantID: restaurant.ID, AuthorID: user.ID, Rating: 5, Body: "worth the wait"}
	require.NoError(t, db.Create(&review).Error)
	return user, review
}

func TestParseID_Valid(t *testing.T) {
	app := fiber.New()
	s := &Server{}
	app.Get("/items/:itemID", func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "itemID")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	var body map[string]float64
	decodeBody(t, resp, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(42), body["id"])
}

func TestParseID_Invalid(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"non-numeric", "/items/abc"},
		{"zero", "/items/0"},
		{"negative", "/items/-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			s := &Server{}
			app.Get("/items/:itemID", func(c *fiber.Ctx) error {
				_, _ = s.parseID(c, "itemID")
				return nil
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", models.NewValidationError("bad input"), http.StatusBadRequest},
		{"unauthorized", models.NewUnauthorizedError("not yours"), http.StatusForbidden},
		{"not found", models.NewNotFoundError("Comment", 9), http.StatusNotFound},
		{"transient", models.NewTransientError(context.DeadlineExceeded), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/boom", func(c *fiber.Ctx) error {
				return respondError(c, tt.err)
			})

			req := httptest.NewRequest(http.MethodGet, "/boom", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
