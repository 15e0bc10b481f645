package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tableside/internal/models"
)

func seedUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{Username: name, Email: name + "@example.com", Password: "pw"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestFollowHandlers_Graph(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newTestServer(t, db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	app := authedApp(alice.ID)
	app.Put("/follows/users/:userID", s.FollowUserHandler)
	app.Delete("/follows/users/:userID", s.UnfollowUserHandler)
	app.Get("/follows/users", s.FolloweesHandler)

	follow := fmt.Sprintf("/follows/users/%d", bob.ID)

	// follow twice; the second is absorbed
	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPut, follow, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var edges int64
	require.NoError(t, db.Model(&models.UserFollow{}).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/follows/users", nil))
	require.NoError(t, err)
	var body struct {
		Followees []models.User `json:"followees"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Followees, 1)
	assert.Equal(t, bob.ID, body.Followees[0].ID)

	// unfollow, then unfollow again as a no-op
	for i := 0; i < 2; i++ {
		resp, err = app.Test(httptest.NewRequest(http.MethodDelete, follow, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	require.NoError(t, db.Model(&models.UserFollow{}).Count(&edges).Error)
	assert.Equal(t, int64(0), edges)
}

func TestFollowUser_SelfFollowRejected(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newTestServer(t, db)
	alice := seedUser(t, db, "alice")

	app := authedApp(alice.ID)
	app.Put("/follows/users/:userID", s.FollowUserHandler)

	resp, err := app.Test(httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/follows/users/%d", alice.ID), nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeedHandler_FollowedActivityOnly(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newTestServer(t, db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	require.NoError(t, db.Create(&models.UserFollow{FollowerID: alice.ID, FolloweeID: bob.ID}).Error)

	entries := []models.ActivityEntry{
		{ActorID: bob.ID, Kind: models.ActivityCommentPosted, TargetType: models.TargetComment, TargetID: 1},
		{ActorID: carol.ID, Kind: models.ActivityCommentPosted, TargetType: models.TargetComment, TargetID: 2},
		{ActorID: bob.ID, Kind: models.ActivityUserFollowed, TargetType: models.TargetUser, TargetID: carol.ID},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}

	app := authedApp(alice.ID)
	app.Get("/feed", s.FeedHandler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []models.ActivityEntry `json:"entries"`
		Count   int                    `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 2, body.Count)
	for _, entry := range body.Entries {
		assert.Equal(t, bob.ID, entry.ActorID, "only followed actors appear")
	}
}

func TestFeedHandler_NoFollowsIsEmpty(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newTestServer(t, db)
	alice := seedUser(t, db, "alice")

	require.NoError(t, db.Create(&models.ActivityEntry{
		ActorID: alice.ID, Kind: models.ActivityCommentPosted, TargetType: models.TargetComment, TargetID: 1,
	}).Error)

	app := authedApp(alice.ID)
	app.Get("/feed", s.FeedHandler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []models.ActivityEntry `json:"entries"`
		Count   int                    `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Entries)
}

func TestRestaurantFollowHandlers(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newTestServer(t, db)
	alice := seedUser(t, db, "alice")
	restaurant := models.Restaurant{Name: "Blue Door", Slug: "blue-door"}
	require.NoError(t, db.Create(&restaurant).Error)

	app := authedApp(alice.ID)
	app.Put("/follows/restaurants/:restaurantID", s.FollowRestaurantHandler)
	app.Delete("/follows/restaurants/:restaurantID", s.UnfollowRestaurantHandler)

	path := fmt.Sprintf("/follows/restaurants/%d", restaurant.ID)

	resp, err := app.Test(httptest.NewRequest(http.MethodPut, path, nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var edges int64
	require.NoError(t, db.Model(&models.RestaurantFollow{}).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, path, nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, db.Model(&models.RestaurantFollow{}).Count(&edges).Error)
	assert.Equal(t, int64(0), edges)
}
