package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tableside/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestActivityRepository_Append(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 1)

	entry := models.ActivityEntry{
		ActorID:    users[0].ID,
		Kind:       models.ActivityCommentPosted,
		TargetType: models.TargetReview,
		TargetID:   7,
		Metadata:   map[string]string{"comment_id": "12"},
	}
	require.NoError(t, repo.Append(ctx, &entry))
	assert.NotZero(t, entry.ID)

	got, err := repo.ListByActors(ctx, []uint{users[0].ID}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ActivityCommentPosted, got[0].Kind)
	assert.Equal(t, "12", got[0].Metadata["comment_id"])
}

func TestActivityRepository_ListByActors_Ordering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 2)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// two entries share a timestamp: newest first, then higher id first
	stamps := []time.Time{base, base.Add(time.Hour), base.Add(time.Hour), base.Add(2 * time.Hour)}
	for i, at := range stamps {
		entry := models.ActivityEntry{
			ActorID:    users[i%2].ID,
			Kind:       models.ActivityCommentPosted,
			TargetType: models.TargetReview,
			TargetID:   uint(i + 1),
			CreatedAt:  at,
		}
		require.NoError(t, repo.Append(ctx, &entry))
	}

	got, err := repo.ListByActors(ctx, []uint{users[0].ID, users[1].ID}, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, uint(4), got[0].TargetID)
	assert.Equal(t, uint(3), got[1].TargetID)
	assert.Equal(t, uint(2), got[2].TargetID)
	assert.Equal(t, uint(1), got[3].TargetID)
}

func TestActivityRepository_ListByActors_Limit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 1)

	for i := 0; i < 5; i++ {
		entry := models.ActivityEntry{
			ActorID:    users[0].ID,
			Kind:       models.ActivityCommentLiked,
			TargetType: models.TargetComment,
			TargetID:   uint(i + 1),
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Append(ctx, &entry))
	}

	got, err := repo.ListByActors(ctx, []uint{users[0].ID}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint(5), got[0].TargetID)
}

func TestActivityRepository_ListByActors_QueryShape(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "activity_entries" WHERE actor_id IN ($1,$2) ORDER BY created_at DESC, id DESC LIMIT $3`)).
		WithArgs(4, 7, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "kind", "target_type", "target_id"}).
			AddRow(2, 4, "comment_posted", "review", 9).
			AddRow(1, 7, "user_followed", "user", 4))

	entries, err := repo.ListByActors(ctx, []uint{4, 7}, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActivityCommentPosted, entries[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
