// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"tableside/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	NumRestaurants int
	NumReviews     int
	ShouldClean    bool
	SkipBcrypt     bool
}

var cuisines = []string{
	"Italian", "Japanese", "Mexican", "Thai", "Indian", "French",
	"Korean", "Vietnamese", "Greek", "Ethiopian", "Peruvian", "Spanish",
}

var commentOpeners = []string{
	"Totally agree about the",
	"We had a different experience with the",
	"Did you try the",
	"Great point on the",
	"This matches what I heard about the",
}

var commentSubjects = []string{
	"tasting menu", "service", "wine list", "noise level",
	"dessert", "patio", "wait time", "portion sizes",
}

// Seeder populates the database with demo data.
type Seeder struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes seeded data in reverse dependency order.
func (s *Seeder) ClearAll() error {
	tables := []string{
		"activity_entries", "presence_records", "comment_likes",
		"review_comments", "restaurant_follows", "user_follows",
		"reviews", "restaurants", "users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Run seeds users, restaurants, reviews, threaded comments, likes, follow
// edges and the matching activity entries.
func (s *Seeder) Run() error {
	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			log.Println("warning: could not clear all existing data, continuing anyway")
		}
	}

	users, err := s.createUsers(s.opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("seeded %d users", len(users))

	restaurants, err := s.createRestaurants(s.opts.NumRestaurants)
	if err != nil {
		return fmt.Errorf("failed to create restaurants: %w", err)
	}
	log.Printf("seeded %d restaurants", len(restaurants))

	reviews, err := s.createReviews(users, restaurants, s.opts.NumReviews)
	if err != nil {
		return fmt.Errorf("failed to create reviews: %w", err)
	}
	log.Printf("seeded %d reviews", len(reviews))

	comments, err := s.createCommentThreads(users, reviews)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("seeded %d comments", len(comments))

	if err := s.createLikes(users, comments); err != nil {
		return fmt.Errorf("failed to create likes: %w", err)
	}

	if err := s.createFollowGraph(users, restaurants); err != nil {
		return fmt.Errorf("failed to create follow graph: %w", err)
	}

	if err := s.createPresence(users); err != nil {
		return fmt.Errorf("failed to create presence records: %w", err)
	}

	log.Println("seeding complete")
	return nil
}

func (s *Seeder) createUsers(n int) ([]models.User, error) {
	if n <= 0 {
		n = 25
	}

	password := "password123"
	if !s.opts.SkipBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		password = string(hashed)
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		name := gofakeit.Name()
		users = append(users, models.User{
			Username:    fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
			Email:       gofakeit.Email(),
			Password:    password,
			DisplayName: name,
			IsModerator: i == 0,
		})
	}
	if err := s.db.Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) createRestaurants(n int) ([]models.Restaurant, error) {
	if n <= 0 {
		n = 12
	}
	restaurants := make([]models.Restaurant, 0, n)
	for i := 0; i < n; i++ {
		name := gofakeit.Company()
		restaurants = append(restaurants, models.Restaurant{
			Name:    name,
			Slug:    fmt.Sprintf("%s-%d", slugify(name), i),
			City:    gofakeit.City(),
			Cuisine: cuisines[s.rng.Intn(len(cuisines))],
		})
	}
	if err := s.db.Create(&restaurants).Error; err != nil {
		return nil, err
	}
	return restaurants, nil
}

func (s *Seeder) createReviews(users []models.User, restaurants []models.Restaurant, n int) ([]models.Review, error) {
	if n <= 0 {
		n = 40
	}
	reviews := make([]models.Review, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rng.Intn(len(users))]
		reviews = append(reviews, models.Review{
			RestaurantID: restaurants[s.rng.Intn(len(restaurants))].ID,
			AuthorID:     author.ID,
			Rating:       s.rng.Intn(5) + 1,
			Body:         gofakeit.Paragraph(1, 3, 8, "\n"),
			CreatedAt:    s.pastTime(60),
		})
	}
	if err := s.db.Create(&reviews).Error; err != nil {
		return nil, err
	}

	entries := make([]models.ActivityEntry, 0, len(reviews))
	for _, review := range reviews {
		entries = append(entries, models.ActivityEntry{
			ActorID:    review.AuthorID,
			Kind:       models.ActivityReviewPosted,
			TargetType: models.TargetReview,
			TargetID:   review.ID,
			Metadata:   map[string]string{"restaurant_id": fmt.Sprint(review.RestaurantID)},
			CreatedAt:  review.CreatedAt,
		})
	}
	if err := s.db.Create(&entries).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

// createCommentThreads builds small forests per review: top-level comments,
// a scattering of replies, and the occasional soft-deleted parent so thread
// rendering around placeholders gets realistic data.
func (s *Seeder) createCommentThreads(users []models.User, reviews []models.Review) ([]models.Comment, error) {
	var all []models.Comment
	for _, review := range reviews {
		numTop := s.rng.Intn(4)
		for i := 0; i < numTop; i++ {
			top, err := s.createComment(users, review, nil)
			if err != nil {
				return nil, err
			}
			all = append(all, *top)

			numReplies := s.rng.Intn(3)
			for j := 0; j < numReplies; j++ {
				reply, err := s.createComment(users, review, &top.ID)
				if err != nil {
					return nil, err
				}
				all = append(all, *reply)
			}

			// roughly one in eight parents is removed, replies stay visible
			if numReplies > 0 && s.rng.Intn(8) == 0 {
				if err := s.db.Model(&models.Comment{}).Where("id = ?", top.ID).
					Updates(map[string]any{
						"content": models.DeletedCommentPlaceholder,
						"deleted": true,
					}).Error; err != nil {
					return nil, err
				}
			}
		}
	}
	return all, nil
}

func (s *Seeder) createComment(users []models.User, review models.Review, parentID *uint) (*models.Comment, error) {
	author := users[s.rng.Intn(len(users))]
	comment := &models.Comment{
		ReviewID: review.ID,
		AuthorID: author.ID,
		ParentID: parentID,
		Content: fmt.Sprintf("%s %s. %s",
			commentOpeners[s.rng.Intn(len(commentOpeners))],
			commentSubjects[s.rng.Intn(len(commentSubjects))],
			gofakeit.Sentence(8)),
		CreatedAt: s.pastTime(30),
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, err
	}

	entry := models.ActivityEntry{
		ActorID:    author.ID,
		Kind:       models.ActivityCommentPosted,
		TargetType: models.TargetComment,
		TargetID:   comment.ID,
		Metadata:   map[string]string{"review_id": fmt.Sprint(review.ID)},
		CreatedAt:  comment.CreatedAt,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// createLikes adds likes from random users, keeping like_count consistent
// with the rows in comment_likes.
func (s *Seeder) createLikes(users []models.User, comments []models.Comment) error {
	for _, comment := range comments {
		numLikes := s.rng.Intn(4)
		seen := make(map[uint]bool, numLikes)
		for i := 0; i < numLikes; i++ {
			user := users[s.rng.Intn(len(users))]
			if seen[user.ID] {
				continue
			}
			seen[user.ID] = true

			like := models.CommentLike{CommentID: comment.ID, UserID: user.ID}
			if err := s.db.Create(&like).Error; err != nil {
				return err
			}
			if err := s.db.Model(&models.Comment{}).Where("id = ?", comment.ID).
				Update("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
				return err
			}

			entry := models.ActivityEntry{
				ActorID:    user.ID,
				Kind:       models.ActivityCommentLiked,
				TargetType: models.TargetComment,
				TargetID:   comment.ID,
				CreatedAt:  s.pastTime(14),
			}
			if err := s.db.Create(&entry).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) createFollowGraph(users []models.User, restaurants []models.Restaurant) error {
	var userEdges, restaurantEdges int
	for _, follower := range users {
		numFollows := s.rng.Intn(6)
		for i := 0; i < numFollows; i++ {
			followee := users[s.rng.Intn(len(users))]
			if followee.ID == follower.ID {
				continue
			}
			edge := models.UserFollow{FollowerID: follower.ID, FolloweeID: followee.ID}
			result := s.db.Where(models.UserFollow{FollowerID: follower.ID, FolloweeID: followee.ID}).
				FirstOrCreate(&edge)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}
			userEdges++

			entry := models.ActivityEntry{
				ActorID:    follower.ID,
				Kind:       models.ActivityUserFollowed,
				TargetType: models.TargetUser,
				TargetID:   followee.ID,
				CreatedAt:  s.pastTime(45),
			}
			if err := s.db.Create(&entry).Error; err != nil {
				return err
			}
		}

		if s.rng.Intn(2) == 0 {
			restaurant := restaurants[s.rng.Intn(len(restaurants))]
			edge := models.RestaurantFollow{FollowerID: follower.ID, RestaurantID: restaurant.ID}
			result := s.db.Where(models.RestaurantFollow{FollowerID: follower.ID, RestaurantID: restaurant.ID}).
				FirstOrCreate(&edge)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				restaurantEdges++
			}
		}
	}
	log.Printf("seeded %d user follows, %d restaurant follows", userEdges, restaurantEdges)
	return nil
}

// createPresence leaves a mix of fresh and stale rows so the staleness rule
// has something to chew on in development.
func (s *Seeder) createPresence(users []models.User) error {
	now := time.Now()
	for i, user := range users {
		record := models.PresenceRecord{
			UserID:     user.ID,
			Status:     models.PresenceOnline,
			Page:       fmt.Sprintf("/restaurants/%d", s.rng.Intn(10)+1),
			LastSeenAt: now,
		}
		switch i % 3 {
		case 1:
			record.Status = models.PresenceAway
			record.LastSeenAt = now.Add(-20 * time.Second)
		case 2:
			// stale "online" row, as left behind by a dropped connection
			record.LastSeenAt = now.Add(-5 * time.Minute)
		}
		if err := s.db.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) pastTime(maxDays int) time.Time {
	if maxDays <= 0 {
		maxDays = 30
	}
	return time.Now().
		Add(-time.Duration(s.rng.Intn(maxDays)) * 24 * time.Hour).
		Add(-time.Duration(s.rng.Intn(24)) * time.Hour).
		Add(-time.Duration(s.rng.Intn(60)) * time.Minute)
}

func slugify(name string) string {
	slug := strings.ToLower(name)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(slug, "-")
}
