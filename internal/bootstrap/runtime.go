// Package bootstrap wires the runtime dependencies shared by the binaries:
// database, Redis, and optional development fixtures.
package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"tableside/internal/cache"
	"tableside/internal/config"
	"tableside/internal/database"
	"tableside/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis. The Redis client may come
// back nil if the server is unreachable; live updates then run degraded.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.Connect(cfg.RedisURL)

	if err := ensureDevModerator(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development moderator: %w", err)
	}

	return db, r, nil
}

// ensureDevModerator guarantees user ID 1 exists as a moderator in
// development, so moderation endpoints are exercisable on a fresh database.
func ensureDevModerator(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapMod {
		return nil
	}

	username := strings.TrimSpace(cfg.DevModUsername)
	if username == "" {
		username = "tableside_mod"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevModEmail))
	if email == "" {
		email = "moderator@tableside.local"
	}
	password := cfg.DevModPassword
	if password == "" {
		return fmt.Errorf("DEV_MODERATOR_PASSWORD must be set when DEV_BOOTSTRAP_MODERATOR is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash moderator password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var mod models.User
		findErr := tx.First(&mod, 1).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			mod = models.User{
				ID:          1,
				Username:    username,
				Email:       email,
				Password:    string(hashedPassword),
				DisplayName: "Tableside Moderator",
				IsModerator: true,
			}
			if err := tx.Create(&mod).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			if err := tx.Model(&models.User{}).Where("id = ?", 1).
				Update("is_moderator", true).Error; err != nil {
				return err
			}
		}

		// Ensure users ID sequence is not behind explicit ID insertion.
		// This is PostgreSQL-specific.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`
				SELECT setval(
					pg_get_serial_sequence('users', 'id'),
					GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1),
					true
				)
			`).Error; err != nil {
				return fmt.Errorf("failed to reset users sequence: %w", err)
			}
		}

		return nil
	}); err != nil {
		return err
	}

	log.Printf("development moderator bootstrap ensured for user ID 1 (%s)", email)
	return nil
}
