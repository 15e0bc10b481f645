// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an account in the Tableside application. Session issuance
// lives in a separate service; this table exists so social records have a
// real foreign-key target.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null" json:"username"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	DisplayName string    `json:"display_name"`
	IsModerator bool      `gorm:"default:false" json:"is_moderator"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
