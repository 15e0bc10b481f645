// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// UserFollow is a directed follow edge between two users. No self-loops,
// unique per pair.
type UserFollow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;index;uniqueIndex:idx_user_follow_pair" json:"follower_id"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_user_follow_pair" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Followee User `gorm:"foreignKey:FolloweeID" json:"followee,omitempty"`
}

// TableName specifies the table name for GORM
func (UserFollow) TableName() string {
	return "user_follows"
}

// RestaurantFollow is a directed follow edge from a user to a restaurant.
// Structurally identical to UserFollow with a different target relation.
type RestaurantFollow struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FollowerID   uint      `gorm:"not null;index;uniqueIndex:idx_restaurant_follow_pair" json:"follower_id"`
	RestaurantID uint      `gorm:"not null;uniqueIndex:idx_restaurant_follow_pair" json:"restaurant_id"`
	CreatedAt    time.Time `json:"created_at"`

	Follower   User       `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Restaurant Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
}

// TableName specifies the table name for GORM
func (RestaurantFollow) TableName() string {
	return "restaurant_follows"
}
