// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Restaurant is the entity reviews are written about. CRUD screens for
// restaurants live outside this service.
type Restaurant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;index" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	City      string    `json:"city"`
	Cuisine   string    `json:"cuisine"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Restaurant) TableName() string {
	return "restaurants"
}

// Review is a user's review of a restaurant. Comments attach to reviews; the
// review body itself is managed by the review service and only read here.
type Review struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;index" json:"restaurant_id"`
	AuthorID     uint       `gorm:"not null;index" json:"author_id"`
	Rating       int        `gorm:"not null" json:"rating"`
	Body         string     `gorm:"type:text" json:"body"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
	Author       User       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName specifies the table name for GORM
func (Review) TableName() string {
	return "reviews"
}
