// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// PresenceStatus is the stored presence state of a user.
type PresenceStatus string

const (
	// PresenceOnline indicates an active session with a live heartbeat.
	PresenceOnline PresenceStatus = "online"
	// PresenceAway indicates an idle but connected session.
	PresenceAway PresenceStatus = "away"
	// PresenceOffline indicates a gracefully ended session.
	PresenceOffline PresenceStatus = "offline"
)

// PresenceRecord is one row per user, overwritten on every heartbeat.
// The stored status cannot be trusted on its own: an ungraceful disconnect
// leaves "online" behind, so readers must apply the staleness rule via Fresh.
type PresenceRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;uniqueIndex" json:"user_id"`
	Status     PresenceStatus `gorm:"type:varchar(16);not null" json:"status"`
	Page       string         `json:"page,omitempty"`
	LastSeenAt time.Time      `gorm:"not null" json:"last_seen_at"`
}

// TableName specifies the table name for GORM
func (PresenceRecord) TableName() string {
	return "presence_records"
}

// Fresh reports whether the record may still be trusted at the given time.
// Records older than twice the heartbeat interval are stale regardless of
// their stored status.
func (p PresenceRecord) Fresh(now time.Time, heartbeat time.Duration) bool {
	return now.Sub(p.LastSeenAt) <= 2*heartbeat
}

// EffectiveStatus is the status a reader should present: the stored status
// when the record is fresh, offline otherwise.
func (p PresenceRecord) EffectiveStatus(now time.Time, heartbeat time.Duration) PresenceStatus {
	if !p.Fresh(now, heartbeat) {
		return PresenceOffline
	}
	return p.Status
}
