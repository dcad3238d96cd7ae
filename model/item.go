package model

import "time"

// Item is one tracked inventory entry. Name holds the normalized
// (lowercase, trimmed) form, which together with OwnerID is the
// document key: at most one row exists per (owner_id, name).
//
// Quantity is always >= 1; a decrement that would reach zero deletes
// the row instead.
type Item struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   int64     `gorm:"uniqueIndex:idx_owner_item,priority:1;not null" json:"owner_id"`
	Name      string    `gorm:"uniqueIndex:idx_owner_item,priority:2;size:128;not null" json:"name"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
