package model

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog records one inventory mutation for the activity feed.
type ActivityLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"size:64;index" json:"trace_id"`
	OwnerID   int64          `gorm:"index;not null" json:"owner_id"`
	Action    string         `gorm:"size:32;not null" json:"action"` // increment | decrement | batch_confirm
	ItemName  string         `gorm:"size:128" json:"item_name"`
	Quantity  int            `json:"quantity"` // quantity after the mutation, 0 when removed
	Detail    datatypes.JSON `json:"detail"`
	Error     string         `gorm:"size:255" json:"error"`
	IP        string         `gorm:"size:45" json:"ip"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
