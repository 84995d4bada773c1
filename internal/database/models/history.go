package models

import "time"

// HistoryKind separates the per-user log from the per-chat (group) log.
type HistoryKind string

const (
	HistoryUser  HistoryKind = "user"
	HistoryGroup HistoryKind = "group"
)

// HistoryLimit is the maximum number of entries kept per owner and kind.
const HistoryLimit = 50

// HistoryEntry is one row of a delivery log.
type HistoryEntry struct {
	ID        string      `bson:"id" gorm:"primaryKey;size:36"`
	Kind      HistoryKind `bson:"-" gorm:"not null;size:8;index:idx_history_owner,priority:1"`
	OwnerID   int64       `bson:"-" gorm:"not null;index:idx_history_owner,priority:2"`
	MediaID   string      `bson:"media_id" gorm:"not null;size:36;index"`
	CreatedAt time.Time   `bson:"created_at" gorm:"not null;index:idx_history_owner,priority:3"`
}

func (HistoryEntry) TableName() string { return "history_entries" }
