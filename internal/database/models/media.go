package models

import "time"

// MediaType is the payload kind of a stored record.
type MediaType string

const (
	MediaPhoto     MediaType = "photo"
	MediaVideo     MediaType = "video"
	MediaAnimation MediaType = "animation"
	MediaDocument  MediaType = "document"
)

// MaxCategoryLength is the width, in characters, of category columns.
const MaxCategoryLength = 64

// MediaRecord is one item of a scope's content library.
// SourceChatID/SourceMessageID point at the chat message the record was taken from;
// delivery forwards or copies that message.
type MediaRecord struct {
	ID              string    `bson:"_id" gorm:"primaryKey;size:36"`
	ScopeID         int64     `bson:"scope_id" gorm:"not null;index:idx_media_scope_category,priority:1"`
	Category        string    `bson:"category" gorm:"not null;size:64;index:idx_media_scope_category,priority:2"`
	Type            MediaType `bson:"type" gorm:"not null;size:16"`
	Caption         string    `bson:"caption,omitempty"`
	Duration        *int      `bson:"duration,omitempty"` // seconds, video and animation only
	FileID          string    `bson:"file_id,omitempty" gorm:"size:255"`
	SourceChatID    int64     `bson:"source_chat_id" gorm:"not null;index"`
	SourceMessageID int       `bson:"source_message_id" gorm:"not null"`
	AddedBy         int64     `bson:"added_by,omitempty"`
	AddedAt         time.Time `bson:"added_at" gorm:"not null;index"`
	ViewCount       int       `bson:"view_count" gorm:"not null;default:0"`
}

// TableName pins the gorm table name.
func (MediaRecord) TableName() string { return "media_records" }

// ServedMarker flags a record as already delivered while anti-repeat is on.
type ServedMarker struct {
	MediaID  string    `gorm:"primaryKey;size:36"`
	ServedAt time.Time `gorm:"not null"`
}

func (ServedMarker) TableName() string { return "served_markers" }

// CategoryBinding routes posts of a source chat into a category of a scope.
type CategoryBinding struct {
	ScopeID      int64     `bson:"scope_id" gorm:"primaryKey;autoIncrement:false"`
	SourceChatID int64     `bson:"source_chat_id" gorm:"primaryKey;autoIncrement:false;index"`
	Category     string    `bson:"category" gorm:"not null;size:64"`
	CreatedBy    int64     `bson:"created_by,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (CategoryBinding) TableName() string { return "category_bindings" }

// FavoriteEntry marks a record as a user's favorite. Unique per (user, media).
type FavoriteEntry struct {
	UserID    int64     `bson:"user_id" gorm:"primaryKey;autoIncrement:false"`
	MediaID   string    `bson:"media_id" gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time `bson:"created_at"`
}

func (FavoriteEntry) TableName() string { return "favorites" }

// LastServed remembers the most recent record delivered to a user.
type LastServed struct {
	UserID   int64     `bson:"_id" gorm:"primaryKey;autoIncrement:false"`
	MediaID  string    `bson:"media_id" gorm:"not null;size:36"`
	ServedAt time.Time `bson:"served_at" gorm:"not null"`
}

func (LastServed) TableName() string { return "last_served" }
