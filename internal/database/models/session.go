package models

import "time"

// BatchMode is the kind of bulk mutation a batch session collects for.
type BatchMode string

const (
	BatchDelete BatchMode = "delete"
	BatchMove   BatchMode = "move"
)

// BatchPhase is the persisted phase tag of a batch session.
type BatchPhase string

const (
	PhaseCollecting BatchPhase = "collecting"
	PhaseConfirming BatchPhase = "confirming"
	PhaseExecuting  BatchPhase = "executing"
	PhaseCleanup    BatchPhase = "cleanup"
)

// BatchSession is the single admin bulk workflow of a user in a scope.
// MediaIDs and MessageIDs are kept in insertion order and index-aligned.
type BatchSession struct {
	ScopeID     int64      `bson:"scope_id" gorm:"primaryKey;autoIncrement:false"`
	UserID      int64      `bson:"user_id" gorm:"primaryKey;autoIncrement:false"`
	ID          string     `bson:"session_id" gorm:"not null;uniqueIndex;size:36"`
	Mode        BatchMode  `bson:"mode" gorm:"not null;size:16"`
	Phase       BatchPhase `bson:"phase" gorm:"not null;size:16"`
	Destination string     `bson:"destination,omitempty" gorm:"size:64"`
	CreatedAt   time.Time  `bson:"created_at" gorm:"not null"`
	MediaIDs    []string   `bson:"media_ids" gorm:"-"`
	MessageIDs  []int      `bson:"message_ids" gorm:"-"`
}

func (BatchSession) TableName() string { return "batch_sessions" }

// BatchItem is one collected record of a session in the relational store.
type BatchItem struct {
	SessionID string    `gorm:"primaryKey;size:36"`
	MediaID   string    `gorm:"primaryKey;size:36"`
	MessageID int       `gorm:"not null"`
	AddedAt   time.Time `gorm:"not null"`
}

func (BatchItem) TableName() string { return "batch_items" }
