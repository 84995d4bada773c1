// Package history keeps the bounded per-user and per-chat delivery logs.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"
)

// ErrEntryNotFound is returned when the entry does not exist or belongs to someone else.
var ErrEntryNotFound = errors.New("history entry not found")

// DefaultPageSize is used when List gets a non-positive page size.
const DefaultPageSize = 10

// Page is one page of a log, newest first.
type Page struct {
	Entries []models.HistoryEntry
	Total   int64
	Page    int
	Pages   int
}

// Tracker appends to, trims and reads delivery logs.
type Tracker struct {
	repo  database.HistoryRepository
	limit int
	now   func() time.Time
}

func NewTracker(repo database.HistoryRepository) *Tracker {
	return &Tracker{repo: repo, limit: models.HistoryLimit, now: time.Now}
}

// Append logs mediaID for the owner. The store inserts and trims in one unit.
func (t *Tracker) Append(ctx context.Context, kind models.HistoryKind, ownerID int64, mediaID string) error {
	entry := &models.HistoryEntry{Kind: kind, OwnerID: ownerID, MediaID: mediaID, CreatedAt: t.now()}
	return t.repo.AppendHistory(ctx, entry, t.limit)
}

// Remove deletes one entry of the owner's log.
func (t *Tracker) Remove(ctx context.Context, kind models.HistoryKind, entryID string, ownerID int64) error {
	removed, err := t.repo.RemoveHistory(ctx, kind, ownerID, entryID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	return nil
}

// List returns page (zero-based) of the owner's log.
func (t *Tracker) List(ctx context.Context, kind models.HistoryKind, ownerID int64, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}

	entries, total, err := t.repo.ListHistory(ctx, kind, ownerID, page*pageSize, pageSize)
	if err != nil {
		return Page{}, err
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Page{Entries: entries, Total: total, Page: page, Pages: pages}, nil
}
