package sqlstore

import (
	"context"
	"fmt"
	"time"

	"mediapool-bot/internal/database/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppendHistory inserts the entry and evicts everything beyond the newest limit rows
// of the same owner, in one transaction.
func (s *Store) AppendHistory(ctx context.Context, entry *models.HistoryEntry, limit int) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		var keep []string
		err := tx.Model(&models.HistoryEntry{}).
			Where("kind = ? AND owner_id = ?", entry.Kind, entry.OwnerID).
			Order("created_at DESC").Order("id DESC").
			Limit(limit).
			Pluck("id", &keep).Error
		if err != nil {
			return err
		}

		return tx.Where("kind = ? AND owner_id = ? AND id NOT IN ?", entry.Kind, entry.OwnerID, keep).
			Delete(&models.HistoryEntry{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to append %s history of %d: %w", entry.Kind, entry.OwnerID, err)
	}
	return nil
}

func (s *Store) RemoveHistory(ctx context.Context, kind models.HistoryKind, ownerID int64, entryID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("kind = ? AND owner_id = ? AND id = ?", kind, ownerID, entryID).
		Delete(&models.HistoryEntry{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove %s history entry %s: %w", kind, entryID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListHistory only returns entries whose media record still exists.
func (s *Store) ListHistory(ctx context.Context, kind models.HistoryKind, ownerID int64, offset, limit int) ([]models.HistoryEntry, int64, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.HistoryEntry{}).
			Joins("JOIN media_records ON media_records.id = history_entries.media_id").
			Where("history_entries.kind = ? AND history_entries.owner_id = ?", kind, ownerID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count %s history of %d: %w", kind, ownerID, err)
	}

	var entries []models.HistoryEntry
	err := base().
		Select("history_entries.*").
		Order("history_entries.created_at DESC").Order("history_entries.id DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s history of %d: %w", kind, ownerID, err)
	}
	return entries, total, nil
}
