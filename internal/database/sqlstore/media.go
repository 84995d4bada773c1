package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateMedia inserts a new record.
func (s *Store) CreateMedia(ctx context.Context, media *models.MediaRecord) error {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}
	if media.AddedAt.IsZero() {
		media.AddedAt = time.Now()
	}
	media.AddedAt = media.AddedAt.UTC()

	if err := s.db.WithContext(ctx).Create(media).Error; err != nil {
		return fmt.Errorf("failed to insert media record: %w", err)
	}
	return nil
}

// GetMedia loads one record by id.
func (s *Store) GetMedia(ctx context.Context, id string) (*models.MediaRecord, error) {
	var media models.MediaRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&media).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find media record %s: %w", id, err)
	}
	return &media, nil
}

// FindBySource looks a record up by its source message.
func (s *Store) FindBySource(ctx context.Context, scopeID, sourceChatID int64, sourceMessageID int) (*models.MediaRecord, error) {
	var media models.MediaRecord
	err := s.db.WithContext(ctx).
		Where("scope_id = ? AND source_chat_id = ? AND source_message_id = ?", scopeID, sourceChatID, sourceMessageID).
		First(&media).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find media record by source %d/%d: %w", sourceChatID, sourceMessageID, err)
	}
	return &media, nil
}

// candidates builds the selection predicate as a fresh query on media_records.
func (s *Store) candidates(ctx context.Context, q database.CandidateQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.MediaRecord{}).
		Where("scope_id = ? AND category = ?", q.ScopeID, q.Category)
	if q.ExcludeID != "" {
		tx = tx.Where("id <> ?", q.ExcludeID)
	}
	if q.ExcludeServed {
		tx = tx.Where("id NOT IN (?)", s.db.Model(&models.ServedMarker{}).Select("media_id"))
	}
	if q.MediaType != "" {
		tx = tx.Where("type = ?", string(q.MediaType))
	}
	if !q.AddedFrom.IsZero() {
		tx = tx.Where("added_at >= ?", q.AddedFrom.UTC())
	}
	if !q.AddedBefore.IsZero() {
		tx = tx.Where("added_at < ?", q.AddedBefore.UTC())
	}
	if q.MaxDuration != nil {
		tx = tx.Where("duration IS NOT NULL AND duration <= ?", *q.MaxDuration)
	}
	return tx
}

// CandidateIDs returns every id matching q.
func (s *Store) CandidateIDs(ctx context.Context, q database.CandidateQuery) ([]string, error) {
	var ids []string
	if err := s.candidates(ctx, q).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to query candidates in scope %d category %q: %w", q.ScopeID, q.Category, err)
	}
	return ids, nil
}

// ResetServed clears the markers of the records matching q.
func (s *Store) ResetServed(ctx context.Context, q database.CandidateQuery) (int64, error) {
	matching := s.candidates(ctx, q.WithoutServed()).Select("id")
	res := s.db.WithContext(ctx).Where("media_id IN (?)", matching).Delete(&models.ServedMarker{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset served markers in scope %d category %q: %w", q.ScopeID, q.Category, res.Error)
	}
	return res.RowsAffected, nil
}

// MarkServed inserts the marker only if absent and only while the record exists.
func (s *Store) MarkServed(ctx context.Context, mediaID string, at time.Time) error {
	err := s.db.WithContext(ctx).Exec(
		s.insertIgnore()+" INTO served_markers (media_id, served_at) SELECT id, ? FROM media_records WHERE id = ?",
		at.UTC(), mediaID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to mark media %s as served: %w", mediaID, err)
	}
	return nil
}

// UnmarkServed removes the marker of a record.
func (s *Store) UnmarkServed(ctx context.Context, mediaID string) error {
	if err := s.db.WithContext(ctx).Where("media_id = ?", mediaID).Delete(&models.ServedMarker{}).Error; err != nil {
		return fmt.Errorf("failed to unmark media %s: %w", mediaID, err)
	}
	return nil
}

// IsServed reports whether a marker exists for the record.
func (s *Store) IsServed(ctx context.Context, mediaID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ServedMarker{}).Where("media_id = ?", mediaID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check served marker of %s: %w", mediaID, err)
	}
	return count > 0, nil
}

// AdjustViewCount changes view_count by delta with a floor of zero.
func (s *Store) AdjustViewCount(ctx context.Context, mediaID string, delta int) error {
	err := s.db.WithContext(ctx).Model(&models.MediaRecord{}).
		Where("id = ?", mediaID).
		Update("view_count", gorm.Expr("CASE WHEN view_count + ? < 0 THEN 0 ELSE view_count + ? END", delta, delta)).Error
	if err != nil {
		return fmt.Errorf("failed to adjust view count of %s: %w", mediaID, err)
	}
	return nil
}

// DeleteMedia removes the records first and then their dependent rows.
// A failure after the first statement leaves orphans that every read path ignores.
func (s *Store) DeleteMedia(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := s.db.WithContext(ctx)

	res := db.Where("id IN ?", ids).Delete(&models.MediaRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete %d media records: %w", len(ids), res.Error)
	}
	dependents := []interface{}{&models.ServedMarker{}, &models.FavoriteEntry{}, &models.HistoryEntry{}}
	for _, model := range dependents {
		if err := db.Where("media_id IN ?", ids).Delete(model).Error; err != nil {
			return res.RowsAffected, fmt.Errorf("failed to delete dependents of %d media records: %w", len(ids), err)
		}
	}
	return res.RowsAffected, nil
}

// DeleteBySourceChat purges a whole source chat: its records and its bindings.
func (s *Store) DeleteBySourceChat(ctx context.Context, sourceChatID int64) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.MediaRecord{}).
		Where("source_chat_id = ?", sourceChatID).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list media of source chat %d: %w", sourceChatID, err)
	}

	deleted, err := s.DeleteMedia(ctx, ids)
	if err != nil {
		return deleted, err
	}

	err = s.db.WithContext(ctx).Where("source_chat_id = ?", sourceChatID).Delete(&models.CategoryBinding{}).Error
	if err != nil {
		return deleted, fmt.Errorf("failed to delete bindings of source chat %d: %w", sourceChatID, err)
	}
	return deleted, nil
}

// MoveCategory reassigns records of a scope to another category.
func (s *Store) MoveCategory(ctx context.Context, scopeID int64, ids []string, category string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.MediaRecord{}).
		Where("scope_id = ? AND id IN ?", scopeID, ids).
		Update("category", category)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to move %d media records to %q: %w", len(ids), category, res.Error)
	}
	return res.RowsAffected, nil
}

// CountByCategory returns the number of records per category of a scope.
func (s *Store) CountByCategory(ctx context.Context, scopeID int64) (map[string]int64, error) {
	var rows []struct {
		Category string
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&models.MediaRecord{}).
		Select("category, COUNT(*) AS total").
		Where("scope_id = ?", scopeID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count media of scope %d: %w", scopeID, err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Total
	}
	return counts, nil
}

// UpsertBinding creates or retargets a source chat binding.
func (s *Store) UpsertBinding(ctx context.Context, binding *models.CategoryBinding) error {
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_id"}, {Name: "source_chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"category"}),
	}).Create(binding).Error
	if err != nil {
		return fmt.Errorf("failed to upsert binding of chat %d: %w", binding.SourceChatID, err)
	}
	return nil
}

// FindBindings returns every binding of a source chat.
func (s *Store) FindBindings(ctx context.Context, sourceChatID int64) ([]models.CategoryBinding, error) {
	var bindings []models.CategoryBinding
	if err := s.db.WithContext(ctx).Where("source_chat_id = ?", sourceChatID).Find(&bindings).Error; err != nil {
		return nil, fmt.Errorf("failed to find bindings of chat %d: %w", sourceChatID, err)
	}
	return bindings, nil
}

// DeleteBinding removes one binding.
func (s *Store) DeleteBinding(ctx context.Context, scopeID, sourceChatID int64) error {
	err := s.db.WithContext(ctx).
		Where("scope_id = ? AND source_chat_id = ?", scopeID, sourceChatID).
		Delete(&models.CategoryBinding{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete binding of chat %d: %w", sourceChatID, err)
	}
	return nil
}
