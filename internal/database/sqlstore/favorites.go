package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediapool-bot/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddFavorite stores the pair; false when it already existed.
func (s *Store) AddFavorite(ctx context.Context, userID int64, mediaID string) (bool, error) {
	fav := models.FavoriteEntry{UserID: userID, MediaID: mediaID, CreatedAt: time.Now().UTC()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav)
	if res.Error != nil {
		return false, fmt.Errorf("failed to add favorite %s for user %d: %w", mediaID, userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID int64, mediaID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND media_id = ?", userID, mediaID).Delete(&models.FavoriteEntry{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove favorite %s for user %d: %w", mediaID, userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListFavorites joins back through media_records so orphans never show up.
func (s *Store) ListFavorites(ctx context.Context, userID int64, offset, limit int) ([]models.MediaRecord, int64, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.MediaRecord{}).
			Joins("JOIN favorites ON favorites.media_id = media_records.id").
			Where("favorites.user_id = ?", userID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count favorites of user %d: %w", userID, err)
	}

	var records []models.MediaRecord
	err := base().
		Select("media_records.*").
		Order("favorites.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list favorites of user %d: %w", userID, err)
	}
	return records, total, nil
}

// GetLastServed returns nil, nil when the user was never served.
func (s *Store) GetLastServed(ctx context.Context, userID int64) (*models.LastServed, error) {
	var last models.LastServed
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last served of user %d: %w", userID, err)
	}
	return &last, nil
}

func (s *Store) UpsertLastServed(ctx context.Context, last *models.LastServed) error {
	last.ServedAt = last.ServedAt.UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"media_id", "served_at"}),
	}).Create(last).Error
	if err != nil {
		return fmt.Errorf("failed to upsert last served of user %d: %w", last.UserID, err)
	}
	return nil
}
