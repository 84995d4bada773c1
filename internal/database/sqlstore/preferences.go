package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"mediapool-bot/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) GetFilter(ctx context.Context, userID, scopeID int64) (*models.FilterPreference, error) {
	var pref models.FilterPreference
	err := s.db.WithContext(ctx).Where("user_id = ? AND scope_id = ?", userID, scopeID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filter of user %d in scope %d: %w", userID, scopeID, err)
	}
	return &pref, nil
}

// SetFilterField upserts one column without touching the others.
func (s *Store) SetFilterField(ctx context.Context, userID, scopeID int64, field, value string) error {
	if !slices.Contains(models.FilterFields, field) {
		return fmt.Errorf("unknown filter field %q", field)
	}
	err := s.db.WithContext(ctx).Model(&models.FilterPreference{}).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "scope_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{field: value}),
	}).Create(map[string]interface{}{
		"user_id":  userID,
		"scope_id": scopeID,
		field:      value,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to set filter field %s of user %d in scope %d: %w", field, userID, scopeID, err)
	}
	return nil
}

func (s *Store) DeleteFilter(ctx context.Context, userID, scopeID int64) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND scope_id = ?", userID, scopeID).Delete(&models.FilterPreference{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete filter of user %d in scope %d: %w", userID, scopeID, err)
	}
	return nil
}

// GetSettings reads all requested keys in one query.
func (s *Store) GetSettings(ctx context.Context, scopeID int64, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	var rows []models.BehaviorSetting
	err := s.db.WithContext(ctx).Where("scope_id = ? AND setting_key IN ?", scopeID, keys).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get settings of scope %d: %w", scopeID, err)
	}
	for _, row := range rows {
		result[row.Key] = row.Value
	}
	return result, nil
}

func (s *Store) SetSetting(ctx context.Context, scopeID int64, key, value string) error {
	row := models.BehaviorSetting{ScopeID: scopeID, Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_id"}, {Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set setting %s of scope %d: %w", key, scopeID, err)
	}
	return nil
}
