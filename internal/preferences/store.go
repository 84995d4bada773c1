package preferences

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mediapool-bot/internal/database"
)

var (
	ErrUnknownFilterField = errors.New("unknown filter field")
	ErrUnknownSetting     = errors.New("unknown behavior setting")
	ErrInvalidSetting     = errors.New("invalid behavior setting value")
)

// Store reads and writes filters and behavior settings through a repository.
type Store struct {
	repo database.PreferenceRepository
}

func NewStore(repo database.PreferenceRepository) *Store {
	return &Store{repo: repo}
}

// GetFilter returns the normalized filter of a user in a scope.
func (s *Store) GetFilter(ctx context.Context, userID, scopeID int64) (Filter, error) {
	stored, err := s.repo.GetFilter(ctx, userID, scopeID)
	if err != nil {
		return DefaultFilter(), err
	}
	return Normalize(stored), nil
}

// SetFilterField writes one field. A malformed value is stored as the field's
// default instead of being rejected.
func (s *Store) SetFilterField(ctx context.Context, userID, scopeID int64, field, value string) error {
	clean, err := sanitizeField(field, value)
	if err != nil {
		return err
	}
	if clean != value {
		log.Printf("[Preferences User:%d Scope:%d] Invalid %s value %q, storing default", userID, scopeID, field, value)
	}
	return s.repo.SetFilterField(ctx, userID, scopeID, field, clean)
}

// ResetFilters drops every stored field.
func (s *Store) ResetFilters(ctx context.Context, userID, scopeID int64) error {
	return s.repo.DeleteFilter(ctx, userID, scopeID)
}

// GetBehaviorSettings reads keys in one query. Missing or invalid stored values
// come back as the key's default.
func (s *Store) GetBehaviorSettings(ctx context.Context, scopeID int64, keys []string) (map[string]string, error) {
	for _, key := range keys {
		if _, ok := behaviorSettings[key]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
		}
	}

	stored, err := s.repo.GetSettings(ctx, scopeID, keys)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(keys))
	for _, key := range keys {
		value, ok := stored[key]
		if !ok || !validSetting(key, value) {
			value = behaviorSettings[key].fallback
		}
		result[key] = value
	}
	return result, nil
}

// GetBehavior returns the typed settings of a scope.
func (s *Store) GetBehavior(ctx context.Context, scopeID int64) (Behavior, error) {
	values, err := s.GetBehaviorSettings(ctx, scopeID, BehaviorKeys)
	if err != nil {
		return DefaultBehavior(), err
	}
	return behaviorFromMap(values), nil
}

func (s *Store) SetBehaviorSetting(ctx context.Context, scopeID int64, key, value string) error {
	if _, ok := behaviorSettings[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	if !validSetting(key, value) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidSetting, key, value)
	}
	return s.repo.SetSetting(ctx, scopeID, key, value)
}
