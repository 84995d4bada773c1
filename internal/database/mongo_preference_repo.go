package database

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"mediapool-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *MongoStore) GetFilter(ctx context.Context, userID, scopeID int64) (*models.FilterPreference, error) {
	var pref models.FilterPreference
	err := s.filters.FindOne(ctx, bson.M{"user_id": userID, "scope_id": scopeID}).Decode(&pref)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get filter of user %d in scope %d: %w", userID, scopeID, err)
	}
	return &pref, nil
}

// SetFilterField writes one field with an upsert; other fields stay untouched.
func (s *MongoStore) SetFilterField(ctx context.Context, userID, scopeID int64, field, value string) error {
	if !slices.Contains(models.FilterFields, field) {
		return fmt.Errorf("unknown filter field %q", field)
	}
	_, err := s.filters.UpdateOne(ctx,
		bson.M{"user_id": userID, "scope_id": scopeID},
		bson.M{"$set": bson.M{field: value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set filter field %s of user %d in scope %d: %w", field, userID, scopeID, err)
	}
	return nil
}

func (s *MongoStore) DeleteFilter(ctx context.Context, userID, scopeID int64) error {
	if _, err := s.filters.DeleteOne(ctx, bson.M{"user_id": userID, "scope_id": scopeID}); err != nil {
		return fmt.Errorf("failed to delete filter of user %d in scope %d: %w", userID, scopeID, err)
	}
	return nil
}

// GetSettings fetches all requested keys of a scope with one query.
func (s *MongoStore) GetSettings(ctx context.Context, scopeID int64, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	cursor, err := s.settings.Find(ctx, bson.M{"scope_id": scopeID, "key": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("failed to get settings of scope %d: %w", scopeID, err)
	}
	var rows []models.BehaviorSetting
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode settings of scope %d: %w", scopeID, err)
	}
	for _, row := range rows {
		result[row.Key] = row.Value
	}
	return result, nil
}

func (s *MongoStore) SetSetting(ctx context.Context, scopeID int64, key, value string) error {
	_, err := s.settings.UpdateOne(ctx,
		bson.M{"scope_id": scopeID, "key": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set setting %s of scope %d: %w", key, scopeID, err)
	}
	return nil
}
