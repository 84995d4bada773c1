package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediapool-bot/internal/database/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateMedia inserts a new record into the media collection.
func (s *MongoStore) CreateMedia(ctx context.Context, media *models.MediaRecord) error {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}
	if media.AddedAt.IsZero() {
		media.AddedAt = time.Now()
	}
	media.AddedAt = media.AddedAt.UTC()

	if _, err := s.media.InsertOne(ctx, media); err != nil {
		return fmt.Errorf("failed to insert media record: %w", err)
	}
	return nil
}

// GetMedia returns ErrMediaNotFound if no record matches the id.
func (s *MongoStore) GetMedia(ctx context.Context, id string) (*models.MediaRecord, error) {
	var media models.MediaRecord
	err := s.media.FindOne(ctx, bson.M{"_id": id}).Decode(&media)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to find media record %s: %w", id, err)
	}
	return &media, nil
}

func (s *MongoStore) FindBySource(ctx context.Context, scopeID, sourceChatID int64, sourceMessageID int) (*models.MediaRecord, error) {
	var media models.MediaRecord
	filter := bson.M{"scope_id": scopeID, "source_chat_id": sourceChatID, "source_message_id": sourceMessageID}
	err := s.media.FindOne(ctx, filter).Decode(&media)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to find media record by source %d/%d: %w", sourceChatID, sourceMessageID, err)
	}
	return &media, nil
}

// candidateFilter translates q into a media collection filter. The served clause is
// applied separately because markers live in their own collection.
func candidateFilter(q CandidateQuery) bson.M {
	filter := bson.M{"scope_id": q.ScopeID, "category": q.Category}
	if q.ExcludeID != "" {
		filter["_id"] = bson.M{"$ne": q.ExcludeID}
	}
	if q.MediaType != "" {
		filter["type"] = q.MediaType
	}
	added := bson.M{}
	if !q.AddedFrom.IsZero() {
		added["$gte"] = q.AddedFrom.UTC()
	}
	if !q.AddedBefore.IsZero() {
		added["$lt"] = q.AddedBefore.UTC()
	}
	if len(added) > 0 {
		filter["added_at"] = added
	}
	if q.MaxDuration != nil {
		filter["duration"] = bson.M{"$ne": nil, "$lte": *q.MaxDuration}
	}
	return filter
}

// CandidateIDs runs the predicate and, with ExcludeServed, drops ids that have a marker.
func (s *MongoStore) CandidateIDs(ctx context.Context, q CandidateQuery) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: candidateFilter(q)}},
	}
	if q.ExcludeServed {
		pipeline = append(pipeline,
			bson.D{{Key: "$lookup", Value: bson.M{
				"from":         servedCollectionName,
				"localField":   "_id",
				"foreignField": "_id",
				"as":           "served",
			}}},
			bson.D{{Key: "$match", Value: bson.M{"served": bson.M{"$size": 0}}}},
		)
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{"_id": 1}}})

	cursor, err := s.media.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates in scope %d category %q: %w", q.ScopeID, q.Category, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// ResetServed deletes the markers of every record matching q.
func (s *MongoStore) ResetServed(ctx context.Context, q CandidateQuery) (int64, error) {
	ids, err := s.CandidateIDs(ctx, q.WithoutServed())
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.served.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to reset served markers in scope %d category %q: %w", q.ScopeID, q.Category, err)
	}
	return res.DeletedCount, nil
}

// MarkServed upserts the marker with $setOnInsert so a concurrent insert is a no-op.
// A record deleted in between leaves an orphan marker that no read path joins to.
func (s *MongoStore) MarkServed(ctx context.Context, mediaID string, at time.Time) error {
	count, err := s.media.CountDocuments(ctx, bson.M{"_id": mediaID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check media %s before marking: %w", mediaID, err)
	}
	if count == 0 {
		return nil
	}

	_, err = s.served.UpdateOne(ctx,
		bson.M{"_id": mediaID},
		bson.M{"$setOnInsert": bson.M{"served_at": at.UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to mark media %s as served: %w", mediaID, err)
	}
	return nil
}

func (s *MongoStore) UnmarkServed(ctx context.Context, mediaID string) error {
	if _, err := s.served.DeleteOne(ctx, bson.M{"_id": mediaID}); err != nil {
		return fmt.Errorf("failed to unmark media %s: %w", mediaID, err)
	}
	return nil
}

func (s *MongoStore) IsServed(ctx context.Context, mediaID string) (bool, error) {
	count, err := s.served.CountDocuments(ctx, bson.M{"_id": mediaID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check served marker of %s: %w", mediaID, err)
	}
	return count > 0, nil
}

// AdjustViewCount uses an update pipeline so the floor is applied server-side.
func (s *MongoStore) AdjustViewCount(ctx context.Context, mediaID string, delta int) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"view_count": bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$view_count", 0}}, delta}}}},
		}}},
	}
	if _, err := s.media.UpdateOne(ctx, bson.M{"_id": mediaID}, update); err != nil {
		return fmt.Errorf("failed to adjust view count of %s: %w", mediaID, err)
	}
	return nil
}

// DeleteMedia removes the records first; markers, favorites and history entries follow.
func (s *MongoStore) DeleteMedia(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in := bson.M{"$in": ids}

	res, err := s.media.DeleteMany(ctx, bson.M{"_id": in})
	if err != nil {
		return 0, fmt.Errorf("failed to delete %d media records: %w", len(ids), err)
	}
	if _, err := s.served.DeleteMany(ctx, bson.M{"_id": in}); err != nil {
		return res.DeletedCount, fmt.Errorf("failed to delete served markers: %w", err)
	}
	if _, err := s.favorites.DeleteMany(ctx, bson.M{"media_id": in}); err != nil {
		return res.DeletedCount, fmt.Errorf("failed to delete favorites: %w", err)
	}
	_, err = s.history.UpdateMany(ctx,
		bson.M{"entries.media_id": in},
		bson.M{"$pull": bson.M{"entries": bson.M{"media_id": in}}},
	)
	if err != nil {
		return res.DeletedCount, fmt.Errorf("failed to delete history entries: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteBySourceChat(ctx context.Context, sourceChatID int64) (int64, error) {
	cursor, err := s.media.Find(ctx,
		bson.M{"source_chat_id": sourceChatID},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to list media of source chat %d: %w", sourceChatID, err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode media of source chat %d: %w", sourceChatID, err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	deleted, err := s.DeleteMedia(ctx, ids)
	if err != nil {
		return deleted, err
	}
	if _, err := s.bindings.DeleteMany(ctx, bson.M{"source_chat_id": sourceChatID}); err != nil {
		return deleted, fmt.Errorf("failed to delete bindings of source chat %d: %w", sourceChatID, err)
	}
	return deleted, nil
}

func (s *MongoStore) MoveCategory(ctx context.Context, scopeID int64, ids []string, category string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.media.UpdateMany(ctx,
		bson.M{"scope_id": scopeID, "_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"category": category}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to move %d media records to %q: %w", len(ids), category, err)
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) CountByCategory(ctx context.Context, scopeID int64) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"scope_id": scopeID}}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "total": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.media.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count media of scope %d: %w", scopeID, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Category string `bson:"_id"`
		Total    int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode category counts: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Total
	}
	return counts, nil
}

func (s *MongoStore) UpsertBinding(ctx context.Context, binding *models.CategoryBinding) error {
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = time.Now().UTC()
	}
	_, err := s.bindings.UpdateOne(ctx,
		bson.M{"scope_id": binding.ScopeID, "source_chat_id": binding.SourceChatID},
		bson.M{
			"$set": bson.M{"category": binding.Category},
			"$setOnInsert": bson.M{
				"created_by": binding.CreatedBy,
				"created_at": binding.CreatedAt,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert binding of chat %d: %w", binding.SourceChatID, err)
	}
	return nil
}

func (s *MongoStore) FindBindings(ctx context.Context, sourceChatID int64) ([]models.CategoryBinding, error) {
	cursor, err := s.bindings.Find(ctx, bson.M{"source_chat_id": sourceChatID})
	if err != nil {
		return nil, fmt.Errorf("failed to find bindings of chat %d: %w", sourceChatID, err)
	}
	var bindings []models.CategoryBinding
	if err := cursor.All(ctx, &bindings); err != nil {
		return nil, fmt.Errorf("failed to decode bindings of chat %d: %w", sourceChatID, err)
	}
	return bindings, nil
}

func (s *MongoStore) DeleteBinding(ctx context.Context, scopeID, sourceChatID int64) error {
	if _, err := s.bindings.DeleteOne(ctx, bson.M{"scope_id": scopeID, "source_chat_id": sourceChatID}); err != nil {
		return fmt.Errorf("failed to delete binding of chat %d: %w", sourceChatID, err)
	}
	return nil
}

// AddFavorite relies on the unique (user_id, media_id) index.
func (s *MongoStore) AddFavorite(ctx context.Context, userID int64, mediaID string) (bool, error) {
	res, err := s.favorites.UpdateOne(ctx,
		bson.M{"user_id": userID, "media_id": mediaID},
		bson.M{"$setOnInsert": bson.M{"created_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to add favorite %s for user %d: %w", mediaID, userID, err)
	}
	return res.UpsertedCount > 0, nil
}

func (s *MongoStore) RemoveFavorite(ctx context.Context, userID int64, mediaID string) (bool, error) {
	res, err := s.favorites.DeleteOne(ctx, bson.M{"user_id": userID, "media_id": mediaID})
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite %s for user %d: %w", mediaID, userID, err)
	}
	return res.DeletedCount > 0, nil
}

// ListFavorites joins favorites with media so entries of deleted records are skipped.
func (s *MongoStore) ListFavorites(ctx context.Context, userID int64, offset, limit int) ([]models.MediaRecord, int64, error) {
	joined := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mediaCollectionName,
			"localField":   "media_id",
			"foreignField": "_id",
			"as":           "media",
		}}},
		{{Key: "$unwind", Value: "$media"}},
	}

	countPipeline := append(append(mongo.Pipeline{}, joined...), bson.D{{Key: "$count", Value: "total"}})
	cursor, err := s.favorites.Aggregate(ctx, countPipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count favorites of user %d: %w", userID, err)
	}
	var counted []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &counted); err != nil {
		return nil, 0, fmt.Errorf("failed to decode favorites count: %w", err)
	}
	if len(counted) == 0 {
		return []models.MediaRecord{}, 0, nil
	}

	pagePipeline := append(append(mongo.Pipeline{}, joined...),
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		bson.D{{Key: "$skip", Value: int64(offset)}},
		bson.D{{Key: "$limit", Value: int64(limit)}},
		bson.D{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$media"}}},
	)
	cursor, err = s.favorites.Aggregate(ctx, pagePipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list favorites of user %d: %w", userID, err)
	}
	var records []models.MediaRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode favorites of user %d: %w", userID, err)
	}
	return records, counted[0].Total, nil
}

func (s *MongoStore) GetLastServed(ctx context.Context, userID int64) (*models.LastServed, error) {
	var last models.LastServed
	err := s.lastServed.FindOne(ctx, bson.M{"_id": userID}).Decode(&last)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last served of user %d: %w", userID, err)
	}
	return &last, nil
}

func (s *MongoStore) UpsertLastServed(ctx context.Context, last *models.LastServed) error {
	_, err := s.lastServed.UpdateOne(ctx,
		bson.M{"_id": last.UserID},
		bson.M{"$set": bson.M{"media_id": last.MediaID, "served_at": last.ServedAt.UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert last served of user %d: %w", last.UserID, err)
	}
	return nil
}
