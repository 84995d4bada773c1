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

// historyLog keeps all entries of one owner in a single document, so that
// append-and-trim is one atomic $push with $slice.
type historyLog struct {
	ID      string                `bson:"_id"`
	Kind    models.HistoryKind    `bson:"kind"`
	OwnerID int64                 `bson:"owner_id"`
	Entries []models.HistoryEntry `bson:"entries"`
}

func historyLogID(kind models.HistoryKind, ownerID int64) string {
	return fmt.Sprintf("%s:%d", kind, ownerID)
}

func (s *MongoStore) AppendHistory(ctx context.Context, entry *models.HistoryEntry, limit int) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	_, err := s.history.UpdateOne(ctx,
		bson.M{"_id": historyLogID(entry.Kind, entry.OwnerID)},
		bson.M{
			"$setOnInsert": bson.M{"kind": entry.Kind, "owner_id": entry.OwnerID},
			"$push": bson.M{"entries": bson.M{
				"$each":  bson.A{entry},
				"$sort":  bson.M{"created_at": 1},
				"$slice": -limit,
			}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to append %s history of %d: %w", entry.Kind, entry.OwnerID, err)
	}
	return nil
}

func (s *MongoStore) RemoveHistory(ctx context.Context, kind models.HistoryKind, ownerID int64, entryID string) (bool, error) {
	res, err := s.history.UpdateOne(ctx,
		bson.M{"_id": historyLogID(kind, ownerID), "entries.id": entryID},
		bson.M{"$pull": bson.M{"entries": bson.M{"id": entryID}}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s history entry %s: %w", kind, entryID, err)
	}
	return res.ModifiedCount > 0, nil
}

// ListHistory drops entries whose record no longer exists before paginating.
func (s *MongoStore) ListHistory(ctx context.Context, kind models.HistoryKind, ownerID int64, offset, limit int) ([]models.HistoryEntry, int64, error) {
	var doc historyLog
	err := s.history.FindOne(ctx, bson.M{"_id": historyLogID(kind, ownerID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []models.HistoryEntry{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to load %s history of %d: %w", kind, ownerID, err)
	}

	mediaIDs := make([]string, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		mediaIDs = append(mediaIDs, e.MediaID)
	}
	cursor, err := s.media.Find(ctx,
		bson.M{"_id": bson.M{"$in": mediaIDs}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve history media: %w", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to decode history media: %w", err)
	}
	alive := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		alive[row.ID] = struct{}{}
	}

	// entries are stored oldest first
	visible := make([]models.HistoryEntry, 0, len(doc.Entries))
	for i := len(doc.Entries) - 1; i >= 0; i-- {
		e := doc.Entries[i]
		if _, ok := alive[e.MediaID]; !ok {
			continue
		}
		e.Kind = kind
		e.OwnerID = ownerID
		visible = append(visible, e)
	}

	total := int64(len(visible))
	if offset >= len(visible) {
		return []models.HistoryEntry{}, total, nil
	}
	end := min(offset+limit, len(visible))
	return visible[offset:end], total, nil
}
