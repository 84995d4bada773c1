package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediapool-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReplaceSession overwrites whatever document (scope, user) had.
func (s *MongoStore) ReplaceSession(ctx context.Context, session *models.BatchSession) error {
	session.CreatedAt = session.CreatedAt.UTC()
	if session.MediaIDs == nil {
		session.MediaIDs = []string{}
	}
	if session.MessageIDs == nil {
		session.MessageIDs = []int{}
	}
	_, err := s.sessions.ReplaceOne(ctx,
		bson.M{"scope_id": session.ScopeID, "user_id": session.UserID},
		session,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to replace batch session of user %d in scope %d: %w", session.UserID, session.ScopeID, err)
	}
	return nil
}

func (s *MongoStore) GetSession(ctx context.Context, scopeID, userID int64) (*models.BatchSession, error) {
	var session models.BatchSession
	err := s.sessions.FindOne(ctx, bson.M{"scope_id": scopeID, "user_id": userID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch session of user %d in scope %d: %w", userID, scopeID, err)
	}
	return &session, nil
}

// AddSessionItem pushes both ids in one update guarded by the collecting phase
// and "media id not present yet".
func (s *MongoStore) AddSessionItem(ctx context.Context, sessionID, mediaID string, messageID int, at time.Time) (bool, int, error) {
	var after struct {
		Phase    models.BatchPhase `bson:"phase"`
		MediaIDs []string          `bson:"media_ids"`
	}
	err := s.sessions.FindOneAndUpdate(ctx,
		bson.M{
			"session_id": sessionID,
			"phase":      models.PhaseCollecting,
			"media_ids":  bson.M{"$ne": mediaID},
		},
		bson.M{"$push": bson.M{"media_ids": mediaID, "message_ids": messageID}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"media_ids": 1}),
	).Decode(&after)
	if err == nil {
		return true, len(after.MediaIDs), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return false, 0, fmt.Errorf("failed to add %s to batch session %s: %w", mediaID, sessionID, err)
	}

	// duplicate, or the session is gone or past collection
	err = s.sessions.FindOne(ctx,
		bson.M{"session_id": sessionID},
		options.FindOne().SetProjection(bson.M{"phase": 1, "media_ids": 1}),
	).Decode(&after)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, 0, ErrSessionNotCollecting
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to count items of batch session %s: %w", sessionID, err)
	}
	if after.Phase != models.PhaseCollecting {
		return false, 0, ErrSessionNotCollecting
	}
	return false, len(after.MediaIDs), nil
}

func (s *MongoStore) TransitionSession(ctx context.Context, sessionID string, from, to models.BatchPhase) (bool, error) {
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "phase": from},
		bson.M{"$set": bson.M{"phase": to}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to move batch session %s from %s to %s: %w", sessionID, from, to, err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *MongoStore) SetSessionDestination(ctx context.Context, sessionID, category string) error {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"destination": category}},
	)
	if err != nil {
		return fmt.Errorf("failed to set destination of batch session %s: %w", sessionID, err)
	}
	return nil
}

func (s *MongoStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete batch session %s: %w", sessionID, err)
	}
	return nil
}
