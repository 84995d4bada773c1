package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"

	"gorm.io/gorm"
)

// ReplaceSession drops the previous session of (scope, user) with its items and
// inserts the new one.
func (s *Store) ReplaceSession(ctx context.Context, session *models.BatchSession) error {
	session.CreatedAt = session.CreatedAt.UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var previous []string
		err := tx.Model(&models.BatchSession{}).
			Where("scope_id = ? AND user_id = ?", session.ScopeID, session.UserID).
			Pluck("id", &previous).Error
		if err != nil {
			return err
		}
		if len(previous) > 0 {
			if err := tx.Where("session_id IN ?", previous).Delete(&models.BatchItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", previous).Delete(&models.BatchSession{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace batch session of user %d in scope %d: %w", session.UserID, session.ScopeID, err)
	}
	return nil
}

// GetSession loads the session and its collected items in insertion order.
func (s *Store) GetSession(ctx context.Context, scopeID, userID int64) (*models.BatchSession, error) {
	var session models.BatchSession
	err := s.db.WithContext(ctx).Where("scope_id = ? AND user_id = ?", scopeID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch session of user %d in scope %d: %w", userID, scopeID, err)
	}

	var items []models.BatchItem
	err = s.db.WithContext(ctx).Where("session_id = ?", session.ID).
		Order("added_at ASC").Order("message_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load items of batch session %s: %w", session.ID, err)
	}
	session.MediaIDs = make([]string, 0, len(items))
	session.MessageIDs = make([]int, 0, len(items))
	for _, item := range items {
		session.MediaIDs = append(session.MediaIDs, item.MediaID)
		session.MessageIDs = append(session.MessageIDs, item.MessageID)
	}
	return &session, nil
}

// AddSessionItem inserts the item in one statement that also checks the
// session phase, so an item cannot land after the session left collection.
// The (session_id, media_id) key makes the insert append-if-absent.
func (s *Store) AddSessionItem(ctx context.Context, sessionID, mediaID string, messageID int, at time.Time) (bool, int, error) {
	db := s.db.WithContext(ctx)
	res := db.Exec(
		s.insertIgnore()+" INTO batch_items (session_id, media_id, message_id, added_at)"+
			" SELECT id, ?, ?, ? FROM batch_sessions WHERE id = ? AND phase = ?",
		mediaID, messageID, at.UTC(), sessionID, string(models.PhaseCollecting),
	)
	if res.Error != nil {
		return false, 0, fmt.Errorf("failed to add %s to batch session %s: %w", mediaID, sessionID, res.Error)
	}

	if res.RowsAffected == 0 {
		var collecting int64
		err := db.Model(&models.BatchSession{}).
			Where("id = ? AND phase = ?", sessionID, models.PhaseCollecting).
			Count(&collecting).Error
		if err != nil {
			return false, 0, fmt.Errorf("failed to check phase of batch session %s: %w", sessionID, err)
		}
		if collecting == 0 {
			return false, 0, database.ErrSessionNotCollecting
		}
	}

	var total int64
	if err := db.Model(&models.BatchItem{}).Where("session_id = ?", sessionID).Count(&total).Error; err != nil {
		return false, 0, fmt.Errorf("failed to count items of batch session %s: %w", sessionID, err)
	}
	return res.RowsAffected > 0, int(total), nil
}

// TransitionSession is a compare-and-set on the phase column.
func (s *Store) TransitionSession(ctx context.Context, sessionID string, from, to models.BatchPhase) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.BatchSession{}).
		Where("id = ? AND phase = ?", sessionID, from).
		Update("phase", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to move batch session %s from %s to %s: %w", sessionID, from, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) SetSessionDestination(ctx context.Context, sessionID, category string) error {
	err := s.db.WithContext(ctx).Model(&models.BatchSession{}).
		Where("id = ?", sessionID).
		Update("destination", category).Error
	if err != nil {
		return fmt.Errorf("failed to set destination of batch session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.BatchItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", sessionID).Delete(&models.BatchSession{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete batch session %s: %w", sessionID, err)
	}
	return nil
}
