// Package batch implements the admin bulk delete/move workflow as a persisted
// session per (scope, user):
//
//	IDLE -> COLLECTING -> CONFIRMING -> EXECUTING -> CLEANUP -> IDLE
//
// Cancel and expiry return to IDLE from any phase.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"
	"mediapool-bot/internal/metrics"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// SessionTTL is how long a session stays usable after Start.
const SessionTTL = 5 * time.Minute

// AckEvery is the acknowledgment period of Collect after the first item.
const AckEvery = 5

var (
	ErrNoSession           = errors.New("no batch session in progress")
	ErrSessionExpired      = errors.New("batch session expired, please restart")
	ErrSessionState        = errors.New("operation not allowed in the current batch phase")
	ErrDestinationRequired = errors.New("move requires a destination category")
	ErrInvalidMode         = errors.New("unknown batch mode")
)

// Repository is the storage a Machine needs: sessions plus the record mutations
// it executes.
type Repository interface {
	database.BatchRepository
	DeleteMedia(ctx context.Context, ids []string) (int64, error)
	MoveCategory(ctx context.Context, scopeID int64, ids []string, category string) (int64, error)
}

// MessageDeleter removes collected chat messages during cleanup.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
}

// CollectResult reports one Collect call. Ack is set on the first addition and
// on every AckEvery-th one.
type CollectResult struct {
	Added bool
	Count int
	Ack   bool
}

// EndResult reports End. Aborted means nothing was collected and the session is gone.
type EndResult struct {
	Aborted bool
	Session *models.BatchSession
}

// ConfirmResult reports the executed mutation. Cleanup is set when the session
// waits in CLEANUP for the collected messages to be handled.
type ConfirmResult struct {
	Mode     models.BatchMode
	Affected int64
	Cleanup  bool
}

// Machine drives batch sessions.
type Machine struct {
	repo    Repository
	deleter MessageDeleter
	metrics *metrics.EngineMetrics
	now     func() time.Time
}

// NewMachine creates a Machine. deleter may be nil when cleanup never deletes messages.
func NewMachine(repo Repository, deleter MessageDeleter, m *metrics.EngineMetrics) *Machine {
	return &Machine{
		repo:    repo,
		deleter: deleter,
		metrics: m,
		now:     time.Now,
	}
}

// Start replaces any previous session of the user with a new COLLECTING one.
func (m *Machine) Start(ctx context.Context, scopeID, userID int64, mode models.BatchMode) (*models.BatchSession, error) {
	if mode != models.BatchDelete && mode != models.BatchMove {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	session := &models.BatchSession{
		ScopeID:   scopeID,
		UserID:    userID,
		ID:        uuid.NewString(),
		Mode:      mode,
		Phase:     models.PhaseCollecting,
		CreatedAt: m.now().UTC(),
	}
	if err := m.repo.ReplaceSession(ctx, session); err != nil {
		return nil, err
	}
	log.Printf("[Batch Scope:%d User:%d] Started %s session %s", scopeID, userID, mode, session.ID)
	m.metrics.RecordBatch(string(mode), "started")
	return session, nil
}

// Current returns the live session of the user.
func (m *Machine) Current(ctx context.Context, scopeID, userID int64) (*models.BatchSession, error) {
	return m.load(ctx, scopeID, userID)
}

// Collect adds one record to a COLLECTING session. A record that is already
// collected is a silent no-op.
func (m *Machine) Collect(ctx context.Context, scopeID, userID int64, mediaID string, messageID int) (CollectResult, error) {
	session, err := m.loadIn(ctx, scopeID, userID, models.PhaseCollecting)
	if err != nil {
		return CollectResult{}, err
	}
	added, count, err := m.repo.AddSessionItem(ctx, session.ID, mediaID, messageID, m.now())
	if errors.Is(err, database.ErrSessionNotCollecting) {
		return CollectResult{}, ErrSessionState
	}
	if err != nil {
		return CollectResult{}, err
	}
	res := CollectResult{Added: added, Count: count}
	if added {
		res.Ack = count == 1 || count%AckEvery == 0
	}
	return res, nil
}

// End closes collection. An empty session is deleted and reported as aborted.
func (m *Machine) End(ctx context.Context, scopeID, userID int64) (EndResult, error) {
	session, err := m.loadIn(ctx, scopeID, userID, models.PhaseCollecting)
	if err != nil {
		return EndResult{}, err
	}
	if len(session.MediaIDs) == 0 {
		if err := m.repo.DeleteSession(ctx, session.ID); err != nil {
			return EndResult{}, err
		}
		m.metrics.RecordBatch(string(session.Mode), "aborted")
		return EndResult{Aborted: true}, nil
	}

	if err := m.transition(ctx, session, models.PhaseCollecting, models.PhaseConfirming); err != nil {
		return EndResult{}, err
	}
	// Collection is closed now; reload so the reported set is the frozen one.
	frozen, err := m.repo.GetSession(ctx, scopeID, userID)
	if err != nil {
		return EndResult{}, err
	}
	if frozen == nil || frozen.ID != session.ID {
		return EndResult{}, ErrNoSession
	}
	return EndResult{Session: frozen}, nil
}

// SetDestination picks the target category of a move session awaiting confirmation.
func (m *Machine) SetDestination(ctx context.Context, scopeID, userID int64, category string) error {
	session, err := m.loadIn(ctx, scopeID, userID, models.PhaseConfirming)
	if err != nil {
		return err
	}
	if session.Mode != models.BatchMove {
		return ErrSessionState
	}
	if category == "" {
		return ErrDestinationRequired
	}
	return m.repo.SetSessionDestination(ctx, session.ID, category)
}

// Confirm executes the mutation over the frozen id set. Only one caller wins the
// CONFIRMING -> EXECUTING transition; the others get ErrSessionState.
func (m *Machine) Confirm(ctx context.Context, scopeID, userID int64) (ConfirmResult, error) {
	session, err := m.loadIn(ctx, scopeID, userID, models.PhaseConfirming)
	if err != nil {
		return ConfirmResult{}, err
	}
	if session.Mode == models.BatchMove && session.Destination == "" {
		return ConfirmResult{}, ErrDestinationRequired
	}
	if err := m.transition(ctx, session, models.PhaseConfirming, models.PhaseExecuting); err != nil {
		return ConfirmResult{}, err
	}

	logPrefix := fmt.Sprintf("[Batch Scope:%d User:%d Session:%s]", scopeID, userID, session.ID)
	res := ConfirmResult{Mode: session.Mode}
	switch session.Mode {
	case models.BatchDelete:
		res.Affected, err = m.repo.DeleteMedia(ctx, session.MediaIDs)
	case models.BatchMove:
		res.Affected, err = m.repo.MoveCategory(ctx, scopeID, session.MediaIDs, session.Destination)
	}
	if err != nil {
		m.metrics.RecordBatch(string(session.Mode), "failed")
		return res, fmt.Errorf("failed to execute batch %s: %w", session.Mode, err)
	}
	log.Printf("%s Executed %s over %d id(s), %d record(s) affected", logPrefix, session.Mode, len(session.MediaIDs), res.Affected)
	m.metrics.RecordBatch(string(session.Mode), "executed")

	if len(session.MessageIDs) == 0 {
		return res, m.repo.DeleteSession(ctx, session.ID)
	}
	if err := m.transition(ctx, session, models.PhaseExecuting, models.PhaseCleanup); err != nil {
		return res, err
	}
	res.Cleanup = true
	return res, nil
}

// Cleanup finishes a session in CLEANUP, optionally deleting the collected
// messages from chatID first. It returns the number of messages deleted.
func (m *Machine) Cleanup(ctx context.Context, scopeID, userID, chatID int64, deleteMessages bool) (int, error) {
	session, err := m.loadIn(ctx, scopeID, userID, models.PhaseCleanup)
	if err != nil {
		return 0, err
	}

	deleted := 0
	if deleteMessages && m.deleter != nil {
		for _, messageID := range session.MessageIDs {
			err := m.deleter.DeleteMessage(ctx, &telego.DeleteMessageParams{
				ChatID:    tu.ID(chatID),
				MessageID: messageID,
			})
			if err != nil {
				log.Printf("[Batch Scope:%d User:%d] Failed to delete message %d: %v", scopeID, userID, messageID, err)
				continue
			}
			deleted++
		}
	}
	if err := m.repo.DeleteSession(ctx, session.ID); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Cancel drops the session in whatever phase it is, without touching records.
func (m *Machine) Cancel(ctx context.Context, scopeID, userID int64) error {
	session, err := m.load(ctx, scopeID, userID)
	if err != nil {
		return err
	}
	if err := m.repo.DeleteSession(ctx, session.ID); err != nil {
		return err
	}
	m.metrics.RecordBatch(string(session.Mode), "cancelled")
	return nil
}

// load returns the live session, deleting it when it outlived SessionTTL.
func (m *Machine) load(ctx context.Context, scopeID, userID int64) (*models.BatchSession, error) {
	session, err := m.repo.GetSession(ctx, scopeID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if m.now().Sub(session.CreatedAt) > SessionTTL {
		if err := m.repo.DeleteSession(ctx, session.ID); err != nil {
			return nil, err
		}
		log.Printf("[Batch Scope:%d User:%d] Session %s expired", scopeID, userID, session.ID)
		m.metrics.RecordBatch(string(session.Mode), "expired")
		return nil, ErrSessionExpired
	}
	return session, nil
}

func (m *Machine) loadIn(ctx context.Context, scopeID, userID int64, phase models.BatchPhase) (*models.BatchSession, error) {
	session, err := m.load(ctx, scopeID, userID)
	if err != nil {
		return nil, err
	}
	if session.Phase != phase {
		return nil, fmt.Errorf("%w: session is %s, want %s", ErrSessionState, session.Phase, phase)
	}
	return session, nil
}

func (m *Machine) transition(ctx context.Context, session *models.BatchSession, from, to models.BatchPhase) error {
	ok, err := m.repo.TransitionSession(ctx, session.ID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: session left %s", ErrSessionState, from)
	}
	session.Phase = to
	return nil
}
