package database

import (
	"context"
	"time"

	"mediapool-bot/internal/database/models"
)

// CandidateQuery is the selection predicate over a scope's records.
// Zero values mean "no constraint" for the optional clauses.
type CandidateQuery struct {
	ScopeID       int64
	Category      string
	ExcludeID     string
	ExcludeServed bool
	MediaType     models.MediaType
	AddedFrom     time.Time // inclusive
	AddedBefore   time.Time // exclusive
	MaxDuration   *int
}

// WithoutServed returns a copy of q with the anti-repeat clause dropped.
func (q CandidateQuery) WithoutServed() CandidateQuery {
	q.ExcludeServed = false
	return q
}

// MediaRepository stores records and their anti-repeat markers.
type MediaRepository interface {
	// CreateMedia inserts a new record; ID and AddedAt are filled when empty.
	CreateMedia(ctx context.Context, media *models.MediaRecord) error
	// GetMedia returns ErrMediaNotFound when the record does not exist.
	GetMedia(ctx context.Context, id string) (*models.MediaRecord, error)
	// FindBySource looks a record up by the chat message it was taken from.
	FindBySource(ctx context.Context, scopeID, sourceChatID int64, sourceMessageID int) (*models.MediaRecord, error)
	// CandidateIDs returns the ids of every record matching q.
	CandidateIDs(ctx context.Context, q CandidateQuery) ([]string, error)
	// ResetServed clears the served markers of every record matching q (served clause ignored).
	ResetServed(ctx context.Context, q CandidateQuery) (int64, error)
	// MarkServed inserts the marker if absent.
	MarkServed(ctx context.Context, mediaID string, at time.Time) error
	UnmarkServed(ctx context.Context, mediaID string) error
	IsServed(ctx context.Context, mediaID string) (bool, error)
	// AdjustViewCount adds delta to view_count, never going below zero.
	AdjustViewCount(ctx context.Context, mediaID string, delta int) error
	// DeleteMedia removes records and their dependent rows (markers, favorites, history).
	DeleteMedia(ctx context.Context, ids []string) (int64, error)
	// DeleteBySourceChat removes every record taken from sourceChatID together with
	// the category bindings that reference it.
	DeleteBySourceChat(ctx context.Context, sourceChatID int64) (int64, error)
	// MoveCategory reassigns the given records of a scope to category.
	MoveCategory(ctx context.Context, scopeID int64, ids []string, category string) (int64, error)
	CountByCategory(ctx context.Context, scopeID int64) (map[string]int64, error)
}

// BindingRepository stores source chat → category bindings.
type BindingRepository interface {
	UpsertBinding(ctx context.Context, binding *models.CategoryBinding) error
	FindBindings(ctx context.Context, sourceChatID int64) ([]models.CategoryBinding, error)
	DeleteBinding(ctx context.Context, scopeID, sourceChatID int64) error
}

// PreferenceRepository stores raw filter preferences and behavior settings.
type PreferenceRepository interface {
	// GetFilter returns nil, nil when the user never stored a filter in the scope.
	GetFilter(ctx context.Context, userID, scopeID int64) (*models.FilterPreference, error)
	// SetFilterField upserts a single field; field must be one of models.FilterFields.
	SetFilterField(ctx context.Context, userID, scopeID int64, field, value string) error
	DeleteFilter(ctx context.Context, userID, scopeID int64) error
	// GetSettings returns the stored values of keys; absent keys are omitted.
	GetSettings(ctx context.Context, scopeID int64, keys []string) (map[string]string, error)
	SetSetting(ctx context.Context, scopeID int64, key, value string) error
}

// HistoryRepository stores bounded delivery logs.
type HistoryRepository interface {
	// AppendHistory inserts entry and trims the owner's log to limit rows as one unit.
	AppendHistory(ctx context.Context, entry *models.HistoryEntry, limit int) error
	// RemoveHistory deletes one entry of the owner; false when nothing matched.
	RemoveHistory(ctx context.Context, kind models.HistoryKind, ownerID int64, entryID string) (bool, error)
	// ListHistory returns the owner's entries whose record still exists, newest first,
	// and the total count of such entries.
	ListHistory(ctx context.Context, kind models.HistoryKind, ownerID int64, offset, limit int) ([]models.HistoryEntry, int64, error)
}

// FavoriteRepository stores (user, media) favorites.
type FavoriteRepository interface {
	// AddFavorite returns false when the pair already existed.
	AddFavorite(ctx context.Context, userID int64, mediaID string) (bool, error)
	RemoveFavorite(ctx context.Context, userID int64, mediaID string) (bool, error)
	ListFavorites(ctx context.Context, userID int64, offset, limit int) ([]models.MediaRecord, int64, error)
}

// ServeStateRepository stores the per-user last served marker.
type ServeStateRepository interface {
	// GetLastServed returns nil, nil when nothing was served to the user yet.
	GetLastServed(ctx context.Context, userID int64) (*models.LastServed, error)
	UpsertLastServed(ctx context.Context, last *models.LastServed) error
}

// BatchRepository stores batch sessions.
type BatchRepository interface {
	// ReplaceSession deletes whatever session (scope, user) had and inserts session.
	ReplaceSession(ctx context.Context, session *models.BatchSession) error
	// GetSession returns nil, nil when (scope, user) has no session. No expiry check.
	GetSession(ctx context.Context, scopeID, userID int64) (*models.BatchSession, error)
	// AddSessionItem appends the pair unless mediaID is already collected. The
	// append happens only while the session is in PhaseCollecting; otherwise it
	// returns ErrSessionNotCollecting. It returns whether the item was added and
	// the collected count afterwards.
	AddSessionItem(ctx context.Context, sessionID, mediaID string, messageID int, at time.Time) (bool, int, error)
	// TransitionSession moves the session from one phase to another if it is still in from.
	TransitionSession(ctx context.Context, sessionID string, from, to models.BatchPhase) (bool, error)
	SetSessionDestination(ctx context.Context, sessionID, category string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Store is everything the bot needs from a persistence backend.
type Store interface {
	MediaRepository
	BindingRepository
	PreferenceRepository
	HistoryRepository
	FavoriteRepository
	ServeStateRepository
	BatchRepository
	// Migrate creates indexes or tables.
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
}
