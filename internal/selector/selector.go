// Package selector picks a uniformly random record out of a filtered category.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"
	"mediapool-bot/internal/metrics"
	"mediapool-bot/internal/preferences"
)

// ErrNoContent means nothing matches the request under any repeat setting.
var ErrNoContent = errors.New("no content matches the request")

// Request describes one random draw.
type Request struct {
	ScopeID    int64
	Category   string
	ExcludeID  string
	AntiRepeat bool
	Filter     preferences.Filter
}

// Result is a successful draw. PoolReset is set when the anti-repeat set of the
// request's predicate had to be cleared first.
type Result struct {
	Media     *models.MediaRecord
	PoolReset bool
}

// Selector draws records from a MediaRepository.
type Selector struct {
	repo    database.MediaRepository
	metrics *metrics.EngineMetrics
	now     func() time.Time
	intn    func(n int) int
}

// Option customizes a Selector.
type Option func(*Selector)

// WithClock replaces time.Now for date windows.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithRand replaces the uniform index source.
func WithRand(intn func(n int) int) Option {
	return func(s *Selector) { s.intn = intn }
}

func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(s *Selector) { s.metrics = m }
}

func New(repo database.MediaRepository, opts ...Option) *Selector {
	s := &Selector{
		repo: repo,
		now:  time.Now,
		intn: rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query translates a request into the store predicate.
func (s *Selector) Query(req Request) database.CandidateQuery {
	q := database.CandidateQuery{
		ScopeID:       req.ScopeID,
		Category:      req.Category,
		ExcludeID:     req.ExcludeID,
		ExcludeServed: req.AntiRepeat,
		MaxDuration:   req.Filter.MaxDuration(),
	}
	if req.Filter.MediaType != "" && req.Filter.MediaType != preferences.ModeAll {
		q.MediaType = models.MediaType(req.Filter.MediaType)
	}
	q.AddedFrom, q.AddedBefore = dateWindow(req.Filter, s.now().UTC())
	return q
}

// dateWindow returns the [from, before) window of the filter's date mode.
// Zero values mean unbounded.
func dateWindow(f preferences.Filter, now time.Time) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch f.DateMode {
	case "today":
		return midnight, time.Time{}
	case "d7":
		return now.AddDate(0, 0, -7), time.Time{}
	case "d30":
		return now.AddDate(0, 0, -30), time.Time{}
	case "year":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), time.Time{}
	case preferences.ModeCustom:
		from, errFrom := time.Parse(preferences.DateLayout, f.DateFrom)
		to, errTo := time.Parse(preferences.DateLayout, f.DateTo)
		if errFrom != nil || errTo != nil {
			return time.Time{}, time.Time{}
		}
		return from, to.AddDate(0, 0, 1)
	default:
		return time.Time{}, time.Time{}
	}
}

// SelectRandom returns one record matching the request, or nil when nothing does.
func (s *Selector) SelectRandom(ctx context.Context, req Request) (*models.MediaRecord, error) {
	ids, err := s.repo.CandidateIDs(ctx, s.Query(req))
	if err != nil {
		return nil, err
	}

	for len(ids) > 0 {
		i := s.intn(len(ids))
		media, err := s.repo.GetMedia(ctx, ids[i])
		if err == nil {
			return media, nil
		}
		if !database.IsNotFound(err) {
			return nil, err
		}
		// deleted between the id scan and the load
		ids[i] = ids[len(ids)-1]
		ids = ids[:len(ids)-1]
	}
	return nil, nil
}

// Select draws a record and handles pool exhaustion: when anti-repeat leaves
// nothing but the predicate alone still matches, the served markers of that
// predicate are cleared and the draw is repeated.
func (s *Selector) Select(ctx context.Context, req Request) (Result, error) {
	media, err := s.SelectRandom(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to select from %q: %w", req.Category, err)
	}
	if media != nil {
		return Result{Media: media}, nil
	}
	if !req.AntiRepeat {
		return Result{}, ErrNoContent
	}

	q := s.Query(req).WithoutServed()
	ids, err := s.repo.CandidateIDs(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check pool of %q: %w", req.Category, err)
	}
	if len(ids) == 0 {
		return Result{}, ErrNoContent
	}

	cleared, err := s.repo.ResetServed(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("failed to reset pool of %q: %w", req.Category, err)
	}
	s.metrics.RecordPoolReset()
	log.Printf("[Selector Scope:%d] Pool %q exhausted, cleared %d served markers", req.ScopeID, req.Category, cleared)

	media, err = s.SelectRandom(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to select from %q after reset: %w", req.Category, err)
	}
	if media == nil {
		// everything left was deleted concurrently
		return Result{}, ErrNoContent
	}
	return Result{Media: media, PoolReset: true}, nil
}
