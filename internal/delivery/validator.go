// Package delivery serves random records to users: it selects, delivers,
// classifies failures, purges dead references and records what was served.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"
	"mediapool-bot/internal/history"
	"mediapool-bot/internal/metrics"
	"mediapool-bot/internal/preferences"
	"mediapool-bot/internal/selector"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	// MaxAttempts bounds the select/deliver cycles of one Serve call.
	MaxAttempts = 3
	// QuickAdvanceWindow is how recent the last serve must be for an advance
	// to count as a skip.
	QuickAdvanceWindow = 30 * time.Second

	bookkeepingTimeout = 10 * time.Second
)

// Status is the final state of a Serve call.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusNoContent Status = "no_content"
	StatusExhausted Status = "exhausted"
	StatusNotMember Status = "not_member"
	StatusFailed    Status = "failed"
	// StatusRefused means the target chat or the API refused the delivery.
	StatusRefused   Status = "refused"
)

// Request identifies one serve.
type Request struct {
	UserID    int64
	ScopeID   int64
	Category  string
	ChatID    int64 // where the record is delivered; its group log is appended
	IsAdvance bool
}

// Outcome reports what a Serve call did. Err is set for StatusFailed and
// StatusRefused only.
type Outcome struct {
	Status    Status
	Media     *models.MediaRecord
	MessageID int
	Attempts  int
	PoolReset bool
	Purged    int64
	Err       error
}

// Sender is the part of the bot API used for delivery.
type Sender interface {
	ForwardMessage(ctx context.Context, params *telego.ForwardMessageParams) (*telego.Message, error)
	CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error)
}

// MembershipChecker gates serving on membership of the scope.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
}

// Repository is what the validator mutates directly.
type Repository interface {
	database.MediaRepository
	database.ServeStateRepository
}

// Validator drives the serve loop.
type Validator struct {
	sender   Sender
	repo     Repository
	prefs    *preferences.Store
	selector *selector.Selector
	history  *history.Tracker
	members  MembershipChecker
	metrics  *metrics.EngineMetrics
	controls ControlsFunc
	now      func() time.Time

	wg sync.WaitGroup
}

// Deps holds the dependencies of a Validator.
type Deps struct {
	Sender   Sender
	Repo     Repository
	Prefs    *preferences.Store
	Selector *selector.Selector
	History  *history.Tracker
	Members  MembershipChecker // optional
	Metrics  *metrics.EngineMetrics
	Controls ControlsFunc // optional, DefaultControls when nil
	Now      func() time.Time
}

// New creates a Validator from its dependencies.
func New(deps Deps) (*Validator, error) {
	if deps.Sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if deps.Prefs == nil || deps.Selector == nil || deps.History == nil {
		return nil, fmt.Errorf("preferences, selector and history are required")
	}
	v := &Validator{
		sender:   deps.Sender,
		repo:     deps.Repo,
		prefs:    deps.Prefs,
		selector: deps.Selector,
		history:  deps.History,
		members:  deps.Members,
		metrics:  deps.Metrics,
		controls: deps.Controls,
		now:      deps.Now,
	}
	if v.controls == nil {
		v.controls = DefaultControls
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v, nil
}

// Wait blocks until deferred bookkeeping of earlier serves has finished.
func (v *Validator) Wait() {
	v.wg.Wait()
}

// Serve runs up to MaxAttempts select/deliver cycles. It is not cancelled by
// the caller's context once started.
func (v *Validator) Serve(ctx context.Context, req Request) Outcome {
	ctx = context.WithoutCancel(ctx)
	logPrefix := fmt.Sprintf("[Serve User:%d Scope:%d]", req.UserID, req.ScopeID)

	out := v.serve(ctx, req, logPrefix)
	v.metrics.RecordServeOutcome(string(out.Status))
	if out.Status == StatusFailed {
		log.Printf("%s Failed: %v", logPrefix, out.Err)
		sentry.CaptureException(fmt.Errorf("%s serve failed: %w", logPrefix, out.Err))
	}
	return out
}

func (v *Validator) serve(ctx context.Context, req Request, logPrefix string) Outcome {
	if v.members != nil {
		ok, err := v.members.IsMember(ctx, req.ScopeID, req.UserID)
		if err != nil {
			return Outcome{Status: StatusFailed, Err: err}
		}
		if !ok {
			return Outcome{Status: StatusNotMember}
		}
	}

	behavior, err := v.prefs.GetBehavior(ctx, req.ScopeID)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}
	filter, err := v.prefs.GetFilter(ctx, req.UserID, req.ScopeID)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	var excludeID string
	if req.IsAdvance {
		excludeID, err = v.quickAdvance(ctx, req.UserID, behavior, logPrefix)
		if err != nil {
			return Outcome{Status: StatusFailed, Err: err}
		}
	}

	sel := selector.Request{
		ScopeID:    req.ScopeID,
		Category:   req.Category,
		ExcludeID:  excludeID,
		AntiRepeat: behavior.AntiRepeat,
		Filter:     filter,
	}

	var out Outcome
	for out.Attempts < MaxAttempts {
		res, err := v.selector.Select(ctx, sel)
		if errors.Is(err, selector.ErrNoContent) {
			out.Status = StatusNoContent
			return out
		}
		if err != nil {
			out.Status, out.Err = StatusFailed, err
			return out
		}
		out.Attempts++
		out.PoolReset = out.PoolReset || res.PoolReset

		messageID, err := v.deliver(ctx, req.ChatID, behavior, res.Media)
		if err == nil {
			out.Status = StatusDelivered
			out.Media = res.Media
			out.MessageID = messageID
			v.recordSuccess(ctx, req, behavior, res.Media, logPrefix)
			return out
		}

		class := Classify(err)
		v.metrics.RecordDeliveryFailure(class.String())
		log.Printf("%s Attempt %d: delivery of %s failed (%s): %v", logPrefix, out.Attempts, res.Media.ID, class, err)
		if class == Refused {
			out.Status, out.Err = StatusRefused, err
			return out
		}
		out.Purged += v.purge(ctx, class, res.Media, logPrefix)
	}

	out.Status = StatusExhausted
	return out
}

// quickAdvance returns the record to exclude from the next draw. An advance
// within QuickAdvanceWindow of the last serve takes back that serve's view and,
// unless strict skip is on, its served marker.
func (v *Validator) quickAdvance(ctx context.Context, userID int64, behavior preferences.Behavior, logPrefix string) (string, error) {
	last, err := v.repo.GetLastServed(ctx, userID)
	if err != nil {
		return "", err
	}
	if last == nil {
		return "", nil
	}
	if v.now().Sub(last.ServedAt) >= QuickAdvanceWindow {
		return last.MediaID, nil
	}

	v.metrics.RecordQuickAdvance(behavior.StrictSkip)
	if err := v.repo.AdjustViewCount(ctx, last.MediaID, -1); err != nil {
		log.Printf("%s Failed to take back view of %s: %v", logPrefix, last.MediaID, err)
	}
	if !behavior.StrictSkip {
		if err := v.repo.UnmarkServed(ctx, last.MediaID); err != nil {
			return "", err
		}
	}
	return last.MediaID, nil
}

func (v *Validator) deliver(ctx context.Context, chatID int64, behavior preferences.Behavior, media *models.MediaRecord) (int, error) {
	if behavior.DeliveryMode == preferences.DeliveryForward {
		msg, err := v.sender.ForwardMessage(ctx, &telego.ForwardMessageParams{
			ChatID:         tu.ID(chatID),
			FromChatID:     tu.ID(media.SourceChatID),
			MessageID:      media.SourceMessageID,
			ProtectContent: behavior.ProtectContent,
		})
		if err != nil {
			return 0, err
		}
		if msg == nil {
			return 0, errors.New("empty forward response")
		}
		return msg.MessageID, nil
	}

	msgID, err := v.sender.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:         tu.ID(chatID),
		FromChatID:     tu.ID(media.SourceChatID),
		MessageID:      media.SourceMessageID,
		ProtectContent: behavior.ProtectContent,
		ReplyMarkup:    v.controls(media.ID),
	})
	if err != nil {
		return 0, err
	}
	if msgID == nil {
		return 0, errors.New("empty copy response")
	}
	return msgID.MessageID, nil
}

// purge removes what a failure showed to be dead and returns the number of
// records removed. Transient and refused failures remove nothing.
func (v *Validator) purge(ctx context.Context, class FailureClass, media *models.MediaRecord, logPrefix string) int64 {
	var (
		deleted int64
		err     error
		reason  string
	)
	switch class {
	case Transient, Refused:
		return 0
	case ScopeDead:
		reason = ScopeDead.String()
		deleted, err = v.repo.DeleteBySourceChat(ctx, media.SourceChatID)
	default:
		reason = ItemDead.String()
		deleted, err = v.repo.DeleteMedia(ctx, []string{media.ID})
	}
	if err != nil {
		log.Printf("%s Failed to purge after %s failure of %s: %v", logPrefix, class, media.ID, err)
		sentry.CaptureException(fmt.Errorf("%s purge failed: %w", logPrefix, err))
	}
	if deleted > 0 {
		log.Printf("%s Purged %d record(s) (%s, source chat %d)", logPrefix, deleted, reason, media.SourceChatID)
	}
	v.metrics.RecordPurge(reason, deleted)
	return deleted
}

// recordSuccess writes the served marker and last-served state synchronously
// and defers view count and history updates.
func (v *Validator) recordSuccess(ctx context.Context, req Request, behavior preferences.Behavior, media *models.MediaRecord, logPrefix string) {
	now := v.now()
	if behavior.AntiRepeat {
		if err := v.repo.MarkServed(ctx, media.ID, now); err != nil {
			log.Printf("%s Failed to mark %s as served: %v", logPrefix, media.ID, err)
			sentry.CaptureException(err)
		}
	}
	if err := v.repo.UpsertLastServed(ctx, &models.LastServed{UserID: req.UserID, MediaID: media.ID, ServedAt: now}); err != nil {
		log.Printf("%s Failed to store last served %s: %v", logPrefix, media.ID, err)
		sentry.CaptureException(err)
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
		defer cancel()

		if err := v.repo.AdjustViewCount(bgCtx, media.ID, 1); err != nil {
			log.Printf("%s Failed to count view of %s: %v", logPrefix, media.ID, err)
		}
		if err := v.history.Append(bgCtx, models.HistoryUser, req.UserID, media.ID); err != nil {
			log.Printf("%s Failed to append user history: %v", logPrefix, err)
		}
		if req.ChatID != req.UserID {
			if err := v.history.Append(bgCtx, models.HistoryGroup, req.ChatID, media.ID); err != nil {
				log.Printf("%s Failed to append group history: %v", logPrefix, err)
			}
		}
	}()
}
