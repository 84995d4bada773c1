package auth

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mediapool-bot/internal/metrics"

	"github.com/mymmrac/telego"
	"golang.org/x/sync/singleflight"
)

// MemberLookup is the part of the bot API the checker needs.
type MemberLookup interface {
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// Checker answers role questions about a user in a chat, with caching.
type Checker struct {
	bot     MemberLookup
	cache   MembershipCache
	metrics *metrics.EngineMetrics
	group   singleflight.Group
}

// NewChecker creates a Checker. bot and cache must be non-nil.
func NewChecker(bot MemberLookup, cache MembershipCache, m *metrics.EngineMetrics) (*Checker, error) {
	if bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if cache == nil {
		return nil, fmt.Errorf("membership cache cannot be nil")
	}
	return &Checker{bot: bot, cache: cache, metrics: m}, nil
}

// Status returns the member status of userID in chatID. Concurrent lookups of
// the same pair share one API call.
func (c *Checker) Status(ctx context.Context, chatID, userID int64) (string, error) {
	status, ok, err := c.cache.Get(ctx, chatID, userID)
	if err != nil {
		log.Printf("[AuthCheck User:%d Chat:%d] Cache read failed: %v", userID, chatID, err)
	}
	if ok {
		c.metrics.RecordMembershipLookup("hit")
		return status, nil
	}

	v, err, _ := c.group.Do(cacheKey(chatID, userID), func() (interface{}, error) {
		return c.lookup(ctx, chatID, userID)
	})
	if err != nil {
		c.metrics.RecordMembershipLookup("error")
		return "", err
	}
	c.metrics.RecordMembershipLookup("miss")
	return v.(string), nil
}

func (c *Checker) lookup(ctx context.Context, chatID, userID int64) (string, error) {
	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: userID,
	})
	var status string
	switch {
	case err == nil:
		status = member.MemberStatus()
	case strings.Contains(strings.ToLower(err.Error()), "user not found"),
		strings.Contains(strings.ToLower(err.Error()), "participant_id_invalid"):
		// a user that is not in the chat simply has no role there
		status = telego.MemberStatusLeft
	default:
		log.Printf("[AuthCheck User:%d Chat:%d] Error checking chat member: %v", userID, chatID, err)
		return "", fmt.Errorf("failed to get chat member info: %w", err)
	}

	if err := c.cache.Set(ctx, chatID, userID, status); err != nil {
		log.Printf("[AuthCheck User:%d Chat:%d] Cache write failed: %v", userID, chatID, err)
	}
	return status, nil
}

// IsAdmin reports whether the user is an administrator or the creator of the chat.
// A private chat is owned by its user.
func (c *Checker) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if chatID == userID {
		return true, nil
	}
	status, err := c.Status(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return status == telego.MemberStatusCreator || status == telego.MemberStatusAdministrator, nil
}

// IsMember reports whether the user currently belongs to the chat.
func (c *Checker) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	if chatID == userID {
		return true, nil
	}
	status, err := c.Status(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	switch status {
	case telego.MemberStatusLeft, telego.MemberStatusBanned:
		return false, nil
	default:
		return true, nil
	}
}
