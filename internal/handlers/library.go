package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// HandleBind routes a channel's posts into a category of this chat, either as
// "/bind <channel_id> <category>" or "/bind <category>" in reply to a post
// forwarded from the channel.
func (h *MessageHandler) HandleBind(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)

	var (
		sourceChatID int64
		category     string
	)
	switch len(args) {
	case 1:
		origin, _, ok := channelOrigin(message.ReplyToMessage)
		if !ok {
			return h.reply(ctx, bot, message, "MsgBindUsage", nil)
		}
		sourceChatID, category = origin, args[0]
	case 2:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return h.reply(ctx, bot, message, "MsgBindUsage", nil)
		}
		sourceChatID, category = id, args[1]
	default:
		return h.reply(ctx, bot, message, "MsgBindUsage", nil)
	}
	category = strings.ToLower(category)
	if !validCategory(category) {
		return h.reply(ctx, bot, message, "MsgCategoryTooLong", map[string]interface{}{"Max": models.MaxCategoryLength})
	}

	err := h.store.UpsertBinding(ctx, &models.CategoryBinding{
		ScopeID:      message.Chat.ID,
		SourceChatID: sourceChatID,
		Category:     category,
		CreatedBy:    senderID(message),
	})
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	log.Printf("[Cmd:bind User:%d Chat:%d] Bound source %d to %q", senderID(message), message.Chat.ID, sourceChatID, category)
	return h.reply(ctx, bot, message, "MsgBindDone", map[string]interface{}{"Source": sourceChatID, "Category": category})
}

// HandleUnbind removes the binding of a channel in this chat. Records already
// taken from the channel stay.
func (h *MessageHandler) HandleUnbind(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	if len(args) != 1 {
		return h.reply(ctx, bot, message, "MsgUnbindUsage", nil)
	}
	sourceChatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return h.reply(ctx, bot, message, "MsgUnbindUsage", nil)
	}
	if err := h.store.DeleteBinding(ctx, message.Chat.ID, sourceChatID); err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	return h.reply(ctx, bot, message, "MsgUnbindDone", map[string]interface{}{"Source": sourceChatID})
}

// HandleAdd stores the replied media message of this chat in a category.
func (h *MessageHandler) HandleAdd(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	if len(args) != 1 || message.ReplyToMessage == nil {
		return h.reply(ctx, bot, message, "MsgAddUsage", nil)
	}
	category := strings.ToLower(args[0])
	if !validCategory(category) {
		return h.reply(ctx, bot, message, "MsgCategoryTooLong", map[string]interface{}{"Max": models.MaxCategoryLength})
	}
	source := *message.ReplyToMessage

	media, ok := mediaFromMessage(source)
	if !ok {
		return h.reply(ctx, bot, message, "MsgAddUnsupported", nil)
	}
	media.ScopeID = message.Chat.ID
	media.Category = category
	media.AddedBy = senderID(message)

	created, err := h.ingest(ctx, &media)
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	if !created {
		return h.reply(ctx, bot, message, "MsgAddExists", nil)
	}
	return h.reply(ctx, bot, message, "MsgAddDone", map[string]interface{}{"Category": category})
}

// HandleChannelPost stores a post of a bound channel in every scope bound to it.
func (h *MessageHandler) HandleChannelPost(ctx context.Context, post telego.Message) error {
	bindings, err := h.store.FindBindings(ctx, post.Chat.ID)
	if err != nil {
		return err
	}
	if len(bindings) == 0 {
		if h.debug {
			log.Printf("[ChannelPost Chat:%d Msg:%d] Chat is not bound, ignoring", post.Chat.ID, post.MessageID)
		}
		return nil
	}

	template, ok := mediaFromMessage(post)
	if !ok {
		return nil
	}
	var errs []error
	for _, binding := range bindings {
		media := template
		media.ScopeID = binding.ScopeID
		media.Category = binding.Category
		created, err := h.ingest(ctx, &media)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if created && h.debug {
			log.Printf("[ChannelPost Chat:%d Msg:%d] Stored as %s in scope %d category %q", post.Chat.ID, post.MessageID, media.ID, binding.ScopeID, binding.Category)
		}
	}
	return errors.Join(errs...)
}

// HandleChannelAlbum stores every post of a completed album.
func (h *MessageHandler) HandleChannelAlbum(ctx context.Context, groupID string, posts []telego.Message) error {
	var errs []error
	for _, post := range posts {
		if err := h.HandleChannelPost(ctx, post); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to store album %s: %w", groupID, err)
	}
	log.Printf("[ChannelAlbum Group:%s] Processed %d post(s)", groupID, len(posts))
	return nil
}

// ingest creates media unless its source message is already stored in the scope.
func (h *MessageHandler) ingest(ctx context.Context, media *models.MediaRecord) (bool, error) {
	_, err := h.store.FindBySource(ctx, media.ScopeID, media.SourceChatID, media.SourceMessageID)
	if err == nil {
		return false, nil
	}
	if !database.IsNotFound(err) {
		return false, err
	}
	if err := h.store.CreateMedia(ctx, media); err != nil {
		return false, err
	}
	return true, nil
}

// mediaFromMessage describes the payload of msg as a record referencing msg.
func mediaFromMessage(msg telego.Message) (models.MediaRecord, bool) {
	media := models.MediaRecord{
		Caption:         msg.Caption,
		SourceChatID:    msg.Chat.ID,
		SourceMessageID: msg.MessageID,
		AddedAt:         time.Unix(msg.Date, 0).UTC(),
	}
	if msg.Date == 0 {
		media.AddedAt = time.Time{}
	}

	switch {
	case len(msg.Photo) > 0:
		media.Type = models.MediaPhoto
		media.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		duration := msg.Video.Duration
		media.Type = models.MediaVideo
		media.FileID = msg.Video.FileID
		media.Duration = &duration
	case msg.Animation != nil:
		// animations also carry a Document
		duration := msg.Animation.Duration
		media.Type = models.MediaAnimation
		media.FileID = msg.Animation.FileID
		media.Duration = &duration
	case msg.Document != nil:
		media.Type = models.MediaDocument
		media.FileID = msg.Document.FileID
	default:
		return models.MediaRecord{}, false
	}
	return media, true
}

// channelOrigin returns the channel and message a message was forwarded from.
func channelOrigin(msg *telego.Message) (int64, int, bool) {
	if msg == nil || msg.ForwardOrigin == nil {
		return 0, 0, false
	}
	origin, ok := msg.ForwardOrigin.(*telego.MessageOriginChannel)
	if !ok {
		return 0, 0, false
	}
	return origin.Chat.ID, origin.MessageID, true
}

// validCategory bounds category names by the width of their storage column.
func validCategory(category string) bool {
	return utf8.RuneCountInString(category) <= models.MaxCategoryLength
}
