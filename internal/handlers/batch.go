package handlers

import (
	"context"
	"errors"
	"log"
	"strings"

	"mediapool-bot/internal/batch"
	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"
	"mediapool-bot/internal/locales"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// HandleBatch starts a bulk delete or move in this chat.
func (h *MessageHandler) HandleBatch(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	if len(args) != 1 {
		return h.reply(ctx, bot, message, "MsgBatchUsage", nil)
	}
	mode := models.BatchMode(strings.ToLower(args[0]))
	_, err := h.batch.Start(ctx, message.Chat.ID, senderID(message), mode)
	if errors.Is(err, batch.ErrInvalidMode) {
		return h.reply(ctx, bot, message, "MsgBatchUsage", nil)
	}
	if err != nil {
		return h.batchError(ctx, bot, message, err)
	}
	return h.reply(ctx, bot, message, "MsgBatchStarted", map[string]interface{}{"Mode": string(mode)})
}

// HandleBatchForward collects a post forwarded from a source channel into the
// sender's collecting session. It reports false when the message is not meant
// for a batch.
func (h *MessageHandler) HandleBatchForward(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) (bool, error) {
	sourceChatID, sourceMessageID, ok := channelOrigin(&message)
	if !ok || message.From == nil {
		return false, nil
	}
	scopeID, userID := message.Chat.ID, message.From.ID

	session, err := h.batch.Current(ctx, scopeID, userID)
	if errors.Is(err, batch.ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return true, h.batchError(ctx, bot, message, err)
	}
	if session.Phase != models.PhaseCollecting {
		return false, nil
	}

	media, err := h.store.FindBySource(ctx, scopeID, sourceChatID, sourceMessageID)
	if database.IsNotFound(err) {
		return true, h.reply(ctx, bot, message, "MsgBatchUnknownItem", nil)
	}
	if err != nil {
		return true, h.sendError(ctx, bot, message, err)
	}

	res, err := h.batch.Collect(ctx, scopeID, userID, media.ID, message.MessageID)
	if err != nil {
		return true, h.batchError(ctx, bot, message, err)
	}
	if !res.Ack {
		return true, nil
	}
	localizer := h.getLocalizer(message.From)
	text := locales.GetMessage(localizer, "MsgBatchCollected", map[string]interface{}{"Count": res.Count}, &res.Count)
	return true, h.sendText(ctx, bot, message.Chat.ID, text)
}

// HandleDone ends collection and asks for confirmation.
func (h *MessageHandler) HandleDone(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	res, err := h.batch.End(ctx, message.Chat.ID, senderID(message))
	if err != nil {
		return h.batchError(ctx, bot, message, err)
	}
	if res.Aborted {
		return h.reply(ctx, bot, message, "MsgBatchAborted", nil)
	}
	data := map[string]interface{}{"Count": len(res.Session.MediaIDs)}
	if res.Session.Mode == models.BatchMove {
		return h.reply(ctx, bot, message, "MsgBatchConfirmMove", data)
	}
	return h.reply(ctx, bot, message, "MsgBatchConfirmDelete", data)
}

// HandleDest sets the destination category of a move.
func (h *MessageHandler) HandleDest(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	if len(args) != 1 {
		return h.reply(ctx, bot, message, "MsgBatchDestUsage", nil)
	}
	category := strings.ToLower(args[0])
	if !validCategory(category) {
		return h.reply(ctx, bot, message, "MsgCategoryTooLong", map[string]interface{}{"Max": models.MaxCategoryLength})
	}
	if err := h.batch.SetDestination(ctx, message.Chat.ID, senderID(message), category); err != nil {
		return h.batchError(ctx, bot, message, err)
	}
	return h.reply(ctx, bot, message, "MsgBatchDestSet", map[string]interface{}{"Category": category})
}

// HandleConfirm executes the batch.
func (h *MessageHandler) HandleConfirm(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	res, err := h.batch.Confirm(ctx, message.Chat.ID, senderID(message))
	if err != nil {
		return h.batchError(ctx, bot, message, err)
	}
	if err := h.reply(ctx, bot, message, "MsgBatchDone", map[string]interface{}{"Count": res.Affected}); err != nil {
		return err
	}
	if res.Cleanup {
		return h.reply(ctx, bot, message, "MsgBatchCleanupPrompt", nil)
	}
	return nil
}

// HandleCleanup finishes the batch, deleting the collected messages on
// "/cleanup delete".
func (h *MessageHandler) HandleCleanup(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	deleteMessages := len(args) == 1 && strings.EqualFold(args[0], "delete")
	deleted, err := h.batch.Cleanup(ctx, message.Chat.ID, senderID(message), message.Chat.ID, deleteMessages)
	if err != nil {
		return h.batchError(ctx, bot, message, err)
	}
	return h.reply(ctx, bot, message, "MsgBatchCleanupDone", map[string]interface{}{"Count": deleted})
}

// HandleCancel drops the batch without touching records.
func (h *MessageHandler) HandleCancel(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if err := h.batch.Cancel(ctx, message.Chat.ID, senderID(message)); err != nil {
		return h.batchError(ctx, bot, message, err)
	}
	return h.reply(ctx, bot, message, "MsgBatchCancelled", nil)
}

// batchError turns session errors into user-facing replies and reports the rest.
func (h *MessageHandler) batchError(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, err error) error {
	switch {
	case errors.Is(err, batch.ErrNoSession):
		return h.reply(ctx, bot, message, "MsgBatchNoSession", nil)
	case errors.Is(err, batch.ErrSessionExpired):
		return h.reply(ctx, bot, message, "MsgBatchExpired", nil)
	case errors.Is(err, batch.ErrDestinationRequired):
		return h.reply(ctx, bot, message, "MsgBatchDestRequired", nil)
	case errors.Is(err, batch.ErrSessionState):
		log.Printf("[Batch User:%d Chat:%d] Rejected: %v", senderID(message), message.Chat.ID, err)
		return h.reply(ctx, bot, message, "MsgBatchWrongState", nil)
	default:
		return h.sendError(ctx, bot, message, err)
	}
}
