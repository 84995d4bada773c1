package handlers

import (
	"context"
	"errors"
	"strings"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"
	"mediapool-bot/internal/history"
	"mediapool-bot/internal/locales"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

const favoritesPageSize = 10

// HandleHistory lists what was recently delivered to the sender.
func (h *MessageHandler) HandleHistory(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.From == nil {
		return nil
	}
	return h.showHistory(ctx, bot, message, models.HistoryUser, message.From.ID)
}

// HandleGroupHistory lists what was recently delivered in this chat.
func (h *MessageHandler) HandleGroupHistory(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	return h.showHistory(ctx, bot, message, models.HistoryGroup, message.Chat.ID)
}

func (h *MessageHandler) showHistory(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, kind models.HistoryKind, ownerID int64) error {
	page, err := h.history.List(ctx, kind, ownerID, pageArg(commandArgs(message.Text)), history.DefaultPageSize)
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	if len(page.Entries) == 0 {
		return h.reply(ctx, bot, message, "MsgHistoryEmpty", nil)
	}

	localizer := h.getLocalizer(message.From)
	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgHistoryHeader", map[string]interface{}{
		"Page":  page.Page + 1,
		"Pages": page.Pages,
	}, nil))
	for _, entry := range page.Entries {
		category := "?"
		media, err := h.store.GetMedia(ctx, entry.MediaID)
		switch {
		case err == nil:
			category = media.Category
		case !database.IsNotFound(err):
			return h.sendError(ctx, bot, message, err)
		}
		text.WriteString("\n" + locales.GetMessage(localizer, "MsgHistoryLine", map[string]interface{}{
			"Time":     entry.CreatedAt.UTC().Format("2006-01-02 15:04"),
			"Category": category,
			"EntryID":  entry.ID,
		}, nil))
	}
	return h.sendText(ctx, bot, message.Chat.ID, text.String())
}

// HandleForget removes one entry of the sender's history.
func (h *MessageHandler) HandleForget(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	if len(args) != 1 || message.From == nil {
		return h.reply(ctx, bot, message, "MsgForgetUsage", nil)
	}
	err := h.history.Remove(ctx, models.HistoryUser, args[0], message.From.ID)
	if errors.Is(err, history.ErrEntryNotFound) {
		return h.reply(ctx, bot, message, "MsgForgetNotFound", nil)
	}
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	return h.reply(ctx, bot, message, "MsgForgetDone", nil)
}

// HandleFavorites lists the sender's favorites.
func (h *MessageHandler) HandleFavorites(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.From == nil {
		return nil
	}
	page := pageArg(commandArgs(message.Text))
	records, total, err := h.store.ListFavorites(ctx, message.From.ID, page*favoritesPageSize, favoritesPageSize)
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	if len(records) == 0 {
		return h.reply(ctx, bot, message, "MsgFavoritesEmpty", nil)
	}

	localizer := h.getLocalizer(message.From)
	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgFavoritesHeader", map[string]interface{}{
		"Page":  page + 1,
		"Pages": (total + favoritesPageSize - 1) / favoritesPageSize,
	}, nil))
	for _, media := range records {
		text.WriteString("\n" + locales.GetMessage(localizer, "MsgFavoriteLine", map[string]interface{}{
			"Category": media.Category,
			"Type":     string(media.Type),
			"MediaID":  media.ID,
		}, nil))
	}
	return h.sendText(ctx, bot, message.Chat.ID, text.String())
}

// HandleUnfav removes a record from the sender's favorites.
func (h *MessageHandler) HandleUnfav(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	if len(args) != 1 || message.From == nil {
		return h.reply(ctx, bot, message, "MsgUnfavUsage", nil)
	}
	removed, err := h.store.RemoveFavorite(ctx, message.From.ID, args[0])
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	if !removed {
		return h.reply(ctx, bot, message, "MsgUnfavNotFound", nil)
	}
	return h.reply(ctx, bot, message, "MsgUnfavDone", nil)
}
