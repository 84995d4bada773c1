package handlers

import (
	"context"
	"fmt"
	"log"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/delivery"
	"mediapool-bot/internal/locales"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// HandleCallbackQuery handles the buttons attached to delivered records.
// It returns false when the query carries data it does not know.
func (h *MessageHandler) HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) (bool, error) {
	action, value, ok := delivery.ParseCallback(query.Data)
	if !ok || query.Message == nil {
		return false, nil
	}
	chatID := query.Message.GetChat().ID
	localizer := h.getLocalizer(&query.From)

	switch action {
	case delivery.CallbackNext:
		media, err := h.store.GetMedia(ctx, value)
		if database.IsNotFound(err) || (err == nil && media.ScopeID != chatID) {
			h.answer(ctx, bot, query.ID, locales.GetMessage(localizer, "MsgCallbackExpired", nil, nil))
			return true, nil
		}
		if err != nil {
			h.answer(ctx, bot, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
			return true, fmt.Errorf("failed to load media %s for next: %w", value, err)
		}
		h.answer(ctx, bot, query.ID, "")
		out := h.server.Serve(ctx, delivery.Request{
			UserID:    query.From.ID,
			ScopeID:   chatID,
			Category:  media.Category,
			ChatID:    chatID,
			IsAdvance: true,
		})
		return true, h.reportOutcome(ctx, bot, chatID, &query.From, media.Category, out)

	case delivery.CallbackFavorite:
		added, err := h.store.AddFavorite(ctx, query.From.ID, value)
		if err != nil {
			h.answer(ctx, bot, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
			return true, fmt.Errorf("failed to add favorite %s for user %d: %w", value, query.From.ID, err)
		}
		msgID := "MsgFavAdded"
		if !added {
			msgID = "MsgFavExists"
		}
		h.answer(ctx, bot, query.ID, locales.GetMessage(localizer, msgID, nil, nil))
		return true, nil
	}
	return false, nil
}

func (h *MessageHandler) answer(ctx context.Context, bot telegoapi.BotAPI, queryID, text string) {
	params := &telego.AnswerCallbackQueryParams{CallbackQueryID: queryID, Text: text}
	if err := bot.AnswerCallbackQuery(ctx, params); err != nil {
		log.Printf("Error answering callback query %s: %v", queryID, err)
	}
}
