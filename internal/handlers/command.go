package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"mediapool-bot/internal/delivery"
	"mediapool-bot/internal/locales"
	"mediapool-bot/internal/preferences"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// HandleStart sends the welcome text.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	return h.reply(ctx, bot, message, "MsgStart", nil)
}

// HandleHelp lists the commands available to the sender.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)
	isAdmin, err := h.admins.IsAdmin(ctx, message.Chat.ID, senderID(message))
	if err != nil {
		log.Printf("[Cmd:help User:%d] Admin status check failed: %v", senderID(message), err)
	}

	var helpText strings.Builder
	helpText.WriteString(locales.GetMessage(localizer, "MsgHelpHeader", nil, nil) + "\n")
	for _, cmd := range h.commands {
		if cmd.AdminOnly && !isAdmin {
			continue
		}
		helpText.WriteString(fmt.Sprintf("/%s - %s\n", cmd.Command, locales.GetMessage(localizer, cmd.Description, nil, nil)))
	}
	footerKey := "MsgHelpFooterUser"
	if isAdmin {
		footerKey = "MsgHelpFooterAdmin"
	}
	helpText.WriteString(locales.GetMessage(localizer, footerKey, nil, nil))
	return h.sendText(ctx, bot, message.Chat.ID, helpText.String())
}

// HandleRandom serves a random record of the given category of the chat.
func (h *MessageHandler) HandleRandom(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	args := commandArgs(message.Text)
	if len(args) == 0 || message.From == nil {
		return h.reply(ctx, bot, message, "MsgUsageRandom", nil)
	}
	category := strings.ToLower(args[0])
	out := h.server.Serve(ctx, delivery.Request{
		UserID:   message.From.ID,
		ScopeID:  message.Chat.ID,
		Category: category,
		ChatID:   message.Chat.ID,
	})
	return h.reportOutcome(ctx, bot, message.Chat.ID, message.From, category, out)
}

// reportOutcome tells the user what a serve did, unless the delivered item speaks
// for itself.
func (h *MessageHandler) reportOutcome(ctx context.Context, bot telegoapi.BotAPI, chatID int64, user *telego.User, category string, out delivery.Outcome) error {
	localizer := h.getLocalizer(user)
	data := map[string]interface{}{"Category": category}
	if h.debug {
		log.Printf("[Serve Chat:%d Category:%s] %s after %d attempt(s), %d purged", chatID, category, out.Status, out.Attempts, out.Purged)
	}

	switch out.Status {
	case delivery.StatusDelivered:
		if out.PoolReset {
			return h.sendText(ctx, bot, chatID, locales.GetMessage(localizer, "MsgPoolReset", data, nil))
		}
		return nil
	case delivery.StatusNoContent:
		return h.sendText(ctx, bot, chatID, locales.GetMessage(localizer, "MsgNoContent", data, nil))
	case delivery.StatusExhausted:
		return h.sendText(ctx, bot, chatID, locales.GetMessage(localizer, "MsgExhausted", data, nil))
	case delivery.StatusNotMember:
		return h.sendText(ctx, bot, chatID, locales.GetMessage(localizer, "MsgNotMember", nil, nil))
	case delivery.StatusRefused:
		// The chat does not accept the delivery, so it will not accept a notice either.
		log.Printf("[Serve Chat:%d Category:%s] Delivery refused: %v", chatID, category, out.Err)
		return nil
	default:
		_ = h.sendText(ctx, bot, chatID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
		return out.Err
	}
}

// HandleCategories lists the categories of the chat with their sizes.
func (h *MessageHandler) HandleCategories(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	counts, err := h.store.CountByCategory(ctx, message.Chat.ID)
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	if len(counts) == 0 {
		return h.reply(ctx, bot, message, "MsgCategoriesEmpty", nil)
	}

	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	localizer := h.getLocalizer(message.From)
	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgCategoriesHeader", nil, nil))
	for _, category := range categories {
		text.WriteString("\n" + locales.GetMessage(localizer, "MsgCategoryLine", map[string]interface{}{
			"Category": category,
			"Count":    counts[category],
		}, nil))
	}
	return h.sendText(ctx, bot, message.Chat.ID, text.String())
}

// HandleFilter shows, changes or resets the sender's filter in this chat.
func (h *MessageHandler) HandleFilter(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.From == nil {
		return nil
	}
	userID, scopeID := message.From.ID, message.Chat.ID
	args := commandArgs(message.Text)

	switch {
	case len(args) == 0:
	case len(args) == 1 && strings.EqualFold(args[0], "reset"):
		if err := h.prefs.ResetFilters(ctx, userID, scopeID); err != nil {
			return h.sendError(ctx, bot, message, err)
		}
		return h.reply(ctx, bot, message, "MsgFilterReset", nil)
	case len(args) == 2:
		field := strings.ToLower(args[0])
		err := h.prefs.SetFilterField(ctx, userID, scopeID, field, args[1])
		if errors.Is(err, preferences.ErrUnknownFilterField) {
			return h.reply(ctx, bot, message, "MsgFilterUnknownField", map[string]interface{}{"Field": field})
		}
		if err != nil {
			return h.sendError(ctx, bot, message, err)
		}
	default:
		return h.reply(ctx, bot, message, "MsgFilterUsage", nil)
	}

	filter, err := h.prefs.GetFilter(ctx, userID, scopeID)
	if err != nil {
		return h.sendError(ctx, bot, message, err)
	}
	return h.reply(ctx, bot, message, "MsgFilterShow", describeFilter(filter))
}

func describeFilter(f preferences.Filter) map[string]interface{} {
	date := f.DateMode
	if f.DateMode == preferences.ModeCustom {
		date = f.DateFrom + ".." + f.DateTo
	}
	duration := f.DurationMode
	if ceiling := f.MaxDuration(); ceiling != nil {
		duration = fmt.Sprintf("≤ %ds", *ceiling)
	}
	return map[string]interface{}{
		"Type":     f.MediaType,
		"Date":     date,
		"Duration": duration,
	}
}

// HandleSettings shows or changes a behavior setting of the chat.
func (h *MessageHandler) HandleSettings(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	scopeID := message.Chat.ID
	args := commandArgs(message.Text)

	switch len(args) {
	case 0:
		values, err := h.prefs.GetBehaviorSettings(ctx, scopeID, preferences.BehaviorKeys)
		if err != nil {
			return h.sendError(ctx, bot, message, err)
		}
		return h.reply(ctx, bot, message, "MsgSettingsShow", map[string]interface{}{
			"DeliveryMode":   values[preferences.KeyDeliveryMode],
			"AntiRepeat":     values[preferences.KeyAntiRepeat],
			"StrictSkip":     values[preferences.KeyStrictSkip],
			"ProtectContent": values[preferences.KeyProtectContent],
		})
	case 2:
		key, value := strings.ToLower(args[0]), strings.ToLower(args[1])
		err := h.prefs.SetBehaviorSetting(ctx, scopeID, key, value)
		if errors.Is(err, preferences.ErrUnknownSetting) {
			return h.reply(ctx, bot, message, "MsgSettingInvalid", map[string]interface{}{
				"Values": strings.Join(preferences.BehaviorKeys, ", "),
			})
		}
		if errors.Is(err, preferences.ErrInvalidSetting) {
			return h.reply(ctx, bot, message, "MsgSettingInvalid", map[string]interface{}{
				"Values": strings.Join(preferences.SettingValues(key), ", "),
			})
		}
		if err != nil {
			return h.sendError(ctx, bot, message, err)
		}
		log.Printf("[Cmd:settings User:%d Chat:%d] %s = %s", senderID(message), scopeID, key, value)
		return h.reply(ctx, bot, message, "MsgSettingSaved", map[string]interface{}{"Key": key, "Value": value})
	default:
		return h.reply(ctx, bot, message, "MsgSettingsUsage", nil)
	}
}
