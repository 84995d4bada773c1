package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"mediapool-bot/internal/locales"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// sendText sends text to a chat. Send failures are logged, not returned.
func (h *MessageHandler) sendText(ctx context.Context, bot telegoapi.BotAPI, chatID int64, text string) error {
	if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
	}
	return nil
}

// reply localizes msgID for the sender of message and sends it to its chat.
func (h *MessageHandler) reply(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, msgID string, data map[string]interface{}) error {
	localizer := h.getLocalizer(message.From)
	return h.sendText(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, msgID, data, nil))
}

// sendError sends the generic error text and returns the original error so the
// update loop reports it.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, originalErr error) error {
	log.Printf("Error for user in chat %d: %v", message.Chat.ID, originalErr)
	localizer := h.getLocalizer(message.From)
	errMsg := locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil)
	if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), errMsg)); err != nil {
		log.Printf("Error sending generic error message to chat %d: %v", message.Chat.ID, err)
	}
	return originalErr
}

// getLocalizer picks the user's language when a message file exists for it.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	if user != nil && user.LanguageCode != "" && locales.IsSupported(user.LanguageCode) {
		return locales.NewLocalizer(user.LanguageCode)
	}
	return locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
}

// adminOnly rejects the command for senders who do not administer the chat.
func (h *MessageHandler) adminOnly(next CommandFunc) CommandFunc {
	return func(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
		if message.From == nil {
			return nil
		}
		isAdmin, err := h.admins.IsAdmin(ctx, message.Chat.ID, message.From.ID)
		if err != nil {
			return h.sendError(ctx, bot, message, fmt.Errorf("failed to check admin status: %w", err))
		}
		if !isAdmin {
			log.Printf("[Cmd User:%d Chat:%d] Non-admin attempted %q", message.From.ID, message.Chat.ID, commandName(message.Text))
			return h.reply(ctx, bot, message, "MsgErrorRequiresAdmin", nil)
		}
		return next(ctx, bot, message)
	}
}

// commandName extracts "random" from "/random@SomeBot cats".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	name, _, _ := strings.Cut(fields[0][1:], "@")
	return strings.ToLower(name)
}

// commandArgs returns the words after the command.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

// pageArg parses an optional one-based page number into a zero-based page.
func pageArg(args []string) int {
	if len(args) == 0 {
		return 0
	}
	page, err := strconv.Atoi(args[0])
	if err != nil || page < 1 {
		return 0
	}
	return page - 1
}

// senderID returns the id of the sending user, 0 for anonymous senders.
func senderID(message telego.Message) int64 {
	if message.From == nil {
		return 0
	}
	return message.From.ID
}
