package handlers

import (
	"context"
	"fmt"

	"mediapool-bot/internal/batch"
	"mediapool-bot/internal/database"
	"mediapool-bot/internal/history"
	"mediapool-bot/internal/preferences"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// CommandFunc handles one command message.
type CommandFunc func(context.Context, telegoapi.BotAPI, telego.Message) error

// Command maps a command string to its description key and handler.
type Command struct {
	Command     string // without the leading slash
	Description string // locale message id
	AdminOnly   bool
	Handler     CommandFunc
}

// MessageHandler routes commands, callbacks and channel posts onto the engine.
// It holds no engine state of its own.
type MessageHandler struct {
	store   database.Store
	server  Server
	prefs   *preferences.Store
	history *history.Tracker
	batch   *batch.Machine
	admins  AdminChecker
	debug   bool

	commands []Command
}

// HandlerDeps holds the dependencies of a MessageHandler.
type HandlerDeps struct {
	Store   database.Store
	Server  Server
	Prefs   *preferences.Store
	History *history.Tracker
	Batch   *batch.Machine
	Admins  AdminChecker
	Debug   bool
}

// NewMessageHandler creates a MessageHandler and registers its commands.
func NewMessageHandler(deps HandlerDeps) (*MessageHandler, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("store cannot be nil")
	case deps.Server == nil:
		return nil, fmt.Errorf("server cannot be nil")
	case deps.Prefs == nil:
		return nil, fmt.Errorf("preference store cannot be nil")
	case deps.History == nil:
		return nil, fmt.Errorf("history tracker cannot be nil")
	case deps.Batch == nil:
		return nil, fmt.Errorf("batch machine cannot be nil")
	case deps.Admins == nil:
		return nil, fmt.Errorf("admin checker cannot be nil")
	}

	h := &MessageHandler{
		store:   deps.Store,
		server:  deps.Server,
		prefs:   deps.Prefs,
		history: deps.History,
		batch:   deps.Batch,
		admins:  deps.Admins,
		debug:   deps.Debug,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDesc", Handler: h.HandleStart},
		{Command: "help", Description: "CmdHelpDesc", Handler: h.HandleHelp},
		{Command: "random", Description: "CmdRandomDesc", Handler: h.HandleRandom},
		{Command: "categories", Description: "CmdCategoriesDesc", Handler: h.HandleCategories},
		{Command: "filter", Description: "CmdFilterDesc", Handler: h.HandleFilter},
		{Command: "history", Description: "CmdHistoryDesc", Handler: h.HandleHistory},
		{Command: "grouphistory", Description: "CmdGroupHistoryDesc", Handler: h.HandleGroupHistory},
		{Command: "forget", Description: "CmdForgetDesc", Handler: h.HandleForget},
		{Command: "favorites", Description: "CmdFavoritesDesc", Handler: h.HandleFavorites},
		{Command: "unfav", Description: "CmdUnfavDesc", Handler: h.HandleUnfav},
		{Command: "settings", Description: "CmdSettingsDesc", AdminOnly: true, Handler: h.HandleSettings},
		{Command: "bind", Description: "CmdBindDesc", AdminOnly: true, Handler: h.HandleBind},
		{Command: "unbind", Description: "CmdUnbindDesc", AdminOnly: true, Handler: h.HandleUnbind},
		{Command: "add", Description: "CmdAddDesc", AdminOnly: true, Handler: h.HandleAdd},
		{Command: "batch", Description: "CmdBatchDesc", AdminOnly: true, Handler: h.HandleBatch},
		{Command: "done", Description: "CmdDoneDesc", AdminOnly: true, Handler: h.HandleDone},
		{Command: "dest", Description: "CmdDestDesc", AdminOnly: true, Handler: h.HandleDest},
		{Command: "confirm", Description: "CmdConfirmDesc", AdminOnly: true, Handler: h.HandleConfirm},
		{Command: "cleanup", Description: "CmdCleanupDesc", AdminOnly: true, Handler: h.HandleCleanup},
		{Command: "cancel", Description: "CmdCancelDesc", AdminOnly: true, Handler: h.HandleCancel},
	}
	return h, nil
}

// GetCommandHandler returns the handler of command, or nil when unknown.
// Admin-only commands are wrapped with the admin check.
func (h *MessageHandler) GetCommandHandler(command string) CommandFunc {
	for _, cmd := range h.commands {
		if cmd.Command != command {
			continue
		}
		if cmd.AdminOnly {
			return h.adminOnly(cmd.Handler)
		}
		return cmd.Handler
	}
	return nil
}

// Commands returns the registered commands.
func (h *MessageHandler) Commands() []Command {
	return h.commands
}
