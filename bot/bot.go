package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"mediapool-bot/internal/handlers"
	"mediapool-bot/internal/locales"
	"mediapool-bot/internal/mediagroups"
	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// processTimeout bounds the handling of a single update.
const processTimeout = 30 * time.Second

// UpdateHandler is what the update loop dispatches to.
type UpdateHandler interface {
	GetCommandHandler(command string) handlers.CommandFunc
	Commands() []handlers.Command
	HandleBatchForward(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) (bool, error)
	HandleChannelPost(ctx context.Context, post telego.Message) error
	HandleChannelAlbum(ctx context.Context, groupID string, posts []telego.Message) error
	HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) (bool, error)
}

// Bot runs the update loop: it routes commands, forwarded posts, channel posts
// and button presses to the handler.
type Bot struct {
	bot         telegoapi.BotAPI
	updatesChan <-chan telego.Update
	debug       bool
	handler     UpdateHandler
	albums      *mediagroups.Manager
	username    string
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot         telegoapi.BotAPI
	UpdatesChan <-chan telego.Update
	Debug       bool
	Handler     UpdateHandler
	// AlbumDelay is how long channel albums are buffered; zero uses the default.
	AlbumDelay time.Duration
}

// New creates a new Bot instance from its dependencies.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("update handler cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}

	return &Bot{
		bot:         deps.Bot,
		updatesChan: deps.UpdatesChan,
		debug:       deps.Debug,
		handler:     deps.Handler,
		albums:      mediagroups.NewManager(deps.Handler.HandleChannelAlbum, deps.AlbumDelay, mediagroups.DefaultMaxAlbumSize),
	}, nil
}

// handleCommandUpdate processes a message identified as a command.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) {
	command, target := parseCommand(message.Text)
	if target != "" && b.username != "" && !strings.EqualFold(target, b.username) {
		return // addressed to another bot in the group
	}
	logPrefix := fmt.Sprintf("[Cmd:%s User:%d Chat:%d]", command, message.From.ID, message.Chat.ID)

	handlerFunc := b.handler.GetCommandHandler(command)
	if handlerFunc == nil {
		log.Printf("%s No handler found", logPrefix)
		localizer := userLocalizer(message.From)
		unknownCmdMsg := locales.GetMessage(localizer, "MsgErrorUnknownCommand", nil, nil)
		if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), unknownCmdMsg)); err != nil {
			log.Printf("%s Failed to send unknown command message: %v", logPrefix, err)
		}
		return
	}

	if b.debug {
		log.Printf("%s Executing handler", logPrefix)
	}
	if err := handlerFunc(ctx, b.bot, message); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
	}
}

// handleForwardUpdate offers a forwarded message to the batch workflow.
func (b *Bot) handleForwardUpdate(ctx context.Context, message telego.Message) {
	logPrefix := fmt.Sprintf("[Forward User:%d Chat:%d Msg:%d]", message.From.ID, message.Chat.ID, message.MessageID)
	consumed, err := b.handler.HandleBatchForward(ctx, b.bot, message)
	if err != nil {
		log.Printf("%s Batch handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s batch handler error: %w", logPrefix, err))
		return
	}
	if !consumed && b.debug {
		log.Printf("%s Not part of a batch, ignoring", logPrefix)
	}
}

// handleChannelPost stores a post of a bound channel, buffering albums first.
func (b *Bot) handleChannelPost(ctx context.Context, post telego.Message) {
	if b.albums.Add(post) {
		return
	}
	if err := b.handler.HandleChannelPost(ctx, post); err != nil {
		logPrefix := fmt.Sprintf("[ChannelPost Chat:%d Msg:%d]", post.Chat.ID, post.MessageID)
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
	}
}

// handleCallbackQuery processes an incoming callback query.
func (b *Bot) handleCallbackQuery(ctx context.Context, query telego.CallbackQuery) {
	logPrefix := fmt.Sprintf("[Callback User:%d QueryID:%s]", query.From.ID, query.ID)
	if b.debug {
		log.Printf("%s Received callback query with data: %q", logPrefix, query.Data)
	}

	processed, err := b.handler.HandleCallbackQuery(ctx, b.bot, query)
	if err != nil {
		log.Printf("%s Callback handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s callback handler error: %w", logPrefix, err))
		return
	}
	if processed {
		return
	}

	log.Printf("%s Callback query not handled", logPrefix)
	localizer := userLocalizer(&query.From)
	defaultAnswer := locales.GetMessage(localizer, "MsgCallbackNotHandled", nil, nil)
	params := &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID, Text: defaultAnswer, ShowAlert: true}
	if err := b.bot.AnswerCallbackQuery(ctx, params); err != nil {
		log.Printf("%s Error answering callback query %s: %v", logPrefix, query.ID, err)
	}
}

// processUpdate routes incoming updates to the appropriate handlers.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message
		if message.From == nil {
			if b.debug {
				log.Printf("Ignoring message %d from chat %d without sender", message.MessageID, message.Chat.ID)
			}
			return
		}
		switch {
		case strings.HasPrefix(message.Text, "/"):
			b.handleCommandUpdate(processingCtx, message)
		case message.ForwardOrigin != nil:
			b.handleForwardUpdate(processingCtx, message)
		default:
			if b.debug {
				log.Printf("Ignoring unhandled message type (ID: %d)", message.MessageID)
			}
		}

	case update.ChannelPost != nil:
		b.handleChannelPost(processingCtx, *update.ChannelPost)

	case update.CallbackQuery != nil:
		b.handleCallbackQuery(processingCtx, *update.CallbackQuery)

	default:
		if b.debug {
			log.Printf("Ignoring unhandled update %d", update.UpdateID)
		}
	}
}

// Start registers the command menu and processes updates until ctx is done or
// the updates channel closes. Pending albums are flushed before it returns.
func (b *Bot) Start(ctx context.Context) {
	if me, err := b.bot.GetMe(ctx); err != nil {
		log.Printf("Failed to get bot identity: %v", err)
	} else {
		b.username = me.Username
	}
	if err := b.setupCommands(ctx); err != nil {
		log.Printf("Failed to set up commands: %v", err)
		sentry.CaptureException(err)
	}
	log.Println("Listening for updates...")

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		b.albums.Shutdown()
		log.Println("All update processing finished.")
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("Context done, stopping update processing...")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Println("Updates channel closed.")
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// setupCommands publishes the commands every member may use, once per
// supported language.
func (b *Bot) setupCommands(ctx context.Context) error {
	defaultLang := locales.GetDefaultLanguageTag().String()
	for _, lang := range locales.Languages() {
		localizer := locales.NewLocalizer(lang)
		var cmds []telego.BotCommand
		for _, cmd := range b.handler.Commands() {
			if cmd.AdminOnly {
				continue
			}
			cmds = append(cmds, telego.BotCommand{
				Command:     cmd.Command,
				Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
			})
		}

		params := &telego.SetMyCommandsParams{Commands: cmds}
		if lang != defaultLang {
			params.LanguageCode = lang
		}
		if err := b.bot.SetMyCommands(ctx, params); err != nil {
			return fmt.Errorf("failed to set bot commands for %q: %w", lang, err)
		}
	}
	log.Println("Bot commands successfully set.")
	return nil
}

// parseCommand splits "/random@SomeBot cats" into "random" and "SomeBot".
func parseCommand(text string) (command, target string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	command, target, _ = strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	return strings.ToLower(command), target
}

func userLocalizer(user *telego.User) *i18n.Localizer {
	if user != nil && locales.IsSupported(user.LanguageCode) {
		return locales.NewLocalizer(user.LanguageCode)
	}
	return locales.NewLocalizer()
}
