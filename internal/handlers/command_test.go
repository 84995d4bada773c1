package handlers

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"mediapool-bot/internal/batch"
	"mediapool-bot/internal/database/models"
	"mediapool-bot/internal/database/sqlstore"
	"mediapool-bot/internal/delivery"
	"mediapool-bot/internal/history"
	"mediapool-bot/internal/locales"
	"mediapool-bot/internal/preferences"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	locales.Init("en")
	os.Exit(m.Run())
}

// --- Mocks ---

// MockBot is a mock implementing the telegoapi.BotAPI interface
type MockBot struct {
	mock.Mock

	mu    sync.Mutex
	texts []string
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	m.mu.Lock()
	m.texts = append(m.texts, params.Text)
	m.mu.Unlock()
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) ForwardMessage(ctx context.Context, params *telego.ForwardMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error) {
	args := m.Called(ctx, params)
	if msgID, ok := args.Get(0).(*telego.MessageID); ok {
		return msgID, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

// sent returns every text sent through SendMessage so far.
func (m *MockBot) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// lastText returns the most recent text sent through SendMessage.
func (m *MockBot) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

type MockServer struct {
	mock.Mock
}

func (m *MockServer) Serve(ctx context.Context, req delivery.Request) delivery.Outcome {
	args := m.Called(ctx, req)
	return args.Get(0).(delivery.Outcome)
}

type MockAdminChecker struct {
	mock.Mock
}

func (m *MockAdminChecker) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

// --- Fixture ---

const (
	testChatID  = int64(-100123)
	testAdminID = int64(7)
	testUserID  = int64(8)
)

type testEnv struct {
	handler *MessageHandler
	store   *sqlstore.Store
	bot     *MockBot
	server  *MockServer
	admins  *MockAdminChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := sqlstore.NewTestStore(t)
	bot := new(MockBot)
	bot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil).Maybe()
	server := new(MockServer)
	admins := new(MockAdminChecker)
	admins.On("IsAdmin", mock.Anything, testChatID, testAdminID).Return(true, nil).Maybe()
	admins.On("IsAdmin", mock.Anything, testChatID, testUserID).Return(false, nil).Maybe()

	h, err := NewMessageHandler(HandlerDeps{
		Store:   store,
		Server:  server,
		Prefs:   preferences.NewStore(store),
		History: history.NewTracker(store),
		Batch:   batch.NewMachine(store, bot, nil),
		Admins:  admins,
	})
	require.NoError(t, err)
	return &testEnv{handler: h, store: store, bot: bot, server: server, admins: admins}
}

func (e *testEnv) run(t *testing.T, userID int64, text string) string {
	t.Helper()
	msg := newMessage(userID, text)
	handler := e.handler.GetCommandHandler(commandName(text))
	require.NotNil(t, handler, "command %q", text)
	require.NoError(t, handler(context.Background(), e.bot, msg))
	return e.bot.lastText()
}

func newMessage(userID int64, text string) telego.Message {
	return telego.Message{
		MessageID: 1,
		Date:      time.Now().Unix(),
		Chat:      telego.Chat{ID: testChatID, Type: telego.ChatTypeSupergroup},
		From:      &telego.User{ID: userID, FirstName: "Test", LanguageCode: "en"},
		Text:      text,
	}
}

func (e *testEnv) seed(t *testing.T, category string, sourceChat int64, sourceMsg int) models.MediaRecord {
	t.Helper()
	media := models.MediaRecord{ScopeID: testChatID, Category: category, Type: models.MediaPhoto, SourceChatID: sourceChat, SourceMessageID: sourceMsg}
	require.NoError(t, e.store.CreateMedia(context.Background(), &media))
	return media
}

// --- Tests ---

func TestNewMessageHandler_RequiresDependencies(t *testing.T) {
	_, err := NewMessageHandler(HandlerDeps{})
	assert.Error(t, err)
}

func TestCommandParsing(t *testing.T) {
	assert.Equal(t, "random", commandName("/random@MediaPoolBot cats"))
	assert.Equal(t, "help", commandName("/HELP"))
	assert.Equal(t, "", commandName("hello"))
	assert.Equal(t, []string{"cats", "x"}, commandArgs("/random  cats x"))
	assert.Nil(t, commandArgs("/random"))
	assert.Equal(t, 0, pageArg(nil))
	assert.Equal(t, 2, pageArg([]string{"3"}))
	assert.Equal(t, 0, pageArg([]string{"-1"}))
}

func TestGetCommandHandler_Unknown(t *testing.T) {
	env := newTestEnv(t)
	assert.Nil(t, env.handler.GetCommandHandler("nope"))
}

func TestHandleHelp_HidesAdminCommands(t *testing.T) {
	env := newTestEnv(t)

	userHelp := env.run(t, testUserID, "/help")
	assert.Contains(t, userHelp, "/random")
	assert.NotContains(t, userHelp, "/batch")

	adminHelp := env.run(t, testAdminID, "/help")
	assert.Contains(t, adminHelp, "/batch")
	assert.Contains(t, adminHelp, "/settings")
}

func TestHandleRandom(t *testing.T) {
	tests := []struct {
		name    string
		outcome delivery.Outcome
		want    string
	}{
		{name: "delivered", outcome: delivery.Outcome{Status: delivery.StatusDelivered}, want: ""},
		{name: "pool reset", outcome: delivery.Outcome{Status: delivery.StatusDelivered, PoolReset: true}, want: `You have seen everything in "cats"`},
		{name: "no content", outcome: delivery.Outcome{Status: delivery.StatusNoContent}, want: `Nothing in "cats" matches your filter.`},
		{name: "exhausted", outcome: delivery.Outcome{Status: delivery.StatusExhausted, Attempts: 3}, want: "Could not deliver anything"},
		{name: "not member", outcome: delivery.Outcome{Status: delivery.StatusNotMember}, want: "Only members"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.server.On("Serve", mock.Anything, delivery.Request{
				UserID: testUserID, ScopeID: testChatID, Category: "cats", ChatID: testChatID,
			}).Return(tt.outcome).Once()

			got := env.run(t, testUserID, "/random Cats")
			if tt.want == "" {
				assert.Empty(t, got)
			} else {
				assert.Contains(t, got, tt.want)
			}
			env.server.AssertExpectations(t)
		})
	}
}

func TestHandleRandom_Usage(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "Usage: /random <category>", env.run(t, testUserID, "/random"))
	env.server.AssertNotCalled(t, "Serve", mock.Anything, mock.Anything)
}

func TestAdminOnlyCommandRejected(t *testing.T) {
	env := newTestEnv(t)
	got := env.run(t, testUserID, "/settings anti_repeat off")
	assert.Equal(t, "This command is available to chat admins only.", got)

	behavior, err := preferences.NewStore(env.store).GetBehavior(context.Background(), testChatID)
	require.NoError(t, err)
	assert.True(t, behavior.AntiRepeat)
}

func TestHandleSettings(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, "Setting anti_repeat = off saved.", env.run(t, testAdminID, "/settings anti_repeat OFF"))
	assert.Equal(t, "Invalid setting. Allowed values: copy, forward", env.run(t, testAdminID, "/settings delivery_mode telepathy"))
	assert.Contains(t, env.run(t, testAdminID, "/settings colour blue"), "delivery_mode, anti_repeat")

	shown := env.run(t, testAdminID, "/settings")
	assert.Contains(t, shown, "anti_repeat: off")
	assert.Contains(t, shown, "delivery_mode: copy")
}

func TestHandleFilter(t *testing.T) {
	env := newTestEnv(t)

	shown := env.run(t, testUserID, "/filter media_type video")
	assert.Contains(t, shown, "type: video")

	shown = env.run(t, testUserID, "/filter duration_mode s60")
	assert.Contains(t, shown, "duration: ≤ 60s")

	shown = env.run(t, testUserID, "/filter date_mode custom")
	assert.Contains(t, shown, "date: all", "custom without bounds falls back")

	assert.Equal(t, `Unknown filter field "colour".`, env.run(t, testUserID, "/filter colour red"))
	assert.Equal(t, "Filter cleared.", env.run(t, testUserID, "/filter reset"))
	assert.Contains(t, env.run(t, testUserID, "/filter"), "type: all")
}

func TestHandleCategories(t *testing.T) {
	env := newTestEnv(t)
	assert.Contains(t, env.run(t, testUserID, "/categories"), "The library is empty")

	env.seed(t, "dogs", -1, 1)
	env.seed(t, "cats", -1, 2)
	env.seed(t, "cats", -1, 3)
	assert.Equal(t, "Categories:\n• cats: 2\n• dogs: 1", env.run(t, testUserID, "/categories"))
}

func TestHandleBindAndChannelPost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	const channel = int64(-100999)

	assert.Equal(t, `Posts of -100999 now go to "memes".`, env.run(t, testAdminID, "/bind -100999 Memes"))

	post := telego.Message{
		MessageID: 55,
		Date:      time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Chat:      telego.Chat{ID: channel, Type: telego.ChatTypeChannel},
		Video:     &telego.Video{FileID: "vid", Duration: 42},
		Caption:   "hello",
	}
	require.NoError(t, env.handler.HandleChannelPost(ctx, post))
	require.NoError(t, env.handler.HandleChannelPost(ctx, post), "second delivery of the same post")

	counts, err := env.store.CountByCategory(ctx, testChatID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts["memes"])

	media, err := env.store.FindBySource(ctx, testChatID, channel, 55)
	require.NoError(t, err)
	assert.Equal(t, models.MediaVideo, media.Type)
	require.NotNil(t, media.Duration)
	assert.Equal(t, 42, *media.Duration)
	assert.Equal(t, "hello", media.Caption)
	assert.Equal(t, 2026, media.AddedAt.Year())

	unbound := post
	unbound.Chat.ID = -100555
	require.NoError(t, env.handler.HandleChannelPost(ctx, unbound))

	assert.Equal(t, "Binding of -100999 removed.", env.run(t, testAdminID, "/unbind -100999"))
	bindings, err := env.store.FindBindings(ctx, channel)
	require.NoError(t, err)
	assert.Empty(t, bindings)
}

func TestHandleBind_FromForwardedPost(t *testing.T) {
	env := newTestEnv(t)
	msg := newMessage(testAdminID, "/bind cats")
	msg.ReplyToMessage = &telego.Message{
		MessageID:     3,
		Chat:          telego.Chat{ID: testChatID},
		ForwardOrigin: &telego.MessageOriginChannel{Type: "channel", Chat: telego.Chat{ID: -100777}, MessageID: 9},
	}
	require.NoError(t, env.handler.GetCommandHandler("bind")(context.Background(), env.bot, msg))

	bindings, err := env.store.FindBindings(context.Background(), -100777)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "cats", bindings[0].Category)
}

func TestHandleAdd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	msg := newMessage(testAdminID, "/add cats")
	msg.ReplyToMessage = &telego.Message{
		MessageID: 77,
		Chat:      telego.Chat{ID: testChatID},
		Photo:     []telego.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}
	add := env.handler.GetCommandHandler("add")
	require.NoError(t, add(ctx, env.bot, msg))
	assert.Equal(t, `Added to "cats".`, env.bot.lastText())
	require.NoError(t, add(ctx, env.bot, msg))
	assert.Equal(t, "This message is already in the library.", env.bot.lastText())

	media, err := env.store.FindBySource(ctx, testChatID, testChatID, 77)
	require.NoError(t, err)
	assert.Equal(t, "large", media.FileID)
	assert.Equal(t, testAdminID, media.AddedBy)

	msg.ReplyToMessage = &telego.Message{MessageID: 78, Chat: telego.Chat{ID: testChatID}, Text: "just text"}
	require.NoError(t, add(ctx, env.bot, msg))
	assert.Contains(t, env.bot.lastText(), "Only photos")
}

func TestBatchDeleteThroughForwards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	const channel = int64(-100999)
	first := env.seed(t, "cats", channel, 10)
	second := env.seed(t, "cats", channel, 11)
	keep := env.seed(t, "cats", channel, 12)

	assert.Contains(t, env.run(t, testAdminID, "/batch delete"), "Batch delete started")

	forward := func(messageID, sourceMsg int) (bool, error) {
		msg := newMessage(testAdminID, "")
		msg.MessageID = messageID
		msg.ForwardOrigin = &telego.MessageOriginChannel{Type: "channel", Chat: telego.Chat{ID: channel}, MessageID: sourceMsg}
		return env.handler.HandleBatchForward(ctx, env.bot, msg)
	}
	consumed, err := forward(501, 10)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "1 item collected.", env.bot.lastText())

	consumed, err = forward(502, 11)
	require.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = forward(503, 999)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "This post is not in the library.", env.bot.lastText())

	assert.Equal(t, "Delete 2 item(s)? Send /confirm or /cancel.", env.run(t, testAdminID, "/done"))
	assert.Contains(t, env.run(t, testAdminID, "/confirm"), "/cleanup delete")

	env.bot.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(p *telego.DeleteMessageParams) bool {
		return p.ChatID.ID == testChatID && (p.MessageID == 501 || p.MessageID == 502)
	})).Return(nil).Twice()
	assert.Equal(t, "Batch finished, 2 message(s) deleted.", env.run(t, testAdminID, "/cleanup delete"))
	env.bot.AssertExpectations(t)

	for _, id := range []string{first.ID, second.ID} {
		_, err := env.store.GetMedia(ctx, id)
		assert.Error(t, err)
	}
	_, err = env.store.GetMedia(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestBatchMoveNeedsDestination(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	media := env.seed(t, "cats", -5, 1)

	env.run(t, testAdminID, "/batch move")
	msg := newMessage(testAdminID, "")
	msg.ForwardOrigin = &telego.MessageOriginChannel{Type: "channel", Chat: telego.Chat{ID: -5}, MessageID: 1}
	_, err := env.handler.HandleBatchForward(ctx, env.bot, msg)
	require.NoError(t, err)

	assert.Contains(t, env.run(t, testAdminID, "/done"), "/dest <category>")
	assert.Equal(t, "Pick a destination first with /dest <category>.", env.run(t, testAdminID, "/confirm"))
	assert.Contains(t, env.run(t, testAdminID, "/dest Dogs"), `"dogs"`)
	assert.Contains(t, env.run(t, testAdminID, "/confirm"), "/cleanup delete")
	assert.Contains(t, env.bot.sent(), "Done, 1 item(s) affected.")

	got, err := env.store.GetMedia(ctx, media.ID)
	require.NoError(t, err)
	assert.Equal(t, "dogs", got.Category)
}

func TestBatchCommandsWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	assert.Contains(t, env.run(t, testAdminID, "/done"), "No batch in progress")
	assert.Contains(t, env.run(t, testAdminID, "/cancel"), "No batch in progress")
	assert.Equal(t, "Usage: /batch delete or /batch move", env.run(t, testAdminID, "/batch merge"))

	env.run(t, testAdminID, "/batch delete")
	assert.Equal(t, "That is not possible at this step of the batch.", env.run(t, testAdminID, "/confirm"))
	assert.Equal(t, "Nothing was collected, batch aborted.", env.run(t, testAdminID, "/done"))
}

func TestHandleBatchForward_IgnoresWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	msg := newMessage(testUserID, "")
	msg.ForwardOrigin = &telego.MessageOriginChannel{Type: "channel", Chat: telego.Chat{ID: -5}, MessageID: 1}
	consumed, err := env.handler.HandleBatchForward(context.Background(), env.bot, msg)
	require.NoError(t, err)
	assert.False(t, consumed)

	plain := newMessage(testUserID, "hello")
	consumed, err = env.handler.HandleBatchForward(context.Background(), env.bot, plain)
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestHandleCallbackQuery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	media := env.seed(t, "cats", -1, 1)
	env.bot.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil)

	query := func(data string) telego.CallbackQuery {
		return telego.CallbackQuery{
			ID:      "q1",
			From:    telego.User{ID: testUserID, LanguageCode: "en"},
			Message: &telego.Message{MessageID: 5, Chat: telego.Chat{ID: testChatID}},
			Data:    data,
		}
	}

	processed, err := env.handler.HandleCallbackQuery(ctx, env.bot, query("fav:"+media.ID))
	require.NoError(t, err)
	assert.True(t, processed)
	env.bot.AssertCalled(t, "AnswerCallbackQuery", mock.Anything, &telego.AnswerCallbackQueryParams{CallbackQueryID: "q1", Text: "Added to favorites."})

	_, err = env.handler.HandleCallbackQuery(ctx, env.bot, query("fav:"+media.ID))
	require.NoError(t, err)
	env.bot.AssertCalled(t, "AnswerCallbackQuery", mock.Anything, &telego.AnswerCallbackQueryParams{CallbackQueryID: "q1", Text: "Already in favorites."})

	env.server.On("Serve", mock.Anything, delivery.Request{
		UserID: testUserID, ScopeID: testChatID, Category: "cats", ChatID: testChatID, IsAdvance: true,
	}).Return(delivery.Outcome{Status: delivery.StatusDelivered}).Once()
	processed, err = env.handler.HandleCallbackQuery(ctx, env.bot, query("next:"+media.ID))
	require.NoError(t, err)
	assert.True(t, processed)
	env.server.AssertExpectations(t)

	processed, err = env.handler.HandleCallbackQuery(ctx, env.bot, query("next:gone"))
	require.NoError(t, err)
	assert.True(t, processed)
	env.bot.AssertCalled(t, "AnswerCallbackQuery", mock.Anything, &telego.AnswerCallbackQueryParams{CallbackQueryID: "q1", Text: "This record is gone. Use /random instead."})
	env.server.AssertNumberOfCalls(t, "Serve", 1)

	processed, err = env.handler.HandleCallbackQuery(ctx, env.bot, query("approve:123"))
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestFavoritesAndHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	media := env.seed(t, "cats", -1, 1)

	assert.Contains(t, env.run(t, testUserID, "/favorites"), "no favorites yet")
	_, err := env.store.AddFavorite(ctx, testUserID, media.ID)
	require.NoError(t, err)
	favs := env.run(t, testUserID, "/favorites")
	assert.Contains(t, favs, "Favorites (page 1 of 1):")
	assert.Contains(t, favs, media.ID)
	assert.Equal(t, "Removed from favorites.", env.run(t, testUserID, "/unfav "+media.ID))
	assert.Equal(t, "This item is not in your favorites.", env.run(t, testUserID, "/unfav "+media.ID))

	assert.Equal(t, "History is empty.", env.run(t, testUserID, "/history"))
	tracker := history.NewTracker(env.store)
	require.NoError(t, tracker.Append(ctx, models.HistoryUser, testUserID, media.ID))
	require.NoError(t, tracker.Append(ctx, models.HistoryGroup, testChatID, media.ID))

	hist := env.run(t, testUserID, "/history")
	assert.Contains(t, hist, "History (page 1 of 1):")
	assert.Contains(t, hist, "cats")
	assert.Contains(t, env.run(t, testUserID, "/grouphistory"), "cats")

	page, err := tracker.List(ctx, models.HistoryUser, testUserID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	entryID := page.Entries[0].ID

	assert.Equal(t, "No such entry in your history.", env.run(t, testAdminID, "/forget "+entryID))
	assert.Equal(t, "Entry removed.", env.run(t, testUserID, "/forget "+entryID))
	assert.True(t, strings.HasPrefix(env.run(t, testUserID, "/history"), "History is empty"))
}

func TestHandleCallbackQuery_NextWithLongCategory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	category := strings.Repeat("кот", 20)
	media := env.seed(t, category, -1, 1)
	env.bot.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil)
	env.server.On("Serve", mock.Anything, delivery.Request{
		UserID: testUserID, ScopeID: testChatID, Category: category, ChatID: testChatID, IsAdvance: true,
	}).Return(delivery.Outcome{Status: delivery.StatusDelivered}).Once()

	markup := delivery.DefaultControls(media.ID)
	data := markup.InlineKeyboard[0][0].CallbackData
	assert.LessOrEqual(t, len(data), 64)

	processed, err := env.handler.HandleCallbackQuery(ctx, env.bot, telego.CallbackQuery{
		ID:      "q2",
		From:    telego.User{ID: testUserID, LanguageCode: "en"},
		Message: &telego.Message{MessageID: 5, Chat: telego.Chat{ID: testChatID}},
		Data:    data,
	})
	require.NoError(t, err)
	assert.True(t, processed)
	env.server.AssertExpectations(t)
}

func TestCategoryLengthIsBounded(t *testing.T) {
	env := newTestEnv(t)
	tooLong := strings.Repeat("я", models.MaxCategoryLength+1)

	assert.Equal(t, "Category names are limited to 64 characters.", env.run(t, testAdminID, "/bind -100500 "+tooLong))
	bindings, err := env.store.FindBindings(context.Background(), -100500)
	require.NoError(t, err)
	assert.Empty(t, bindings)

	fits := strings.Repeat("я", models.MaxCategoryLength)
	env.run(t, testAdminID, "/bind -100500 "+fits)
	bindings, err = env.store.FindBindings(context.Background(), -100500)
	require.NoError(t, err)
	if assert.Len(t, bindings, 1) {
		assert.Equal(t, fits, bindings[0].Category)
	}
}

func TestReportOutcome_RefusedSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.server.On("Serve", mock.Anything, mock.Anything).
		Return(delivery.Outcome{Status: delivery.StatusRefused, Err: errors.New("Forbidden: bot was blocked by the user")}).Once()

	msg := newMessage(testUserID, "/random cats")
	require.NoError(t, env.handler.GetCommandHandler("random")(context.Background(), env.bot, msg))
	assert.Empty(t, env.bot.sent())
}
