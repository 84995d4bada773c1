package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediapool-bot/internal/database/models"
	"mediapool-bot/internal/database/sqlstore"
	"mediapool-bot/internal/history"
	"mediapool-bot/internal/preferences"
	"mediapool-bot/internal/selector"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockSender struct {
	mock.Mock
}

func (m *MockSender) ForwardMessage(ctx context.Context, params *telego.ForwardMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSender) CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error) {
	args := m.Called(ctx, params)
	if msgID, ok := args.Get(0).(*telego.MessageID); ok {
		return msgID, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockMembers struct {
	mock.Mock
}

func (m *MockMembers) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

// --- Fixture ---

const (
	testScope = int64(-1000)
	testUser  = int64(42)
)

type fixture struct {
	store  *sqlstore.Store
	prefs  *preferences.Store
	sender *MockSender
	v      *Validator
	clock  time.Time
}

func newFixture(t *testing.T, members MembershipChecker) *fixture {
	t.Helper()
	store := sqlstore.NewTestStore(t)
	f := &fixture{
		store:  store,
		prefs:  preferences.NewStore(store),
		sender: new(MockSender),
		clock:  time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	v, err := New(Deps{
		Sender:   f.sender,
		Repo:     store,
		Prefs:    f.prefs,
		Selector: selector.New(store, selector.WithClock(now)),
		History:  history.NewTracker(store),
		Members:  members,
		Now:      now,
	})
	require.NoError(t, err)
	f.v = v
	t.Cleanup(v.Wait)
	return f
}

func (f *fixture) addMedia(t *testing.T, category string, sourceChat int64, sourceMsg int) models.MediaRecord {
	t.Helper()
	m := models.MediaRecord{
		ScopeID:         testScope,
		Category:        category,
		Type:            models.MediaPhoto,
		SourceChatID:    sourceChat,
		SourceMessageID: sourceMsg,
		AddedAt:         f.clock.Add(-time.Hour),
	}
	require.NoError(t, f.store.CreateMedia(context.Background(), &m))
	return m
}

func (f *fixture) request(category string) Request {
	return Request{UserID: testUser, ScopeID: testScope, Category: category, ChatID: testScope}
}

func copyFrom(chatID int64) interface{} {
	return mock.MatchedBy(func(p *telego.CopyMessageParams) bool { return p.FromChatID.ID == chatID })
}

func (f *fixture) exists(t *testing.T, id string) bool {
	t.Helper()
	_, err := f.store.GetMedia(context.Background(), id)
	return err == nil
}

// --- Tests ---

func TestServe_DeliversAndRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.addMedia(t, "cats", -1, 7)
	f.sender.On("CopyMessage", mock.Anything, mock.MatchedBy(func(p *telego.CopyMessageParams) bool {
		return p.ChatID.ID == testScope && p.FromChatID.ID == -1 && p.MessageID == 7 && p.ReplyMarkup != nil
	})).Return(&telego.MessageID{MessageID: 555}, nil).Once()

	out := f.v.Serve(ctx, f.request("cats"))
	require.Equal(t, StatusDelivered, out.Status, "%v", out.Err)
	assert.Equal(t, m.ID, out.Media.ID)
	assert.Equal(t, 555, out.MessageID)
	assert.Equal(t, 1, out.Attempts)

	served, err := f.store.IsServed(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, served, "marker is written before Serve returns")
	last, err := f.store.GetLastServed(ctx, testUser)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, m.ID, last.MediaID)

	f.v.Wait()
	got, err := f.store.GetMedia(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)
	_, userTotal, err := f.store.ListHistory(ctx, models.HistoryUser, testUser, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, userTotal)
	_, groupTotal, err := f.store.ListHistory(ctx, models.HistoryGroup, testScope, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, groupTotal)
	f.sender.AssertExpectations(t)
}

func TestServe_ForwardModeWithoutAntiRepeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.addMedia(t, "cats", -1, 7)
	require.NoError(t, f.prefs.SetBehaviorSetting(ctx, testScope, preferences.KeyDeliveryMode, "forward"))
	require.NoError(t, f.prefs.SetBehaviorSetting(ctx, testScope, preferences.KeyAntiRepeat, "off"))
	require.NoError(t, f.prefs.SetBehaviorSetting(ctx, testScope, preferences.KeyProtectContent, "on"))

	f.sender.On("ForwardMessage", mock.Anything, mock.MatchedBy(func(p *telego.ForwardMessageParams) bool {
		return p.FromChatID.ID == -1 && p.MessageID == 7 && p.ProtectContent
	})).Return(&telego.Message{MessageID: 9}, nil).Twice()

	for i := 0; i < 2; i++ {
		out := f.v.Serve(ctx, f.request("cats"))
		require.Equal(t, StatusDelivered, out.Status)
		assert.False(t, out.PoolReset)
	}
	served, err := f.store.IsServed(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, served)
	f.sender.AssertNotCalled(t, "CopyMessage", mock.Anything, mock.Anything)
	f.sender.AssertExpectations(t)
}

func TestServe_ItemDeadPurgesOneRecordPerAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	for i := 1; i <= 4; i++ {
		f.addMedia(t, "cats", int64(-i), i)
	}
	f.sender.On("CopyMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New(`Bad Request: message to copy not found`))

	out := f.v.Serve(ctx, f.request("cats"))
	assert.Equal(t, StatusExhausted, out.Status)
	assert.Equal(t, MaxAttempts, out.Attempts)
	assert.EqualValues(t, 3, out.Purged)
	f.sender.AssertNumberOfCalls(t, "CopyMessage", MaxAttempts)

	left, err := f.store.CountByCategory(ctx, testScope)
	require.NoError(t, err)
	assert.EqualValues(t, 1, left["cats"])
}

func TestServe_ScopeDeadPurgesWholeSourceChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	dead := int64(-500)
	f.addMedia(t, "cats", dead, 1)
	f.addMedia(t, "cats", dead, 2)
	elsewhere := f.addMedia(t, "dogs", dead, 3)
	survivor := f.addMedia(t, "dogs", -600, 1)
	require.NoError(t, f.store.UpsertBinding(ctx, &models.CategoryBinding{ScopeID: testScope, SourceChatID: dead, Category: "cats"}))

	f.sender.On("CopyMessage", mock.Anything, copyFrom(dead)).
		Return(nil, errors.New(`telego: copyMessage: api: 400 "Bad Request: chat not found"`)).Once()

	out := f.v.Serve(ctx, f.request("cats"))
	assert.Equal(t, StatusNoContent, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.EqualValues(t, 3, out.Purged)

	assert.False(t, f.exists(t, elsewhere.ID), "records of the dead chat in other categories are purged too")
	assert.True(t, f.exists(t, survivor.ID))
	bindings, err := f.store.FindBindings(ctx, dead)
	require.NoError(t, err)
	assert.Empty(t, bindings)
	f.sender.AssertExpectations(t)
}

func TestServe_TransientPurgesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.addMedia(t, "cats", -1, 1)
	f.sender.On("CopyMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New(`Too Many Requests: retry after 3`))

	out := f.v.Serve(ctx, f.request("cats"))
	assert.Equal(t, StatusExhausted, out.Status)
	assert.Equal(t, MaxAttempts, out.Attempts)
	assert.Zero(t, out.Purged)
	assert.True(t, f.exists(t, m.ID))
}

func TestServe_RefusedByTargetChatKeepsSourceRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	source := int64(-1)
	var ids []string
	for i := 1; i <= 4; i++ {
		ids = append(ids, f.addMedia(t, "cats", source, i).ID)
	}
	require.NoError(t, f.store.UpsertBinding(ctx, &models.CategoryBinding{ScopeID: testScope, SourceChatID: source, Category: "cats"}))

	for _, msg := range []string{
		`telego: copyMessage: api: 400 "Bad Request: not enough rights to send photos to the chat"`,
		`telego: copyMessage: api: 403 "Forbidden: bot was kicked from the supergroup chat"`,
		`telego: copyMessage: api: 403 "Forbidden: bot was blocked by the user"`,
		`telego: copyMessage: api: 400 "Bad Request: BUTTON_DATA_INVALID"`,
	} {
		f.sender.On("CopyMessage", mock.Anything, copyFrom(source)).Return(nil, errors.New(msg)).Once()

		out := f.v.Serve(ctx, f.request("cats"))
		assert.Equal(t, StatusRefused, out.Status, msg)
		assert.Equal(t, 1, out.Attempts, msg)
		assert.Zero(t, out.Purged, msg)
		assert.Error(t, out.Err, msg)
	}

	for _, id := range ids {
		assert.True(t, f.exists(t, id))
	}
	bindings, err := f.store.FindBindings(ctx, source)
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
	f.sender.AssertExpectations(t)
}

func TestServe_UnknownFailureIsItemLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	bad := f.addMedia(t, "cats", -1, 1)
	f.sender.On("CopyMessage", mock.Anything, copyFrom(-1)).
		Return(nil, errors.New(`Bad Request: unexpected thing`)).Once()

	out := f.v.Serve(ctx, f.request("cats"))
	assert.Equal(t, StatusNoContent, out.Status)
	assert.EqualValues(t, 1, out.Purged)
	assert.False(t, f.exists(t, bad.ID))
}

func TestServe_RecoversAfterDeadItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	bad := f.addMedia(t, "cats", -1, 1)
	good := f.addMedia(t, "cats", -2, 1)
	f.sender.On("CopyMessage", mock.Anything, copyFrom(-1)).
		Return(nil, errors.New(`Bad Request: message to copy not found`)).Maybe()
	f.sender.On("CopyMessage", mock.Anything, copyFrom(-2)).
		Return(&telego.MessageID{MessageID: 1}, nil).Once()

	out := f.v.Serve(ctx, f.request("cats"))
	require.Equal(t, StatusDelivered, out.Status)
	assert.Equal(t, good.ID, out.Media.ID)
	assert.LessOrEqual(t, out.Attempts, 2)
	assert.Equal(t, int64(out.Attempts-1), out.Purged)
	if out.Attempts == 2 {
		assert.False(t, f.exists(t, bad.ID))
	}
}

func TestServe_NoContent(t *testing.T) {
	f := newFixture(t, nil)
	out := f.v.Serve(context.Background(), f.request("empty"))
	assert.Equal(t, StatusNoContent, out.Status)
	assert.Zero(t, out.Attempts)
	f.sender.AssertNotCalled(t, "CopyMessage", mock.Anything, mock.Anything)
}

func TestServe_NotMember(t *testing.T) {
	members := new(MockMembers)
	members.On("IsMember", mock.Anything, testScope, testUser).Return(false, nil).Once()
	f := newFixture(t, members)
	f.addMedia(t, "cats", -1, 1)

	out := f.v.Serve(context.Background(), f.request("cats"))
	assert.Equal(t, StatusNotMember, out.Status)
	f.sender.AssertNotCalled(t, "CopyMessage", mock.Anything, mock.Anything)
	members.AssertExpectations(t)
}

func TestServe_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, nil)
	f.addMedia(t, "cats", -1, 1)
	f.sender.On("CopyMessage", mock.Anything, mock.Anything).Return(&telego.MessageID{MessageID: 3}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := f.v.Serve(ctx, f.request("cats"))
	assert.Equal(t, StatusDelivered, out.Status)
}

func (f *fixture) serveFirst(t *testing.T) models.MediaRecord {
	t.Helper()
	out := f.v.Serve(context.Background(), f.request("cats"))
	require.Equal(t, StatusDelivered, out.Status)
	f.v.Wait()
	return *out.Media
}

func TestServe_QuickAdvanceWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addMedia(t, "cats", -1, 1)
	f.addMedia(t, "cats", -2, 1)
	f.sender.On("CopyMessage", mock.Anything, mock.Anything).Return(&telego.MessageID{MessageID: 1}, nil)

	first := f.serveFirst(t)

	f.clock = f.clock.Add(10 * time.Second)
	req := f.request("cats")
	req.IsAdvance = true
	out := f.v.Serve(ctx, req)
	require.Equal(t, StatusDelivered, out.Status)
	assert.NotEqual(t, first.ID, out.Media.ID, "the previous record is excluded")
	f.v.Wait()

	prev, err := f.store.GetMedia(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, prev.ViewCount, "view taken back")
	served, err := f.store.IsServed(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, served, "skipped record becomes eligible again")
}

func TestServe_QuickAdvanceStrictSkipKeepsMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	require.NoError(t, f.prefs.SetBehaviorSetting(ctx, testScope, preferences.KeyStrictSkip, "on"))
	f.addMedia(t, "cats", -1, 1)
	f.addMedia(t, "cats", -2, 1)
	f.sender.On("CopyMessage", mock.Anything, mock.Anything).Return(&telego.MessageID{MessageID: 1}, nil)

	first := f.serveFirst(t)

	f.clock = f.clock.Add(5 * time.Second)
	req := f.request("cats")
	req.IsAdvance = true
	out := f.v.Serve(ctx, req)
	require.Equal(t, StatusDelivered, out.Status)
	f.v.Wait()

	prev, err := f.store.GetMedia(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, prev.ViewCount)
	served, err := f.store.IsServed(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, served)
}

func TestServe_AdvanceOutsideWindowKeepsViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.addMedia(t, "cats", -1, 1)
	f.addMedia(t, "cats", -2, 1)
	f.sender.On("CopyMessage", mock.Anything, mock.Anything).Return(&telego.MessageID{MessageID: 1}, nil)

	first := f.serveFirst(t)

	f.clock = f.clock.Add(QuickAdvanceWindow + time.Second)
	req := f.request("cats")
	req.IsAdvance = true
	out := f.v.Serve(ctx, req)
	require.Equal(t, StatusDelivered, out.Status)
	assert.NotEqual(t, first.ID, out.Media.ID)
	f.v.Wait()

	prev, err := f.store.GetMedia(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, prev.ViewCount)
	served, err := f.store.IsServed(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, served)
}

func TestServe_ExhaustionResetReported(t *testing.T) {
	f := newFixture(t, nil)
	f.addMedia(t, "cats", -1, 1)
	f.sender.On("CopyMessage", mock.Anything, mock.Anything).Return(&telego.MessageID{MessageID: 1}, nil)

	first := f.v.Serve(context.Background(), f.request("cats"))
	require.Equal(t, StatusDelivered, first.Status)
	assert.False(t, first.PoolReset)

	second := f.v.Serve(context.Background(), f.request("cats"))
	require.Equal(t, StatusDelivered, second.Status)
	assert.True(t, second.PoolReset)
	assert.Equal(t, first.Media.ID, second.Media.ID)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
