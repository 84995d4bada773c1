package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMemberLookup struct {
	mock.Mock
}

func (m *MockMemberLookup) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func memberParams(chatID, userID int64) *telego.GetChatMemberParams {
	return &telego.GetChatMemberParams{ChatID: telego.ChatID{ID: chatID}, UserID: userID}
}

func TestChecker_IsAdminUsesCache(t *testing.T) {
	ctx := context.Background()
	bot := new(MockMemberLookup)
	bot.On("GetChatMember", mock.Anything, memberParams(-100, 1)).
		Return(&telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator}, nil).Once()

	checker, err := NewChecker(bot, NewMemoryCache(time.Minute, 10), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		isAdmin, err := checker.IsAdmin(ctx, -100, 1)
		require.NoError(t, err)
		assert.True(t, isAdmin)
	}
	bot.AssertNumberOfCalls(t, "GetChatMember", 1)
}

func TestChecker_UserNotFoundIsNotMember(t *testing.T) {
	ctx := context.Background()
	bot := new(MockMemberLookup)
	bot.On("GetChatMember", mock.Anything, memberParams(-100, 2)).
		Return(nil, errors.New("telego: getChatMember: api: 400 \"Bad Request: user not found\"")).Once()

	checker, err := NewChecker(bot, NewMemoryCache(time.Minute, 10), nil)
	require.NoError(t, err)

	isMember, err := checker.IsMember(ctx, -100, 2)
	require.NoError(t, err)
	assert.False(t, isMember)

	isAdmin, err := checker.IsAdmin(ctx, -100, 2)
	require.NoError(t, err)
	assert.False(t, isAdmin)
	bot.AssertExpectations(t)
}

func TestChecker_APIErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	bot := new(MockMemberLookup)
	bot.On("GetChatMember", mock.Anything, memberParams(-100, 3)).
		Return(nil, errors.New("connection reset")).Once()
	bot.On("GetChatMember", mock.Anything, memberParams(-100, 3)).
		Return(&telego.ChatMemberMember{Status: telego.MemberStatusMember}, nil).Once()

	checker, err := NewChecker(bot, NewMemoryCache(time.Minute, 10), nil)
	require.NoError(t, err)

	_, err = checker.IsMember(ctx, -100, 3)
	assert.Error(t, err)

	isMember, err := checker.IsMember(ctx, -100, 3)
	require.NoError(t, err)
	assert.True(t, isMember)
	bot.AssertExpectations(t)
}

func TestNewChecker_RequiresDependencies(t *testing.T) {
	_, err := NewChecker(nil, NewMemoryCache(time.Minute, 1), nil)
	assert.Error(t, err)
	_, err = NewChecker(new(MockMemberLookup), nil, nil)
	assert.Error(t, err)
}

func TestMemoryCache_CapacityBound(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, 3)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, c.Set(ctx, -1, i, telego.MemberStatusMember))
	}
	assert.Equal(t, 3, c.Len())

	status, ok, err := c.Get(ctx, -1, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, telego.MemberStatusMember, status)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(20*time.Millisecond, 10)
	require.NoError(t, c.Set(ctx, -1, 1, telego.MemberStatusCreator))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, -1, 1)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestChecker_PrivateChatSkipsLookup(t *testing.T) {
	bot := new(MockMemberLookup)
	checker, err := NewChecker(bot, NewMemoryCache(time.Minute, 10), nil)
	require.NoError(t, err)

	isAdmin, err := checker.IsAdmin(context.Background(), 42, 42)
	require.NoError(t, err)
	assert.True(t, isAdmin)
	isMember, err := checker.IsMember(context.Background(), 42, 42)
	require.NoError(t, err)
	assert.True(t, isMember)
	bot.AssertNotCalled(t, "GetChatMember", mock.Anything, mock.Anything)
}
