package bot

import (
	"context"

	telegoapi "mediapool-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"go.uber.org/ratelimit"
)

// limitedAPI spaces out outgoing API calls so bursts of deliveries stay under
// Telegram's flood limits.
type limitedAPI struct {
	api     telegoapi.BotAPI
	limiter ratelimit.Limiter
}

var _ telegoapi.BotAPI = (*limitedAPI)(nil)

// NewLimitedAPI wraps api so that at most perSecond calls go out per second.
func NewLimitedAPI(api telegoapi.BotAPI, perSecond int) telegoapi.BotAPI {
	return &limitedAPI{api: api, limiter: ratelimit.New(perSecond)}
}

func (l *limitedAPI) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	l.limiter.Take()
	return l.api.SendMessage(ctx, params)
}

func (l *limitedAPI) GetMe(ctx context.Context) (*telego.User, error) {
	l.limiter.Take()
	return l.api.GetMe(ctx)
}

func (l *limitedAPI) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	l.limiter.Take()
	return l.api.SetMyCommands(ctx, params)
}

func (l *limitedAPI) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	l.limiter.Take()
	return l.api.AnswerCallbackQuery(ctx, params)
}

func (l *limitedAPI) ForwardMessage(ctx context.Context, params *telego.ForwardMessageParams) (*telego.Message, error) {
	l.limiter.Take()
	return l.api.ForwardMessage(ctx, params)
}

func (l *limitedAPI) CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error) {
	l.limiter.Take()
	return l.api.CopyMessage(ctx, params)
}

func (l *limitedAPI) DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error {
	l.limiter.Take()
	return l.api.DeleteMessage(ctx, params)
}

func (l *limitedAPI) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	l.limiter.Take()
	return l.api.GetChatMember(ctx, params)
}
