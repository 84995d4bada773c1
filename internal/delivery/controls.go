package delivery

import (
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Callback data prefixes of the controls attached to copied records.
const (
	CallbackNext     = "next"
	CallbackFavorite = "fav"
)

// ControlsFunc builds the reply markup attached to a copied record.
type ControlsFunc func(mediaID string) *telego.InlineKeyboardMarkup

// DefaultControls offers "another one" and "add to favorites". Both buttons
// carry the record id, which keeps callback data within Telegram's 64 bytes;
// the "next" handler reads the category from the record.
func DefaultControls(mediaID string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🎲").WithCallbackData(CallbackNext+":"+mediaID),
			tu.InlineKeyboardButton("⭐").WithCallbackData(CallbackFavorite+":"+mediaID),
		),
	)
}

// ParseCallback splits callback data produced by the controls.
func ParseCallback(data string) (action, value string, ok bool) {
	action, value, ok = strings.Cut(data, ":")
	if !ok || value == "" {
		return "", "", false
	}
	switch action {
	case CallbackNext, CallbackFavorite:
		return action, value, true
	default:
		return "", "", false
	}
}
