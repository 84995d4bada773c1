package delivery

import "strings"

// FailureClass is the blast radius of a failed delivery.
type FailureClass int

const (
	// Unknown failures are handled as ItemDead.
	Unknown FailureClass = iota
	Transient
	ItemDead
	ScopeDead
	// Refused failures come from the delivery target or the request itself.
	// The record and its source are fine.
	Refused
)

func (c FailureClass) String() string {
	switch c {
	case Transient:
		return "transient"
	case ItemDead:
		return "item_dead"
	case ScopeDead:
		return "scope_dead"
	case Refused:
		return "refused"
	default:
		return "unknown"
	}
}

// The delivery API only reports free text, so classification is by phrase.
var (
	itemDeadPhrases = []string{
		"message to forward not found",
		"message to copy not found",
		"message can't be forwarded",
		"message can't be copied",
		"message_id_invalid",
		"message not found",
		"wrong file identifier",
	}
	// Sources are channels, so only channel-side membership errors mean the
	// source is gone.
	scopeDeadPhrases = []string{
		"chat not found",
		"channel_private",
		"bot was kicked from the channel",
		"bot is not a member of the channel",
	}
	refusedPhrases = []string{
		"have no rights",
		"not enough rights",
		"chat_admin_required",
		"chat_write_forbidden",
		"need administrator rights",
		"bot was blocked by the user",
		"bot was kicked",
		"bot is not a member",
		"bot can't initiate conversation",
		"user is deactivated",
		"peer_id_invalid",
		"group chat was deleted",
		"group chat was upgraded",
		"button_data_invalid",
		"reply markup",
	}
	transientPhrases = []string{
		"too many requests",
		"retry after",
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"internal server error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
		"unexpected eof",
	}
)

// Classify maps a delivery error to its failure class.
func Classify(err error) FailureClass {
	if err == nil {
		return Unknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, itemDeadPhrases):
		return ItemDead
	case containsAny(msg, scopeDeadPhrases):
		return ScopeDead
	case containsAny(msg, refusedPhrases):
		return Refused
	case containsAny(msg, transientPhrases):
		return Transient
	default:
		return Unknown
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
