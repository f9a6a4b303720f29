package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"imshaby_bot/internal/telegram/action"
)

// incoming is the normalized view of an update the router works with.
// Only plain messages and callback queries reach the routing stage.
type incoming struct {
	ChatID     int64
	UserID     int64
	Username   string
	Name       string
	ChatType   string
	MessageID  int
	Text       string
	CallbackID string
	Action     action.Action
	IsCallback bool
}

// normalizeUpdate flattens the update shapes the bot subscribes to.
// Returns false for update kinds the router does not handle.
func normalizeUpdate(update *models.Update) (incoming, bool) {
	if update == nil {
		return incoming{}, false
	}

	if cb := update.CallbackQuery; cb != nil {
		in := incoming{
			UserID:     cb.From.ID,
			Username:   cb.From.Username,
			Name:       displayName(cb.From.FirstName, cb.From.LastName),
			CallbackID: cb.ID,
			Action:     action.Decode(cb.Data),
			IsCallback: true,
		}
		if msg := cb.Message.Message; msg != nil {
			in.ChatID = msg.Chat.ID
			in.ChatType = string(msg.Chat.Type)
			in.MessageID = msg.ID
		}
		return in, true
	}

	if msg := update.Message; msg != nil {
		in := incoming{
			ChatID:    msg.Chat.ID,
			ChatType:  string(msg.Chat.Type),
			MessageID: msg.ID,
			Text:      strings.TrimSpace(msg.Text),
		}
		if msg.From != nil {
			in.UserID = msg.From.ID
			in.Username = msg.From.Username
			in.Name = displayName(msg.From.FirstName, msg.From.LastName)
		}
		return in, true
	}

	return incoming{}, false
}

func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// commandOf extracts a leading bot command, stripping an optional
// @botname suffix. Returns "" when the text is not a command.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := text
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		cmd = cmd[:i]
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd
}
