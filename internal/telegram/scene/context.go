package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot/models"

	"imshaby_bot/internal/session"
	"imshaby_bot/internal/telegram/action"
)

// Sender is the outbound side of the chat platform, narrowed to what
// scene handlers need so tests can fake it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Context carries one normalized update through the middleware chain
// and into scene handlers.
type Context struct {
	Sender  Sender
	Session *session.Session

	ChatID   int64
	UserID   int64
	Username string
	Name     string
	ChatType string

	// MessageID is the inbound message, or for callback queries the
	// message carrying the pressed keyboard.
	MessageID  int
	CallbackID string
	Text       string
	Action     action.Action

	// Translate resolves a message key in the bound locale.
	Translate func(key string, args ...interface{}) string
}

// T localizes a message key; without a bound localizer the key itself
// comes back, which keeps handlers total in tests.
func (tc *Context) T(key string, args ...interface{}) string {
	if tc.Translate == nil {
		if len(args) == 0 {
			return key
		}
		return fmt.Sprintf("%s %v", key, args)
	}
	return tc.Translate(key, args...)
}

// Reply sends a message to the chat.
func (tc *Context) Reply(ctx context.Context, text string, markup models.ReplyMarkup) error {
	if tc.Sender == nil {
		return errors.New("sender is not attached")
	}
	_, err := tc.Sender.SendMessage(ctx, tc.ChatID, text, markup)
	return err
}

// ReplyTracked sends a message and records it for deletion on the next
// scene transition.
func (tc *Context) ReplyTracked(ctx context.Context, text string, markup models.ReplyMarkup) error {
	if tc.Sender == nil {
		return errors.New("sender is not attached")
	}
	messageID, err := tc.Sender.SendMessage(ctx, tc.ChatID, text, markup)
	if err != nil {
		return err
	}
	if tc.Session != nil {
		tc.Session.PushCleanup(messageID)
	}
	return nil
}

// Edit replaces the text and keyboard of the callback's source message.
func (tc *Context) Edit(ctx context.Context, text string, markup models.ReplyMarkup) error {
	if tc.Sender == nil {
		return errors.New("sender is not attached")
	}
	return tc.Sender.EditMessage(ctx, tc.ChatID, tc.MessageID, text, markup)
}

// Ack answers the pending callback query, if any. Failures are
// swallowed: an unanswered callback only leaves a spinner on the
// client.
func (tc *Context) Ack(ctx context.Context) {
	if tc.Sender == nil || tc.CallbackID == "" {
		return
	}
	_ = tc.Sender.AnswerCallback(ctx, tc.CallbackID)
}

// CleanupMessages deletes every message tracked in the session's
// cleanup list. Delete failures are ignored; the message may already
// be gone.
func (tc *Context) CleanupMessages(ctx context.Context) {
	if tc.Sender == nil || tc.Session == nil {
		return
	}
	for _, messageID := range tc.Session.DrainCleanup() {
		_ = tc.Sender.DeleteMessage(ctx, tc.ChatID, messageID)
	}
}
