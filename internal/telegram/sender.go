package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// messageAPI is the slice of the bot API the sender needs.
type messageAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// sender adapts the bot API to the narrow interface scene handlers use.
type sender struct {
	api messageAPI
}

func newSender(api messageAPI) *sender {
	return &sender{api: api}
}

func (s *sender) SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	if s == nil || s.api == nil {
		return 0, errors.New("sender is not initialized")
	}

	msg, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}

	return msg.ID, nil
}

func (s *sender) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	if s == nil || s.api == nil {
		return errors.New("sender is not initialized")
	}

	_, err := s.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	return nil
}

func (s *sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if s == nil || s.api == nil {
		return errors.New("sender is not initialized")
	}

	if _, err := s.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

func (s *sender) AnswerCallback(ctx context.Context, callbackID string) error {
	if s == nil || s.api == nil {
		return errors.New("sender is not initialized")
	}

	if _, err := s.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	}); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}

	return nil
}
