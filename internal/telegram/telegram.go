// Package telegram hosts the Telegram client, routing, and the
// conversation scenes.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/config"
	"imshaby_bot/internal/logging"
	"imshaby_bot/internal/telegram/scene"
)

type botRunner interface {
	messageAPI
	Start(ctx context.Context)
	StartWebhook(ctx context.Context)
	WebhookHandler() http.HandlerFunc
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance. Updates are delivered to the
// handler either by long polling (development) or by webhook
// (production); the handler does not know which.
type Client struct {
	bot        botRunner
	webhookURL string
	logger     *logrus.Entry
}

// NewClient initializes the Telegram bot with the given update handler.
func NewClient(cfg config.Config, handler bot.HandlerFunc, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if handler == nil {
		return nil, errors.New("update handler is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(handler),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	return &Client{
		bot:        tgBot,
		webhookURL: strings.TrimSuffix(cfg.WebhookURL, "/") + cfg.WebhookPath,
		logger:     logger,
	}, nil
}

// Sender exposes the outbound API for the notifier and other callers
// that only need to push messages.
func (c *Client) Sender() scene.Sender {
	return newSender(c.bot)
}

// Start begins receiving updates via long polling until the context is
// canceled. Any previously registered webhook is removed first; Telegram
// refuses getUpdates while a webhook is set.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: false}); err != nil {
		c.logger.WithField("event", "webhook_delete_failed").WithError(err).Warn("could not delete webhook before polling")
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// StartWebhook registers the public webhook URL with Telegram and runs
// the webhook update loop until the context is canceled.
func (c *Client) StartWebhook(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            c.webhookURL,
		AllowedUpdates: defaultAllowedUpdates,
	}); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event":       "telegram_webhook",
		"webhook_url": c.webhookURL,
	}).Info("starting telegram webhook loop")

	c.bot.StartWebhook(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram webhook loop stopped")
	return nil
}

// WebhookHandler returns the HTTP handler the web server mounts on the
// webhook path.
func (c *Client) WebhookHandler() http.Handler {
	return c.bot.WebhookHandler()
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram transport error")
	}
}
