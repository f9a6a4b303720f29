// Package notifier fans out stale-schedule reminders to the parish
// administrators observing each parish.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/imsha"
	"imshaby_bot/internal/logging"
)

// The pause between sends keeps a large fan-out under Telegram's
// messages-per-second limit.
const sendDelay = 500 * time.Millisecond

type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
}

type expiryScanner interface {
	ExpiredParishes(ctx context.Context) (imsha.ExpiryReport, error)
}

type userFinder interface {
	FindByParishKey(ctx context.Context, parishKey string) ([]domain.User, error)
}

// Notifier delivers schedule-expiry reminders and group-chat
// announcements.
type Notifier struct {
	sender  messageSender
	scanner expiryScanner
	users   userFinder
	logger  *logrus.Entry
	sleep   func(time.Duration)
}

// New constructs a Notifier.
func New(sender messageSender, scanner expiryScanner, users userFinder, logger *logrus.Entry) *Notifier {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Notifier{
		sender:  sender,
		scanner: scanner,
		users:   users,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// CheckParishes scans for parishes whose schedule relevance has lapsed
// or is about to, and reminds their administrators. One unreachable
// recipient never stops the rest of the fan-out.
func (n *Notifier) CheckParishes(ctx context.Context) error {
	if err := n.check(ctx); err != nil {
		return err
	}

	report, err := n.scanner.ExpiredParishes(ctx)
	if err != nil {
		return fmt.Errorf("scan expired parishes: %w", err)
	}

	n.logger.WithFields(logging.Fields{
		"event":          "expiry_scan",
		"expired":        len(report.ExpiredParishes),
		"almost_expired": len(report.AlmostExpiredParishes),
	}).Info("parish expiry scan finished")

	n.notifyAbout(ctx, report.ExpiredParishes, true)
	n.notifyAbout(ctx, report.AlmostExpiredParishes, false)

	return nil
}

func (n *Notifier) notifyAbout(ctx context.Context, parishes []domain.ExpiredParish, expired bool) {
	for _, parish := range parishes {
		users, err := n.users.FindByParishKey(ctx, parish.Key)
		if err != nil {
			n.logger.WithFields(logging.Fields{
				"event":      "observer_lookup_failed",
				"parish_key": parish.Key,
			}).WithError(err).Warn("parish skipped")
			continue
		}

		for _, user := range users {
			chatID, err := strconv.ParseInt(user.ID, 10, 64)
			if err != nil {
				continue
			}

			text := expiryMessage(user.Language, parish, expired)
			if _, err := n.sender.SendMessage(ctx, chatID, text, nil); err != nil {
				n.logger.WithFields(logging.Fields{
					"event":      "reminder_send_failed",
					"chat_id":    chatID,
					"parish_key": parish.Key,
				}).WithError(err).Warn("recipient skipped")
				continue
			}

			n.sleep(sendDelay)
		}
	}
}

// NotifyGroupChat announces a parish schedule change in a group chat.
func (n *Notifier) NotifyGroupChat(ctx context.Context, chatID int64, parishName string) error {
	if err := n.check(ctx); err != nil {
		return err
	}
	if chatID == 0 {
		return errors.New("chat id is required")
	}

	text := fmt.Sprintf("Парафія <b>%s</b> абнавіла расклад імшаў на imsha.by", parishName)
	if _, err := n.sender.SendMessage(ctx, chatID, text, nil); err != nil {
		return fmt.Errorf("notify group chat: %w", err)
	}

	return nil
}

func expiryMessage(language string, parish domain.ExpiredParish, expired bool) string {
	name := parish.Name
	if parish.ShortName != "" {
		name = parish.ShortName
	}

	if language == "en" {
		if expired {
			return fmt.Sprintf("The mass schedule of %s is out of date. Please confirm or update it.", name)
		}
		return fmt.Sprintf("The mass schedule of %s expires soon. Please check it.", name)
	}

	if expired {
		return fmt.Sprintf("Расклад імшаў парафіі %s састарэў. Калі ласка, пацвердзіце або абнавіце яго.", name)
	}
	return fmt.Sprintf("Расклад імшаў парафіі %s хутка састарэе. Калі ласка, праверце яго.", name)
}

func (n *Notifier) check(ctx context.Context) error {
	if n == nil || n.sender == nil || n.scanner == nil || n.users == nil {
		return errors.New("notifier is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
