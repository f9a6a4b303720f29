package telegram

import (
	"context"
	"fmt"

	"imshaby_bot/internal/logging"
	"imshaby_bot/internal/telegram/scene"
)

// contactScene relays a free-text message from a parish administrator
// to every configured bot admin.
func (r *Router) contactScene() *scene.Definition {
	return &scene.Definition{
		Name:   sceneContact,
		Enter:  r.contactEnter,
		OnText: r.contactOnText,
	}
}

func (r *Router) contactEnter(ctx context.Context, tc *scene.Context) error {
	return tc.ReplyTracked(ctx, tc.T(msgContactWrite), backKeyboard(tc.T))
}

func (r *Router) contactOnText(ctx context.Context, tc *scene.Context) error {
	note := fmt.Sprintf("From: %s (@%s, id %d)\nMessage: %s",
		tc.Name, tc.Username, tc.UserID, tc.Text)

	delivered := 0
	for _, adminID := range r.cfg.AdminIDs {
		if _, err := tc.Sender.SendMessage(ctx, adminID, note, nil); err != nil {
			r.logger.WithFields(logging.Fields{
				"event":    "contact_relay_failed",
				"admin_id": adminID,
			}).WithError(err).Warn("admin not reachable")
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	if err := r.scenes.Leave(ctx, tc); err != nil {
		return err
	}
	return tc.Reply(ctx, tc.T(msgContactDelivered), mainKeyboardFor(tc))
}
