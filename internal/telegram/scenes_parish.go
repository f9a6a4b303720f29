package telegram

import (
	"context"
	"fmt"
	"strings"

	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/telegram/action"
	"imshaby_bot/internal/telegram/scene"
)

// parishScene shows the parish card with contact details and a link
// into the admin panel.
func (r *Router) parishScene() *scene.Definition {
	return &scene.Definition{
		Name:  sceneParish,
		Enter: r.parishEnter,
		Actions: map[string]scene.HandlerFunc{
			action.SelectParish: r.parishSelect,
			action.Back:         r.parishBack,
		},
	}
}

func (r *Router) parishEnter(ctx context.Context, tc *scene.Context) error {
	parishes, err := r.userParishes(ctx, tc)
	if err != nil {
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	switch len(parishes) {
	case 0:
		if err := r.scenes.Leave(ctx, tc); err != nil {
			return err
		}
		return tc.Reply(ctx, tc.T(msgNoParishes), mainKeyboardFor(tc))
	case 1:
		parish := tc.Session.SelectParish(parishes[0].ID)
		return r.showParishCard(ctx, tc, parish, false)
	default:
		return tc.ReplyTracked(ctx, tc.T(msgAskForDetails), parishListKeyboard(parishes))
	}
}

func (r *Router) parishSelect(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)

	parish, err := r.resolveParish(ctx, tc, tc.Action.Payload)
	if err != nil {
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	return r.showParishCard(ctx, tc, parish, true)
}

// parishBack swaps the card back for the parish list in place.
func (r *Router) parishBack(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)

	tc.Session.Parish = nil
	if tc.MessageID == 0 {
		return tc.ReplyTracked(ctx, tc.T(msgAskForDetails), parishListKeyboard(tc.Session.Parishes))
	}
	return tc.Edit(ctx, tc.T(msgAskForDetails), parishListKeyboard(tc.Session.Parishes))
}

func (r *Router) showParishCard(ctx context.Context, tc *scene.Context, parish *domain.Parish, edit bool) error {
	text := renderParishCard(tc, parish)
	markup := parishControlKeyboard(tc.T, r.cfg.AdminURL, parish.Key)

	if edit && tc.MessageID != 0 {
		return tc.Edit(ctx, text, markup)
	}
	return tc.ReplyTracked(ctx, text, markup)
}

// renderParishCard lists only the fields the parish actually filled in.
func renderParishCard(tc *scene.Context, parish *domain.Parish) string {
	var b strings.Builder
	b.WriteString(tc.T(msgChosenParish, parish.Title))

	appendLine := func(key, value string) {
		if value == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(tc.T(key, value))
	}

	appendLine(msgParishAddress, parish.Address)
	appendLine(msgParishBroadcast, parish.BroadcastURL)
	appendLine(msgParishPhone, parish.Phone)
	appendLine(msgParishEmail, parish.Email)
	appendLine(msgParishWebsite, parish.Website)

	if parish.UpdatePeriodInDays > 0 {
		b.WriteString("\n")
		b.WriteString(tc.T(msgParishUpdatePeriod, parish.UpdatePeriodInDays))
	}

	if parish.ImgPath != "" {
		b.WriteString(fmt.Sprintf("\n<a href=\"%s\">%s</a>", parish.ImgPath, parish.Title))
	}

	return b.String()
}
