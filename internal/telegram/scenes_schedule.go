package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/logging"
	"imshaby_bot/internal/telegram/action"
	"imshaby_bot/internal/telegram/scene"
)

// scheduleScene shows the weekly mass schedule of the selected parish
// and lets its administrator confirm it is still accurate.
func (r *Router) scheduleScene() *scene.Definition {
	return &scene.Definition{
		Name:  sceneSchedule,
		Enter: r.scheduleEnter,
		Actions: map[string]scene.HandlerFunc{
			action.SelectParish:    r.scheduleSelectParish,
			action.RefreshSchedule: r.scheduleRefresh,
		},
	}
}

func (r *Router) scheduleEnter(ctx context.Context, tc *scene.Context) error {
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
		return r.showSchedule(ctx, tc, parish, false)
	default:
		return tc.ReplyTracked(ctx, tc.T(msgNeedSelectParish), parishListKeyboard(parishes))
	}
}

func (r *Router) scheduleSelectParish(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)

	parish, err := r.resolveParish(ctx, tc, tc.Action.Payload)
	if err != nil {
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	return r.showSchedule(ctx, tc, parish, true)
}

// scheduleRefresh confirms the parish schedule as still accurate; the
// API reports how many masses were touched.
func (r *Router) scheduleRefresh(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)

	count, err := r.schedule.ConfirmMassesActual(ctx, tc.Action.Payload)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":     "masses_confirm_failed",
			"parish_id": tc.Action.Payload,
		}).WithError(err).Error("schedule confirmation failed")
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	if err := r.scenes.Leave(ctx, tc); err != nil {
		return err
	}
	return tc.Reply(ctx, tc.T(msgMassesActual, count), mainKeyboardFor(tc))
}

func (r *Router) showSchedule(ctx context.Context, tc *scene.Context, parish *domain.Parish, edit bool) error {
	days, err := r.schedule.WeekSchedule(ctx, parish.ID)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":     "week_schedule_failed",
			"parish_id": parish.ID,
		}).WithError(err).Error("schedule fetch failed")
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	text := renderSchedule(tc, parish, days)
	markup := scheduleControlKeyboard(tc.T, r.cfg.AdminURL, parish.ID, parish.Key)

	if edit && tc.MessageID != 0 {
		return tc.Edit(ctx, text, markup)
	}
	return tc.ReplyTracked(ctx, text, markup)
}

// renderSchedule lays out one line per day, rendered in the session's
// locale: "ВС, 31 Августа: 09:00 11:00".
func renderSchedule(tc *scene.Context, parish *domain.Parish, days []domain.MassDay) string {
	lang := "ru"
	if tc.Session != nil && tc.Session.Language != "" {
		if _, ok := weekdayNames[tc.Session.Language]; ok {
			lang = tc.Session.Language
		}
	}

	var b strings.Builder
	b.WriteString(tc.T(msgChosenParish, parish.Title))
	b.WriteString("\n")

	for _, day := range days {
		b.WriteString("\n")
		b.WriteString(formatScheduleDay(day, lang))
	}

	b.WriteString("\n\n")
	b.WriteString(tc.T(msgScheduleActual))

	return b.String()
}

func formatScheduleDay(day domain.MassDay, lang string) string {
	hours := strings.Join(day.MassHours, " ")

	date, err := time.Parse("1/2/2006", day.Date)
	if err != nil {
		return day.Date + ": " + hours
	}

	weekday := weekdayNames[lang][int(date.Weekday())]
	month := monthNames[lang][int(date.Month())-1]

	return fmt.Sprintf("%s, %d %s: %s", weekday, date.Day(), month, hours)
}

// resolveParish picks the parish from the scene cache, falling back to a
// direct lookup when the cached list did not survive the session round
// trip (a stale inline keyboard can outlive its scene).
func (r *Router) resolveParish(ctx context.Context, tc *scene.Context, id string) (*domain.Parish, error) {
	if parish := tc.Session.SelectParish(id); parish != nil {
		return parish, nil
	}

	fetched, err := r.schedule.ParishByID(ctx, id)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":     "parish_lookup_failed",
			"parish_id": id,
		}).WithError(err).Error("parish not resolved for callback")
		return nil, err
	}

	tc.Session.Parish = &fetched
	return tc.Session.Parish, nil
}

// userParishes resolves the parishes behind the user's observable keys,
// using the session cache for the lifetime of the scene.
func (r *Router) userParishes(ctx context.Context, tc *scene.Context) ([]domain.Parish, error) {
	if len(tc.Session.Parishes) > 0 {
		return tc.Session.Parishes, nil
	}

	user := tc.Session.User
	if user == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	parishes := make([]domain.Parish, 0, len(user.ObservableParishKeys))
	for _, key := range user.ObservableParishKeys {
		found, err := r.schedule.ParishesByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, parish := range found {
			if seen[parish.ID] {
				continue
			}
			seen[parish.ID] = true
			parishes = append(parishes, parish)
		}
	}

	tc.Session.SetParishes(parishes)
	return parishes, nil
}
