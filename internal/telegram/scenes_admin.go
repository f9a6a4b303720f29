package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"imshaby_bot/internal/identity"
	"imshaby_bot/internal/logging"
	"imshaby_bot/internal/telegram/scene"
)

const adminHelp = `Commands (fields separated by " | "):
write | <chat id> | <message> - send a message to one chat
write | all[.<lang>] | <message> - broadcast to users, optionally by language
stats - user counters
user | <email> | <parish key>[,<parish key>...] - register a volunteer
help - this message`

// The broadcast pause keeps the bot under Telegram's messages-per-second
// limit.
const broadcastDelay = 200 * time.Millisecond

// adminScene is a plain-text console for bot admins. It is not
// localized; the console speaks English regardless of the session
// locale.
func (r *Router) adminScene() *scene.Definition {
	return &scene.Definition{
		Name:   sceneAdmin,
		Enter:  r.adminEnter,
		OnText: r.adminOnText,
	}
}

func (r *Router) adminEnter(ctx context.Context, tc *scene.Context) error {
	return tc.ReplyTracked(ctx, tc.T(msgAdminWelcome)+"\n\n"+adminHelp, backKeyboard(tc.T))
}

func (r *Router) adminOnText(ctx context.Context, tc *scene.Context) error {
	fields := strings.Split(tc.Text, " | ")

	switch strings.TrimSpace(fields[0]) {
	case "write":
		return r.adminWrite(ctx, tc, fields)
	case "stats":
		return r.adminStats(ctx, tc)
	case "user":
		return r.adminRegisterUser(ctx, tc, fields)
	case "help":
		return tc.ReplyTracked(ctx, adminHelp, nil)
	default:
		return tc.ReplyTracked(ctx, tc.T(msgAdminNoCommand), nil)
	}
}

func (r *Router) adminWrite(ctx context.Context, tc *scene.Context, fields []string) error {
	if len(fields) < 3 {
		return tc.ReplyTracked(ctx, "Usage: write | <chat id or all[.lang]> | <message>", nil)
	}

	target := strings.TrimSpace(fields[1])
	message := strings.Join(fields[2:], " | ")

	if strings.HasPrefix(target, "all") {
		return r.adminBroadcast(ctx, tc, target, message)
	}

	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil || len(target) < 6 {
		return tc.ReplyTracked(ctx, fmt.Sprintf("Target %q is not a chat id", target), nil)
	}

	if _, err := tc.Sender.SendMessage(ctx, chatID, message, nil); err != nil {
		return tc.ReplyTracked(ctx, fmt.Sprintf("Send failed: %v", err), nil)
	}
	return tc.ReplyTracked(ctx, "Delivered.", nil)
}

// adminBroadcast fans a message out to every user, or to users with a
// given locale when the target is all.<lang>.
func (r *Router) adminBroadcast(ctx context.Context, tc *scene.Context, target, message string) error {
	lang := ""
	if _, rest, ok := strings.Cut(target, "."); ok {
		lang = rest
	}

	users, err := r.users.FindByLanguage(ctx, lang)
	if err != nil {
		return tc.ReplyTracked(ctx, fmt.Sprintf("Lookup failed: %v", err), nil)
	}

	sent := 0
	for _, user := range users {
		chatID, err := strconv.ParseInt(user.ID, 10, 64)
		if err != nil {
			continue
		}
		if _, err := tc.Sender.SendMessage(ctx, chatID, message, nil); err != nil {
			r.logger.WithFields(logging.Fields{
				"event":   "broadcast_send_failed",
				"chat_id": chatID,
			}).WithError(err).Warn("user skipped")
			continue
		}
		sent++
		r.sleep(broadcastDelay)
	}

	return tc.ReplyTracked(ctx, fmt.Sprintf("Broadcast sent to %d of %d users", sent, len(users)), nil)
}

func (r *Router) adminStats(ctx context.Context, tc *scene.Context) error {
	if r.stats == nil {
		return tc.ReplyTracked(ctx, "Stats are not available", nil)
	}

	stats, err := r.stats.UserStats(ctx)
	if err != nil {
		return tc.ReplyTracked(ctx, fmt.Sprintf("Stats failed: %v", err), nil)
	}

	return tc.ReplyTracked(ctx, fmt.Sprintf(
		"Users: %d\nCreated today: %d\nActive today: %d",
		stats.Total, stats.CreatedToday, stats.ActiveToday,
	), nil)
}

// adminRegisterUser creates a volunteer account in the identity
// provider so the next /start can verify against it.
func (r *Router) adminRegisterUser(ctx context.Context, tc *scene.Context, fields []string) error {
	if len(fields) < 3 {
		return tc.ReplyTracked(ctx, "Usage: user | <email> | <parish key>[,<parish key>...]", nil)
	}

	email := strings.TrimSpace(fields[1])
	keys := splitParishKeys(fields[2])
	if email == "" || len(keys) == 0 {
		return tc.ReplyTracked(ctx, "Email and at least one parish key are required", nil)
	}

	if err := r.identity.RegisterUser(ctx, email, keys[0], keys); err != nil {
		if errors.Is(err, identity.ErrRegistrationDisabled) {
			return tc.ReplyTracked(ctx, "Registration is disabled: identity application id is not configured", nil)
		}
		return tc.ReplyTracked(ctx, fmt.Sprintf("Registration failed: %v", err), nil)
	}

	return tc.ReplyTracked(ctx, fmt.Sprintf("Registered %s for %s", email, strings.Join(keys, ", ")), nil)
}

func splitParishKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
