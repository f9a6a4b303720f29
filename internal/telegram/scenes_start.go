package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"imshaby_bot/internal/config"
	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/identity"
	"imshaby_bot/internal/logging"
	"imshaby_bot/internal/session"
	"imshaby_bot/internal/telegram/action"
	"imshaby_bot/internal/telegram/scene"
	"imshaby_bot/internal/token"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// startScene runs email verification and token retrieval. It is the
// entry point for new users and the fallback whenever the token gate
// fails.
func (r *Router) startScene() *scene.Definition {
	return &scene.Definition{
		Name:  sceneStart,
		Enter: r.startEnter,
		Actions: map[string]scene.HandlerFunc{
			action.ChangeEmail:         r.startChangeEmail,
			action.ChangeEmailToken:    r.startChangeEmail,
			action.AskAdminToken:       r.startAskAdmin,
			action.RetryTokenRetrieval: r.startRetryToken,
			action.ContactAdmin:        r.startContactAdmin,
		},
		OnText: r.startOnText,
	}
}

func (r *Router) startEnter(ctx context.Context, tc *scene.Context) error {
	if user := tc.Session.User; user != nil && user.EmailVerified {
		return r.attemptTokenRetrieval(ctx, tc, msgAlreadyVerified)
	}

	tc.Session.AwaitEmail()
	return tc.ReplyTracked(ctx, tc.T(msgAskEmail), nil)
}

func (r *Router) startOnText(ctx context.Context, tc *scene.Context) error {
	switch tc.Session.AuthState {
	case session.AuthStateWaitingForEmail:
		return r.startEmailSubmitted(ctx, tc)
	case session.AuthStateWaitingForCode:
		return r.startCodeSubmitted(ctx, tc)
	default:
		tc.Session.AwaitEmail()
		return tc.ReplyTracked(ctx, tc.T(msgAskEmail), nil)
	}
}

func (r *Router) startEmailSubmitted(ctx context.Context, tc *scene.Context) error {
	email := strings.TrimSpace(tc.Text)
	if !emailPattern.MatchString(email) {
		return tc.ReplyTracked(ctx, tc.T(msgInvalidEmail), nil)
	}

	code, err := r.identity.GeneratePasswordlessCode(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			tc.Session.RememberEmail(email)
			return tc.ReplyTracked(ctx, tc.T(msgEmailNotRegistered), emailNotRegisteredKeyboard(tc.T))
		}
		r.logger.WithFields(logging.Fields{
			"event":   "passwordless_code_failed",
			"user_id": tc.UserID,
		}).WithError(err).Error("could not start email verification")
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	if r.cfg.AuthFlow == config.AuthFlowTwoStep {
		tc.Session.AwaitCode(email)
		return tc.ReplyTracked(ctx, tc.T(msgAskCode, email), nil)
	}

	accessToken, err := r.identity.Login(ctx, code)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "passwordless_login_failed",
			"user_id": tc.UserID,
		}).WithError(err).Error("single-step code exchange failed")
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	return r.completeVerification(ctx, tc, email, accessToken)
}

func (r *Router) startCodeSubmitted(ctx context.Context, tc *scene.Context) error {
	accessToken, err := r.identity.Login(ctx, strings.TrimSpace(tc.Text))
	if err != nil {
		return tc.ReplyTracked(ctx, tc.T(msgInvalidCode), nil)
	}

	return r.completeVerification(ctx, tc, tc.Session.PendingEmail, accessToken)
}

// completeVerification persists the verified user together with the
// freshly issued token and announces the result.
func (r *Router) completeVerification(ctx context.Context, tc *scene.Context, email, accessToken string) error {
	stored, err := r.users.UpsertVerified(ctx, domain.User{
		ID:            strconv.FormatInt(tc.UserID, 10),
		Username:      tc.Username,
		Name:          tc.Name,
		Email:         email,
		EmailVerified: true,
		Language:      tc.Session.Language,
	})
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "user_upsert_failed",
			"user_id": tc.UserID,
		}).WithError(err).Error("verified user not persisted")
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	expiresAt := token.DecodeExpiry(accessToken)
	parishKeys := token.ExtractParishKeys(accessToken)

	if err := r.users.SetTokens(ctx, stored.ID, accessToken, expiresAt, parishKeys); err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "token_persist_failed",
			"user_id": tc.UserID,
		}).WithError(err).Error("token not persisted after verification")
		return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
	}

	stored.AccessToken = accessToken
	stored.TokenExpiresAt = expiresAt
	stored.ObservableParishKeys = parishKeys
	tc.Session.User = &stored
	tc.Session.ClearAuth()

	return r.attemptTokenRetrieval(ctx, tc, msgWelcome)
}

// attemptTokenRetrieval closes the start scene when the user holds a
// usable token and parish access; every other outcome keeps the scene
// open with a recovery keyboard.
func (r *Router) attemptTokenRetrieval(ctx context.Context, tc *scene.Context, successKey string) error {
	user := tc.Session.User

	if _, err := r.tokens.ValidToken(ctx, user); err != nil {
		if errors.Is(err, token.ErrNotVerified) {
			tc.Session.AwaitEmail()
			return tc.ReplyTracked(ctx, tc.T(msgAskEmail), nil)
		}
		r.logger.WithFields(logging.Fields{
			"event":   "token_retrieval_failed",
			"user_id": tc.UserID,
		}).WithError(err).Warn("token retrieval failed in start scene")
		return tc.ReplyTracked(ctx, tc.T(msgTokenFailed), tokenFailedKeyboard(tc.T))
	}

	if len(user.ObservableParishKeys) == 0 {
		return tc.ReplyTracked(ctx, tc.T(msgNoParishesAssigned), contactAdminKeyboard(tc.T))
	}

	if err := r.scenes.Leave(ctx, tc); err != nil {
		return err
	}
	return tc.Reply(ctx, tc.T(successKey), mainKeyboardFor(tc))
}

// startChangeEmail unbinds the current address before asking for a new
// one; a verified record must not survive an explicit email change.
func (r *Router) startChangeEmail(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)

	if user := tc.Session.User; user != nil {
		if err := r.users.ResetEmail(ctx, user.ID); err != nil {
			r.logger.WithFields(logging.Fields{
				"event":   "email_reset_failed",
				"user_id": tc.UserID,
			}).WithError(err).Error("verified record not reset before email change")
			return tc.ReplyTracked(ctx, tc.T(msgSomethingWrong), nil)
		}
		user.Email = ""
		user.EmailVerified = false
		user.AccessToken = ""
		user.TokenExpiresAt = 0
	}

	tc.Session.AwaitEmail()
	return tc.ReplyTracked(ctx, tc.T(msgAskEmail), nil)
}

// startAskAdmin relays a token-help request to every configured admin.
func (r *Router) startAskAdmin(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)

	email := tc.Session.PendingEmail
	if user := tc.Session.User; user != nil && user.Email != "" {
		email = user.Email
	}
	note := fmt.Sprintf("Token help requested by %s (@%s, id %d), email: %s",
		tc.Name, tc.Username, tc.UserID, email)

	for _, adminID := range r.cfg.AdminIDs {
		if _, err := tc.Sender.SendMessage(ctx, adminID, note, nil); err != nil {
			r.logger.WithFields(logging.Fields{
				"event":    "admin_notify_failed",
				"admin_id": adminID,
			}).WithError(err).Warn("admin not reachable")
		}
	}

	return tc.ReplyTracked(ctx, tc.T(msgAdminsNotified), nil)
}

func (r *Router) startRetryToken(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)
	return r.attemptTokenRetrieval(ctx, tc, msgWelcome)
}

func (r *Router) startContactAdmin(ctx context.Context, tc *scene.Context) error {
	tc.Ack(ctx)
	return r.scenes.Enter(ctx, tc, sceneContact)
}
