package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/config"
	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/logging"
	"imshaby_bot/internal/session"
	"imshaby_bot/internal/store"
	"imshaby_bot/internal/telegram/scene"
	"imshaby_bot/internal/token"
)

// Scene names. One scene owns the conversation at a time.
const (
	sceneStart    = "start"
	sceneSchedule = "schedule"
	sceneParish   = "parish"
	sceneContact  = "contact"
	sceneAdmin    = "admin"
)

type sessionStore interface {
	Get(ctx context.Context, chatID, userID int64) (*session.Session, error)
	Put(ctx context.Context, chatID, userID int64, sess *session.Session) error
}

type userRepo interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	UpsertVerified(ctx context.Context, user domain.User) (domain.User, error)
	SetTokens(ctx context.Context, id, accessToken string, expiresAt int64, parishKeys []string) error
	ResetEmail(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
	SetLanguage(ctx context.Context, id, language string) error
	FindByLanguage(ctx context.Context, language string) ([]domain.User, error)
}

type tokenManager interface {
	ValidToken(ctx context.Context, user *domain.User) (string, error)
}

type identityAPI interface {
	GeneratePasswordlessCode(ctx context.Context, email string) (string, error)
	Login(ctx context.Context, code string) (string, error)
	RegisterUser(ctx context.Context, email, defaultParish string, parishes []string) error
}

type scheduleAPI interface {
	ParishByID(ctx context.Context, parishID string) (domain.Parish, error)
	ParishesByKey(ctx context.Context, key string) ([]domain.Parish, error)
	WeekSchedule(ctx context.Context, parishID string) ([]domain.MassDay, error)
	ConfirmMassesActual(ctx context.Context, parishID string) (int, error)
}

type statsProvider interface {
	UserStats(ctx context.Context) (store.UserStats, error)
}

// Dependencies collects the services the router dispatches into.
type Dependencies struct {
	Sessions sessionStore
	Users    userRepo
	Tokens   tokenManager
	Identity identityAPI
	Schedule scheduleAPI
	Stats    statsProvider
}

// Router turns normalized updates into scene transitions and handler
// calls. It owns the scene registry and the session lifecycle around
// each update.
type Router struct {
	cfg       config.Config
	sessions  sessionStore
	users     userRepo
	tokens    tokenManager
	identity  identityAPI
	schedule  scheduleAPI
	stats     statsProvider
	scenes    *scene.Manager
	localizer *Localizer
	logger    *logrus.Entry
	sleep     func(time.Duration)
}

// NewRouter builds the router and registers the conversation scenes.
func NewRouter(cfg config.Config, deps Dependencies, logger *logrus.Entry) (*Router, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Users == nil {
		return nil, errors.New("user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("token manager is required")
	}
	if deps.Identity == nil {
		return nil, errors.New("identity client is required")
	}
	if deps.Schedule == nil {
		return nil, errors.New("schedule client is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	r := &Router{
		cfg:       cfg,
		sessions:  deps.Sessions,
		users:     deps.Users,
		tokens:    deps.Tokens,
		identity:  deps.Identity,
		schedule:  deps.Schedule,
		stats:     deps.Stats,
		scenes:    scene.NewManager(logger),
		localizer: NewLocalizer(cfg.DefaultLanguage),
		logger:    logger,
		sleep:     time.Sleep,
	}

	if err := r.scenes.Register(
		r.startScene(),
		r.scheduleScene(),
		r.parishScene(),
		r.contactScene(),
		r.adminScene(),
	); err != nil {
		return nil, err
	}

	return r, nil
}

// Handle is the bot's update handler. It adapts the transport types and
// reports handler errors to the log; Telegram retries are never wanted.
func (r *Router) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	in, ok := normalizeUpdate(update)
	if !ok {
		return
	}

	if err := r.process(ctx, newSender(b), in); err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "update_failed",
			"chat_id": in.ChatID,
			"user_id": in.UserID,
		}).WithError(err).Error("update handling failed")
	}
}

// process runs one update through the middleware chain: session load,
// user enrichment, locale binding, chat-type filter, routing, session
// persist.
func (r *Router) process(ctx context.Context, snd scene.Sender, in incoming) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if in.ChatID == 0 || in.UserID == 0 {
		return nil
	}

	sess, err := r.sessions.Get(ctx, in.ChatID, in.UserID)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "session_load_failed",
			"chat_id": in.ChatID,
		}).WithError(err).Warn("starting with a fresh session")
		sess = &session.Session{}
	}

	r.enrichUser(ctx, sess, in)

	tc := &scene.Context{
		Sender:     snd,
		Session:    sess,
		ChatID:     in.ChatID,
		UserID:     in.UserID,
		Username:   in.Username,
		Name:       in.Name,
		ChatType:   in.ChatType,
		MessageID:  in.MessageID,
		CallbackID: in.CallbackID,
		Text:       in.Text,
		Action:     in.Action,
		Translate:  r.localizer.Bind(sess.Language),
	}

	if !r.cfg.SupportsChatType(in.ChatType) {
		return nil
	}

	r.touchUser(ctx, in.UserID)

	routeErr := r.route(ctx, tc, in)

	if err := r.sessions.Put(ctx, in.ChatID, in.UserID, sess); err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "session_save_failed",
			"chat_id": in.ChatID,
		}).WithError(err).Error("session not persisted")
	}

	return routeErr
}

// enrichUser backfills the session's user record and locale from
// MongoDB the first time a known user shows up with an empty session.
func (r *Router) enrichUser(ctx context.Context, sess *session.Session, in incoming) {
	if sess.User == nil {
		user, err := r.users.GetByID(ctx, strconv.FormatInt(in.UserID, 10))
		switch {
		case err == nil:
			sess.User = &user
		case errors.Is(err, domain.ErrUserNotFound):
			// first contact, nothing to backfill
		default:
			r.logger.WithFields(logging.Fields{
				"event":   "user_lookup_failed",
				"user_id": in.UserID,
			}).WithError(err).Warn("continuing without user record")
		}
	}

	if sess.Language == "" {
		if sess.User != nil && sess.User.Language != "" {
			sess.Language = sess.User.Language
		} else {
			sess.Language = r.cfg.DefaultLanguage
		}
	}
}

func (r *Router) touchUser(ctx context.Context, userID int64) {
	if err := r.users.Touch(ctx, strconv.FormatInt(userID, 10)); err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "touch_failed",
			"user_id": userID,
		}).WithError(err).Debug("last-activity update skipped")
	}
}

func (r *Router) route(ctx context.Context, tc *scene.Context, in incoming) error {
	if in.IsCallback {
		handled, err := r.scenes.Dispatch(ctx, tc)
		if !handled {
			tc.Ack(ctx)
		}
		return err
	}

	cmd := commandOf(in.Text)
	if cmd == "" {
		cmd = keyboardCommand(in.Text)
	}

	switch cmd {
	case "/start":
		return r.scenes.Enter(ctx, tc, sceneStart)
	case "/menu":
		return r.handleMenu(ctx, tc)
	case "/update":
		return r.gated(ctx, tc, sceneSchedule)
	case "/parish":
		return r.gated(ctx, tc, sceneParish)
	case "/contact":
		return r.gated(ctx, tc, sceneContact)
	case "/info":
		return tc.Reply(ctx, tc.T(msgAboutMain), mainKeyboardFor(tc))
	case "/language":
		return r.handleLanguage(ctx, tc)
	case "/back":
		if err := r.scenes.Leave(ctx, tc); err != nil {
			return err
		}
		return tc.Reply(ctx, tc.T(msgWhatNext), mainKeyboardFor(tc))
	case "/admin":
		return r.handleAdmin(ctx, tc, in.Text)
	}

	handled, err := r.scenes.Dispatch(ctx, tc)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	return r.handleDefault(ctx, tc)
}

// gated enters a scene only when the user holds a valid access token;
// otherwise the start scene takes over to run verification again.
func (r *Router) gated(ctx context.Context, tc *scene.Context, name string) error {
	user := tc.Session.User
	if user == nil || !user.EmailVerified {
		return r.reauth(ctx, tc)
	}

	if _, err := r.tokens.ValidToken(ctx, user); err != nil {
		if !errors.Is(err, token.ErrNotVerified) {
			r.logger.WithFields(logging.Fields{
				"event":   "token_gate_failed",
				"user_id": tc.UserID,
			}).WithError(err).Warn("redirecting to verification")
		}
		return r.reauth(ctx, tc)
	}

	return r.scenes.Enter(ctx, tc, name)
}

func (r *Router) reauth(ctx context.Context, tc *scene.Context) error {
	if err := tc.Reply(ctx, tc.T(msgSessionExpired), nil); err != nil {
		return err
	}
	return r.scenes.Enter(ctx, tc, sceneStart)
}

// handleMenu restores the main keyboard, unless an email verification
// is mid-flight; abandoning it silently would strand the pending code.
func (r *Router) handleMenu(ctx context.Context, tc *scene.Context) error {
	if tc.Session.AuthInProgress() {
		return tc.Reply(ctx, tc.T(msgMenuLocked), resumeEmailKeyboard(tc.T))
	}

	if err := r.scenes.Leave(ctx, tc); err != nil {
		return err
	}
	return tc.Reply(ctx, tc.T(msgWhatNext), mainKeyboardFor(tc))
}

// handleLanguage toggles the chat locale between the two catalogs and
// persists the choice on the user record.
func (r *Router) handleLanguage(ctx context.Context, tc *scene.Context) error {
	lang := "en"
	if tc.Session.Language == "en" {
		lang = "ru"
	}

	if err := r.users.SetLanguage(ctx, strconv.FormatInt(tc.UserID, 10), lang); err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "language_persist_failed",
			"user_id": tc.UserID,
		}).WithError(err).Warn("locale not persisted")
	}

	tc.Session.Language = lang
	if tc.Session.User != nil {
		tc.Session.User.Language = lang
	}
	tc.Translate = r.localizer.Bind(lang)

	return tc.Reply(ctx, tc.T(msgLanguageChanged), mainKeyboardFor(tc))
}

// handleAdmin opens the admin console for listed admins who repeat the
// console password as the second word of the command.
func (r *Router) handleAdmin(ctx context.Context, tc *scene.Context, text string) error {
	parts := strings.Fields(text)
	if !r.cfg.IsAdmin(tc.UserID) || len(parts) < 2 || parts[1] != r.cfg.AdminPassword {
		return tc.Reply(ctx, tc.T(msgAdminDenied), nil)
	}

	return r.scenes.Enter(ctx, tc, sceneAdmin)
}

// handleDefault catches text no scene claimed. A session that still
// waits for an email outside the start scene lost its scene marker, so
// verification is restarted instead of dropping the typed address.
func (r *Router) handleDefault(ctx context.Context, tc *scene.Context) error {
	if tc.Session.AuthState == session.AuthStateWaitingForEmail &&
		r.scenes.ActiveScene(tc) != sceneStart {
		return r.scenes.Enter(ctx, tc, sceneStart)
	}

	tc.CleanupMessages(ctx)
	return tc.Reply(ctx, tc.T(msgDefault), mainKeyboardFor(tc))
}

var keyboardRoutes = map[string]string{
	kbStart:    "/start",
	kbSchedule: "/update",
	kbParish:   "/parish",
	kbAbout:    "/info",
	kbContact:  "/contact",
	kbBack:     "/back",
}

// keyboardCommand maps a reply-keyboard label in any catalog language
// to its command, so a locale switch never strands the old keyboard.
func keyboardCommand(text string) string {
	for key, cmd := range keyboardRoutes {
		for _, catalog := range catalogs {
			if catalog[key] == text {
				return cmd
			}
		}
	}
	return ""
}
