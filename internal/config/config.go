// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken   = "TELEGRAM_TOKEN"
	KeyMongoURI        = "MONGO_URI"
	KeyMongoDB         = "MONGO_DB"
	KeyRedisAddr       = "REDIS_ADDR"
	KeyRedisPassword   = "REDIS_PASSWORD"
	KeyAPIHost         = "API_HOST"
	KeyAPIKey          = "API_KEY"
	KeyInternalAPIHost = "INTERNAL_API_HOST"
	KeyInternalAPIKey  = "INTERNAL_API_KEY"
	KeyIdentityAppID   = "IDENTITY_APP_ID"
	KeyIdentityUserPwd = "IDENTITY_USER_PASSWORD"
	KeyAdminIDs        = "ADMIN_IDS"
	KeyAdminPassword   = "ADMIN_PASSWORD"
	KeyAdminURL        = "ADMIN_URL"
	KeyWebhookPath     = "WEBHOOK_PATH"
	KeyWebhookURL      = "WEBHOOK_URL"
	KeyScheduleNotify  = "SCHEDULE_NOTIFY"
	KeyScheduleBuild   = "SCHEDULE_BUILD"
	KeyRepoOwner       = "REPO_OWNER"
	KeyRepoName        = "REPO_NAME"
	KeyGitHubToken     = "GITHUB_TOKEN"
	KeyAppEnv          = "APP_ENV"
	KeyLogLevel        = "LOG_LEVEL"
	KeyHTTPPort        = "HTTP_PORT"
	KeyDefaultLanguage = "DEFAULT_LANGUAGE"
	KeyChatTypes       = "CHAT_TYPES"
	KeyAuthFlow        = "AUTH_FLOW"
	KeySessionTTLHours = "SESSION_TTL_HOURS"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Identity verification flow variants.
	AuthFlowSingle  = "single"
	AuthFlowTwoStep = "two_step"

	// Defaults for optional settings.
	DefaultAppEnv          = EnvProduction
	DefaultLogLevel        = "info"
	DefaultHTTPPort        = 8080
	DefaultLanguage        = "ru"
	DefaultChatTypes       = "private"
	DefaultAuthFlow        = AuthFlowSingle
	DefaultSessionTTLHours = 720
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string for user records.",
	},
	{
		Key:         KeyMongoDB,
		Example:     "imshaby_bot",
		Required:    true,
		Description: "MongoDB database name.",
	},
	{
		Key:         KeyRedisAddr,
		Example:     "127.0.0.1:6379",
		Required:    true,
		Description: "Redis address for conversation sessions.",
	},
	{
		Key:         KeyRedisPassword,
		Example:     "secret",
		Description: "Redis password; empty when auth is disabled.",
	},
	{
		Key:         KeyAPIHost,
		Example:     "https://api.imsha.by",
		Required:    true,
		Description: "Schedule API base URL.",
	},
	{
		Key:         KeyAPIKey,
		Example:     "api-key",
		Required:    true,
		Description: "API key sent to the schedule API.",
	},
	{
		Key:         KeyInternalAPIHost,
		Example:     "https://identity.imsha.by",
		Required:    true,
		Description: "Identity provider base URL.",
	},
	{
		Key:         KeyInternalAPIKey,
		Example:     "internal-key",
		Required:    true,
		Description: "API key sent to the identity provider.",
	},
	{
		Key:         KeyIdentityAppID,
		Example:     "3c219e58-ed0e-4b18-ad48-f4f92793ae32",
		Description: "Identity provider application id used when registering users.",
		Notes:       "Admin user registration is disabled when unset.",
	},
	{
		Key:         KeyIdentityUserPwd,
		Example:     "initial-pass",
		Description: "Initial password assigned to users registered via the admin console.",
	},
	{
		Key:         KeyAdminIDs,
		Example:     "123456789,987654321",
		Required:    true,
		Description: "Comma-separated Telegram user ids with admin privileges.",
	},
	{
		Key:         KeyAdminPassword,
		Example:     "pass",
		Required:    true,
		Description: "Password required to open the admin console.",
	},
	{
		Key:         KeyAdminURL,
		Example:     "https://admin.imsha.by",
		Required:    true,
		Description: "Admin panel base URL linked from the parish scene.",
	},
	{
		Key:         KeyWebhookPath,
		Example:     "/webhook",
		Required:    true,
		Description: "HTTP path receiving Telegram webhook updates.",
	},
	{
		Key:         KeyWebhookURL,
		Example:     "https://bot.imsha.by",
		Required:    true,
		Description: "Public URL registered as the Telegram webhook.",
	},
	{
		Key:         KeyScheduleNotify,
		Example:     "0 18 * * *",
		Required:    true,
		Description: "Cron expression for the stale-parish notification scan.",
	},
	{
		Key:         KeyScheduleBuild,
		Example:     "*/30 * * * *",
		Required:    true,
		Description: "Cron expression for draining queued site-rebuild triggers.",
	},
	{
		Key:         KeyRepoOwner,
		Example:     "imshaby",
		Required:    true,
		Description: "GitHub owner of the site repository.",
	},
	{
		Key:         KeyRepoName,
		Example:     "imsha-site",
		Required:    true,
		Description: "GitHub repository receiving build dispatch events.",
	},
	{
		Key:         KeyGitHubToken,
		Example:     "ghp_...",
		Required:    true,
		Description: "GitHub token used for repository dispatch calls.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format, dotenv usage, and webhook vs polling.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port for the webhook/health server.",
	},
	{
		Key:         KeyDefaultLanguage,
		Example:     DefaultLanguage,
		Default:     DefaultLanguage,
		Description: "Fallback locale when the user has no persisted language.",
	},
	{
		Key:         KeyChatTypes,
		Example:     "private,group",
		Default:     DefaultChatTypes,
		Description: "Comma-separated chat types the bot responds in.",
	},
	{
		Key:         KeyAuthFlow,
		Example:     AuthFlowSingle + " / " + AuthFlowTwoStep,
		Default:     DefaultAuthFlow,
		Description: "Identity verification variant: one-shot code exchange or typed-back code.",
	},
	{
		Key:         KeySessionTTLHours,
		Example:     strconv.Itoa(DefaultSessionTTLHours),
		Default:     strconv.Itoa(DefaultSessionTTLHours),
		Description: "Redis session lifetime in hours.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken   string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	RedisPassword   string
	APIHost         string
	APIKey          string
	InternalAPIHost string
	InternalAPIKey  string
	IdentityAppID   string
	IdentityUserPwd string
	AdminIDs        []int64
	AdminPassword   string
	AdminURL        string
	WebhookPath     string
	WebhookURL      string
	ScheduleNotify  string
	ScheduleBuild   string
	RepoOwner       string
	RepoName        string
	GitHubToken     string
	AppEnv          string
	LogLevel        string
	HTTPPort        int
	DefaultLanguage string
	ChatTypes       []string
	AuthFlow        string
	SessionTTLHours int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:   getenv(KeyTelegramToken),
		MongoURI:        getenv(KeyMongoURI),
		MongoDB:         getenv(KeyMongoDB),
		RedisAddr:       getenv(KeyRedisAddr),
		RedisPassword:   getenv(KeyRedisPassword),
		APIHost:         getenv(KeyAPIHost),
		APIKey:          getenv(KeyAPIKey),
		InternalAPIHost: getenv(KeyInternalAPIHost),
		InternalAPIKey:  getenv(KeyInternalAPIKey),
		IdentityAppID:   getenv(KeyIdentityAppID),
		IdentityUserPwd: getenv(KeyIdentityUserPwd),
		AdminPassword:   getenv(KeyAdminPassword),
		AdminURL:        getenv(KeyAdminURL),
		WebhookPath:     getenv(KeyWebhookPath),
		WebhookURL:      getenv(KeyWebhookURL),
		ScheduleNotify:  getenv(KeyScheduleNotify),
		ScheduleBuild:   getenv(KeyScheduleBuild),
		RepoOwner:       getenv(KeyRepoOwner),
		RepoName:        getenv(KeyRepoName),
		GitHubToken:     getenv(KeyGitHubToken),
		LogLevel:        firstNonEmpty(getenv(KeyLogLevel), DefaultLogLevel),
		HTTPPort:        DefaultHTTPPort,
		DefaultLanguage: firstNonEmpty(getenv(KeyDefaultLanguage), DefaultLanguage),
		AuthFlow:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAuthFlow)), DefaultAuthFlow),
		SessionTTLHours: DefaultSessionTTLHours,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	if cfg.AuthFlow != AuthFlowSingle && cfg.AuthFlow != AuthFlowTwoStep {
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyAuthFlow, AuthFlowSingle, AuthFlowTwoStep)
	}

	missing := make([]string, 0)
	for _, spec := range Contract {
		if !spec.Required {
			continue
		}
		if getenv(spec.Key) == "" {
			missing = append(missing, spec.Key)
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	if !strings.HasPrefix(cfg.WebhookPath, "/") {
		return Config{}, fmt.Errorf("invalid %s: must start with /", KeyWebhookPath)
	}

	adminIDs, err := parseAdminIDs(getenv(KeyAdminIDs))
	if err != nil {
		return Config{}, err
	}
	cfg.AdminIDs = adminIDs

	cfg.ChatTypes = splitList(firstNonEmpty(getenv(KeyChatTypes), DefaultChatTypes))

	if raw := getenv(KeyHTTPPort); raw != "" {
		port, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	if raw := getenv(KeySessionTTLHours); raw != "" {
		hours, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeySessionTTLHours, parseErr)
		}
		if hours <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeySessionTTLHours)
		}
		cfg.SessionTTLHours = hours
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// IsAdmin reports whether the given Telegram user id is listed in ADMIN_IDS.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SupportsChatType reports whether the bot should react in the given chat type.
func (c Config) SupportsChatType(chatType string) bool {
	for _, allowed := range c.ChatTypes {
		if allowed == chatType {
			return true
		}
	}
	return false
}

// FormatRedacted renders a human-readable summary of the configuration with
// secrets masked, for the --config-only diagnostic mode.
func FormatRedacted(cfg Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "app_env: %s\n", cfg.AppEnv)
	fmt.Fprintf(&b, "telegram_token: %s\n", maskSecret(cfg.TelegramToken))
	fmt.Fprintf(&b, "mongo_uri: %s\n", redactURICredentials(cfg.MongoURI))
	fmt.Fprintf(&b, "mongo_db: %s\n", cfg.MongoDB)
	fmt.Fprintf(&b, "redis_addr: %s\n", cfg.RedisAddr)
	fmt.Fprintf(&b, "api_host: %s\n", cfg.APIHost)
	fmt.Fprintf(&b, "api_key: %s\n", maskSecret(cfg.APIKey))
	fmt.Fprintf(&b, "internal_api_host: %s\n", cfg.InternalAPIHost)
	fmt.Fprintf(&b, "internal_api_key: %s\n", maskSecret(cfg.InternalAPIKey))
	fmt.Fprintf(&b, "identity_app_id: %s\n", cfg.IdentityAppID)
	fmt.Fprintf(&b, "identity_user_password: %s\n", maskSecret(cfg.IdentityUserPwd))
	fmt.Fprintf(&b, "admin_ids: %d configured\n", len(cfg.AdminIDs))
	fmt.Fprintf(&b, "admin_url: %s\n", cfg.AdminURL)
	fmt.Fprintf(&b, "webhook: %s%s\n", cfg.WebhookURL, cfg.WebhookPath)
	fmt.Fprintf(&b, "schedule_notify: %s\n", cfg.ScheduleNotify)
	fmt.Fprintf(&b, "schedule_build: %s\n", cfg.ScheduleBuild)
	fmt.Fprintf(&b, "github_repo: %s/%s\n", cfg.RepoOwner, cfg.RepoName)
	fmt.Fprintf(&b, "github_token: %s\n", maskSecret(cfg.GitHubToken))
	fmt.Fprintf(&b, "log_level: %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "http_port: %d\n", cfg.HTTPPort)
	fmt.Fprintf(&b, "default_language: %s\n", cfg.DefaultLanguage)
	fmt.Fprintf(&b, "chat_types: %s\n", strings.Join(cfg.ChatTypes, ","))
	fmt.Fprintf(&b, "auth_flow: %s\n", cfg.AuthFlow)
	fmt.Fprintf(&b, "session_ttl_hours: %d\n", cfg.SessionTTLHours)

	return b.String()
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "...redacted"
	}
	return value[:4] + "...redacted"
}

func redactURICredentials(uri string) string {
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd < 0 {
		return uri
	}
	at := strings.LastIndex(uri, "@")
	if at < 0 {
		return uri
	}
	return uri[:schemeEnd+3] + uri[at+1:]
}

func parseAdminIDs(raw string) ([]int64, error) {
	parts := splitList(raw)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", KeyAdminIDs, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("invalid %s: at least one id is required", KeyAdminIDs)
	}
	return ids, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
