// Package identity talks to the passwordless identity provider that
// issues access tokens for parish administrators.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/config"
	"imshaby_bot/internal/logging"
)

const requestTimeout = 10 * time.Second

// ErrUserNotFound is returned when the provider answers a code request
// with an empty body. The provider does this instead of a 404 so that
// the endpoint cannot be used to probe which emails are registered.
var ErrUserNotFound = errors.New("identity: user not found")

// ErrRegistrationDisabled is returned when user registration is invoked
// without an application id configured.
var ErrRegistrationDisabled = errors.New("identity: registration is not configured")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin wrapper over the identity provider's REST API.
type Client struct {
	httpClient httpDoer
	baseURL    string
	apiKey     string
	appID      string
	userPwd    string
	logger     *logrus.Entry
}

// NewClient constructs a Client from the loaded configuration.
func NewClient(cfg config.Config, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(cfg.InternalAPIHost, "/") + "/api",
		apiKey:     cfg.InternalAPIKey,
		appID:      cfg.IdentityAppID,
		userPwd:    cfg.IdentityUserPwd,
		logger:     logger,
	}
}

// GeneratePasswordlessCode asks the provider for a one-time code for
// the given email. An empty 200 response means the email is unknown
// and maps to ErrUserNotFound.
func (c *Client) GeneratePasswordlessCode(ctx context.Context, email string) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}
	if email == "" {
		return "", errors.New("email is required")
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := c.post(ctx, "/passwordless/code", map[string]string{"email": email}, &out); err != nil {
		return "", fmt.Errorf("generate passwordless code: %w", err)
	}

	if out.Code == "" {
		c.logger.WithFields(logging.Fields{
			"event": "identity_user_not_found",
			"email": email,
		}).Warn("no passwordless code returned for email")
		return "", ErrUserNotFound
	}

	return out.Code, nil
}

// Login exchanges a one-time code for a bearer access token.
func (c *Client) Login(ctx context.Context, code string) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}
	if code == "" {
		return "", errors.New("code is required")
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/passwordless/login", map[string]string{"code": code}, &out); err != nil {
		return "", fmt.Errorf("passwordless login: %w", err)
	}

	if out.Token == "" {
		return "", errors.New("passwordless login: no token returned")
	}

	return out.Token, nil
}

// RetrieveAccessToken performs the full one-shot exchange: request a
// code for the email, then immediately trade it for an access token.
func (c *Client) RetrieveAccessToken(ctx context.Context, email string) (string, error) {
	code, err := c.GeneratePasswordlessCode(ctx, email)
	if err != nil {
		return "", err
	}

	token, err := c.Login(ctx, code)
	if err != nil {
		return "", err
	}

	c.logger.WithFields(logging.Fields{
		"event": "identity_token_retrieved",
		"email": email,
	}).Info("retrieved access token")

	return token, nil
}

// RegisterUser creates a provider account for a parish administrator
// with the Volunteer role and the given parish assignments. Invoked
// from the admin console only.
func (c *Client) RegisterUser(ctx context.Context, email, defaultParish string, parishes []string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if c.appID == "" {
		return ErrRegistrationDisabled
	}
	if email == "" {
		return errors.New("email is required")
	}

	parishData := make(map[string]string, len(parishes))
	for i, parish := range parishes {
		parishData[fmt.Sprintf("%d", i)] = parish
	}

	body := map[string]interface{}{
		"registration": map[string]interface{}{
			"applicationId": c.appID,
			"roles":         []string{"Volunteer"},
			"username":      email,
		},
		"applicationId":    c.appID,
		"skipVerification": true,
		"user": map[string]interface{}{
			"password": c.userPwd,
			"email":    email,
			"data": map[string]interface{}{
				"defaultParish": defaultParish,
				"parishes":      parishData,
			},
		},
	}

	if err := c.post(ctx, "/user/registration", body, nil); err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event":    "identity_user_registered",
		"email":    email,
		"parishes": len(parishes),
	}).Info("registered identity user")

	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) check(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("identity client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
