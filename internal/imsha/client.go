// Package imsha is the client for the imsha.by schedule API: parish
// lookups, weekly mass schedules, relevance confirmation, and the
// expiry scan consumed by the notifier.
package imsha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/config"
	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/logging"
)

const (
	requestTimeout = 10 * time.Second
	userAgent      = "telegram-bot"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps the schedule API.
type Client struct {
	httpClient httpDoer
	baseURL    string
	apiKey     string
	logger     *logrus.Entry
}

// NewClient constructs a Client from the loaded configuration.
func NewClient(cfg config.Config, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(cfg.APIHost, "/") + "/api",
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

// parishPayload is the API's wire shape for a parish resource.
type parishPayload struct {
	ID                 string `json:"id"`
	Key                string `json:"key"`
	Name               string `json:"name"`
	Address            string `json:"address"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	Website            string `json:"website"`
	BroadcastURL       string `json:"broadcastUrl"`
	ImgPath            string `json:"imgPath"`
	NeedUpdate         bool   `json:"needUpdate"`
	UpdatePeriodInDays int    `json:"updatePeriodInDays"`
	LastMassActualDate string `json:"lastMassActualDate"`
	LastModifiedDate   string `json:"lastModifiedDate"`
}

func (p parishPayload) toDomain() domain.Parish {
	return domain.Parish{
		ID:                 p.ID,
		Key:                p.Key,
		Title:              p.Name,
		Address:            p.Address,
		Phone:              p.Phone,
		Email:              p.Email,
		Website:            p.Website,
		BroadcastURL:       p.BroadcastURL,
		ImgPath:            p.ImgPath,
		NeedUpdate:         p.NeedUpdate,
		UpdatePeriodInDays: p.UpdatePeriodInDays,
		LastMassActualDate: p.LastMassActualDate,
		LastModifiedDate:   p.LastModifiedDate,
	}
}

// ParishByID fetches a single parish by its resource id.
func (c *Client) ParishByID(ctx context.Context, parishID string) (domain.Parish, error) {
	if err := c.check(ctx); err != nil {
		return domain.Parish{}, err
	}
	if parishID == "" {
		return domain.Parish{}, errors.New("parish id is required")
	}

	var payload parishPayload
	if err := c.get(ctx, "/parish/"+url.PathEscape(parishID), &payload); err != nil {
		return domain.Parish{}, fmt.Errorf("fetch parish %s: %w", parishID, err)
	}

	return payload.toDomain(), nil
}

// ParishesByKey fetches all parishes registered under the given key.
func (c *Client) ParishesByKey(ctx context.Context, parishKey string) ([]domain.Parish, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if parishKey == "" {
		return nil, errors.New("parish key is required")
	}

	var payload []parishPayload
	path := "/parish?filter=" + url.QueryEscape("key=="+parishKey)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("fetch parishes by key %s: %w", parishKey, err)
	}

	parishes := make([]domain.Parish, 0, len(payload))
	for _, item := range payload {
		parishes = append(parishes, item.toDomain())
	}

	return parishes, nil
}

// WeekSchedule fetches the current week's mass schedule for a parish.
// A parish without any scheduled masses yields an empty slice.
func (c *Client) WeekSchedule(ctx context.Context, parishID string) ([]domain.MassDay, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if parishID == "" {
		return nil, errors.New("parish id is required")
	}

	var payload struct {
		Schedule []struct {
			Date      string `json:"date"`
			MassHours []struct {
				Hour string `json:"hour"`
			} `json:"massHours"`
		} `json:"schedule"`
	}
	if err := c.get(ctx, "/mass/week?parishId="+url.QueryEscape(parishID), &payload); err != nil {
		return nil, fmt.Errorf("fetch week schedule for %s: %w", parishID, err)
	}

	days := make([]domain.MassDay, 0, len(payload.Schedule))
	for _, day := range payload.Schedule {
		hours := make([]string, 0, len(day.MassHours))
		for _, mass := range day.MassHours {
			hours = append(hours, mass.Hour)
		}
		days = append(days, domain.MassDay{Date: day.Date, MassHours: hours})
	}

	return days, nil
}

// ConfirmMassesActual marks every mass of the parish as confirmed
// up-to-date and returns how many mass records were touched.
func (c *Client) ConfirmMassesActual(ctx context.Context, parishID string) (int, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	if parishID == "" {
		return 0, errors.New("parish id is required")
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/mass?parishId="+url.QueryEscape(parishID))
	if err != nil {
		return 0, err
	}

	var payload struct {
		Entities map[string]json.RawMessage `json:"entities"`
	}
	if err := c.do(req, &payload); err != nil {
		return 0, fmt.Errorf("confirm masses for %s: %w", parishID, err)
	}

	c.logger.WithFields(logging.Fields{
		"event":     "masses_confirmed",
		"parish_id": parishID,
		"masses":    len(payload.Entities),
	}).Info("confirmed parish masses as actual")

	return len(payload.Entities), nil
}

// ExpiryReport is the schedule API's relevance scan result.
type ExpiryReport struct {
	ExpiredParishes       []domain.ExpiredParish `json:"expiredParishes"`
	AlmostExpiredParishes []domain.ExpiredParish `json:"almostExpiredParishes"`
}

// ExpiredParishes fetches parishes whose schedules have lapsed or are
// about to lapse.
func (c *Client) ExpiredParishes(ctx context.Context) (ExpiryReport, error) {
	if err := c.check(ctx); err != nil {
		return ExpiryReport{}, err
	}

	var report ExpiryReport
	if err := c.get(ctx, "/parish/expired", &report); err != nil {
		return ExpiryReport{}, fmt.Errorf("fetch expired parishes: %w", err)
	}

	return report, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-show-pending", "true")

	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
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
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) check(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("schedule api client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
