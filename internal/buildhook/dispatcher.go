package buildhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/config"
	"imshaby_bot/internal/logging"
)

const (
	githubAPIBase  = "https://api.github.com"
	acceptHeader   = "application/vnd.github.v3+json"
	requestTimeout = 10 * time.Second

	// DefaultEventType is used when a rebuild request does not name a
	// workflow.
	DefaultEventType = "build-site"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher sends repository-dispatch events that trigger the static
// site build workflow.
type Dispatcher struct {
	httpClient httpDoer
	baseURL    string
	owner      string
	repo       string
	token      string
	queue      *Queue
	logger     *logrus.Entry
}

// NewDispatcher constructs a Dispatcher bound to the configured GitHub
// repository and the given rebuild queue.
func NewDispatcher(cfg config.Config, queue *Queue, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    githubAPIBase,
		owner:      cfg.RepoOwner,
		repo:       cfg.RepoName,
		token:      cfg.GitHubToken,
		queue:      queue,
		logger:     logger,
	}
}

// Dispatch fires one repository-dispatch event immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	if eventType == "" {
		eventType = DefaultEventType
	}

	body, err := json.Marshal(map[string]string{"event_type": eventType})
	if err != nil {
		return fmt.Errorf("encode dispatch body: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/dispatches", d.baseURL, d.owner, d.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "token "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send dispatch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch rejected: %s", resp.Status)
	}

	d.logger.WithFields(logging.Fields{
		"event":      "build_dispatched",
		"event_type": eventType,
		"repo":       d.owner + "/" + d.repo,
	}).Info("site rebuild triggered")

	return nil
}

// DrainQueue fires at most one dispatch for everything queued since the
// last drain. An empty queue is not an error.
func (d *Dispatcher) DrainQueue(ctx context.Context) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	if d.queue == nil {
		return errors.New("rebuild queue is not attached")
	}

	eventType, coalesced, ok := d.queue.DrainLatest()
	if !ok {
		return nil
	}

	d.logger.WithFields(logging.Fields{
		"event":     "build_queue_drained",
		"coalesced": coalesced,
	}).Info("draining queued rebuild requests")

	return d.Dispatch(ctx, eventType)
}

func (d *Dispatcher) check(ctx context.Context) error {
	if d == nil || d.httpClient == nil {
		return errors.New("dispatcher is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if d.owner == "" || d.repo == "" {
		return errors.New("github repository is not configured")
	}
	return nil
}
