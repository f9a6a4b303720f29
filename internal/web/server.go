// Package web hosts the bot's HTTP surface: the Telegram webhook, the
// health endpoint, group-chat notification hooks, and the site-rebuild
// hooks.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/logging"
)

const (
	pingTimeout       = 2 * time.Second
	readHeaderTimeout = 2 * time.Second

	headerBuildNow     = "x-build-now"
	headerWorkflowType = "workflow-type"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type groupNotifier interface {
	NotifyGroupChat(ctx context.Context, chatID int64, parishName string) error
}

type buildDispatcher interface {
	Dispatch(ctx context.Context, eventType string) error
}

type rebuildQueue interface {
	Push(eventType string)
	Snapshot() []string
}

// Deps are the collaborators behind the HTTP endpoints.
type Deps struct {
	Mongo      pinger
	Redis      pinger
	Webhook    http.Handler
	Notifier   groupNotifier
	Dispatcher buildDispatcher
	Queue      rebuildQueue
}

// Server owns the HTTP listener.
type Server struct {
	server *http.Server
	deps   Deps
	logger *logrus.Entry
}

// NewServer wires the endpoints onto the given port. The webhook
// handler is mounted only when both it and the path are provided, so
// development builds can run on long polling without a public URL.
func NewServer(port int, webhookPath string, deps Deps, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		deps:   deps,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleRoot)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/chat/parish", srv.handleChatNotify)
	mux.HandleFunc("/chat/city", srv.handleChatNotify)
	mux.HandleFunc("/build-site", srv.handleBuildSite)
	mux.HandleFunc("/build-site/messages", srv.handleBuildMessages)
	if deps.Webhook != nil && webhookPath != "" && webhookPath != "/" {
		mux.Handle(webhookPath, deps.Webhook)
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "web_listen",
		"addr":  s.server.Addr,
	}).Info("starting web server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "web_stopped").Info("web server stopped")
			return nil
		}

		return fmt.Errorf("web server listen: %w", err)
	}

	s.logger.WithField("event", "web_stopped").Info("web server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := struct {
		Status string `json:"status"`
		Mongo  string `json:"mongo,omitempty"`
		Redis  string `json:"redis,omitempty"`
	}{Status: "ok"}

	if status := s.pingStatus(ctx, s.deps.Mongo, "mongo"); status != "ok" {
		resp.Status = "degraded"
		resp.Mongo = status
	}
	if status := s.pingStatus(ctx, s.deps.Redis, "redis"); status != "ok" {
		resp.Status = "degraded"
		resp.Redis = status
	}

	writeJSON(w, http.StatusOK, resp, s.logger)
}

func (s *Server) pingStatus(ctx context.Context, p pinger, name string) string {
	if p == nil {
		s.logger.WithField("event", "health_checker_missing").Warnf("%s checker is not configured", name)
		return "error"
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.Ping(pingCtx); err != nil {
		s.logger.WithFields(logging.Fields{
			"event":  "health_ping_failed",
			"target": name,
		}).WithError(err).Warn("dependency ping failed")
		return "error"
	}

	return "ok"
}

// handleChatNotify announces a parish schedule change in the group chat
// named by the chatId query parameter. The parish and city variants
// share the payload shape.
func (s *Server) handleChatNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Notifier == nil {
		http.Error(w, "notifier is not configured", http.StatusServiceUnavailable)
		return
	}

	chatID, err := strconv.ParseInt(r.URL.Query().Get("chatId"), 10, 64)
	if err != nil || chatID == 0 {
		http.Error(w, "chatId query parameter is required", http.StatusBadRequest)
		return
	}

	var payload struct {
		Parish struct {
			Name string `json:"name"`
		} `json:"parish"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Parish.Name == "" {
		http.Error(w, "parish name is required", http.StatusBadRequest)
		return
	}

	if err := s.deps.Notifier.NotifyGroupChat(r.Context(), chatID, payload.Parish.Name); err != nil {
		s.logger.WithFields(logging.Fields{
			"event":   "group_notify_failed",
			"chat_id": chatID,
		}).WithError(err).Error("group notification failed")
		http.Error(w, "notification failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// handleBuildSite triggers a site rebuild. With the x-build-now header
// the dispatch fires immediately; otherwise the request is queued for
// the next cron drain.
func (s *Server) handleBuildSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventType := r.Header.Get(headerWorkflowType)

	if r.Header.Get(headerBuildNow) != "" {
		if s.deps.Dispatcher == nil {
			http.Error(w, "dispatcher is not configured", http.StatusServiceUnavailable)
			return
		}
		if err := s.deps.Dispatcher.Dispatch(r.Context(), eventType); err != nil {
			s.logger.WithField("event", "build_dispatch_failed").WithError(err).Error("immediate rebuild failed")
			http.Error(w, "dispatch failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "dispatched"}, s.logger)
		return
	}

	if s.deps.Queue == nil {
		http.Error(w, "rebuild queue is not configured", http.StatusServiceUnavailable)
		return
	}
	s.deps.Queue.Push(eventType)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"}, s.logger)
}

func (s *Server) handleBuildMessages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queue == nil {
		http.Error(w, "rebuild queue is not configured", http.StatusServiceUnavailable)
		return
	}

	messages := s.deps.Queue.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		Count    int      `json:"count"`
		Messages []string `json:"messages"`
	}{Count: len(messages), Messages: messages}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithField("event", "response_write_error").WithError(err).Error("failed to encode response")
	}
}
