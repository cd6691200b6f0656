// Package api exposes the PennyChat HTTP surface.
//
// It serves a direct turn endpoint for driving the dialogue engine,
// read endpoints for user context and recorded expense actions, a
// health check, and the Twilio inbound webhook.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pennykit/pennychat/internal/bot"
	"github.com/pennykit/pennychat/internal/models"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// ResponsePusher accepts webhook-delivered inbound messages. The Twilio
// messaging service implements it.
type ResponsePusher interface {
	PushResponse(response models.Response)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the PennyChat HTTP API.
type Server struct {
	bot        *bot.Bot
	pusher     ResponsePusher
	httpServer *http.Server
}

// TurnRequest is the body of POST /api/turn.
type TurnRequest struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix seconds, defaults to now
}

// NewServer creates an API server over the given bot. The pusher may be
// nil, in which case the Twilio webhook route is not registered.
func NewServer(b *bot.Bot, pusher ResponsePusher, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{bot: b, pusher: pusher}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Route("/api", func(r chi.Router) {
		r.Post("/turn", s.turnHandler)
		r.Get("/users/{userID}/context", s.contextHandler)
		r.Get("/users/{userID}/actions", s.actionsHandler)
	})
	if pusher != nil {
		r.Post("/webhooks/twilio", s.twilioWebhookHandler)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// turnHandler runs one dialogue turn for a user and returns the reply
// messages, updated context, and any committed actions.
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Server.turnHandler: invalid request body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}

	turn := bot.Turn{UserID: req.UserID, Text: req.Text}
	if req.Timestamp != 0 {
		turn.Timestamp = time.Unix(req.Timestamp, 0)
	}

	result, err := s.bot.HandleTurn(r.Context(), turn)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyUserID), errors.Is(err, models.ErrNoInput):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			slog.Error("Server.turnHandler: turn failed", "error", err, "user_id", req.UserID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to process turn"))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) contextHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	userCtx, err := s.bot.Context(userID)
	if err != nil {
		slog.Error("Server.contextHandler: load failed", "error", err, "user_id", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load context"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(userCtx))
}

func (s *Server) actionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	actions, err := s.bot.Actions(userID)
	if err != nil {
		slog.Error("Server.actionsHandler: list failed", "error", err, "user_id", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list actions"))
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(actions))
}

// twilioWebhookHandler receives Twilio's inbound message callback and
// feeds it to the messaging service. Twilio sends form-encoded fields;
// the sender arrives as "whatsapp:+15551234567".
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid form body"))
		return
	}

	from := strings.TrimPrefix(r.FormValue("From"), "whatsapp:")
	body := r.FormValue("Body")
	if from == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("missing From field"))
		return
	}

	s.pusher.PushResponse(models.Response{
		From: from,
		Body: body,
		Time: time.Now().Unix(),
	})
	w.WriteHeader(http.StatusOK)
}
