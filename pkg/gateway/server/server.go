// Package server assembles the gateway: session registry, voice task
// supervisor, live socket tracker, and the /v1 router behind the shared
// middleware chain.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/core/voice"
	"github.com/medvoice-ai/medvoice/pkg/core/voice/daily"
	"github.com/medvoice-ai/medvoice/pkg/gateway/config"
	"github.com/medvoice-ai/medvoice/pkg/gateway/handlers"
	"github.com/medvoice-ai/medvoice/pkg/gateway/lifecycle"
	"github.com/medvoice-ai/medvoice/pkg/gateway/live/sessions"
	"github.com/medvoice-ai/medvoice/pkg/gateway/mw"
	"github.com/medvoice-ai/medvoice/pkg/gateway/registry"
	"github.com/medvoice-ai/medvoice/pkg/gateway/runner"
)

// Dependencies are the conversation and voice collaborators the server
// cannot build from config alone. Extractor and Responder are required.
// A nil Bridge leaves voice sessions without a bot; a nil Rooms falls back
// to a Daily client when the config carries an API key.
type Dependencies struct {
	Extractor       intake.Extractor
	Responder       intake.Responder
	RecordExtractor intake.RecordExtractor
	Bridge          voice.Bridge
	Rooms           handlers.RoomProvisioner
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	router chi.Router

	lifecycle   *lifecycle.Lifecycle
	registry    *registry.Registry
	supervisor  *runner.Supervisor
	liveSockets *sessions.Tracker
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New(registry.Config{
		Logger: logger,
		NewInterview: func(sessionID string) *intake.Interview {
			return intake.NewInterview(intake.Config{
				SessionID:     sessionID,
				Extractor:     deps.Extractor,
				Responder:     deps.Responder,
				Logger:        logger,
				HistoryWindow: cfg.HistoryWindow,
			})
		},
	})

	rooms := deps.Rooms
	if rooms == nil && cfg.DailyAPIKey != "" {
		rooms = daily.New(cfg.DailyAPIKey).
			WithBaseURL(cfg.DailyBaseURL).
			WithRoomExpiry(cfg.RoomExpiry)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		lifecycle: &lifecycle.Lifecycle{},
		registry:  reg,
		supervisor: runner.New(runner.Config{
			Logger:          logger,
			Registry:        reg,
			Bridge:          deps.Bridge,
			RecordExtractor: deps.RecordExtractor,
			SessionTimeout:  cfg.VoiceSessionTimeout,
		}),
		liveSockets: sessions.NewTracker(),
	}

	s.routes(rooms)
	return s
}

func (s *Server) routes(rooms handlers.RoomProvisioner) {
	sessionsHandler := handlers.SessionsHandler{
		Logger:   s.logger,
		Registry: s.registry,
		Rooms:    rooms,
		Tasks:    s.supervisor,
	}
	liveHandler := handlers.LiveHandler{
		Config:      s.cfg,
		Logger:      s.logger,
		Registry:    s.registry,
		Lifecycle:   s.lifecycle,
		LiveSockets: s.liveSockets,
	}

	r := chi.NewRouter()
	r.NotFound(handlers.NotFoundHandler{}.ServeHTTP)
	r.MethodNotAllowed(handlers.MethodNotAllowedHandler{}.ServeHTTP)

	r.Method(http.MethodGet, "/healthz", handlers.HealthHandler{})
	r.Method(http.MethodGet, "/readyz", handlers.ReadyHandler{Lifecycle: s.lifecycle})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", sessionsHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", sessionsHandler.Get)
			r.Delete("/", sessionsHandler.Delete)
			r.Get("/room", sessionsHandler.Room)
			r.Patch("/status", sessionsHandler.UpdateStatus)
			r.Get("/results", sessionsHandler.Results)
			r.Get("/greeting", sessionsHandler.Greeting)
			r.Post("/chat", sessionsHandler.Chat)
			r.Get("/live", liveHandler.ServeHTTP)
		})
	})

	s.router = r
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness to 503 and makes the live handler refuse new
// sockets. Existing connections keep running until drained.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining()
}

// WarnLiveSessionsDraining pushes a draining notice to every open live
// socket and reports how many were notified.
func (s *Server) WarnLiveSessionsDraining() int {
	return s.liveSockets.WarnAll("draining", "gateway is shutting down")
}

// WaitLiveSessions blocks until all live sockets are gone or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.liveSockets.Wait(ctx)
}

// CancelLiveSessions force-closes the remaining live sockets.
func (s *Server) CancelLiveSessions() int {
	return s.liveSockets.CancelAll()
}

// StopVoiceTasks asks every running bot task to stop.
func (s *Server) StopVoiceTasks() int {
	return s.supervisor.StopAll()
}

// WaitVoiceTasks blocks until all bot tasks finished or ctx expires.
func (s *Server) WaitVoiceTasks(ctx context.Context) bool {
	return s.supervisor.Wait(ctx)
}

// CleanupSessions drops all session state. Call last: tasks and sockets
// should already be stopped.
func (s *Server) CleanupSessions() int {
	return s.registry.CleanupAll()
}
