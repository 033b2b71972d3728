package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/medvoice-ai/medvoice/pkg/core"
	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/gateway/config"
	"github.com/medvoice-ai/medvoice/pkg/gateway/lifecycle"
	"github.com/medvoice-ai/medvoice/pkg/gateway/live/protocol"
	"github.com/medvoice-ai/medvoice/pkg/gateway/live/session"
	"github.com/medvoice-ai/medvoice/pkg/gateway/live/sessions"
	"github.com/medvoice-ai/medvoice/pkg/gateway/mw"
	"github.com/medvoice-ai/medvoice/pkg/gateway/registry"
)

// LiveHandler serves GET /v1/sessions/{id}/live: the browser-facing text
// socket onto an intake session.
type LiveHandler struct {
	Config      config.Config
	Logger      *slog.Logger
	Registry    *registry.Registry
	Lifecycle   *lifecycle.Lifecycle
	LiveSockets *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		writeCoreError(w, r, &core.Error{
			Type:    core.ErrOverloaded,
			Message: "gateway is draining",
			Code:    "draining",
		}, http.StatusServiceUnavailable)
		return
	}

	sessionID := chi.URLParam(r, "id")

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.Config.WSHandshakeTimeout,
		CheckOrigin:      func(r *http.Request) bool { return h.originAllowed(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}
	defer conn.Close()

	sess, ok := h.Registry.Get(sessionID)
	if !ok {
		h.writeWSError(conn, "not_found",
			fmt.Sprintf("session %s not found", sessionID), protocol.CloseUnknownSession)
		return
	}

	ls, err := session.New(session.Dependencies{
		Conn:    conn,
		Logger:  h.Logger,
		Session: sess,
		OnComplete: func() {
			status := intake.SessionComplete
			h.Registry.Update(sessionID, registry.Patch{Status: &status})
		},
		Config: session.Config{
			MaxMessageBytes:    h.Config.WSMaxMessageBytes,
			PingInterval:       h.Config.WSPingInterval,
			WriteTimeout:       h.Config.WSWriteTimeout,
			MaxSessionDuration: h.Config.WSMaxSessionDuration,
		},
	})
	if err != nil {
		h.writeWSError(conn, "internal", "failed to initialize live session", websocket.CloseInternalServerErr)
		return
	}

	// Keyed per connection, not per session: a reconnect must not untrack
	// a socket that is still draining.
	unregister := func() {}
	if h.LiveSockets != nil {
		unregister = h.LiveSockets.Register(sessionID+"/"+randHex(4), sessions.Handle{
			Cancel: ls.Cancel,
			Warn:   ls.SendWarning,
		})
	}
	defer unregister()

	if err := ls.Run(); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("live session ended with error",
				"session_id", sessionID,
				"request_id", requestIDFromContext(r.Context()),
				"error", err,
			)
		}
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

// writeWSError sends one closing error frame and the matching close
// message on a connection that never reached the session pump.
func (h LiveHandler) writeWSError(conn *websocket.Conn, code, message string, closeCode int) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Code: code, Message: message, Close: true})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, message), time.Now().Add(2*time.Second))
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := mw.RequestIDFrom(ctx); ok {
		return id
	}
	return ""
}
