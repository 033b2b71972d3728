// Package handlers implements the /v1 HTTP surface of the intake gateway:
// session lifecycle, the text chat turn endpoint, intake results, and the
// live WebSocket. All JSON errors go through the apierror envelope.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medvoice-ai/medvoice/pkg/core"
	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/gateway/registry"
)

// Session modes accepted by create.
const (
	ModeVoice = "voice"
	ModeChat  = "chat"
)

const maxRequestBodyBytes = 1 << 20

// RoomProvisioner creates a WebRTC room for a voice session. A nil
// provisioner means voice mode is not configured.
type RoomProvisioner interface {
	CreateRoom(ctx context.Context) (string, error)
}

// TaskSupervisor runs and stops the background bot task of a voice session.
type TaskSupervisor interface {
	Start(sessionID, roomURL string) bool
	Stop(sessionID string) bool
}

// SessionsHandler serves the /v1/sessions routes.
type SessionsHandler struct {
	Logger   *slog.Logger
	Registry *registry.Registry
	Rooms    RoomProvisioner
	Tasks    TaskSupervisor
}

// SessionResponse is the create response. Room fields are omitted for
// chat-only sessions.
type SessionResponse struct {
	SessionID string               `json:"session_id"`
	RoomURL   string               `json:"room_url,omitempty"`
	Token     string               `json:"token,omitempty"`
	Status    intake.SessionStatus `json:"status"`
}

// SessionState is the full wire view of one session, transcript included.
type SessionState struct {
	SessionID    string               `json:"session_id"`
	Status       intake.SessionStatus `json:"status"`
	CurrentState intake.Section       `json:"current_state"`
	Turns        []intake.Turn        `json:"turns"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// RoomInfo is the connection info a client needs to join the voice room.
// Token is empty for public rooms.
type RoomInfo struct {
	RoomURL string `json:"room_url"`
	Token   string `json:"token"`
}

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type statusUpdateRequest struct {
	Status intake.SessionStatus `json:"status"`
}

func sessionStateFrom(s registry.Session) SessionState {
	return SessionState{
		SessionID:    s.ID,
		Status:       s.Status,
		CurrentState: s.Interview.CurrentSection(),
		Turns:        s.Interview.Turns(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Create handles POST /v1/sessions. Voice sessions get a provisioned room
// and a background bot task; chat sessions get neither. A missing or empty
// body defaults to voice mode.
func (h SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, r, core.NewInvalidRequestError("failed to read request body"))
		return
	}

	mode := ModeVoice
	if len(bytes.TrimSpace(body)) > 0 {
		var req createSessionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, r, core.NewInvalidRequestError("invalid json body"))
			return
		}
		switch strings.ToLower(strings.TrimSpace(req.Mode)) {
		case "":
		case ModeVoice:
		case ModeChat:
			mode = ModeChat
		default:
			writeError(w, r, core.NewInvalidRequestErrorWithParam(
				fmt.Sprintf("mode must be %q or %q", ModeVoice, ModeChat), "mode"))
			return
		}
	}

	var roomURL string
	if mode == ModeVoice {
		if h.Rooms == nil {
			writeError(w, r, core.NewUnavailableError("voice mode is not configured", nil))
			return
		}
		roomURL, err = h.Rooms.CreateRoom(r.Context())
		if err != nil {
			writeError(w, r, core.NewUnavailableError("failed to create room", err))
			return
		}
	}

	sess := h.Registry.Create(roomURL, "")

	// The session outlives a failed bot start; the client can still drive
	// it over chat or the live socket.
	if mode == ModeVoice && h.Tasks != nil {
		if !h.Tasks.Start(sess.ID, roomURL) {
			h.logger().Warn("voice task not started", "session_id", sess.ID)
		}
	}

	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionID: sess.ID,
		RoomURL:   sess.RoomURL,
		Token:     sess.Token,
		Status:    sess.Status,
	})
}

// Get handles GET /v1/sessions/{id}.
func (h SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.Registry.Get(id)
	if !ok {
		writeError(w, r, core.NewNotFoundError(fmt.Sprintf("session %s not found", id)))
		return
	}
	writeJSON(w, http.StatusOK, sessionStateFrom(sess))
}

// Room handles GET /v1/sessions/{id}/room.
func (h SessionsHandler) Room(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.Registry.Get(id)
	if !ok {
		writeError(w, r, core.NewNotFoundError(fmt.Sprintf("session %s not found", id)))
		return
	}
	writeJSON(w, http.StatusOK, RoomInfo{RoomURL: sess.RoomURL, Token: sess.Token})
}

// UpdateStatus handles PATCH /v1/sessions/{id}/status.
func (h SessionsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, core.NewInvalidRequestError("invalid json body"))
		return
	}
	if !intake.ValidSessionStatus(req.Status) {
		writeError(w, r, core.NewInvalidRequestErrorWithParam(
			"status must be active, complete, or abandoned", "status"))
		return
	}

	sess, ok := h.Registry.Update(id, registry.Patch{Status: &req.Status})
	if !ok {
		writeError(w, r, core.NewNotFoundError(fmt.Sprintf("session %s not found", id)))
		return
	}
	writeJSON(w, http.StatusOK, sessionStateFrom(sess))
}

// Delete handles DELETE /v1/sessions/{id}. It stops the bot task, marks the
// session complete, and removes it. Always 204: deleting an unknown or
// already-deleted session is a no-op.
func (h SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.Tasks != nil {
		h.Tasks.Stop(id)
	}
	status := intake.SessionComplete
	h.Registry.Update(id, registry.Patch{Status: &status})
	h.Registry.Delete(id)

	w.WriteHeader(http.StatusNoContent)
}

func (h SessionsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
