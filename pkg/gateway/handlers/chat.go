package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medvoice-ai/medvoice/pkg/core"
	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/gateway/registry"
)

// ChatResponse is one agent reply on the text path.
type ChatResponse struct {
	Response   string         `json:"response"`
	State      intake.Section `json:"state"`
	IsComplete bool           `json:"is_complete"`
}

// GreetingResponse is the opening agent message.
type GreetingResponse struct {
	Message string         `json:"message"`
	State   intake.Section `json:"state"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /v1/sessions/{id}/chat: one interview turn over plain
// HTTP. The same turn pipeline drives the voice bot and the live socket, so
// a session can switch surfaces mid-conversation.
func (h SessionsHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, core.NewInvalidRequestError("invalid json body"))
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("message is required", "message"))
		return
	}

	sess, ok := h.Registry.Get(id)
	if !ok {
		writeError(w, r, core.NewNotFoundError(fmt.Sprintf("session %s not found", id)))
		return
	}

	sess.TurnMu.Lock()
	reply, err := sess.Interview.ProcessMessage(r.Context(), message)
	sess.TurnMu.Unlock()
	if err != nil {
		h.logger().Error("chat turn failed", "session_id", id, "error", err)
		writeCoreError(w, r, &core.Error{
			Type:    core.ErrAPI,
			Message: "failed to generate a reply",
			Code:    "provider_error",
		}, http.StatusBadGateway)
		return
	}

	complete := sess.Interview.IsComplete()
	if complete {
		status := intake.SessionComplete
		h.Registry.Update(id, registry.Patch{Status: &status})
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:   reply,
		State:      sess.Interview.CurrentSection(),
		IsComplete: complete,
	})
}

// Greeting handles GET /v1/sessions/{id}/greeting. Fetching the greeting
// starts the interview: the section moves off Greeting.
func (h SessionsHandler) Greeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.Registry.Get(id)
	if !ok {
		writeError(w, r, core.NewNotFoundError(fmt.Sprintf("session %s not found", id)))
		return
	}

	message, section := sess.Interview.Greeting()
	writeJSON(w, http.StatusOK, GreetingResponse{Message: message, State: section})
}
