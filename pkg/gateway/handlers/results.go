package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medvoice-ai/medvoice/pkg/core"
)

// Results handles GET /v1/sessions/{id}/results: the structured intake
// record as collected so far. Available at any point in the conversation,
// not just after completion.
func (h SessionsHandler) Results(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.Registry.Get(id)
	if !ok {
		writeError(w, r, core.NewNotFoundError(fmt.Sprintf("session %s not found", id)))
		return
	}
	writeJSON(w, http.StatusOK, sess.Interview.RecordSnapshot())
}
