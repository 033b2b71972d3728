package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/medvoice-ai/medvoice/pkg/core"
	"github.com/medvoice-ai/medvoice/pkg/gateway/apierror"
	"github.com/medvoice-ai/medvoice/pkg/gateway/mw"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the canonical envelope and status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	coreErr, status := apierror.FromError(err, reqID)
	writeJSON(w, status, apierror.Envelope{Error: coreErr})
}

// writeCoreError writes a pre-built error with an explicit status, filling
// in the request id when the caller left it empty.
func writeCoreError(w http.ResponseWriter, r *http.Request, coreErr *core.Error, status int) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if coreErr != nil && coreErr.RequestID == "" {
		coreErr.RequestID = reqID
	}
	writeJSON(w, status, apierror.Envelope{Error: coreErr})
}
