package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jonathan/applyai/internal/schemas"
	"github.com/jonathan/applyai/internal/types"
)

// decodeEngineBody validates an engine payload against its schema before
// decoding it into dst.
func decodeEngineBody(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	raw, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := schemas.Validate(schema, raw); err != nil {
		writeError(w, err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeError(w, types.Invalid("body", "invalid payload: %s", err.Error()))
		return false
	}
	return true
}

// handleGenerationCallback applies a status report from the generation engine.
func (s *Server) handleGenerationCallback(w http.ResponseWriter, r *http.Request) {
	var cb types.GenerationCallback
	if !decodeEngineBody(w, r, schemas.GenerationCallback, &cb) {
		return
	}

	projection, err := s.applications.ApplyCallback(r.Context(), &cb)
	if err != nil {
		log.Printf("[webhook] generation callback for %s rejected: %v", cb.ApplicationID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

// handleDocumentsReady sends the documents-ready notification.
func (s *Server) handleDocumentsReady(w http.ResponseWriter, r *http.Request) {
	var req types.DocumentsReadyRequest
	if !decodeEngineBody(w, r, schemas.DocumentsReady, &req) {
		return
	}

	outcome, err := s.notifier.DocumentsReady(r.Context(), &req)
	if err != nil {
		log.Printf("[webhook] documents-ready for %s failed: %v", req.ApplicationID, err)
		writeError(w, err)
		return
	}
	log.Printf("[webhook] documents-ready for %s: %s", req.ApplicationID, outcome)
	writeMessage(w, http.StatusOK, "%s", outcome)
}
