package server

import (
	"net/http"

	"github.com/jonathan/applyai/internal/types"
)

// handlePreviewJobPosting fetches a posting page and returns what could be
// extracted from it so the client can prefill the application form.
func (s *Server) handlePreviewJobPosting(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionUser(w, r); !ok {
		return
	}
	var req types.JobPostingPreviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := types.ValidateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	posting, err := s.importer.Import(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posting)
}
