package server

import (
	"log"
	"net/http"
	"time"

	"github.com/jonathan/applyai/internal/applications"
	"github.com/jonathan/applyai/internal/types"
)

// handleCreateApplication creates an application and starts generation.
func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req types.CreateApplicationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	projection, err := s.applications.Create(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[applications] created %s for user %s", projection.Application.ID, userID)
	writeJSON(w, http.StatusCreated, types.CreateApplicationResponse{ApplicationID: projection.Application.ID})
}

// handleListApplications returns a page of the caller's applications.
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	result, err := s.applications.List(r.Context(), userID, applications.ListParams{
		ApplicationStatus: q.Get("application_status"),
		Status:            q.Get("status"),
		Limit:             limit,
		Offset:            offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetApplication returns an application with its latest documents.
func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	appID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	projection, err := s.applications.GetLatest(r.Context(), userID, appID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

// handleUpdateApplication sets the pipeline stage or notes.
func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	appID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req types.UpdateApplicationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	app, err := s.applications.Update(r.Context(), userID, appID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// handleEditDocument stores the user's edit of a generated document.
func (s *Server) handleEditDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	appID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req types.EditDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doc, err := s.applications.EditDocument(r.Context(), userID, appID, r.PathValue("type"), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUsage returns the caller's usage for the current period.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	current, err := s.applications.Usage(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// handleApplicationEvents streams the application's projection whenever its
// generation status changes and closes once the status is terminal.
func (s *Server) handleApplicationEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	appID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	// Resolve ownership before switching to the event stream so a missing
	// application is still a plain 404.
	projection, err := s.applications.GetLatest(r.Context(), userID, appID)
	if err != nil {
		writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.eventInterval)
	defer ticker.Stop()

	var last string
	for {
		if key := statusKey(projection); key != last {
			last = key
			if err := sse.WriteStatus(projection); err != nil {
				return
			}
		}
		if settled(projection) {
			sse.WriteComplete(projection.Application.ID.String(), string(projection.Application.Status))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		projection, err = s.applications.GetLatest(r.Context(), userID, appID)
		if err != nil {
			if r.Context().Err() == nil {
				log.Printf("[applications] event stream for %s stopped: %v", appID, err)
				sse.WriteError("failed to load application")
			}
			return
		}
	}
}

// statusKey summarizes the generation state of an application and its documents.
// settled reports whether the stream has nothing left to report: the
// application is terminal and no retried document is still being produced.
func settled(p *applications.Projection) bool {
	if !p.Application.Status.IsTerminal() {
		return false
	}
	for _, doc := range p.Documents {
		if doc.Status == types.GenerationProcessing {
			return false
		}
	}
	return true
}

func statusKey(p *applications.Projection) string {
	key := string(p.Application.Status)
	for _, doc := range p.Documents {
		key += "|" + string(doc.Type) + ":" + string(doc.Status)
	}
	return key
}
