package server

import (
	"net/http"
	"strconv"

	"github.com/jonathan/applyai/internal/applications"
	"github.com/jonathan/applyai/internal/profiles"
	"github.com/jonathan/applyai/internal/types"
)

// DashboardResponse is the body of GET /dashboard.
type DashboardResponse struct {
	*applications.Summary
	Issues []types.CompletenessIssue `json:"issues"`
}

// CompletenessResponse is the body of GET /profile/completeness.
type CompletenessResponse struct {
	Issues []types.CompletenessIssue `json:"issues"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	profile, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleSaveOnboardingStep saves one onboarding step. The step payload shape
// depends on the step number, so decoding is left to the profile service.
func (s *Server) handleSaveOnboardingStep(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		writeError(w, types.Invalid("step", "must be a number between 1 and %d", profiles.FinalStep))
		return
	}
	payload, ok := readBody(w, r)
	if !ok {
		return
	}

	profile, err := s.profiles.SaveStep(r.Context(), userID, step, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req types.NotificationPreferences
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := s.profiles.SetNotifications(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	issues, err := s.profiles.Completeness(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompletenessResponse{Issues: issues})
}

// handleDashboard combines usage, application counts and profile gaps.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	summary, err := s.applications.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	issues, err := s.profiles.Completeness(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardResponse{Summary: summary, Issues: issues})
}
