// Package server provides the ApplyAI HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/applications"
	"github.com/jonathan/applyai/internal/jobpost"
	"github.com/jonathan/applyai/internal/notify"
	"github.com/jonathan/applyai/internal/profiles"
	"github.com/jonathan/applyai/internal/schemas"
	"github.com/jonathan/applyai/internal/types"
	"github.com/jonathan/applyai/internal/usage"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrPasswordMismatch indicates current password is incorrect
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "current password is incorrect"
}

// ErrUnauthorized indicates a missing or invalid credential
type ErrUnauthorized struct {
	Reason string
}

func (e *ErrUnauthorized) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

// ErrValidation indicates request validation failure. Domain packages return
// *types.ValidationError, which maps the same way.
type ErrValidation = types.ValidationError

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		emailExists  *ErrEmailAlreadyExists
		badCreds     *ErrInvalidCredentials
		mismatch     *ErrPasswordMismatch
		unauthorized *ErrUnauthorized
		userMissing  *ErrUserNotFound
		validation   *types.ValidationError
		schemaErr    *schemas.ValidationError
		transition   *types.TransitionError
		quota        *usage.QuotaExceededError
		fetchErr     *jobpost.FetchError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &emailExists):
		return http.StatusConflict
	case errors.As(err, &badCreds), errors.As(err, &mismatch), errors.As(err, &unauthorized),
		errors.Is(err, applications.ErrUnknownUser):
		return http.StatusUnauthorized
	case errors.As(err, &userMissing),
		errors.Is(err, applications.ErrNotFound),
		errors.Is(err, profiles.ErrNotFound),
		errors.Is(err, notify.ErrUserNotFound),
		errors.Is(err, notify.ErrDataNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &schemaErr), errors.Is(err, jobpost.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.As(err, &quota):
		return http.StatusPaymentRequired
	case errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &fetchErr), errors.Is(err, jobpost.ErrNoDescription):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string               `json:"error"`
	Message string               `json:"message,omitempty"`
	Field   string               `json:"field,omitempty"`
	Details []schemas.FieldError `json:"details,omitempty"`
}

// quotaBody mirrors the 402 contract: limit and current are always present.
type quotaBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Limit   int    `json:"limit"`
	Current int    `json:"current"`
}

// writeError maps err to a status and JSON body. Internal errors are logged
// and answered with a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)

	var (
		quota      *usage.QuotaExceededError
		validation *types.ValidationError
		schemaErr  *schemas.ValidationError
	)

	switch {
	case errors.As(err, &quota):
		writeJSON(w, status, quotaBody{
			Error:   "usage_limit_reached",
			Message: "You have used all applications included in your plan this month.",
			Limit:   quota.Limit,
			Current: quota.CurrentCount,
		})
	case errors.As(err, &validation):
		writeJSON(w, status, errorBody{Error: validation.Error(), Field: validation.Field, Message: validation.Message})
	case errors.As(err, &schemaErr):
		writeJSON(w, status, errorBody{Error: "invalid payload", Details: schemaErr.Errors})
	case status == http.StatusInternalServerError:
		log.Printf("[server] internal error: %v", err)
		writeJSON(w, status, errorBody{Error: "internal server error"})
	default:
		writeJSON(w, status, errorBody{Error: err.Error()})
	}
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func errorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
