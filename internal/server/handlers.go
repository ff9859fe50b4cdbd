package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/server/middleware"
	"github.com/jonathan/applyai/internal/types"
)

// maxBodyBytes bounds request bodies. Job descriptions are the largest input.
const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON request body into dst, writing a 400 and
// returning false when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, types.Invalid("body", "invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

// readBody returns the raw request body for handlers that validate the
// document before decoding it.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		errorResponse(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if !json.Valid(raw) {
		writeError(w, types.Invalid("body", "invalid JSON"))
		return nil, false
	}
	return raw, true
}

// sessionUser returns the authenticated user, writing a 401 when the route
// was mounted without the auth middleware.
func sessionUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, &ErrUnauthorized{Reason: err.Error()})
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses a UUID path value. Malformed IDs are reported as not found so
// probing reveals nothing about other users' records.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		errorResponse(w, http.StatusNotFound, name+" not found")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.Invalid(name, "must be an integer")
	}
	return n, nil
}

// messageResponse is the body of acknowledgement-only responses.
type messageResponse struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, messageResponse{Message: fmt.Sprintf(format, args...)})
}
