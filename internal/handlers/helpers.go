package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gi8lino/relbot/internal/jira"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v with status. Encoding failures can only be logged because the
// status line is already sent.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write response", "error", err)
	}
}

// writeError maps err to a status code and writes it as JSON.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, logger, status, errorResponse{Error: err.Error()})
}

// statusFor returns the HTTP status reported for err.
func statusFor(err error) int {
	var (
		ve *jira.ValidationError
		be *badRequestError
		ce *jira.ConfigurationError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &be):
		return http.StatusBadRequest
	case jira.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, jira.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.As(err, &ce):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// badRequestError marks a malformed request.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// decodeJSON strictly decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return &badRequestError{err: errors.New("invalid request body: empty")}
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequestError{err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

// requirePathValue returns the named path value or an error when it is empty.
func requirePathValue(r *http.Request, name string) (string, error) {
	v := r.PathValue(name)
	if v == "" {
		return "", &badRequestError{err: fmt.Errorf("missing path value %q", name)}
	}
	return v, nil
}
