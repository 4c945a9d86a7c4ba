package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/settings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, settings.ErrAlreadyConfigured):
		return http.StatusConflict
	case errors.Is(err, settings.ErrNotConfigured),
		errors.Is(err, settings.ErrInvalidRecord),
		errors.Is(err, settings.ErrInvalidPort),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers an API call with err. Server-side failures are logged
// and their detail is not sent to the client.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, ErrorBody{Error: msg})
}

var errBadRequest = errors.New("malformed request")
