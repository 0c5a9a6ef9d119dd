package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"trivia-night-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	var (
		validation *domain.ValidationError
		format     *domain.FormatError
		config     *domain.ConfigurationError
		write      *domain.WriteFailure
	)
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotConfirmed), errors.Is(err, domain.ErrGameInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &validation), errors.As(err, &format),
		errors.Is(err, domain.ErrQuizNotLoaded), errors.Is(err, domain.ErrEmptyQuiz),
		errors.Is(err, domain.ErrNotAQuestion):
		return http.StatusBadRequest
	case errors.As(err, &config):
		return http.StatusServiceUnavailable
	case errors.As(err, &write):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
