package http

import (
	"errors"
	"net/http"
	"strings"

	"trivia-night-service/internal/domain"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.Auth == nil {
		writeServiceError(w, s.authUnavailable())
		return
	}
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}
	token, err := s.Auth.SignIn(req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.Auth != nil {
		s.Auth.SignOut(bearerToken(r))
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireHost guards host and editor routes. Browsers cannot set headers on
// a WebSocket handshake, so a token query parameter is accepted too.
func (s *server) requireHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Auth == nil {
			writeServiceError(w, s.authUnavailable())
			return
		}
		if !s.Auth.Authenticated(bearerToken(r)) {
			writeServiceError(w, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) authUnavailable() error {
	if s.AuthErr != nil {
		return s.AuthErr
	}
	return &domain.ConfigurationError{Component: "auth", Reason: "no authenticator"}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
