package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/domain"
)

// hostCommand adapts a state-returning host command to a handler.
func (s *server) hostCommand(cmd func(ctx context.Context) (domain.GameState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := cmd(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// confirmation maps the confirm=true query parameter onto a Confirmer.
func confirmation(r *http.Request) app.Confirmer {
	ok := r.URL.Query().Get("confirm") == "true"
	return app.ConfirmFunc(func(context.Context, string) bool { return ok })
}

type loadRequest struct {
	QuizID string `json:"quizId"`
	File   string `json:"file"`
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var (
		summary domain.QuizSummary
		err     error
	)
	switch {
	case strings.TrimSpace(req.QuizID) != "":
		summary, err = s.Host.LoadQuiz(r.Context(), req.QuizID)
	default:
		summary, err = s.Host.LoadQuizFile(r.Context(), req.File)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.Host.Reset(r.Context(), confirmation(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) handleAutoReveal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.Host.SetAutoReveal(r.Context(), req.Enabled)
	writeJSON(w, http.StatusOK, req)
}

func (s *server) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	score, err := s.Host.AdjustScore(r.Context(), chi.URLParam(r, "playerID"), req.Delta)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"score": score})
}

func (s *server) handleKick(w http.ResponseWriter, r *http.Request) {
	if err := s.Host.KickPlayer(r.Context(), confirmation(r), chi.URLParam(r, "playerID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleClearPlayers(w http.ResponseWriter, r *http.Request) {
	if err := s.Host.ClearPlayers(r.Context(), confirmation(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.Host.Overview(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.Players.State(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.Players.Scoreboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
