package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"trivia-night-service/internal/domain"
)

// maxImportBytes bounds uploaded quiz files.
const maxImportBytes = 4 << 20

func (s *server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := s.Editor.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (s *server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(r, &req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quiz, err := s.Editor.Create(r.Context(), req.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (s *server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.Editor.Get(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (s *server) handleSaveQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := readJSON(r, &quiz); err != nil {
		writeServiceError(w, &domain.FormatError{Reason: "invalid quiz body", Err: err})
		return
	}
	quiz.ID = chi.URLParam(r, "quizID")
	saved, err := s.Editor.Save(r.Context(), quiz)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := s.Editor.Delete(r.Context(), confirmation(r), chi.URLParam(r, "quizID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportQuiz takes the raw file as the body; ?name= carries the file name.
func (s *server) handleImportQuiz(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	quiz, err := s.Editor.Import(r.Context(), r.URL.Query().Get("name"), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (s *server) handleExportQuiz(w http.ResponseWriter, r *http.Request) {
	out, err := s.Editor.Export(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(out.Title)))
	writeJSON(w, http.StatusOK, out)
}

func exportName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, title)
	if name == "" {
		name = "quiz"
	}
	return name + ".json"
}
