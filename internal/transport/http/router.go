// Package http exposes the game over HTTP: the player socket, the host and
// editor command API, and the join QR code.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/logger"
)

// Authenticator checks host sessions.
type Authenticator interface {
	SignIn(password string) (string, error)
	SignOut(token string)
	Authenticated(token string) bool
	Subscribe() (<-chan bool, func())
}

// Deps are the collaborators the router serves. Auth may be nil, in which
// case AuthErr explains why and the host and editor routes answer 503.
type Deps struct {
	Host    *app.Host
	Players *app.PlayerService
	Editor  *app.EditorService
	Auth    Authenticator
	AuthErr error
	Log     logger.Logger
	// PublicURL is the base URL players open to join, used for the QR code.
	PublicURL string
	// Checks are named readiness probes reported by /healthz.
	Checks map[string]func(ctx context.Context) error
}

type server struct {
	Deps
	upgrader websocket.Upgrader
}

// NewRouter builds the HTTP handler for the whole service.
func NewRouter(deps Deps) http.Handler {
	s := &server{Deps: deps, upgrader: newUpgrader()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/join/qr.png", s.handleJoinQR)
	r.Get("/ws", s.handlePlayerWS)
	r.Get("/api/state", s.handleState)
	r.Get("/api/scoreboard", s.handleScoreboard)

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)

	r.Route("/api/host", func(r chi.Router) {
		r.Use(s.requireHost)
		r.Get("/ws", s.handleHostWS)
		r.Get("/overview", s.handleOverview)
		r.Post("/load", s.handleLoad)
		r.Post("/start", s.hostCommand(s.Host.Start))
		r.Post("/next", s.hostCommand(s.Host.Next))
		r.Post("/previous", s.hostCommand(s.Host.Previous))
		r.Post("/reveal", s.hostCommand(s.Host.Reveal))
		r.Post("/reset", s.handleReset)
		r.Post("/timer/start", s.hostCommand(s.Host.StartTimer))
		r.Post("/timer/stop", s.hostCommand(s.Host.StopTimer))
		r.Put("/auto-reveal", s.handleAutoReveal)
		r.Post("/players/{playerID}/score", s.handleAdjustScore)
		r.Delete("/players/{playerID}", s.handleKick)
		r.Delete("/players", s.handleClearPlayers)
	})

	r.Route("/api/quizzes", func(r chi.Router) {
		r.Use(s.requireHost)
		r.Get("/", s.handleListQuizzes)
		r.Post("/", s.handleCreateQuiz)
		r.Post("/import", s.handleImportQuiz)
		r.Get("/{quizID}", s.handleGetQuiz)
		r.Put("/{quizID}", s.handleSaveQuiz)
		r.Delete("/{quizID}", s.handleDeleteQuiz)
		r.Get("/{quizID}/export", s.handleExportQuiz)
	})

	return r
}

func requestLogger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type result struct {
		Status string `json:"status"`
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]result{}
	status := http.StatusOK
	for name, check := range s.Checks {
		if err := check(ctx); err != nil {
			s.Log.Error("health check failed", "name", name, "error", err)
			checks[name] = result{Status: "error"}
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = result{Status: "ok"}
	}
	writeJSON(w, status, checks)
}
