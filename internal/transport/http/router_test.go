package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/app/apptest"
	"trivia-night-service/internal/auth"
	"trivia-night-service/internal/domain"
	"trivia-night-service/internal/infra/memory"
	"trivia-night-service/internal/logger"
)

type testServer struct {
	*httptest.Server
	host  *app.Host
	store *memory.LiveStore
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sched := apptest.NewManualScheduler(time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC))
	store := memory.NewLiveStoreWithClock(sched.Now)
	quizStore := memory.NewQuizStore(sampleQuiz())
	cache := memory.NewQuizRepository(quizStore, time.Minute)
	log := logger.Discard()

	host := app.NewHostWithScheduler(store, cache, nil, app.DefaultHostConfig(), log, sched)
	authenticator, err := auth.New(auth.Config{Password: "quizmaster", Secret: "test-secret"})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	router := NewRouter(Deps{
		Host:      host,
		Players:   app.NewPlayerService(store),
		Editor:    app.NewEditorService(quizStore, cache, log),
		Auth:      authenticator,
		Log:       log,
		PublicURL: "https://trivia.example",
		Checks:    map[string]func(context.Context) error{"live": func(context.Context) error { return nil }},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	ts := &testServer{Server: srv, host: host, store: store}
	var login loginResponse
	ts.do(t, http.MethodPost, "/api/auth/login", loginRequest{Password: "quizmaster"}, http.StatusOK, &login)
	if login.Token == "" {
		t.Fatalf("expected a token")
	}
	ts.token = login.Token
	return ts
}

// do sends body as JSON with the host token and decodes the reply into out.
func (ts *testServer) do(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		var e map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("%s %s: expected %d, got %d (%v)", method, path, wantStatus, resp.StatusCode, e)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func TestHostRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token

	ts.token = ""
	ts.do(t, http.MethodPost, "/api/host/start", nil, http.StatusUnauthorized, nil)
	ts.do(t, http.MethodGet, "/api/quizzes/", nil, http.StatusUnauthorized, nil)
	ts.do(t, http.MethodPost, "/api/auth/login", loginRequest{Password: "guess"}, http.StatusUnauthorized, nil)

	ts.token = token
	ts.do(t, http.MethodPost, "/api/auth/logout", nil, http.StatusNoContent, nil)
	ts.do(t, http.MethodGet, "/api/host/overview", nil, http.StatusUnauthorized, nil)
}

func TestHostRoutesUnavailableWithoutAuth(t *testing.T) {
	store := memory.NewLiveStore()
	router := NewRouter(Deps{
		Host:    app.NewHost(store, nil, nil, app.DefaultHostConfig(), logger.Discard()),
		Players: app.NewPlayerService(store),
		AuthErr: &domain.ConfigurationError{Component: "auth", Reason: "jwt secret is empty"},
		Log:     logger.Discard(),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/host/start", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected player routes to stay up, got %d", rec.Code)
	}
}

func TestHostGameOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/host/start", nil, http.StatusBadRequest, nil)

	var summary domain.QuizSummary
	ts.do(t, http.MethodPost, "/api/host/load", loadRequest{QuizID: "quiz-1"}, http.StatusOK, &summary)
	if summary.ItemCount != 2 {
		t.Fatalf("expected 2 items, got %+v", summary)
	}
	ts.do(t, http.MethodPost, "/api/host/load", loadRequest{QuizID: "missing"}, http.StatusNotFound, nil)

	var state domain.GameState
	ts.do(t, http.MethodPost, "/api/host/start", nil, http.StatusOK, &state)
	if state.View != domain.ViewGame || state.QuestionNumber != 1 || state.Answer != nil {
		t.Fatalf("unexpected start state %+v", state)
	}

	if _, err := ts.store.JoinPlayer(context.Background(), "p1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := ts.store.SubmitAnswer(context.Background(), 1, "p1", "B) 4"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	var ov app.HostOverview
	ts.do(t, http.MethodGet, "/api/host/overview", nil, http.StatusOK, &ov)
	if ov.OnlineCount != 1 || len(ov.Answers) != 1 || !ov.Answers[0].Correct {
		t.Fatalf("unexpected overview %+v", ov)
	}

	ts.do(t, http.MethodPost, "/api/host/reveal", nil, http.StatusOK, &state)
	if !state.AnswerRevealed || state.Answer == nil || *state.Answer != "B) 4" {
		t.Fatalf("expected revealed answer, got %+v", state)
	}

	var score map[string]int
	ts.do(t, http.MethodPost, "/api/host/players/p1/score", map[string]int{"delta": -100}, http.StatusOK, &score)
	if score["score"] != 900 {
		t.Fatalf("expected 900 after adjustment, got %v", score)
	}
	ts.do(t, http.MethodPost, "/api/host/players/ghost/score", map[string]int{"delta": 10}, http.StatusNotFound, nil)

	ts.do(t, http.MethodPost, "/api/host/next", nil, http.StatusOK, &state)
	ts.do(t, http.MethodPost, "/api/host/timer/start", nil, http.StatusBadRequest, nil)

	ts.do(t, http.MethodPost, "/api/host/reset", nil, http.StatusConflict, nil)
	ts.do(t, http.MethodPost, "/api/host/reset?confirm=true", nil, http.StatusOK, &state)
	if state.View != domain.ViewSetup || state.Status != domain.StatusWaiting {
		t.Fatalf("expected waiting state after reset, got %+v", state)
	}

	ts.do(t, http.MethodDelete, "/api/host/players/p1", nil, http.StatusConflict, nil)
	ts.do(t, http.MethodDelete, "/api/host/players/p1?confirm=true", nil, http.StatusNoContent, nil)

	var board domain.Scoreboard
	ts.do(t, http.MethodGet, "/api/scoreboard", nil, http.StatusOK, &board)
	if len(board.Entries) != 0 {
		t.Fatalf("expected empty scoreboard, got %+v", board.Entries)
	}
}

func TestEditorRoutes(t *testing.T) {
	ts := newTestServer(t)

	var created domain.Quiz
	ts.do(t, http.MethodPost, "/api/quizzes/", map[string]string{"title": "Pub Night"}, http.StatusCreated, &created)
	if created.ID == "" || created.Title != "Pub Night" || len(created.Items) != 1 {
		t.Fatalf("unexpected created quiz %+v", created)
	}

	created.Title = ""
	ts.do(t, http.MethodPut, "/api/quizzes/"+created.ID, created, http.StatusBadRequest, nil)
	created.Title = "Pub Night II"
	var saved domain.Quiz
	ts.do(t, http.MethodPut, "/api/quizzes/"+created.ID, created, http.StatusOK, &saved)
	if saved.Title != "Pub Night II" {
		t.Fatalf("expected saved title, got %q", saved.Title)
	}

	var list []domain.QuizSummary
	ts.do(t, http.MethodGet, "/api/quizzes/", nil, http.StatusOK, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 quizzes, got %+v", list)
	}
	ts.do(t, http.MethodGet, "/api/quizzes/nope", nil, http.StatusNotFound, nil)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/quizzes/import?name=capitals.json",
		strings.NewReader(`[{"type":"question","text":"Capital of France?","questionType":"SHORT","answer":"Paris","timer":20}]`))
	req.Header.Set("Authorization", "Bearer "+ts.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var imported domain.Quiz
	_ = json.NewDecoder(resp.Body).Decode(&imported)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || imported.Title != "capitals" {
		t.Fatalf("unexpected import %d %+v", resp.StatusCode, imported)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/quizzes/"+imported.ID+"/export", nil)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="capitals.json"` {
		t.Fatalf("unexpected disposition %q", got)
	}

	ts.do(t, http.MethodDelete, "/api/quizzes/"+imported.ID, nil, http.StatusConflict, nil)
	ts.do(t, http.MethodDelete, "/api/quizzes/"+imported.ID+"?confirm=true", nil, http.StatusNoContent, nil)
	ts.do(t, http.MethodGet, "/api/quizzes/"+imported.ID, nil, http.StatusNotFound, nil)
}

func TestJoinQRAndHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/join/qr.png")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	defer resp.Body.Close()
	var head [8]byte
	_, _ = resp.Body.Read(head[:])
	if resp.Header.Get("Content-Type") != "image/png" || !bytes.Equal(head[:4], []byte("\x89PNG")) {
		t.Fatalf("expected png, got %q %x", resp.Header.Get("Content-Type"), head)
	}

	var health map[string]map[string]string
	ts.do(t, http.MethodGet, "/healthz", nil, http.StatusOK, &health)
	if health["live"]["status"] != "ok" {
		t.Fatalf("unexpected health %+v", health)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Items: []domain.Item{
			domain.NewQuestion(domain.Question{
				QuestionNumber: 1,
				Text:           "What is 2 + 2?",
				QuestionType:   domain.QuestionMC,
				Options:        []string{"A) 3", "B) 4", "C) 5"},
				Answer:         "B) 4",
				Timer:          20,
			}),
			domain.NewRoundTitle(domain.RoundTitle{RoundNumber: 2, Title: "Geography"}),
		},
	}
}
