package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/domain"
)

var yes = app.ConfirmFunc(func(context.Context, string) bool { return true })

func dial(t *testing.T, ts *testServer, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil skips messages until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg envelope
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message within 20 reads", want)
	return nil
}

func TestPlayerSocketAnswerFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	if _, err := ts.host.LoadQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	conn := dial(t, ts, "/ws?name=Alice")
	var joined domain.Player
	if err := json.Unmarshal(readUntil(t, conn, "joined"), &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if !strings.HasPrefix(joined.ID, "player_") || joined.Name != "Alice" || !joined.Online {
		t.Fatalf("unexpected joined payload %+v", joined)
	}
	readUntil(t, conn, "scoreboard")

	if _, err := ts.host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	for {
		var state domain.GameState
		if err := json.Unmarshal(readUntil(t, conn, "state"), &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if state.QuestionNumber == 1 {
			if state.Answer != nil {
				t.Fatalf("answer leaked before reveal: %+v", state)
			}
			break
		}
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]string{"answer": "Z) 9"}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readUntil(t, conn, "error")

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]string{"answer": "B) 4"}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	var accepted domain.Answer
	if err := json.Unmarshal(readUntil(t, conn, "answerAccepted"), &accepted); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if accepted.PlayerID != joined.ID || accepted.QuestionNumber != 1 {
		t.Fatalf("unexpected answer %+v", accepted)
	}

	if _, err := ts.host.Reveal(ctx); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	for {
		var board domain.Scoreboard
		if err := json.Unmarshal(readUntil(t, conn, "scoreboard"), &board); err != nil {
			t.Fatalf("decode scoreboard: %v", err)
		}
		if len(board.Entries) == 1 && board.Entries[0].Score > 0 {
			if !board.Entries[0].Leader {
				t.Fatalf("expected leader marker, got %+v", board.Entries[0])
			}
			break
		}
	}
}

func TestPlayerSocketRejectsEmptyName(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "/ws?name=%20%20")

	var msg struct {
		Type    string       `json:"type"`
		Payload errorPayload `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "error" || msg.Payload.Code != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %+v", msg)
	}
}

func TestPlayerSocketRejoinAndKick(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	if _, err := ts.store.JoinPlayer(ctx, "player_bob", "Bob"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := ts.store.IncrementScore(ctx, "player_bob", 700); err != nil {
		t.Fatalf("seed score: %v", err)
	}
	if err := ts.store.SetOnline(ctx, "player_bob", false); err != nil {
		t.Fatalf("seed offline: %v", err)
	}

	conn := dial(t, ts, "/ws?name=Bobby&playerId=player_bob")
	var joined domain.Player
	if err := json.Unmarshal(readUntil(t, conn, "joined"), &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if joined.Score != 700 || joined.Name != "Bobby" {
		t.Fatalf("expected resumed session, got %+v", joined)
	}

	if err := ts.host.KickPlayer(ctx, yes, "player_bob"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	readUntil(t, conn, "removed")
}

func TestHostSocketStreamsOverview(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	conn := dial(t, ts, "/api/host/ws?token="+ts.token)
	readUntil(t, conn, "overview")

	if _, err := ts.store.JoinPlayer(ctx, "p1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	for {
		var ov app.HostOverview
		if err := json.Unmarshal(readUntil(t, conn, "overview"), &ov); err != nil {
			t.Fatalf("decode overview: %v", err)
		}
		if ov.OnlineCount == 1 {
			break
		}
	}

	ts.do(t, http.MethodPost, "/api/auth/logout", nil, http.StatusNoContent, nil)
	var payload errorPayload
	if err := json.Unmarshal(readUntil(t, conn, "error"), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after sign-out, got %+v", payload)
	}
}
