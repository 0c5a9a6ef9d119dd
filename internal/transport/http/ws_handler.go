package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Code: statusFor(err)}}
}

// conn serialises writes to one socket and keeps it alive with pings.
type conn struct {
	ws      *websocket.Conn
	send    chan outboundMessage
	closing chan struct{}
	done    chan struct{}
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{
		ws:      ws,
		send:    make(chan outboundMessage, 16),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.writePump()
	return c
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.kick()
		close(c.done)
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push queues msg unless the connection is closing or the writer is gone.
func (c *conn) push(msg outboundMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.closing:
		return false
	case <-c.done:
		return false
	}
}

// kick makes the read loop return so the handler can wind down.
func (c *conn) kick() {
	_ = c.ws.SetReadDeadline(time.Now())
}

// shutdown stops producers, flushes queued messages and closes the socket.
// Producers must have exited before it closes send.
func (c *conn) shutdown(producers ...<-chan struct{}) {
	close(c.closing)
	for _, p := range producers {
		<-p
	}
	close(c.send)
	<-c.done
	c.ws.Close()
}

// handlePlayerWS joins the player named by ?name= (resuming ?playerId= when
// known) and streams the game state and scoreboard until the socket closes.
func (s *server) handlePlayerWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("ws upgrade failed", "error", err)
		return
	}
	c := newConn(ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	presence, err := s.Players.Join(ctx, q.Get("playerId"), q.Get("name"))
	if err != nil {
		c.push(errorMessage(err))
		c.shutdown()
		return
	}
	defer presence.Leave()
	playerID := presence.Player.ID
	log := s.Log.With("player", playerID)
	log.Info("player connected", "name", presence.Player.Name)

	events, stop, err := s.Players.Subscribe(ctx)
	if err != nil {
		c.push(errorMessage(err))
		c.shutdown()
		return
	}
	defer stop()

	c.push(outboundMessage{Type: "joined", Payload: presence.Player})
	s.pushState(ctx, c)
	s.pushScoreboard(ctx, c)

	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch ev.Kind {
				case domain.EventState:
					s.pushState(ctx, c)
				case domain.EventPlayers:
					if _, err := s.Players.Player(ctx, playerID); app.IsRemoved(err) {
						c.push(outboundMessage{Type: "removed", Payload: nil})
						c.kick()
						return
					}
					s.pushScoreboard(ctx, c)
				}
			case <-c.closing:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := ws.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Code: http.StatusBadRequest}})
				continue
			}
			answer, err := s.Players.SubmitAnswer(ctx, playerID, payload.Answer)
			if err != nil {
				c.push(errorMessage(err))
				continue
			}
			c.push(outboundMessage{Type: "answerAccepted", Payload: answer})
		case "myAnswer":
			answer, ok, err := s.Players.MyAnswer(ctx, playerID)
			if err != nil {
				c.push(errorMessage(err))
				continue
			}
			if !ok {
				c.push(outboundMessage{Type: "myAnswer", Payload: nil})
				continue
			}
			c.push(outboundMessage{Type: "myAnswer", Payload: answer})
		default:
			c.push(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type", Code: http.StatusBadRequest}})
		}
	}

	cancel()
	c.shutdown(updatesDone)
	log.Info("player disconnected")
}

func (s *server) pushState(ctx context.Context, c *conn) {
	state, err := s.Players.State(ctx)
	if err != nil {
		s.Log.Warn("read state for player", "error", err)
		return
	}
	c.push(outboundMessage{Type: "state", Payload: state})
}

func (s *server) pushScoreboard(ctx context.Context, c *conn) {
	board, err := s.Players.Scoreboard(ctx)
	if err != nil {
		s.Log.Warn("read scoreboard for player", "error", err)
		return
	}
	c.push(outboundMessage{Type: "scoreboard", Payload: board})
}

// handleHostWS streams the host overview on every store change and closes
// once the session token stops being valid.
func (s *server) handleHostWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("host ws upgrade failed", "error", err)
		return
	}
	c := newConn(ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, stop, err := s.Players.Subscribe(ctx)
	if err != nil {
		c.push(errorMessage(err))
		c.shutdown()
		return
	}
	defer stop()
	sessions, unsubscribe := s.Auth.Subscribe()
	defer unsubscribe()

	s.pushOverview(ctx, c)

	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return
				}
				s.pushOverview(ctx, c)
			case _, ok := <-sessions:
				if ok && s.Auth.Authenticated(token) {
					continue
				}
				c.push(errorMessage(domain.ErrUnauthorized))
				c.kick()
				return
			case <-c.closing:
				return
			}
		}
	}()

	// The host socket is write-only; reading keeps pong handling alive.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	c.shutdown(updatesDone)
}

func (s *server) pushOverview(ctx context.Context, c *conn) {
	ov, err := s.Host.Overview(ctx)
	if err != nil {
		s.Log.Warn("read host overview", "error", err)
		return
	}
	c.push(outboundMessage{Type: "overview", Payload: ov})
}
