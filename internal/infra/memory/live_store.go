package memory

import (
	"context"
	"sync"
	"time"

	"trivia-night-service/internal/domain"
)

// LiveStore is an in-process implementation of app.LiveStore. Timestamps
// come from its clock, which stands in for the realtime database's server
// time.
type LiveStore struct {
	now func() time.Time

	mu          sync.RWMutex
	state       domain.GameState
	players     map[string]*domain.Player
	answers     map[int]map[string]domain.Answer
	subscribers map[chan domain.StoreEvent]struct{}
}

func NewLiveStore() *LiveStore {
	return NewLiveStoreWithClock(time.Now)
}

// NewLiveStoreWithClock is test-only for deterministic timestamps.
func NewLiveStoreWithClock(now func() time.Time) *LiveStore {
	return &LiveStore{
		now:         now,
		state:       domain.GameState{CurrentIndex: -1, View: domain.ViewSetup, Status: domain.StatusWaiting},
		players:     make(map[string]*domain.Player),
		answers:     make(map[int]map[string]domain.Answer),
		subscribers: make(map[chan domain.StoreEvent]struct{}),
	}
}

func (s *LiveStore) PublishState(_ context.Context, state domain.GameState) (domain.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Timestamp = s.now().UnixMilli()
	state.Options = append([]string(nil), state.Options...)
	if state.Answer != nil {
		answer := *state.Answer
		state.Answer = &answer
	}
	s.state = state
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventState})
	return state, nil
}

func (s *LiveStore) PatchState(_ context.Context, patch domain.StatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = patch.Apply(s.state)
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventState})
	return nil
}

func (s *LiveStore) State(_ context.Context) (domain.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	state.Options = append([]string(nil), state.Options...)
	return state, nil
}

func (s *LiveStore) JoinPlayer(_ context.Context, id, name string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[id]; ok {
		p.Name = name
		p.Online = true
	} else {
		s.players[id] = &domain.Player{ID: id, Name: name, Online: true, JoinedAt: s.now().UnixMilli()}
	}
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventPlayers})
	return *s.players[id], nil
}

func (s *LiveStore) SetOnline(_ context.Context, id string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if p.Online == online {
		return nil
	}
	p.Online = online
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

func (s *LiveStore) RemovePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[id]; !ok {
		return domain.ErrPlayerNotFound
	}
	delete(s.players, id)
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

func (s *LiveStore) RemoveAllPlayers(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make(map[string]*domain.Player)
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

func (s *LiveStore) IncrementScore(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return 0, domain.ErrPlayerNotFound
	}
	p.Score += delta
	if p.Score < 0 {
		p.Score = 0
	}
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventPlayers})
	return p.Score, nil
}

func (s *LiveStore) ResetScores(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		p.Score = 0
	}
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

func (s *LiveStore) Players(_ context.Context) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out, nil
}

func (s *LiveStore) SubmitAnswer(_ context.Context, questionNumber int, playerID, answer string) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPlayer, ok := s.answers[questionNumber]
	if !ok {
		byPlayer = make(map[string]domain.Answer)
		s.answers[questionNumber] = byPlayer
	}
	a := domain.Answer{
		QuestionNumber: questionNumber,
		PlayerID:       playerID,
		Answer:         answer,
		Timestamp:      s.now().UnixMilli(),
	}
	byPlayer[playerID] = a
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventAnswers, QuestionNumber: questionNumber})
	return a, nil
}

func (s *LiveStore) Answers(_ context.Context, questionNumber int) (map[string]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Answer, len(s.answers[questionNumber]))
	for id, a := range s.answers[questionNumber] {
		out[id] = a
	}
	return out, nil
}

func (s *LiveStore) ClearAnswers(_ context.Context, questionNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, questionNumber)
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventAnswers, QuestionNumber: questionNumber})
	return nil
}

func (s *LiveStore) ClearAllAnswers(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = make(map[int]map[string]domain.Answer)
	s.broadcastLocked(domain.StoreEvent{Kind: domain.EventAnswers})
	return nil
}

// Watch returns a channel of change events. The caller must invoke the
// returned cancel function to avoid leaks; ctx ending also cancels.
func (s *LiveStore) Watch(ctx context.Context) (<-chan domain.StoreEvent, func(), error) {
	ch := make(chan domain.StoreEvent, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

// broadcastLocked never blocks: a full subscriber loses its oldest event.
func (s *LiveStore) broadcastLocked(ev domain.StoreEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
