package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"trivia-night-service/internal/domain"
)

// MaxNameLength bounds player display names, in runes.
const MaxNameLength = 20

// PlayerService contains the player-facing use cases: joining, answering and
// reading the scoreboard.
type PlayerService struct {
	store LiveStore
	now   func() time.Time
}

func NewPlayerService(store LiveStore) *PlayerService {
	return &PlayerService{store: store, now: time.Now}
}

// NewPlayerServiceWithClock is test-only for deterministic timestamps.
func NewPlayerServiceWithClock(store LiveStore, now func() time.Time) *PlayerService {
	return &PlayerService{store: store, now: now}
}

// Presence is a joined player's connection. Leave marks the player offline
// and is safe to call more than once.
type Presence struct {
	Player domain.Player
	once   sync.Once
	leave  func()
}

func (p *Presence) Leave() {
	p.once.Do(p.leave)
}

// Join registers a player, or resumes an earlier session when playerID is
// known, and marks it online until the returned Presence is left.
func (s *PlayerService) Join(ctx context.Context, playerID, name string) (*Presence, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, domain.Validationf("name", "must be at most %d characters", MaxNameLength)
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		playerID = "player_" + uuid.NewString()
	}

	player, err := s.store.JoinPlayer(ctx, playerID, name)
	if err != nil {
		return nil, &domain.WriteFailure{Op: "join player", Err: err}
	}

	presence := &Presence{Player: player}
	presence.leave = func() {
		// the request context is usually gone by the time the socket closes
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.store.SetOnline(ctx, player.ID, false)
	}
	return presence, nil
}

// SubmitAnswer records the player's answer for the question on screen. It
// is rejected once the answer has been revealed or if the player was removed.
func (s *PlayerService) SubmitAnswer(ctx context.Context, playerID, answer string) (domain.Answer, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return domain.Answer{}, domain.Validationf("answer", "must not be empty")
	}

	state, err := s.store.State(ctx)
	if err != nil {
		return domain.Answer{}, err
	}
	if state.View != domain.ViewGame || state.Type != domain.KindQuestion {
		return domain.Answer{}, domain.ErrNotAQuestion
	}
	if state.AnswerRevealed {
		return domain.Answer{}, domain.Validationf("answer", "question %d is closed", state.QuestionNumber)
	}
	if state.QuestionType == domain.QuestionMC && !contains(state.Options, answer) {
		return domain.Answer{}, domain.Validationf("answer", "not one of the options")
	}

	if _, err := s.player(ctx, playerID); err != nil {
		return domain.Answer{}, err
	}
	stored, err := s.store.SubmitAnswer(ctx, state.QuestionNumber, playerID, answer)
	if err != nil {
		return domain.Answer{}, &domain.WriteFailure{Op: "submit answer", Err: err}
	}
	return stored, nil
}

// MyAnswer returns the player's answer for the current question, if any.
func (s *PlayerService) MyAnswer(ctx context.Context, playerID string) (domain.Answer, bool, error) {
	state, err := s.store.State(ctx)
	if err != nil || state.Type != domain.KindQuestion {
		return domain.Answer{}, false, err
	}
	answers, err := s.store.Answers(ctx, state.QuestionNumber)
	if err != nil {
		return domain.Answer{}, false, err
	}
	a, ok := answers[playerID]
	return a, ok, nil
}

// Scoreboard returns players ordered by score, then name. Every player with
// the top score is marked as leader as long as that score is above zero.
func (s *PlayerService) Scoreboard(ctx context.Context) (domain.Scoreboard, error) {
	players, err := s.store.Players(ctx)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	sortPlayers(players)

	entries := make([]domain.ScoreboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, domain.ScoreboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
			Online:   p.Online,
			Leader:   p.Score > 0 && p.Score == players[0].Score,
		})
	}
	return domain.Scoreboard{Entries: entries, UpdatedAt: s.now()}, nil
}

// State returns the published game snapshot.
func (s *PlayerService) State(ctx context.Context) (domain.GameState, error) {
	return s.store.State(ctx)
}

// Subscribe returns store change notifications. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *PlayerService) Subscribe(ctx context.Context) (<-chan domain.StoreEvent, func(), error) {
	return s.store.Watch(ctx)
}

// Player returns one registered player.
func (s *PlayerService) Player(ctx context.Context, playerID string) (domain.Player, error) {
	return s.player(ctx, playerID)
}

func (s *PlayerService) player(ctx context.Context, playerID string) (domain.Player, error) {
	players, err := s.store.Players(ctx)
	if err != nil {
		return domain.Player{}, err
	}
	for _, p := range players {
		if p.ID == playerID {
			return p, nil
		}
	}
	return domain.Player{}, domain.ErrPlayerNotFound
}

// IsRemoved reports whether err means the player no longer exists and the
// client should drop its saved session.
func IsRemoved(err error) bool {
	return errors.Is(err, domain.ErrPlayerNotFound)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
