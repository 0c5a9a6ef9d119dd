package app

import (
	"context"
	"time"

	"trivia-night-service/internal/domain"
)

// GameStateStore holds the published game snapshot.
type GameStateStore interface {
	// PublishState replaces the snapshot. The store stamps Timestamp with its
	// own clock and returns the stored value.
	PublishState(ctx context.Context, state domain.GameState) (domain.GameState, error)
	PatchState(ctx context.Context, patch domain.StatePatch) error
	State(ctx context.Context) (domain.GameState, error)
}

// PlayerStore holds registered players and their scores.
type PlayerStore interface {
	// JoinPlayer registers the player or, for a known id, marks it online
	// again under the new name. Scores survive a rejoin.
	JoinPlayer(ctx context.Context, id, name string) (domain.Player, error)
	SetOnline(ctx context.Context, id string, online bool) error
	RemovePlayer(ctx context.Context, id string) error
	RemoveAllPlayers(ctx context.Context) error
	// IncrementScore atomically adds delta and clamps the result at zero.
	IncrementScore(ctx context.Context, id string, delta int) (int, error)
	ResetScores(ctx context.Context) error
	Players(ctx context.Context) ([]domain.Player, error)
}

// AnswerStore holds submitted answers keyed by question number and player.
type AnswerStore interface {
	// SubmitAnswer stores the answer stamped with the store's clock,
	// overwriting an earlier submission by the same player.
	SubmitAnswer(ctx context.Context, questionNumber int, playerID, answer string) (domain.Answer, error)
	Answers(ctx context.Context, questionNumber int) (map[string]domain.Answer, error)
	ClearAnswers(ctx context.Context, questionNumber int) error
	ClearAllAnswers(ctx context.Context) error
}

// Watcher streams change notifications. The returned cancel func must be called.
type Watcher interface {
	Watch(ctx context.Context) (<-chan domain.StoreEvent, func(), error)
}

// LiveStore is the shared realtime store the game coordinates through.
type LiveStore interface {
	GameStateStore
	PlayerStore
	AnswerStore
	Watcher
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string) error
}

// QuizStore persists quizzes for the editor.
type QuizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID string) error
}

// QuizSource fetches raw quiz files by name.
type QuizSource interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Confirmer asks the user a yes/no question. Anything but a yes aborts the
// destructive action that asked.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Scheduler runs delayed callbacks. Production code uses SystemScheduler;
// tests drive a manual clock.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a scheduled callback.
type Stopper interface {
	Stop() bool
}

// SystemScheduler schedules on the wall clock.
type SystemScheduler struct{}

func (SystemScheduler) Now() time.Time { return time.Now() }

func (SystemScheduler) AfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }
