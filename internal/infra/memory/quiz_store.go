package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-night-service/internal/domain"
)

// QuizStore keeps quizzes in a map. It backs the editor when no database is
// configured and doubles as a QuizLoader for the cache.
type QuizStore struct {
	mu      sync.RWMutex
	clock   func() time.Time
	quizzes map[string]domain.Quiz
}

// NewQuizStore seeds the store with quizzes, keyed by their ID.
func NewQuizStore(quizzes ...domain.Quiz) *QuizStore {
	s := &QuizStore{clock: time.Now, quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q.Clone()
	}
	return s
}

func (s *QuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.Clone(), nil
}

// ListQuizzes returns summaries, most recently updated first.
func (s *QuizStore) ListQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	s.mu.RLock()
	out := make([]domain.QuizSummary, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		out = append(out, domain.QuizSummary{ID: q.ID, Title: q.Title, ItemCount: len(q.Items), UpdatedAt: q.UpdatedAt})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *QuizStore) SaveQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz = quiz.Clone()
	quiz.UpdatedAt = s.clock().UTC()
	s.quizzes[quiz.ID] = quiz
	return quiz.Clone(), nil
}

func (s *QuizStore) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, quizID)
	return nil
}
