package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-night-service/internal/domain"
)

// QuizStore keeps quizzes in the quizzes table; items live in a JSONB array.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		quiz domain.Quiz
		raw  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, data, updated_at FROM quizzes WHERE id=$1`, quizID,
	).Scan(&quiz.ID, &quiz.Title, &raw, &quiz.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if err := json.Unmarshal(raw, &quiz.Items); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz %s: %w", quizID, err)
	}
	return quiz, nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, jsonb_array_length(data), updated_at FROM quizzes ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := []domain.QuizSummary{}
	for rows.Next() {
		var q domain.QuizSummary
		if err := rows.Scan(&q.ID, &q.Title, &q.ItemCount, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if quiz.Items == nil {
		quiz.Items = []domain.Item{}
	}
	data, err := json.Marshal(quiz.Items)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
	}
	var updatedAt time.Time
	err = s.pool.QueryRow(ctx, `
		INSERT INTO quizzes (id, title, data, updated_at) VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, data=EXCLUDED.data, updated_at=now()
		RETURNING updated_at`,
		quiz.ID, quiz.Title, string(data),
	).Scan(&updatedAt)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	quiz.UpdatedAt = updatedAt
	return quiz, nil
}

func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}
