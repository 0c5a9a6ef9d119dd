package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-night-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches whole quizzes as JSON in Redis and falls back to a
// loader on cache miss. Stored as: SET trivia:quiz:{quizID} {json} EX ttl
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
	// gen counts invalidations per quiz; a load only writes back if no
	// Invalidate ran while it was in flight.
	gen map[string]uint64
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		gen:    make(map[string]uint64),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		gen := r.generation(quizID)
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if data, err := json.Marshal(quiz); err == nil {
			r.store(ctx, quizID, gen, data)
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz).Clone(), nil
}

// Invalidate removes the cached copy after an edit.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen[quizID]++
	r.sf.Forget(quizID)
	return r.client.Del(ctx, r.key(quizID)).Err()
}

func (r *QuizRepository) generation(quizID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[quizID]
}

// store writes the loaded quiz back unless it was invalidated since gen was read.
// Best effort; a failed write only costs a reload.
func (r *QuizRepository) store(ctx context.Context, quizID string, gen uint64, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[quizID] != gen {
		return
	}
	_ = r.client.Set(ctx, r.key(quizID), data, r.ttlWithJitterLocked()).Err()
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) key(quizID string) string {
	return "trivia:quiz:" + quizID
}

func (r *QuizRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
