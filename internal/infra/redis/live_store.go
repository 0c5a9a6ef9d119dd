package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"trivia-night-service/internal/domain"
)

const maxTxRetries = 5

// incrementScript adds ARGV[2] to the score of player ARGV[1], flooring at
// zero. It returns -1 when the player is not registered.
var incrementScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return -1
end
local score = redis.call('HINCRBY', KEYS[2], ARGV[1], ARGV[2])
if score < 0 then
	redis.call('HSET', KEYS[2], ARGV[1], 0)
	score = 0
end
return score
`)

// LiveStore keeps one game's live state in Redis so several service
// instances can share it. Layout, all under trivia:{game}:
//
//	gameState    string, JSON snapshot
//	players      hash, player id -> JSON record
//	scores       hash, player id -> int
//	answers:{q}  hash, player id -> JSON answer
//	events       pub/sub channel, JSON StoreEvent
//
// Timestamps come from the Redis TIME command.
type LiveStore struct {
	client *redis.Client
	prefix string
}

func NewLiveStore(client *redis.Client, gameID string) *LiveStore {
	return &LiveStore{client: client, prefix: "trivia:" + gameID + ":"}
}

type playerRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	JoinedAt int64  `json:"joinedAt"`
}

func (s *LiveStore) PublishState(ctx context.Context, state domain.GameState) (domain.GameState, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return domain.GameState{}, err
	}
	state.Timestamp = now
	data, err := json.Marshal(state)
	if err != nil {
		return domain.GameState{}, err
	}
	if err := s.client.Set(ctx, s.key("gameState"), data, 0).Err(); err != nil {
		return domain.GameState{}, fmt.Errorf("set game state: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventState})
	return state, nil
}

func (s *LiveStore) PatchState(ctx context.Context, patch domain.StatePatch) error {
	key := s.key("gameState")
	err := s.retryTx(ctx, func(tx *redis.Tx) error {
		state, err := s.readState(ctx, tx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(patch.Apply(state))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("patch game state: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventState})
	return nil
}

func (s *LiveStore) State(ctx context.Context) (domain.GameState, error) {
	return s.readState(ctx, s.client)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *LiveStore) readState(ctx context.Context, c getter) (domain.GameState, error) {
	raw, err := c.Get(ctx, s.key("gameState")).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameState{CurrentIndex: -1, View: domain.ViewSetup, Status: domain.StatusWaiting}, nil
	}
	if err != nil {
		return domain.GameState{}, fmt.Errorf("get game state: %w", err)
	}
	var state domain.GameState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.GameState{}, fmt.Errorf("decode game state: %w", err)
	}
	return state, nil
}

func (s *LiveStore) JoinPlayer(ctx context.Context, id, name string) (domain.Player, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return domain.Player{}, err
	}
	rec, err := s.updatePlayer(ctx, id, func(rec *playerRecord, exists bool) error {
		if !exists {
			*rec = playerRecord{ID: id, JoinedAt: now}
		}
		rec.Name = name
		rec.Online = true
		return nil
	})
	if err != nil {
		return domain.Player{}, err
	}
	score, err := s.client.HGet(ctx, s.key("scores"), id).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Player{}, fmt.Errorf("get score: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventPlayers})
	return toPlayer(rec, score), nil
}

func (s *LiveStore) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := s.updatePlayer(ctx, id, func(rec *playerRecord, exists bool) error {
		if !exists {
			return domain.ErrPlayerNotFound
		}
		rec.Online = online
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

// updatePlayer applies fn to the stored record under an optimistic lock.
func (s *LiveStore) updatePlayer(ctx context.Context, id string, fn func(rec *playerRecord, exists bool) error) (playerRecord, error) {
	key := s.key("players")
	var rec playerRecord
	err := s.retryTx(ctx, func(tx *redis.Tx) error {
		rec = playerRecord{}
		raw, err := tx.HGet(ctx, key, id).Bytes()
		exists := err == nil
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if exists {
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode player %s: %w", id, err)
			}
		}
		if err := fn(&rec, exists); err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			return nil
		})
		return err
	}, key)
	return rec, err
}

func (s *LiveStore) RemovePlayer(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.key("players"), id).Result()
	if err != nil {
		return fmt.Errorf("remove player: %w", err)
	}
	if removed == 0 {
		return domain.ErrPlayerNotFound
	}
	if err := s.client.HDel(ctx, s.key("scores"), id).Err(); err != nil {
		return fmt.Errorf("remove score: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

func (s *LiveStore) RemoveAllPlayers(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key("players"), s.key("scores")).Err(); err != nil {
		return fmt.Errorf("remove players: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

func (s *LiveStore) IncrementScore(ctx context.Context, id string, delta int) (int, error) {
	score, err := incrementScript.Run(ctx, s.client, []string{s.key("players"), s.key("scores")}, id, delta).Int()
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}
	if score < 0 {
		return 0, domain.ErrPlayerNotFound
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventPlayers})
	return score, nil
}

// ResetScores drops the score hash; a missing score reads as zero.
func (s *LiveStore) ResetScores(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key("scores")).Err(); err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventPlayers})
	return nil
}

func (s *LiveStore) Players(ctx context.Context) ([]domain.Player, error) {
	pipe := s.client.Pipeline()
	recs := pipe.HGetAll(ctx, s.key("players"))
	scores := pipe.HGetAll(ctx, s.key("scores"))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	out := make([]domain.Player, 0, len(recs.Val()))
	for id, raw := range recs.Val() {
		var rec playerRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode player %s: %w", id, err)
		}
		score, _ := strconv.Atoi(scores.Val()[id])
		out = append(out, toPlayer(rec, score))
	}
	return out, nil
}

func (s *LiveStore) SubmitAnswer(ctx context.Context, questionNumber int, playerID, answer string) (domain.Answer, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return domain.Answer{}, err
	}
	a := domain.Answer{QuestionNumber: questionNumber, PlayerID: playerID, Answer: answer, Timestamp: now}
	data, err := json.Marshal(a)
	if err != nil {
		return domain.Answer{}, err
	}
	if err := s.client.HSet(ctx, s.answersKey(questionNumber), playerID, data).Err(); err != nil {
		return domain.Answer{}, fmt.Errorf("submit answer: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventAnswers, QuestionNumber: questionNumber})
	return a, nil
}

func (s *LiveStore) Answers(ctx context.Context, questionNumber int) (map[string]domain.Answer, error) {
	raw, err := s.client.HGetAll(ctx, s.answersKey(questionNumber)).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make(map[string]domain.Answer, len(raw))
	for playerID, data := range raw {
		var a domain.Answer
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decode answer of %s: %w", playerID, err)
		}
		out[playerID] = a
	}
	return out, nil
}

func (s *LiveStore) ClearAnswers(ctx context.Context, questionNumber int) error {
	if err := s.client.Del(ctx, s.answersKey(questionNumber)).Err(); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventAnswers, QuestionNumber: questionNumber})
	return nil
}

func (s *LiveStore) ClearAllAnswers(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.key("answers:*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan answers: %w", err)
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
	}
	s.notify(ctx, domain.StoreEvent{Kind: domain.EventAnswers})
	return nil
}

// Watch subscribes to the game's event channel. The caller must invoke the
// returned cancel function to avoid leaks; ctx ending also cancels.
func (s *LiveStore) Watch(ctx context.Context) (<-chan domain.StoreEvent, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.key("events"))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe events: %w", err)
	}

	out := make(chan domain.StoreEvent, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	msgs := pubsub.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.StoreEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				default:
					// slow watcher: drop the oldest event
					select {
					case <-out:
					default:
					}
					out <- ev
				}
			}
		}
	}()
	return out, cancel, nil
}

// notify is best effort; watchers re-read the store anyway.
func (s *LiveStore) notify(ctx context.Context, ev domain.StoreEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = s.client.Publish(ctx, s.key("events"), data).Err()
}

func (s *LiveStore) serverTime(ctx context.Context) (int64, error) {
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("server time: %w", err)
	}
	return now.UnixMilli(), nil
}

func (s *LiveStore) retryTx(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func (s *LiveStore) key(name string) string {
	return s.prefix + name
}

func (s *LiveStore) answersKey(questionNumber int) string {
	return s.key("answers:" + strconv.Itoa(questionNumber))
}

func toPlayer(rec playerRecord, score int) domain.Player {
	return domain.Player{ID: rec.ID, Name: rec.Name, Score: score, Online: rec.Online, JoinedAt: rec.JoinedAt}
}
