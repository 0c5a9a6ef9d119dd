package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-night-service/internal/domain"
)

func TestLiveStoreStampsServerTime(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := NewLiveStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	stamped, err := store.PublishState(ctx, domain.GameState{CurrentIndex: 0, View: domain.ViewGame})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if stamped.Timestamp != now.UnixMilli() {
		t.Fatalf("expected server timestamp, got %d", stamped.Timestamp)
	}

	now = now.Add(1500 * time.Millisecond)
	a, _ := store.SubmitAnswer(ctx, 1, "p1", "A")
	if a.Timestamp != stamped.Timestamp+1500 {
		t.Fatalf("expected answer 1500ms after publish, got %d", a.Timestamp-stamped.Timestamp)
	}
}

func TestLiveStorePatchKeepsOtherFields(t *testing.T) {
	store := NewLiveStore()
	ctx := context.Background()
	_, _ = store.PublishState(ctx, domain.GameState{CurrentIndex: 2, View: domain.ViewGame, QuestionText: "Q"})

	value := 7
	status := domain.TimerRunning
	if err := store.PatchState(ctx, domain.StatePatch{TimerValue: &value, TimerStatus: &status}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	state, _ := store.State(ctx)
	if state.TimerValue != 7 || state.TimerStatus != domain.TimerRunning || state.QuestionText != "Q" || state.CurrentIndex != 2 {
		t.Fatalf("unexpected state after patch %+v", state)
	}
}

func TestLiveStoreScoresFloorAtZero(t *testing.T) {
	store := NewLiveStore()
	ctx := context.Background()
	_, _ = store.JoinPlayer(ctx, "p1", "Ann")

	if score, _ := store.IncrementScore(ctx, "p1", 300); score != 300 {
		t.Fatalf("expected 300, got %d", score)
	}
	if score, _ := store.IncrementScore(ctx, "p1", -1000); score != 0 {
		t.Fatalf("expected floor at 0, got %d", score)
	}
	if _, err := store.IncrementScore(ctx, "ghost", 10); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestLiveStoreRejoinKeepsScore(t *testing.T) {
	store := NewLiveStore()
	ctx := context.Background()
	_, _ = store.JoinPlayer(ctx, "p1", "Ann")
	_, _ = store.IncrementScore(ctx, "p1", 500)
	_ = store.SetOnline(ctx, "p1", false)

	p, err := store.JoinPlayer(ctx, "p1", "Annie")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if p.Score != 500 || !p.Online || p.Name != "Annie" {
		t.Fatalf("unexpected player after rejoin %+v", p)
	}
}

func TestLiveStoreAnswersOverwriteAndClear(t *testing.T) {
	store := NewLiveStore()
	ctx := context.Background()
	_, _ = store.SubmitAnswer(ctx, 1, "p1", "A")
	_, _ = store.SubmitAnswer(ctx, 1, "p1", "B")
	_, _ = store.SubmitAnswer(ctx, 2, "p1", "C")

	answers, _ := store.Answers(ctx, 1)
	if len(answers) != 1 || answers["p1"].Answer != "B" {
		t.Fatalf("expected last write to win, got %+v", answers)
	}

	_ = store.ClearAnswers(ctx, 1)
	if answers, _ := store.Answers(ctx, 1); len(answers) != 0 {
		t.Fatalf("expected question 1 cleared")
	}
	if answers, _ := store.Answers(ctx, 2); len(answers) != 1 {
		t.Fatalf("expected question 2 untouched")
	}
	_ = store.ClearAllAnswers(ctx)
	if answers, _ := store.Answers(ctx, 2); len(answers) != 0 {
		t.Fatalf("expected all answers cleared")
	}
}

func TestLiveStoreWatch(t *testing.T) {
	store := NewLiveStore()
	ctx, cancelCtx := context.WithCancel(context.Background())
	events, cancel, err := store.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	_, _ = store.SubmitAnswer(context.Background(), 3, "p1", "A")
	select {
	case ev := <-events:
		if ev.Kind != domain.EventAnswers || ev.QuestionNumber != 3 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}

	cancelCtx()
	select {
	case _, ok := <-events:
		if ok {
			// drain anything that raced with cancellation
			for range events {
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("expected channel to close when context ends")
	}
}

func TestLiveStoreSlowWatcherDoesNotBlock(t *testing.T) {
	store := NewLiveStore()
	_, cancel, _ := store.Watch(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_, _ = store.JoinPlayer(context.Background(), "p1", "Ann")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("writes blocked on a slow watcher")
	}
}
