package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/domain"
	"trivia-night-service/internal/infra/memory"
	"trivia-night-service/internal/logger"
)

func newEditor() (*app.EditorService, *memory.QuizStore, *memory.QuizRepository) {
	store := memory.NewQuizStore()
	cache := memory.NewQuizRepository(store, time.Hour)
	return app.NewEditorService(store, cache, logger.Discard()), store, cache
}

func TestEditorCreateAndSave(t *testing.T) {
	ctx := context.Background()
	editor, _, cache := newEditor()

	quiz, err := editor.Create(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if quiz.Title != "New Quiz" || len(quiz.Items) != 1 || quiz.UpdatedAt.IsZero() {
		t.Fatalf("unexpected new quiz %+v", quiz)
	}
	q, _ := quiz.Items[0].Question()
	if q.QuestionNumber != 1 || q.Timer != 30 {
		t.Fatalf("unexpected sample question %+v", q)
	}

	// warm the cache, then edit
	if _, err := cache.GetQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("cache: %v", err)
	}
	quiz.Items = append([]domain.Item{domain.NewRoundTitle(domain.RoundTitle{Title: "Intro", Timer: 20})}, quiz.Items...)
	saved, err := editor.Save(ctx, quiz)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if r, _ := saved.Items[0].RoundTitle(); r.RoundNumber != 1 || r.Timer != 0 {
		t.Fatalf("expected renumbered round without timer, got %+v", r)
	}

	fresh, _ := cache.GetQuiz(ctx, quiz.ID)
	if len(fresh.Items) != 2 {
		t.Fatalf("expected cache invalidated after save, got %d items", len(fresh.Items))
	}
}

func TestEditorSaveValidation(t *testing.T) {
	ctx := context.Background()
	editor, _, _ := newEditor()
	quiz, _ := editor.Create(ctx, "Quiz")

	var verr *domain.ValidationError
	quiz.Title = "  "
	if _, err := editor.Save(ctx, quiz); !errors.As(err, &verr) {
		t.Fatalf("expected title validation error, got %v", err)
	}

	quiz.Title = "Quiz"
	quiz.Items = append(quiz.Items, domain.NewQuestion(domain.Question{
		Text:         "Broken",
		QuestionType: domain.QuestionMC,
		Options:      []string{"A) x", "B) y"},
		Answer:       "C) z",
	}))
	if _, err := editor.Save(ctx, quiz); !errors.As(err, &verr) {
		t.Fatalf("expected answer validation error, got %v", err)
	}
}

func TestEditorDeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	editor, store, _ := newEditor()
	quiz, _ := editor.Create(ctx, "Doomed")

	if err := editor.Delete(ctx, no, quiz.ID); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if _, err := store.LoadQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("expected quiz kept, got %v", err)
	}
	if err := editor.Delete(ctx, yes, quiz.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.LoadQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz gone, got %v", err)
	}
}

func TestEditorImportAndExport(t *testing.T) {
	ctx := context.Background()
	editor, _, _ := newEditor()

	quiz, err := editor.Import(ctx, "uploads/friday-night.json", []byte(`{"questions":[
		{"question":"Capital of Italy?","type":"multiple","options":["Rome","Milan"],"correctAnswer":"Rome"}
	]}`))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if quiz.Title != "friday-night" || len(quiz.Items) != 1 {
		t.Fatalf("expected title from file name, got %+v", quiz)
	}

	exported, err := editor.Export(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Title != "friday-night" || exported.Questions[0].CorrectAnswer != "Rome" {
		t.Fatalf("unexpected export %+v", exported)
	}

	var ferr *domain.FormatError
	if _, err := editor.Import(ctx, "bad.json", []byte(`{"nope":true}`)); !errors.As(err, &ferr) {
		t.Fatalf("expected FormatError, got %v", err)
	}

	list, _ := editor.List(ctx)
	if len(list) != 1 {
		t.Fatalf("expected one stored quiz, got %d", len(list))
	}
}
