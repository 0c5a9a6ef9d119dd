package quizformat

import (
	"encoding/json"
	"testing"

	"trivia-night-service/internal/domain"
)

func TestToEditorQuizRoundTrip(t *testing.T) {
	items := []domain.Item{
		domain.NewRoundTitle(domain.RoundTitle{RoundNumber: 1, Title: "Geography", Timer: 20}),
		domain.NewQuestion(domain.Question{
			QuestionNumber: 1,
			Text:           "Capital of France?",
			QuestionType:   domain.QuestionMC,
			Options:        []string{"A) London", "B) Paris"},
			Answer:         "B) Paris",
			Timer:          30,
		}),
		domain.NewQuestion(domain.Question{
			QuestionNumber:  2,
			Text:            "Red planet?",
			QuestionType:    domain.QuestionShort,
			Answer:          "Mars",
			AcceptedAnswers: []string{"mars", "red planet"},
			Timer:           20,
			Notes:           "easy one",
		}),
	}

	editor := ToEditorQuiz(items, "fallback")
	if editor.Title != "Geography" {
		t.Fatalf("expected title from round, got %q", editor.Title)
	}
	if editor.Questions[1].Options[1] != "Paris" || editor.Questions[1].CorrectAnswer != "Paris" {
		t.Fatalf("expected option letters stripped, got %+v", editor.Questions[1])
	}

	raw, err := json.Marshal(editor)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(back) != len(items) {
		t.Fatalf("expected %d items after round trip, got %d", len(items), len(back))
	}
	mc, _ := back[1].Question()
	if mc.Answer != "B) Paris" || mc.Timer != 30 {
		t.Fatalf("unexpected mc after round trip %+v", mc)
	}
	short, _ := back[2].Question()
	if short.Answer != "Mars" || len(short.AcceptedAnswers) != 2 || short.AcceptedAnswers[1] != "red planet" || short.Notes != "easy one" {
		t.Fatalf("unexpected short after round trip %+v", short)
	}
}

func TestToEditorQuizFallbackTitle(t *testing.T) {
	items := []domain.Item{domain.NewQuestion(domain.Question{Text: "Q", QuestionType: domain.QuestionShort, Answer: "a"})}
	if got := ToEditorQuiz(items, "friday").Title; got != "friday" {
		t.Fatalf("expected fallback title, got %q", got)
	}
}
