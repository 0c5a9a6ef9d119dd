package quizformat

import (
	"strings"

	"trivia-night-service/internal/domain"
)

// EditorQuiz is the nested quiz form authors write by hand.
type EditorQuiz struct {
	Title     string        `json:"title"`
	Questions []EditorEntry `json:"questions"`
}

// EditorEntry is one entry of EditorQuiz. CorrectAnswer is a string, or a
// list of strings for short answers with alternatives.
type EditorEntry struct {
	Type          string   `json:"type"`
	Title         string   `json:"title,omitempty"`
	Question      string   `json:"question,omitempty"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer any      `json:"correctAnswer,omitempty"`
	Timer         int      `json:"timer,omitempty"`
	Image         string   `json:"image,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// ToEditorQuiz converts items back into the nested form, dropping the
// option letters. The title falls back to the first round title, then to
// fallback. Normalize of the result yields the same items.
func ToEditorQuiz(items []domain.Item, fallback string) EditorQuiz {
	out := EditorQuiz{Title: fallback, Questions: make([]EditorEntry, 0, len(items))}
	titled := false

	for _, item := range items {
		switch item.Kind() {
		case domain.KindRoundTitle:
			r, _ := item.RoundTitle()
			if !titled && r.Title != "" {
				out.Title = r.Title
				titled = true
			}
			out.Questions = append(out.Questions, EditorEntry{
				Type:  string(domain.KindRoundTitle),
				Title: r.Title,
				Timer: r.Timer,
				Image: r.Image,
			})
		case domain.KindQuestion:
			q, _ := item.Question()
			out.Questions = append(out.Questions, editorQuestion(q))
		}
	}
	return out
}

func editorQuestion(q domain.Question) EditorEntry {
	e := EditorEntry{
		Question: q.Text,
		Timer:    q.Timer,
		Image:    q.Image,
		Notes:    q.Notes,
	}
	if q.QuestionType == domain.QuestionMC {
		e.Type = "multiple"
		e.Options = make([]string, len(q.Options))
		for i, opt := range q.Options {
			e.Options[i] = stripLetter(opt)
		}
		e.CorrectAnswer = stripLetter(q.Answer)
		return e
	}

	e.Type = "short"
	answers := []string{q.Answer}
	for _, accepted := range q.AcceptedAnswers {
		if accepted != strings.ToLower(q.Answer) {
			answers = append(answers, accepted)
		}
	}
	if len(answers) == 1 {
		e.CorrectAnswer = q.Answer
	} else {
		e.CorrectAnswer = answers
	}
	return e
}

// stripLetter removes a leading "X) " option label.
func stripLetter(s string) string {
	if len(s) >= 3 && s[1] == ')' && s[2] == ' ' {
		return s[3:]
	}
	return s
}
