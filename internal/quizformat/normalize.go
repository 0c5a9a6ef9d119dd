// Package quizformat converts the quiz file formats the game accepts into the
// canonical item sequence and keeps item numbering consistent.
package quizformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trivia-night-service/internal/domain"
)

// DefaultTimer is the per-item timer, in seconds, used when the input has none.
const DefaultTimer = 20

var optionLetters = []string{"A", "B", "C", "D", "E", "F"}

// Letter returns the label for the option at index i ("A".."F", "?" beyond).
func Letter(i int) string {
	if i >= 0 && i < len(optionLetters) {
		return optionLetters[i]
	}
	return "?"
}

// Normalize parses raw quiz JSON into the canonical item sequence.
//
// Two shapes are accepted: a flat array of items (already canonical, only the
// numbering is re-derived) and the nested {"title", "questions": [...]} form.
// Anything else is a *domain.FormatError.
func Normalize(raw []byte) ([]domain.Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &domain.FormatError{Reason: "empty input"}
	}

	var items []domain.Item
	var err error
	switch trimmed[0] {
	case '[':
		items, err = normalizeFlat(trimmed)
	case '{':
		items, err = normalizeNested(trimmed)
	default:
		return nil, &domain.FormatError{Reason: "expected an array or an object with a 'questions' array"}
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &domain.FormatError{Reason: "quiz is empty"}
	}
	return Renumber(items), nil
}

// Title returns the quiz title carried by raw, if any: the nested form's
// "title" or the first round title of a flat array.
func Title(raw []byte, items []domain.Item) string {
	var probe struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Title != "" {
		return probe.Title
	}
	for _, item := range items {
		if r, ok := item.RoundTitle(); ok && r.Title != "" {
			return r.Title
		}
	}
	return ""
}

func normalizeFlat(raw []byte) ([]domain.Item, error) {
	var items []domain.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, asFormatError(err)
	}
	for i, item := range items {
		q, ok := item.Question()
		if !ok {
			continue
		}
		q.AcceptedAnswers = foldAnswers(q.AcceptedAnswers)
		items[i] = domain.NewQuestion(q)
	}
	return items, nil
}

type nestedQuiz struct {
	Title     string             `json:"title"`
	Questions *[]json.RawMessage `json:"questions"`
}

type nestedEntry struct {
	Type          string          `json:"type"`
	Question      string          `json:"question"`
	Text          string          `json:"text"`
	Title         string          `json:"title"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Timer         int             `json:"timer"`
	Image         string          `json:"image"`
	Notes         string          `json:"notes"`
}

func normalizeNested(raw []byte) ([]domain.Item, error) {
	var quiz nestedQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return nil, asFormatError(err)
	}
	if quiz.Questions == nil {
		return nil, &domain.FormatError{Reason: "object has no 'questions' array"}
	}

	entries := make([]nestedEntry, len(*quiz.Questions))
	for i, rawEntry := range *quiz.Questions {
		if err := json.Unmarshal(rawEntry, &entries[i]); err != nil {
			return nil, &domain.FormatError{Reason: fmt.Sprintf("entry %d", i+1), Err: err}
		}
	}

	items := make([]domain.Item, 0, len(entries)+1)
	if quiz.Title != "" && (len(entries) == 0 || entries[0].Type != string(domain.KindRoundTitle)) {
		items = append(items, domain.NewRoundTitle(domain.RoundTitle{
			RoundNumber: 1,
			Title:       quiz.Title,
			Timer:       DefaultTimer,
		}))
	}

	for i, entry := range entries {
		item, err := convertEntry(entry)
		if err != nil {
			return nil, &domain.FormatError{Reason: fmt.Sprintf("entry %d", i+1), Err: err}
		}
		items = append(items, item)
	}
	return items, nil
}

func convertEntry(e nestedEntry) (domain.Item, error) {
	timer := e.Timer
	if timer <= 0 {
		timer = DefaultTimer
	}

	kind := e.Type
	if kind == "" {
		kind = "short"
		if len(e.Options) > 0 {
			kind = "multiple"
		}
	}

	text := e.Question
	if text == "" {
		text = e.Text
	}

	switch kind {
	case string(domain.KindRoundTitle):
		return domain.NewRoundTitle(domain.RoundTitle{Title: e.Title, Timer: timer, Image: e.Image}), nil

	case "multiple":
		answers, err := decodeAnswers(e.CorrectAnswer)
		if err != nil {
			return domain.Item{}, err
		}
		correct := ""
		if len(answers) > 0 {
			correct = answers[0]
		}
		options := make([]string, len(e.Options))
		answer := correct
		for i, opt := range e.Options {
			options[i] = Letter(i) + ") " + opt
			if opt == correct && answer == correct {
				answer = options[i]
			}
		}
		return domain.NewQuestion(domain.Question{
			Text:         text,
			QuestionType: domain.QuestionMC,
			Options:      options,
			Answer:       answer,
			Timer:        timer,
			Image:        e.Image,
			Notes:        e.Notes,
		}), nil

	case "short":
		answers, err := decodeAnswers(e.CorrectAnswer)
		if err != nil {
			return domain.Item{}, err
		}
		if len(answers) == 0 {
			return domain.Item{}, fmt.Errorf("short answer question %q has no correctAnswer", text)
		}
		return domain.NewQuestion(domain.Question{
			Text:            text,
			QuestionType:    domain.QuestionShort,
			Answer:          answers[0],
			AcceptedAnswers: foldAnswers(answers),
			Timer:           timer,
			Image:           e.Image,
			Notes:           e.Notes,
		}), nil

	default:
		return domain.Item{}, fmt.Errorf("unknown question type %q", e.Type)
	}
}

// decodeAnswers accepts either a single string or a list of strings.
func decodeAnswers(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("correctAnswer must be a string or a list of strings")
	}
	return many, nil
}

func foldAnswers(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func asFormatError(err error) error {
	var fe *domain.FormatError
	if errors.As(err, &fe) {
		return fe
	}
	return &domain.FormatError{Reason: "malformed JSON", Err: err}
}
