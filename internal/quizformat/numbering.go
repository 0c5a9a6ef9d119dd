package quizformat

import "trivia-night-service/internal/domain"

// Renumber returns a copy of items with question numbers 1..k over the
// questions and round numbers 1..m over the round titles, in item order.
// Stored numbers are never trusted.
func Renumber(items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	rounds, questions := 0, 0
	for i, item := range items {
		switch item.Kind() {
		case domain.KindRoundTitle:
			r, _ := item.RoundTitle()
			rounds++
			r.RoundNumber = rounds
			out[i] = domain.NewRoundTitle(r)
		case domain.KindQuestion:
			q, _ := item.Question()
			questions++
			q.QuestionNumber = questions
			out[i] = domain.NewQuestion(q)
		default:
			out[i] = item
		}
	}
	return out
}

// PrepareForSave renumbers items and drops fields a round title does not
// carry once saved by the editor (its timer).
func PrepareForSave(items []domain.Item) []domain.Item {
	out := Renumber(items)
	for i, item := range out {
		if r, ok := item.RoundTitle(); ok {
			r.Timer = 0
			out[i] = domain.NewRoundTitle(r)
		}
	}
	return out
}

// QuestionCount returns how many items are questions.
func QuestionCount(items []domain.Item) int {
	n := 0
	for _, item := range items {
		if item.Kind() == domain.KindQuestion {
			n++
		}
	}
	return n
}
