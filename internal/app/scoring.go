package app

import (
	"math"
	"strings"

	"trivia-night-service/internal/domain"
)

const (
	// FlatPoints is awarded for a correct answer when speed scoring is off
	// or timestamps are unknown.
	FlatPoints = 1000
	// SpeedBasePoints is the floor for a correct answer under speed scoring.
	SpeedBasePoints = 500
	// SpeedBonusPoints is scaled by the fraction of the time limit left.
	SpeedBonusPoints = 500
)

// Scorer evaluates answers for a revealed question.
type Scorer struct {
	SpeedScoring bool
	// DefaultTimer is the time limit, in seconds, for questions without one.
	DefaultTimer int
}

// CheckCorrectness reports whether answer is correct for q. Multiple choice
// requires the exact lettered option; short answers ignore case and
// surrounding whitespace and also match any accepted answer.
func CheckCorrectness(q domain.Question, answer string) bool {
	switch q.QuestionType {
	case domain.QuestionMC:
		return answer == q.Answer
	default:
		clean := strings.ToLower(strings.TrimSpace(answer))
		for _, accepted := range q.AcceptedAnswers {
			if clean == accepted {
				return true
			}
		}
		return clean == strings.ToLower(strings.TrimSpace(q.Answer))
	}
}

// Points returns the award for one answer. questionStart and answeredAt are
// store timestamps in unix milliseconds; zero means unknown.
func (s Scorer) Points(q domain.Question, correct bool, questionStart, answeredAt int64) int {
	if !correct {
		return 0
	}
	limitSeconds := q.Timer
	if limitSeconds <= 0 {
		limitSeconds = s.DefaultTimer
	}
	if !s.SpeedScoring || questionStart <= 0 || answeredAt <= 0 || limitSeconds <= 0 {
		return FlatPoints
	}

	limitMs := float64(limitSeconds) * 1000
	taken := float64(answeredAt - questionStart)
	ratio := (limitMs - taken) / limitMs
	ratio = math.Max(0, math.Min(1, ratio))
	return SpeedBasePoints + int(math.Floor(ratio*SpeedBonusPoints))
}

// Evaluate scores every submitted answer for q. Every answering player gets
// an entry; incorrect answers map to zero.
func (s Scorer) Evaluate(q domain.Question, questionStart int64, answers map[string]domain.Answer) map[string]int {
	awards := make(map[string]int, len(answers))
	for playerID, a := range answers {
		awards[playerID] = s.Points(q, CheckCorrectness(q, a.Answer), questionStart, a.Timestamp)
	}
	return awards
}
