package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemKind tags the two variants of a quiz item.
type ItemKind string

const (
	KindRoundTitle ItemKind = "round-title"
	KindQuestion   ItemKind = "question"
)

// QuestionType distinguishes multiple choice from free-text questions.
type QuestionType string

const (
	QuestionMC    QuestionType = "MC"
	QuestionShort QuestionType = "SHORT"
)

// RoundTitle is a slide that opens a round.
type RoundTitle struct {
	RoundNumber int    `json:"roundNumber"`
	Title       string `json:"title"`
	Timer       int    `json:"timer,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Question is a slide players answer.
type Question struct {
	QuestionNumber  int          `json:"questionNumber"`
	Text            string       `json:"text"`
	QuestionType    QuestionType `json:"questionType"`
	Options         []string     `json:"options,omitempty"`
	Answer          string       `json:"answer"`
	AcceptedAnswers []string     `json:"acceptedAnswers,omitempty"`
	Timer           int          `json:"timer"`
	Image           string       `json:"image,omitempty"`
	Notes           string       `json:"notes,omitempty"`
}

// Item is one slide of a quiz: exactly one of a RoundTitle or a Question.
// The zero Item is invalid; build items with NewRoundTitle or NewQuestion.
type Item struct {
	kind     ItemKind
	round    *RoundTitle
	question *Question
}

func NewRoundTitle(r RoundTitle) Item {
	return Item{kind: KindRoundTitle, round: &r}
}

func NewQuestion(q Question) Item {
	return Item{kind: KindQuestion, question: &q}
}

func (i Item) Kind() ItemKind { return i.kind }

// RoundTitle returns the round payload when the item is a round title.
func (i Item) RoundTitle() (RoundTitle, bool) {
	if i.kind != KindRoundTitle || i.round == nil {
		return RoundTitle{}, false
	}
	return *i.round, true
}

// Question returns a copy of the question payload when the item is a question.
func (i Item) Question() (Question, bool) {
	if i.kind != KindQuestion || i.question == nil {
		return Question{}, false
	}
	q := *i.question
	q.Options = cloneStrings(q.Options)
	q.AcceptedAnswers = cloneStrings(q.AcceptedAnswers)
	return q, true
}

// Timer returns the configured seconds for the item, 0 when unset.
func (i Item) Timer() int {
	switch i.kind {
	case KindRoundTitle:
		return i.round.Timer
	case KindQuestion:
		return i.question.Timer
	default:
		return 0
	}
}

// Clone returns a deep copy that shares no memory with i.
func (i Item) Clone() Item {
	switch i.kind {
	case KindRoundTitle:
		return NewRoundTitle(*i.round)
	case KindQuestion:
		q, _ := i.Question()
		return NewQuestion(q)
	default:
		return Item{}
	}
}

type roundTitleJSON struct {
	Type ItemKind `json:"type"`
	RoundTitle
}

type questionJSON struct {
	Type ItemKind `json:"type"`
	Question
}

// MarshalJSON writes the flat item format: {"type": "...", ...fields}.
func (i Item) MarshalJSON() ([]byte, error) {
	switch i.kind {
	case KindRoundTitle:
		return json.Marshal(roundTitleJSON{Type: KindRoundTitle, RoundTitle: *i.round})
	case KindQuestion:
		return json.Marshal(questionJSON{Type: KindQuestion, Question: *i.question})
	default:
		return nil, fmt.Errorf("marshal item: unknown kind %q", i.kind)
	}
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type ItemKind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return &FormatError{Reason: "item is not an object", Err: err}
	}
	switch probe.Type {
	case KindRoundTitle:
		var r RoundTitle
		if err := json.Unmarshal(data, &r); err != nil {
			return &FormatError{Reason: "invalid round-title", Err: err}
		}
		*i = NewRoundTitle(r)
	case KindQuestion:
		var q Question
		if err := json.Unmarshal(data, &q); err != nil {
			return &FormatError{Reason: "invalid question", Err: err}
		}
		*i = NewQuestion(q)
	default:
		return &FormatError{Reason: fmt.Sprintf("unknown item type %q", probe.Type)}
	}
	return nil
}

// Quiz is an ordered sequence of items owned by the editor.
type Quiz struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone deep-copies the quiz so the host can work on it without touching the editor's copy.
func (q Quiz) Clone() Quiz {
	out := q
	out.Items = make([]Item, len(q.Items))
	for i, item := range q.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// QuizSummary is the list view of a stored quiz.
type QuizSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ItemCount int       `json:"itemCount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View is the host console screen.
type View string

const (
	ViewSetup View = "setup"
	ViewGame  View = "game"
)

// GameStatus is the coarse status players key their screens on.
type GameStatus string

const (
	StatusWaiting GameStatus = "waiting"
	StatusActive  GameStatus = "active"
)

// TimerStatus is the phase of the per-question timer.
type TimerStatus string

const (
	TimerStopped   TimerStatus = "stopped"
	TimerCountdown TimerStatus = "countdown"
	TimerRunning   TimerStatus = "running"
	TimerEnded     TimerStatus = "ended"
	TimerRevealed  TimerStatus = "revealed"
)

// GameState is the published snapshot of the game session. It is the only
// thing players observe; Answer stays nil until the host reveals it.
type GameState struct {
	CurrentIndex   int         `json:"currentIndex"`
	View           View        `json:"view"`
	Status         GameStatus  `json:"status"`
	AnswerRevealed bool        `json:"answerRevealed"`
	TimerValue     int         `json:"timerValue"`
	TimerStatus    TimerStatus `json:"timerStatus,omitempty"`
	TimerTotal     int         `json:"timerTotal,omitempty"`
	// Timestamp is the store's server time (unix ms) of the last full publish.
	Timestamp int64    `json:"timestamp,omitempty"`
	Type      ItemKind `json:"type,omitempty"`

	RoundNumber int    `json:"roundNumber,omitempty"`
	RoundTitle  string `json:"roundTitle,omitempty"`

	QuestionNumber int          `json:"questionNumber,omitempty"`
	QuestionType   QuestionType `json:"questionType,omitempty"`
	QuestionText   string       `json:"questionText,omitempty"`
	QuestionImage  string       `json:"questionImage,omitempty"`
	Options        []string     `json:"options,omitempty"`
	Answer         *string      `json:"answer,omitempty"`
}

// StatePatch is a partial update of the published state. Nil fields are left untouched.
type StatePatch struct {
	TimerValue     *int
	TimerStatus    *TimerStatus
	TimerTotal     *int
	AnswerRevealed *bool
	Answer         *string
}

// Apply returns s with the non-nil patch fields written over it.
func (p StatePatch) Apply(s GameState) GameState {
	if p.TimerValue != nil {
		s.TimerValue = *p.TimerValue
	}
	if p.TimerStatus != nil {
		s.TimerStatus = *p.TimerStatus
	}
	if p.TimerTotal != nil {
		s.TimerTotal = *p.TimerTotal
	}
	if p.AnswerRevealed != nil {
		s.AnswerRevealed = *p.AnswerRevealed
	}
	if p.Answer != nil {
		answer := *p.Answer
		s.Answer = &answer
	}
	return s
}

// Player is a participant registered in the live store.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Online   bool   `json:"online"`
	JoinedAt int64  `json:"joinedAt"`
}

// Answer is a player's submission for one question. One per player per
// question; a resubmission overwrites.
type Answer struct {
	QuestionNumber int    `json:"questionNumber"`
	PlayerID       string `json:"playerId"`
	Answer         string `json:"answer"`
	Timestamp      int64  `json:"timestamp"`
}

// ScoreboardEntry is a player row as shown to players.
type ScoreboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Online   bool   `json:"online"`
	Leader   bool   `json:"leader"`
}

// Scoreboard captures the ordered scores of the game.
type Scoreboard struct {
	Entries   []ScoreboardEntry `json:"entries"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// EventKind names the part of the live store that changed.
type EventKind string

const (
	EventState   EventKind = "state"
	EventPlayers EventKind = "players"
	EventAnswers EventKind = "answers"
)

// StoreEvent notifies watchers that a path of the live store changed.
type StoreEvent struct {
	Kind           EventKind `json:"kind"`
	QuestionNumber int       `json:"questionNumber,omitempty"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
