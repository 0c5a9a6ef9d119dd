package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"trivia-night-service/internal/domain"
	"trivia-night-service/internal/logger"
	"trivia-night-service/internal/quizformat"
)

// HostConfig tunes the game controller.
type HostConfig struct {
	// DefaultTimer is used for items without their own timer, in seconds.
	DefaultTimer int
	// CountdownFrom is the pre-question countdown start value, in seconds.
	CountdownFrom int
	// RevealDelay is the grace period before an automatic reveal.
	RevealDelay  time.Duration
	AutoReveal   bool
	SpeedScoring bool
	// WriteTimeout bounds store writes made from timer callbacks.
	WriteTimeout time.Duration
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		DefaultTimer:  quizformat.DefaultTimer,
		CountdownFrom: 3,
		RevealDelay:   2 * time.Second,
		AutoReveal:    true,
		SpeedScoring:  true,
		WriteTimeout:  5 * time.Second,
	}
}

// session is the host-owned part of the game that is not derived from the quiz.
type session struct {
	currentIndex      int
	view              domain.View
	timerValue        int
	timerStatus       domain.TimerStatus
	timerTotal        int
	answerRevealed    bool
	publishedAt       int64
	questionStartedAt int64
}

// Host is the single authority over a live game: it walks the quiz, runs
// the timers, reveals answers and awards points. Every command and every
// timer callback runs under one lock, so state changes are serialised.
type Host struct {
	store   LiveStore
	quizzes QuizRepository
	source  QuizSource
	sched   Scheduler
	scorer  Scorer
	log     logger.Logger
	cfg     HostConfig

	mu       sync.Mutex
	quiz     domain.Quiz
	loaded   bool
	session  session
	ticker   pending
	reveal   pending
	deadline time.Time
}

func NewHost(store LiveStore, quizzes QuizRepository, source QuizSource, cfg HostConfig, log logger.Logger) *Host {
	return NewHostWithScheduler(store, quizzes, source, cfg, log, SystemScheduler{})
}

// NewHostWithScheduler lets tests drive timers with a manual clock.
func NewHostWithScheduler(store LiveStore, quizzes QuizRepository, source QuizSource, cfg HostConfig, log logger.Logger, sched Scheduler) *Host {
	if cfg.DefaultTimer <= 0 {
		cfg.DefaultTimer = quizformat.DefaultTimer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Host{
		store:   store,
		quizzes: quizzes,
		source:  source,
		sched:   sched,
		scorer:  Scorer{SpeedScoring: cfg.SpeedScoring, DefaultTimer: cfg.DefaultTimer},
		log:     log,
		cfg:     cfg,
		session: session{
			currentIndex: -1,
			view:         domain.ViewSetup,
			timerValue:   cfg.DefaultTimer,
			timerStatus:  domain.TimerStopped,
		},
	}
}

// LoadQuiz fetches a stored quiz and makes a private copy the game runs on.
func (h *Host) LoadQuiz(ctx context.Context, quizID string) (domain.QuizSummary, error) {
	quiz, err := h.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	return h.setQuiz(quiz.Clone())
}

// LoadQuizFile fetches a quiz file by name and normalises it.
func (h *Host) LoadQuizFile(ctx context.Context, name string) (domain.QuizSummary, error) {
	raw, err := h.source.Fetch(ctx, name)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	items, err := quizformat.Normalize(raw)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	return h.setQuiz(domain.Quiz{ID: name, Title: quizformat.Title(raw, items), Items: items})
}

func (h *Host) setQuiz(quiz domain.Quiz) (domain.QuizSummary, error) {
	if len(quiz.Items) == 0 {
		return domain.QuizSummary{}, domain.ErrEmptyQuiz
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session.view == domain.ViewGame {
		return domain.QuizSummary{}, domain.ErrGameInProgress
	}
	h.quiz = quiz
	h.loaded = true
	h.log.Info("quiz loaded", "quiz", quiz.ID, "items", len(quiz.Items))
	return summaryOf(quiz), nil
}

// LoadedQuiz reports the quiz the next game will run.
func (h *Host) LoadedQuiz() (domain.QuizSummary, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return domain.QuizSummary{}, false
	}
	return summaryOf(h.quiz), true
}

// Start switches to the game view on the first item.
func (h *Host) Start(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded {
		return h.snapshotLocked(), domain.ErrQuizNotLoaded
	}
	if len(h.quiz.Items) == 0 {
		return h.snapshotLocked(), domain.ErrEmptyQuiz
	}

	h.stopTimersLocked()
	h.session.view = domain.ViewGame
	h.enterItemLocked(0)

	var errs []error
	if q, ok := h.currentQuestionLocked(); ok {
		if err := h.store.ClearAnswers(ctx, q.QuestionNumber); err != nil {
			errs = append(errs, &domain.WriteFailure{Op: "clear answers", Err: err})
		}
	}
	errs = append(errs, h.publishLocked(ctx))
	h.log.Info("game started", "quiz", h.quiz.ID)
	return h.snapshotLocked(), errors.Join(errs...)
}

// Next moves to the following item and, for a question, clears stale answers
// and starts the countdown. It is a no-op on the last item.
func (h *Host) Next(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireGameLocked(); err != nil {
		return h.snapshotLocked(), err
	}
	if h.session.currentIndex >= len(h.quiz.Items)-1 {
		return h.snapshotLocked(), nil
	}

	h.stopTimersLocked()
	h.enterItemLocked(h.session.currentIndex + 1)

	var errs []error
	q, isQuestion := h.currentQuestionLocked()
	if isQuestion {
		if err := h.store.ClearAnswers(ctx, q.QuestionNumber); err != nil {
			errs = append(errs, &domain.WriteFailure{Op: "clear answers", Err: err})
		}
	}
	errs = append(errs, h.publishLocked(ctx))
	if isQuestion {
		h.startCountdownLocked(ctx)
	}
	return h.snapshotLocked(), errors.Join(errs...)
}

// Previous moves back one item without restarting any timer.
func (h *Host) Previous(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireGameLocked(); err != nil {
		return h.snapshotLocked(), err
	}
	if h.session.currentIndex <= 0 {
		return h.snapshotLocked(), nil
	}

	h.stopTimersLocked()
	h.enterItemLocked(h.session.currentIndex - 1)
	err := h.publishLocked(ctx)
	return h.snapshotLocked(), err
}

// Reveal discloses the answer of the current question and awards points.
// Revealing twice is a no-op.
func (h *Host) Reveal(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revealLocked(ctx)
}

func (h *Host) revealLocked(ctx context.Context) (domain.GameState, error) {
	q, ok := h.currentQuestionLocked()
	if !ok {
		return h.snapshotLocked(), domain.ErrNotAQuestion
	}
	if h.session.answerRevealed {
		return h.snapshotLocked(), nil
	}

	h.stopTimersLocked()
	h.session.answerRevealed = true
	h.session.timerStatus = domain.TimerRevealed

	var errs []error
	answers, err := h.store.Answers(ctx, q.QuestionNumber)
	if err != nil {
		errs = append(errs, fmt.Errorf("load answers for question %d: %w", q.QuestionNumber, err))
	}
	awarded := h.awardLocked(ctx, q, answers)

	revealed := true
	status := domain.TimerRevealed
	answer := q.Answer
	if err := h.store.PatchState(ctx, domain.StatePatch{
		AnswerRevealed: &revealed,
		Answer:         &answer,
		TimerStatus:    &status,
	}); err != nil {
		errs = append(errs, &domain.WriteFailure{Op: "reveal answer", Err: err})
	}

	h.log.Info("answer revealed", "question", q.QuestionNumber, "answers", len(answers), "correct", awarded)
	return h.snapshotLocked(), errors.Join(errs...)
}

// awardLocked adds points for every correct answer. Score writes are best
// effort: a failure is logged and the game carries on.
func (h *Host) awardLocked(ctx context.Context, q domain.Question, answers map[string]domain.Answer) int {
	correct := 0
	for playerID, points := range h.scorer.Evaluate(q, h.session.questionStartedAt, answers) {
		if points <= 0 {
			continue
		}
		correct++
		if _, err := h.store.IncrementScore(ctx, playerID, points); err != nil {
			if errors.Is(err, domain.ErrPlayerNotFound) {
				h.log.Debug("skipping score for removed player", "player", playerID)
				continue
			}
			h.log.Warn("score write failed", "player", playerID, "points", points, "error", err)
		}
	}
	return correct
}

// Reset returns to the setup view, clears every answer and zeroes every
// score. Nothing happens unless confirm says yes.
func (h *Host) Reset(ctx context.Context, confirm Confirmer) (domain.GameState, error) {
	if confirm == nil || !confirm.Confirm(ctx, "Reset the quiz? This clears all progress and sets every score to zero.") {
		return h.Snapshot(), domain.ErrNotConfirmed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopTimersLocked()
	h.session = session{
		currentIndex: -1,
		view:         domain.ViewSetup,
		timerValue:   h.cfg.DefaultTimer,
		timerStatus:  domain.TimerStopped,
	}

	var errs []error
	if err := h.store.ClearAllAnswers(ctx); err != nil {
		errs = append(errs, &domain.WriteFailure{Op: "clear answers", Err: err})
	}
	if err := h.store.ResetScores(ctx); err != nil {
		errs = append(errs, &domain.WriteFailure{Op: "reset scores", Err: err})
	}
	waiting := domain.GameState{CurrentIndex: -1, View: domain.ViewSetup, Status: domain.StatusWaiting}
	if _, err := h.store.PublishState(ctx, waiting); err != nil {
		errs = append(errs, &domain.WriteFailure{Op: "publish state", Err: err})
	}
	h.log.Info("game reset")
	return h.snapshotLocked(), errors.Join(errs...)
}

// AdjustScore adds delta (which may be negative) to a player's score, never
// going below zero.
func (h *Host) AdjustScore(ctx context.Context, playerID string, delta int) (int, error) {
	score, err := h.store.IncrementScore(ctx, playerID, delta)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return 0, err
		}
		return 0, &domain.WriteFailure{Op: "adjust score", Err: err}
	}
	return score, nil
}

// KickPlayer removes a player after confirmation.
func (h *Host) KickPlayer(ctx context.Context, confirm Confirmer, playerID string) error {
	if confirm == nil || !confirm.Confirm(ctx, "Kick player "+playerID+"?") {
		return domain.ErrNotConfirmed
	}
	if err := h.store.RemovePlayer(ctx, playerID); err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return err
		}
		return &domain.WriteFailure{Op: "remove player", Err: err}
	}
	h.log.Info("player removed", "player", playerID)
	return nil
}

// ClearPlayers removes every player and every answer after confirmation.
func (h *Host) ClearPlayers(ctx context.Context, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(ctx, "Delete ALL players and scores? This cannot be undone.") {
		return domain.ErrNotConfirmed
	}
	var errs []error
	if err := h.store.RemoveAllPlayers(ctx); err != nil {
		errs = append(errs, &domain.WriteFailure{Op: "remove players", Err: err})
	}
	if err := h.store.ClearAllAnswers(ctx); err != nil {
		errs = append(errs, &domain.WriteFailure{Op: "clear answers", Err: err})
	}
	h.log.Info("all players cleared")
	return errors.Join(errs...)
}

// Snapshot returns the state as the host currently sees it.
func (h *Host) Snapshot() domain.GameState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// AnswerView is one submitted answer as shown on the host console.
type AnswerView struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Answer     string `json:"answer"`
	Timestamp  int64  `json:"timestamp"`
	Correct    bool   `json:"correct"`
}

// HostOverview is everything the host console renders.
type HostOverview struct {
	State       domain.GameState    `json:"state"`
	Quiz        *domain.QuizSummary `json:"quiz,omitempty"`
	CurrentItem *domain.Item        `json:"currentItem,omitempty"`
	Progress    float64             `json:"progress"`
	AutoReveal  bool                `json:"autoReveal"`
	Players     []domain.Player     `json:"players"`
	OnlineCount int                 `json:"onlineCount"`
	Answers     []AnswerView        `json:"answers"`
}

// Overview gathers the host console view, including the current item with
// its answer and notes.
func (h *Host) Overview(ctx context.Context) (HostOverview, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ov := HostOverview{
		State:      h.snapshotLocked(),
		AutoReveal: h.cfg.AutoReveal,
		Answers:    []AnswerView{},
	}
	if h.loaded {
		summary := summaryOf(h.quiz)
		ov.Quiz = &summary
		if n := len(h.quiz.Items); n > 0 {
			ov.Progress = float64(h.session.currentIndex+1) / float64(n) * 100
		}
	}
	if item, ok := h.currentItemLocked(); ok {
		clone := item.Clone()
		ov.CurrentItem = &clone
	}

	players, err := h.store.Players(ctx)
	if err != nil {
		return ov, err
	}
	sortPlayers(players)
	ov.Players = players
	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
		if p.Online {
			ov.OnlineCount++
		}
	}

	q, ok := h.currentQuestionLocked()
	if !ok {
		return ov, nil
	}
	answers, err := h.store.Answers(ctx, q.QuestionNumber)
	if err != nil {
		return ov, err
	}
	for playerID, a := range answers {
		name, known := names[playerID]
		if !known {
			name = "Unknown"
		}
		ov.Answers = append(ov.Answers, AnswerView{
			PlayerID:   playerID,
			PlayerName: name,
			Answer:     a.Answer,
			Timestamp:  a.Timestamp,
			Correct:    CheckCorrectness(q, a.Answer),
		})
	}
	sort.Slice(ov.Answers, func(i, j int) bool {
		return ov.Answers[i].Timestamp < ov.Answers[j].Timestamp
	})
	return ov, nil
}

// Run watches the live store and feeds answer and presence changes into
// the auto-reveal monitor until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	events, cancel, err := h.store.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch live store: %w", err)
	}
	defer cancel()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind == domain.EventState {
				continue
			}
			h.CheckAutoReveal(ctx)
		}
	}
}

func (h *Host) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopTimersLocked()
}

func (h *Host) requireGameLocked() error {
	if h.session.view != domain.ViewGame || h.session.currentIndex < 0 {
		return domain.Validationf("game", "not started")
	}
	return nil
}

// enterItemLocked points the session at index with a fresh, stopped timer.
func (h *Host) enterItemLocked(index int) {
	h.session.currentIndex = index
	h.session.answerRevealed = false
	h.session.timerStatus = domain.TimerStopped
	h.session.timerTotal = 0
	h.session.timerValue = h.timerForLocked(h.quiz.Items[index])
	h.session.questionStartedAt = 0
}

func (h *Host) timerForLocked(item domain.Item) int {
	if t := item.Timer(); t > 0 {
		return t
	}
	return h.cfg.DefaultTimer
}

func (h *Host) currentItemLocked() (domain.Item, bool) {
	i := h.session.currentIndex
	if !h.loaded || i < 0 || i >= len(h.quiz.Items) {
		return domain.Item{}, false
	}
	return h.quiz.Items[i], true
}

func (h *Host) currentQuestionLocked() (domain.Question, bool) {
	item, ok := h.currentItemLocked()
	if !ok || h.session.view != domain.ViewGame {
		return domain.Question{}, false
	}
	return item.Question()
}

func (h *Host) stopTimersLocked() {
	h.ticker.cancel()
	h.reveal.cancel()
}

// publishLocked writes the full snapshot. The store's timestamp becomes the
// question start used for speed scoring.
func (h *Host) publishLocked(ctx context.Context) error {
	stamped, err := h.store.PublishState(ctx, h.snapshotLocked())
	if err != nil {
		h.log.Warn("publish state failed", "index", h.session.currentIndex, "error", err)
		return &domain.WriteFailure{Op: "publish state", Err: err}
	}
	h.session.publishedAt = stamped.Timestamp
	if _, ok := h.currentQuestionLocked(); ok {
		h.session.questionStartedAt = stamped.Timestamp
	}
	return nil
}

func (h *Host) snapshotLocked() domain.GameState {
	s := domain.GameState{
		CurrentIndex:   h.session.currentIndex,
		View:           h.session.view,
		Status:         domain.StatusWaiting,
		AnswerRevealed: h.session.answerRevealed,
		TimerValue:     h.session.timerValue,
		TimerStatus:    h.session.timerStatus,
		TimerTotal:     h.session.timerTotal,
		Timestamp:      h.session.publishedAt,
	}
	if h.session.view != domain.ViewGame {
		return s
	}
	item, ok := h.currentItemLocked()
	if !ok {
		return s
	}
	s.Status = domain.StatusActive
	return withItem(s, item)
}

// withItem fills the item-specific snapshot fields. The answer is only
// copied once it has been revealed.
func withItem(s domain.GameState, item domain.Item) domain.GameState {
	switch item.Kind() {
	case domain.KindRoundTitle:
		r, _ := item.RoundTitle()
		s.Type = domain.KindRoundTitle
		s.RoundNumber = r.RoundNumber
		s.RoundTitle = r.Title
	case domain.KindQuestion:
		q, _ := item.Question()
		s.Type = domain.KindQuestion
		s.QuestionNumber = q.QuestionNumber
		s.QuestionType = q.QuestionType
		s.QuestionText = q.Text
		s.QuestionImage = q.Image
		s.Options = q.Options
		s.Answer = nil
		if s.AnswerRevealed {
			answer := q.Answer
			s.Answer = &answer
		}
	}
	return s
}

func summaryOf(q domain.Quiz) domain.QuizSummary {
	return domain.QuizSummary{ID: q.ID, Title: q.Title, ItemCount: len(q.Items), UpdatedAt: q.UpdatedAt}
}

// sortPlayers orders by score descending, then name.
func sortPlayers(players []domain.Player) {
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Name < players[j].Name
	})
}
