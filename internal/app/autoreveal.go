package app

import "context"

// SetAutoReveal turns the automatic reveal on or off. Turning it off cancels
// a reveal that is already scheduled.
func (h *Host) SetAutoReveal(ctx context.Context, enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg.AutoReveal = enabled
	h.checkAutoRevealLocked(ctx)
}

// CheckAutoReveal re-evaluates the auto-reveal condition. Run calls it on
// every player or answer change.
func (h *Host) CheckAutoReveal(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkAutoRevealLocked(ctx)
}

// checkAutoRevealLocked schedules a reveal once every online player has
// answered the current question, and cancels it as soon as that stops
// being true.
func (h *Host) checkAutoRevealLocked(ctx context.Context) {
	q, ok := h.currentQuestionLocked()
	if !h.cfg.AutoReveal || !ok || h.session.answerRevealed {
		h.reveal.cancel()
		return
	}

	online, answered, err := h.answerProgressLocked(ctx, q.QuestionNumber)
	if err != nil {
		h.log.Warn("auto-reveal check failed", "question", q.QuestionNumber, "error", err)
		return
	}
	if online == 0 || answered < online {
		h.reveal.cancel()
		return
	}
	if h.reveal.active() {
		return
	}

	index := h.session.currentIndex
	h.log.Debug("all players answered, scheduling reveal", "question", q.QuestionNumber, "online", online)
	h.scheduleLocked(&h.reveal, h.cfg.RevealDelay, func(ctx context.Context) {
		if h.session.currentIndex != index || h.session.answerRevealed {
			return
		}
		if _, err := h.revealLocked(ctx); err != nil {
			h.log.Warn("auto-reveal failed", "question", q.QuestionNumber, "error", err)
		}
	})
}

// answerProgressLocked counts online players and answers for a question.
// Answers from players who went offline still count.
func (h *Host) answerProgressLocked(ctx context.Context, questionNumber int) (online, answered int, err error) {
	players, err := h.store.Players(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range players {
		if p.Online {
			online++
		}
	}
	answers, err := h.store.Answers(ctx, questionNumber)
	if err != nil {
		return 0, 0, err
	}
	return online, len(answers), nil
}
