package app

import (
	"context"
	"time"

	"trivia-night-service/internal/domain"
)

// pending is a cancellable scheduled callback. Every cancel bumps gen, so a
// callback that already fired but is waiting on the host lock sees it is
// stale and returns without touching state.
type pending struct {
	stopper Stopper
	gen     uint64
}

func (p *pending) cancel() {
	p.gen++
	if p.stopper != nil {
		p.stopper.Stop()
		p.stopper = nil
	}
}

func (p *pending) active() bool { return p.stopper != nil }

// scheduleLocked replaces whatever p held with fn after d. fn runs with the
// host lock held and a fresh write context.
func (h *Host) scheduleLocked(p *pending, d time.Duration, fn func(ctx context.Context)) {
	p.cancel()
	gen := p.gen
	p.stopper = h.sched.AfterFunc(d, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if p.gen != gen {
			return
		}
		p.stopper = nil

		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
		defer cancel()
		fn(ctx)
	})
}

// StartTimer starts the main timer on the current question right away,
// skipping the countdown.
func (h *Host) StartTimer(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.currentQuestionLocked(); !ok {
		return h.snapshotLocked(), domain.ErrNotAQuestion
	}
	if h.session.answerRevealed {
		return h.snapshotLocked(), domain.Validationf("timer", "answer already revealed")
	}
	err := h.startMainTimerLocked(ctx)
	return h.snapshotLocked(), err
}

// StopTimer halts the countdown or main timer and any pending auto-reveal.
// Stopping a stopped timer is harmless.
func (h *Host) StopTimer(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopTimersLocked()
	if h.session.view != domain.ViewGame || h.session.answerRevealed {
		return h.snapshotLocked(), nil
	}
	h.session.timerStatus = domain.TimerStopped
	err := h.patchTimerLocked(ctx, false)
	return h.snapshotLocked(), err
}

func (h *Host) startCountdownLocked(ctx context.Context) {
	if h.cfg.CountdownFrom <= 0 {
		if err := h.startMainTimerLocked(ctx); err != nil {
			h.log.Warn("timer start failed", "error", err)
		}
		return
	}
	h.ticker.cancel()
	h.session.timerStatus = domain.TimerCountdown
	h.session.timerValue = h.cfg.CountdownFrom
	h.deadline = h.sched.Now().Add(time.Duration(h.cfg.CountdownFrom) * time.Second)
	if err := h.patchTimerLocked(ctx, false); err != nil {
		h.log.Warn("countdown update failed", "error", err)
	}
	h.scheduleTickLocked()
}

func (h *Host) startMainTimerLocked(ctx context.Context) error {
	h.ticker.cancel()
	item, ok := h.currentItemLocked()
	if !ok {
		return nil
	}
	seconds := h.timerForLocked(item)
	h.session.timerStatus = domain.TimerRunning
	h.session.timerValue = seconds
	h.session.timerTotal = seconds
	h.deadline = h.sched.Now().Add(time.Duration(seconds) * time.Second)
	err := h.patchTimerLocked(ctx, true)
	h.scheduleTickLocked()
	return err
}

// scheduleTickLocked waits until the displayed value should drop by one.
// Ticks are computed from the deadline so late callbacks do not drift.
func (h *Host) scheduleTickLocked() {
	remaining := h.deadline.Sub(h.sched.Now())
	wait := remaining - time.Duration(h.session.timerValue-1)*time.Second
	if wait < 0 {
		wait = 0
	}
	h.scheduleLocked(&h.ticker, wait, h.tickLocked)
}

func (h *Host) tickLocked(ctx context.Context) {
	h.session.timerValue = secondsLeft(h.deadline, h.sched.Now())

	switch h.session.timerStatus {
	case domain.TimerCountdown:
		if err := h.patchTimerLocked(ctx, false); err != nil {
			h.log.Warn("countdown update failed", "value", h.session.timerValue, "error", err)
		}
		if h.session.timerValue <= 0 {
			if err := h.startMainTimerLocked(ctx); err != nil {
				h.log.Warn("timer start failed", "error", err)
			}
			return
		}
	case domain.TimerRunning:
		if h.session.timerValue <= 0 {
			h.session.timerStatus = domain.TimerEnded
		}
		if err := h.patchTimerLocked(ctx, false); err != nil {
			h.log.Warn("timer update failed", "value", h.session.timerValue, "error", err)
		}
		if h.session.timerStatus == domain.TimerEnded {
			return
		}
	default:
		return
	}
	h.scheduleTickLocked()
}

func (h *Host) patchTimerLocked(ctx context.Context, withTotal bool) error {
	value := h.session.timerValue
	status := h.session.timerStatus
	patch := domain.StatePatch{TimerValue: &value, TimerStatus: &status}
	if withTotal {
		total := h.session.timerTotal
		patch.TimerTotal = &total
	}
	if err := h.store.PatchState(ctx, patch); err != nil {
		return &domain.WriteFailure{Op: "update timer", Err: err}
	}
	return nil
}

// secondsLeft rounds up so the display reads 3, 2, 1 and hits 0 at the deadline.
func secondsLeft(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
