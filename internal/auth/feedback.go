// Package auth turns authentication results into what the lock screen shows.
// The password and fingerprint backends stay outside; they report through
// Feedback, whose methods run on the main loop.
package auth

import (
	"time"

	"github.com/rook-computer/lockscreen/internal/logging"
	"github.com/rook-computer/lockscreen/internal/state"
	"github.com/rook-computer/lockscreen/internal/timer"
)

const DefaultFailTimeout = 2 * time.Second

type Scheduler interface {
	AddTimer(delay time.Duration, cb timer.Callback, opts ...timer.Option) *timer.Timer
	ForceUpdate()
}

type Options struct {
	// FailTimeout is how long a failure stays on screen.
	FailTimeout time.Duration
	// RenderAll asks every output to draw again.
	RenderAll func()
	// OnUnlock runs once the session is unlocked.
	OnUnlock func()
	Logger   logging.Logger
}

// Feedback records failures in the session store and times how long they
// are displayed.
type Feedback struct {
	store  *state.Store
	timers Scheduler
	opts   Options
	log    logging.Logger

	resetTimer *timer.Timer
}

func NewFeedback(store *state.Store, timers Scheduler, opts Options) *Feedback {
	if opts.FailTimeout <= 0 {
		opts.FailTimeout = DefaultFailTimeout
	}
	return &Feedback{store: store, timers: timers, opts: opts, log: logging.OrNoop(opts.Logger)}
}

// EnqueueFail records a failed attempt. The failure is shown on the next
// tick, which also fires every force-update timer so labels pick up $FAIL
// and $ATTEMPTS, and hidden again after FailTimeout.
func (f *Feedback) EnqueueFail(text, source string) {
	f.store.RecordFail(state.FailInfo{Text: text, Source: source})
	f.log.Infof("auth", "failed attempts: %d", f.store.Snapshot().Attempts)

	f.resetTimer.Cancel()
	f.resetTimer = nil

	f.timers.AddTimer(0, func(*timer.Timer) {
		f.store.SetDisplayFail(true)
		f.timers.ForceUpdate()
		f.renderAll()
	})
	f.resetTimer = f.timers.AddTimer(f.opts.FailTimeout, func(*timer.Timer) {
		f.resetTimer = nil
		if f.store.Snapshot().DisplayFail {
			f.store.SetDisplayFail(false)
			f.renderAll()
		}
	})
}

// EnqueueUnlock unlocks on the next tick.
func (f *Feedback) EnqueueUnlock() {
	f.timers.AddTimer(0, func(*timer.Timer) {
		f.store.SetPhase(state.UNLOCKED)
		f.log.Infof("auth", "unlocking")
		if f.opts.OnUnlock != nil {
			f.opts.OnUnlock()
		}
	})
}

// ResetDisplayFail hides the failure right away, for example when the user
// starts typing again.
func (f *Feedback) ResetDisplayFail() {
	f.store.SetDisplayFail(false)
	f.resetTimer.Cancel()
	f.resetTimer = nil
}

func (f *Feedback) renderAll() {
	if f.opts.RenderAll != nil {
		f.opts.RenderAll()
	}
}
