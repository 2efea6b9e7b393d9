package widget

import (
	"time"

	"github.com/rook-computer/lockscreen/internal/timer"
)

// EasingFunc maps time progress in [0,1] to value progress in [0,1].
type EasingFunc func(t float64) float64

var (
	EaseLinear EasingFunc = func(t float64) float64 { return t }

	EaseInQuad EasingFunc = func(t float64) float64 { return t * t }

	EaseOutQuad EasingFunc = func(t float64) float64 { return t * (2 - t) }

	EaseInOutQuad EasingFunc = func(t float64) float64 {
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	}

	EaseInOutCubic EasingFunc = func(t float64) float64 {
		if t < 0.5 {
			return 4 * t * t * t
		}
		return (t-1)*(2*t-2)*(2*t-2) + 1
	}
)

// EasingByName returns nil for unknown names. Only easings that stay inside
// [0,1] are offered since the result is an opacity.
func EasingByName(name string) EasingFunc {
	switch name {
	case "linear":
		return EaseLinear
	case "ease-in":
		return EaseInQuad
	case "ease-out":
		return EaseOutQuad
	case "ease", "ease-in-out":
		return EaseInOutQuad
	case "cubic":
		return EaseInOutCubic
	default:
		return nil
	}
}

const fadeFrameInterval = 16 * time.Millisecond

// Fader is the opacity state machine every widget shares. A fade runs on a
// repeating frame timer; when it completes the opacity lands exactly on 0 or
// 1, the timer is cancelled and the direction flips for the next Start.
type Fader struct {
	Enabled  bool
	Duration time.Duration
	Easing   EasingFunc

	timers  Scheduler
	onFrame func()
	self    WeakRef[Fader]

	opacity  float64
	fadingIn bool
	start    time.Time
	timer    *timer.Timer
}

// NewFader returns a disabled fader at full opacity whose first fade goes in.
// onFrame runs after every opacity change.
func NewFader(timers Scheduler, onFrame func()) *Fader {
	f := &Fader{
		Duration: time.Second,
		Easing:   EaseLinear,
		timers:   timers,
		onFrame:  onFrame,
		opacity:  1,
		fadingIn: true,
	}
	f.self = NewWeakRef(f)
	return f
}

func (f *Fader) Opacity() float64 { return f.opacity }

func (f *Fader) Active() bool { return f.timer != nil }

func (f *Fader) FadingIn() bool { return f.fadingIn }

// Start begins a fade in the current direction. It is a no-op when fading is
// disabled or a fade is already running.
func (f *Fader) Start() {
	if !f.Enabled || f.timer != nil {
		return
	}
	f.start = f.timers.Clock().Now()
	if f.fadingIn {
		f.opacity = 0
	} else {
		f.opacity = 1
	}
	self := f.self
	f.timer = f.timers.AddRepeating(fadeFrameInterval, func(*timer.Timer) { self.Do((*Fader).step) })
}

func (f *Fader) step() {
	if f.timer == nil {
		return
	}
	progress := 1.0
	if f.Duration > 0 {
		progress = float64(f.timers.Clock().Now().Sub(f.start)) / float64(f.Duration)
	}
	if progress >= 1 {
		if f.fadingIn {
			f.opacity = 1
		} else {
			f.opacity = 0
		}
		f.timer.Cancel()
		f.timer = nil
		f.fadingIn = !f.fadingIn
	} else {
		ease := f.Easing
		if ease == nil {
			ease = EaseLinear
		}
		v := clamp01(ease(max(progress, 0)))
		if f.fadingIn {
			f.opacity = v
		} else {
			f.opacity = 1 - v
		}
	}
	if f.onFrame != nil {
		f.onFrame()
	}
}

// Stop cancels a running fade and leaves the opacity where it is.
func (f *Fader) Stop() {
	f.timer.Cancel()
	f.timer = nil
}

func (f *Fader) Destroy() {
	f.Stop()
	f.self.Release()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
