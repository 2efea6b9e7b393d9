// Package widget implements the lock screen widgets. Every widget is driven
// from the main loop: timers, gatherer completions and draws all run on the
// goroutine that ticks the scheduler, so widget state needs no locking.
// Deferred callbacks reach their widget through a WeakRef and do nothing once
// the widget was destroyed.
package widget

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/logging"
	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/state"
	"github.com/rook-computer/lockscreen/internal/timer"
)

type Widget interface {
	Configure(p props.Props, out render.Output) error
	// Draw renders one frame. It returns false once the widget drew its
	// settled, fully opaque content; true means the output is not final yet
	// (loading, mid-fade, crossfading) and another frame should follow.
	Draw(data render.RenderData) bool
	Type() string
	Zindex() int
	Destroy()
}

type Scheduler interface {
	AddTimer(delay time.Duration, cb timer.Callback, opts ...timer.Option) *timer.Timer
	AddRepeating(interval time.Duration, cb timer.Callback, opts ...timer.Option) *timer.Timer
	Clock() timer.Clock
}

// Gatherer is the part of the asset pipeline widgets use.
type Gatherer interface {
	RequestPreload(req gatherer.Request) error
	AssetByID(key string) *asset.Asset
	Unload(a *asset.Asset)
}

type Probe interface {
	Abs(path string) string
	ModTime(path string) (time.Time, error)
	Exists(path string) bool
	IsVideo(path string) bool
}

type CommandRunner interface {
	Output(ctx context.Context, command string) (string, error)
}

// VideoController runs the external video background of an output.
type VideoController interface {
	Start(outputID, path, layer string, options []string) error
	Stop(outputID string) error
}

type SessionSource interface {
	Snapshot() state.Session
}

// Deps are the collaborators injected into every widget.
type Deps struct {
	Timers   Scheduler
	Gatherer Gatherer
	Backend  render.Backend
	// RenderOutput asks the host to draw the output again.
	RenderOutput func(outputID string)
	Probe        Probe
	Commands     CommandRunner
	Video        VideoController
	Session      SessionSource
	Logger       logging.Logger
	// User is substituted for $USER in labels.
	User string
	// Screencopy reports whether screenshot backgrounds can be produced.
	Screencopy bool
	// CommandTimeout bounds reload and label commands.
	CommandTimeout time.Duration
}

func (d *Deps) log() logging.Logger { return logging.OrNoop(d.Logger) }

func (d *Deps) now() time.Time { return d.Timers.Clock().Now() }

func (d *Deps) render(outputID string) {
	if d.RenderOutput != nil {
		d.RenderOutput(outputID)
	}
}

func (d *Deps) runCommand(command string) (string, error) {
	if d.Commands == nil {
		return "", fmt.Errorf("no command runner for %q", command)
	}
	timeout := d.CommandTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.Commands.Output(ctx, command)
}

// New returns an unconfigured widget of the given kind.
func New(kind string, deps Deps) (Widget, error) {
	switch kind {
	case "background":
		return NewBackground(deps), nil
	case "image":
		return NewImage(deps), nil
	case "label":
		return NewLabel(deps), nil
	case "shape":
		return NewShape(deps), nil
	}
	return nil, fmt.Errorf("unknown widget type %q", kind)
}

func animating(opacity float64) bool { return opacity > 0 && opacity < 1 }

func withAlpha(c color.NRGBA, opacity float64) color.NRGBA {
	if opacity >= 1 {
		return c
	}
	if opacity <= 0 {
		c.A = 0
		return c
	}
	c.A = uint8(float64(c.A)*opacity + 0.5)
	return c
}

// configureFade reads the fade and fade_duration properties shared by all
// widgets.
func configureFade(r props.Reader, f *Fader) {
	f.Enabled = r.Bool("fade", false)
	f.Duration = r.DurationMs("fade_duration", time.Second)
	if f.Duration <= 0 {
		r.Warnf("fade_duration %v is invalid, using 1000ms", f.Duration)
		f.Duration = time.Second
	}
	if name := r.String("fade_easing", ""); name != "" {
		if e := EasingByName(name); e != nil {
			f.Easing = e
		} else {
			r.Warnf("unknown fade_easing %q, using linear", name)
		}
	}
}

func degrees(d float64) float64 { return d * math.Pi / 180 }
