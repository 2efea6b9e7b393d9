package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/auth"
	"github.com/rook-computer/lockscreen/internal/config"
	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/logging"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/state"
	"github.com/rook-computer/lockscreen/internal/system"
	"github.com/rook-computer/lockscreen/internal/timer"
	"github.com/rook-computer/lockscreen/internal/widget"
)

// firstFrameTimeout bounds how long the first frame waits for backgrounds.
const firstFrameTimeout = 2 * time.Second

// idleWait is how long the loop sleeps when no timer is planted.
const idleWait = time.Minute

// Screen is one output the lock screen covers.
type Screen struct {
	Output  render.Output
	Surface render.Surface
}

type Options struct {
	Layout  *config.Layout
	Screens []Screen
	Fs      afero.Fs
	Clock   timer.Clock
	Logger  logging.Logger
	User    string

	NoFadeIn        bool
	ImmediateRender bool

	Probe      widget.Probe
	Commands   widget.CommandRunner
	Video      widget.VideoController
	Screencopy gatherer.Screencopy
	// Console switches the terminal to graphics mode while running.
	Console *system.Console
}

type output struct {
	desc    render.Output
	surface render.Surface
	canvas  *render.Canvas
	widgets []widget.Widget
	dirty   bool
	frames  int
	next    *timer.Timer
}

// App owns the main loop and everything that runs on it: the scheduler, the
// asset pipeline, the session store and the widgets of every output.
type App struct {
	Timers   *timer.Scheduler
	Cache    *asset.Cache
	Gatherer *gatherer.Gatherer
	Store    *state.Store
	Auth     *auth.Feedback
	Logger   logging.Logger

	opts    Options
	general config.General
	outputs []*output
	fader   *widget.Fader

	gateOpen  bool
	gateTimer *timer.Timer
	faded     bool

	exitOnce atomic.Bool
	exitCh   chan error
}

func New(opts Options) (*App, error) {
	if len(opts.Screens) == 0 {
		return nil, errors.New("no outputs to lock")
	}
	if opts.Layout == nil {
		opts.Layout = config.Default()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = timer.SystemClock{}
	}
	if opts.Probe == nil {
		opts.Probe = system.NewFileProbe(opts.Fs)
	}
	log := logging.OrNoop(opts.Logger)
	general := opts.Layout.General

	app := &App{
		Timers:  timer.New(opts.Clock, log),
		Cache:   asset.NewCache(),
		Store:   state.NewStore(),
		Logger:  log,
		opts:    opts,
		general: general,
		exitCh:  make(chan error, 1),
	}
	app.Gatherer = gatherer.New(app.Cache, app.Timers, gatherer.Options{
		Workers:    general.Workers,
		Fs:         opts.Fs,
		Probe:      opts.Probe,
		Commands:   opts.Commands,
		Screencopy: opts.Screencopy,
		Logger:     log,
	})
	app.Auth = auth.NewFeedback(app.Store, app.Timers, auth.Options{
		FailTimeout: general.FailTimeout,
		RenderAll:   app.RenderAll,
		OnUnlock:    func() { app.Exit(nil) },
		Logger:      log,
	})

	app.fader = widget.NewFader(app.Timers, app.RenderAll)
	app.fader.Enabled = general.FadeIn && !opts.NoFadeIn
	app.fader.Duration = general.FadeInDuration

	for _, s := range opts.Screens {
		if general.Monitor != "" && s.Output.ID != general.Monitor {
			log.Infof("app", "skipping output %s, layout is for %s", s.Output.ID, general.Monitor)
			continue
		}
		o, err := app.newOutput(s)
		if err != nil {
			app.teardown()
			return nil, err
		}
		app.outputs = append(app.outputs, o)
	}
	if len(app.outputs) == 0 {
		return nil, fmt.Errorf("monitor %q not found", general.Monitor)
	}
	app.gateOpen = opts.ImmediateRender || general.ImmediateRender
	return app, nil
}

func (app *App) newOutput(s Screen) (*output, error) {
	frame := s.Surface.Frame()
	if frame == nil {
		return nil, fmt.Errorf("output %s has no frame", s.Output.ID)
	}
	desc := s.Output
	if desc.Viewport.X == 0 || desc.Viewport.Y == 0 {
		desc.Viewport = frame.Bounds().Size()
	}
	o := &output{desc: desc, surface: s.Surface, canvas: render.NewCanvas(frame), dirty: true}

	deps := widget.Deps{
		Timers:       app.Timers,
		Gatherer:     app.Gatherer,
		Backend:      o.canvas,
		RenderOutput: app.RenderOutput,
		Probe:        app.opts.Probe,
		Commands:     app.opts.Commands,
		Video:        app.opts.Video,
		Session:      app.Store,
		Logger:       app.Logger,
		User:         app.opts.User,
		Screencopy:   app.opts.Screencopy != nil,
	}
	for i, spec := range app.opts.Layout.Widgets {
		w, err := widget.New(spec.Kind, deps)
		if err != nil {
			app.Logger.Errorf("app", "%s: widget %d: %v", desc.ID, i, err)
			continue
		}
		if err := w.Configure(spec.Props, desc); err != nil {
			app.Logger.Errorf("app", "%s: %s widget %d: %v", desc.ID, spec.Kind, i, err)
			w.Destroy()
			continue
		}
		o.widgets = append(o.widgets, w)
	}
	sort.SliceStable(o.widgets, func(i, j int) bool { return o.widgets[i].Zindex() < o.widgets[j].Zindex() })
	app.Logger.Infof("app", "output %s: %d widgets at %v", desc.ID, len(o.widgets), desc.Viewport)
	return o, nil
}

// Exit requests the app to stop running.
// Unlocking calls this to leave the loop through the generic codepath.
func (app *App) Exit(err error) {
	if app.exitCh == nil {
		return
	}
	if !app.exitOnce.CompareAndSwap(false, true) {
		return
	}
	select {
	case app.exitCh <- err:
	default:
	}
}

// Run starts the workers and drives the main loop until ctx is done or Exit
// is called. Everything is torn down before it returns.
func (app *App) Run(ctx context.Context) error {
	if app.opts.Console != nil {
		if err := app.opts.Console.Enter(); err != nil {
			app.Logger.Errorf("tty", "set graphics mode failed: %v", err)
		}
		defer func() { _ = app.opts.Console.Restore() }()
	}

	app.Gatherer.Start(ctx)
	defer app.teardown()
	app.Begin()

	for {
		app.Step(app.Timers.Clock().Now())

		wait := idleWait
		if d, ok := app.Timers.NextDeadline(); ok {
			wait = d.Sub(app.Timers.Clock().Now())
		}
		if wait < 0 {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case err := <-app.exitCh:
			t.Stop()
			return err
		case <-app.Timers.Wake():
		case <-t.C:
		}
		t.Stop()
	}
}

// Begin plants the first-frame timeout. Run calls it; tests driving Step by
// hand call it themselves.
func (app *App) Begin() {
	if app.gateOpen {
		return
	}
	app.gateTimer = app.Timers.AddTimer(firstFrameTimeout, func(*timer.Timer) {
		app.gateTimer = nil
		if !app.gateOpen {
			app.Logger.Warnf("app", "backgrounds not ready after %v, rendering anyway", firstFrameTimeout)
			app.gateOpen = true
			app.RenderAll()
		}
	})
}

// Step runs one loop iteration at now: due timers and posted closures, then
// every dirty output.
func (app *App) Step(now time.Time) {
	app.Timers.Tick(now)
	if !app.gateOpen && app.backgroundsReady() {
		app.gateOpen = true
		app.gateTimer.Cancel()
		app.gateTimer = nil
	}
	if !app.gateOpen {
		return
	}
	if !app.faded {
		app.faded = true
		app.fader.Start()
	}
	for _, o := range app.outputs {
		if o.dirty {
			app.renderOutput(o)
		}
	}
}

func (app *App) backgroundsReady() bool {
	for _, o := range app.outputs {
		for _, w := range o.widgets {
			if l, ok := w.(interface{ Loading() bool }); ok && l.Loading() {
				return false
			}
		}
	}
	return true
}

func (app *App) renderOutput(o *output) {
	o.dirty = false
	o.canvas.Clear(render.ClearColor)
	data := render.RenderData{Opacity: app.fader.Opacity()}
	more := false
	for _, w := range o.widgets {
		if w.Draw(data) {
			more = true
		}
	}
	if err := o.surface.Present(); err != nil {
		app.Logger.Errorf("render", "%s: present: %v", o.desc.ID, err)
	}
	o.frames++
	if more && o.next.Cancelled() {
		id := o.desc.ID
		o.next = app.Timers.AddTimer(app.general.FrameInterval, func(*timer.Timer) { app.RenderOutput(id) })
	}
}

// RenderOutput marks an output for drawing on the next loop iteration. It
// must be called on the main loop.
func (app *App) RenderOutput(outputID string) {
	for _, o := range app.outputs {
		if o.desc.ID == outputID {
			o.dirty = true
		}
	}
}

func (app *App) RenderAll() {
	for _, o := range app.outputs {
		o.dirty = true
	}
}

func (app *App) teardown() {
	for _, o := range app.outputs {
		for _, w := range o.widgets {
			w.Destroy()
		}
		o.widgets = nil
		o.next.Cancel()
		o.next = nil
	}
	app.fader.Destroy()
	app.gateTimer.Cancel()
	if v, ok := app.opts.Video.(interface{ StopAll() }); ok {
		v.StopAll()
	}
	if err := app.Gatherer.Stop(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Errorf("gatherer", "stop: %v", err)
	}
	app.Cache.Clear()
	for _, o := range app.outputs {
		if err := o.surface.Close(); err != nil {
			app.Logger.Errorf("render", "%s: close: %v", o.desc.ID, err)
		}
	}
}
