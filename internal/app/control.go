package app

import (
	"context"

	"github.com/rook-computer/lockscreen/internal/gatherer"
)

// OutputStatus describes one output in a Status.
type OutputStatus struct {
	ID      string   `json:"id"`
	Widgets []string `json:"widgets"`
	Frames  int      `json:"frames"`
}

// Status is a snapshot of main loop state taken on the main loop.
type Status struct {
	Outputs   []OutputStatus `json:"outputs"`
	Widgets   int            `json:"widgets"`
	Timers    int            `json:"timers"`
	CacheKeys []string       `json:"cache_keys"`
	Gatherer  gatherer.Stats `json:"gatherer"`
	Phase     string         `json:"phase"`
	Attempts  int            `json:"attempts"`
	Failing   bool           `json:"display_fail"`
}

// call runs fn on the main loop and waits for it, or for ctx.
func (app *App) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	app.Timers.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot may be called from any goroutine.
func (app *App) Snapshot(ctx context.Context) (Status, error) {
	var st Status
	err := app.call(ctx, func() { st = app.status() })
	return st, err
}

func (app *App) status() Status {
	st := Status{
		Timers:    app.Timers.Len(),
		CacheKeys: app.Cache.Keys(),
		Gatherer:  app.Gatherer.Stats(),
	}
	for _, o := range app.outputs {
		out := OutputStatus{ID: o.desc.ID, Frames: o.frames, Widgets: make([]string, 0, len(o.widgets))}
		for _, w := range o.widgets {
			out.Widgets = append(out.Widgets, w.Type())
		}
		st.Widgets += len(o.widgets)
		st.Outputs = append(st.Outputs, out)
	}
	sess := app.Store.Snapshot()
	st.Phase = sess.Phase.String()
	st.Attempts = sess.Attempts
	st.Failing = sess.DisplayFail
	return st
}

// ForceUpdate fires every force-update timer and redraws all outputs.
func (app *App) ForceUpdate(ctx context.Context) error {
	return app.call(ctx, func() {
		app.Timers.ForceUpdate()
		app.RenderAll()
	})
}

// AuthFail reports a failed authentication attempt as the given source.
func (app *App) AuthFail(ctx context.Context, text, source string) error {
	return app.call(ctx, func() { app.Auth.EnqueueFail(text, source) })
}
