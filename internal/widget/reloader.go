package widget

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/timer"
)

const keepAliveInterval = time.Hour

// ResourceKey names one version of a file backed asset. Embedding the
// modification time makes every changed file a new cache entry.
func ResourceKey(prefix, path string, mtime time.Time) string {
	return fmt.Sprintf("%s:%s,time:%d", prefix, path, mtime.UnixNano())
}

// Reloader watches the source of a Slot and requests a replacement when the
// file, or the path printed by Command, changed.
type Reloader struct {
	// Period is the check interval in seconds. Zero checks hourly and on
	// forced updates; negative disables periodic checks.
	Period int
	// Cron, when set, schedules checks by cron expression instead.
	Cron string
	// Command prints the path to show; empty keeps the configured path.
	Command  string
	Fallback string

	deps   *Deps
	slot   *Slot
	prefix string
	self   WeakRef[Reloader]

	path  string
	mtime time.Time
	timer *timer.Timer
}

func NewReloader(deps *Deps, slot *Slot, prefix string) *Reloader {
	r := &Reloader{deps: deps, slot: slot, prefix: prefix, Period: -1}
	r.self = NewWeakRef(r)
	return r
}

func (r *Reloader) Path() string { return r.path }

// Start records the current modification time of path and plants the check
// timer.
func (r *Reloader) Start(path string) {
	r.path = path
	if t, err := r.deps.Probe.ModTime(r.deps.Probe.Abs(r.source(path))); err != nil {
		r.deps.log().Errorf(r.prefix, "failed to get modification time for %s: %v", r.source(path), err)
	} else {
		r.mtime = t
	}
	r.plant()
}

func (r *Reloader) Enabled() bool { return r.Period > -1 || r.Cron != "" }

func (r *Reloader) source(path string) string {
	if path == "" {
		return r.Fallback
	}
	return path
}

func (r *Reloader) plant() {
	self := r.self
	onTimer := func(*timer.Timer) {
		self.Do(func(r *Reloader) {
			r.Update()
			if r.Cron != "" {
				r.plant()
			}
		})
	}
	switch {
	case r.Cron != "":
		now := r.deps.now()
		next, err := gronx.NextTickAfter(r.Cron, now, false)
		if err != nil {
			r.deps.log().Errorf(r.prefix, "reload_cron %q: %v", r.Cron, err)
			return
		}
		r.timer = r.deps.Timers.AddTimer(next.Sub(now), onTimer)
	case r.Period == 0:
		r.timer = r.deps.Timers.AddRepeating(keepAliveInterval, onTimer, timer.WithForceUpdate(true))
	case r.Period > 0:
		r.timer = r.deps.Timers.AddRepeating(time.Duration(r.Period)*time.Second, onTimer)
	}
}

// Update runs one check and reports whether a replacement was requested.
// Unchanged content, a failing probe or a replacement still in flight leave
// the recorded state alone so the next check tries again.
func (r *Reloader) Update() bool {
	path := r.path
	if r.Command != "" {
		out, err := r.deps.runCommand(r.Command)
		if err != nil {
			r.deps.log().Errorf(r.prefix, "reload command %q: %v", r.Command, err)
			return false
		}
		out = strings.TrimSuffix(out, "\n")
		out = strings.TrimPrefix(out, "file://")
		if out == "" {
			return false
		}
		path = out
	}

	src := r.source(path)
	mtime, err := r.deps.Probe.ModTime(r.deps.Probe.Abs(src))
	if err != nil {
		r.deps.log().Errorf(r.prefix, "failed to update modification time for %s: %v", src, err)
		return false
	}
	if path == r.path && mtime.Equal(r.mtime) {
		return false
	}
	if pending := r.slot.PendingKey(); pending != "" {
		r.deps.log().Tracef(r.prefix, "%s changed but %s is still pending", src, pending)
		return false
	}

	key := ResourceKey(r.prefix, src, mtime)
	ok, err := r.slot.Replace(gatherer.Request{Key: key, Source: src, Target: gatherer.TargetImage})
	if err != nil {
		r.deps.log().Errorf(r.prefix, "reload %s: %v", src, err)
		return false
	}
	if ok {
		r.path = path
		r.mtime = mtime
		r.deps.log().Infof(r.prefix, "reloading %s", key)
	}
	return ok
}

func (r *Reloader) Stop() {
	r.self.Release()
	r.timer.Cancel()
	r.timer = nil
}
