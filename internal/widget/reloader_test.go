package widget

import (
	"testing"
	"time"

	"github.com/rook-computer/lockscreen/internal/gatherer"
)

type reloadFixture struct {
	h    *harness
	deps Deps
	slot *Slot
	r    *Reloader
}

const bgPath = "/walls/a.png"

func newReloadFixture(t *testing.T, configure func(r *Reloader)) *reloadFixture {
	t.Helper()
	f := &reloadFixture{h: newHarness(t)}
	f.h.probe.mtimes[bgPath] = testStart.Add(-time.Hour)
	f.deps = f.h.deps()
	f.slot = NewSlot(&f.deps, "background")
	if err := f.slot.Load(gatherer.Request{Key: "background:" + bgPath, Source: bgPath}); err != nil {
		t.Fatal(err)
	}
	f.h.gatherer.finish("background:"+bgPath, texAsset(4, 4))
	f.h.tick()
	f.r = NewReloader(&f.deps, f.slot, "background")
	configure(f.r)
	f.r.Start(bgPath)
	return f
}

func (f *reloadFixture) touch(path string, d time.Duration) time.Time {
	t := f.h.probe.mtimes[path].Add(d)
	f.h.probe.mtimes[path] = t
	return t
}

func TestResourceKey(t *testing.T) {
	mtime := time.Unix(0, 1700000000123456789)
	if got, want := ResourceKey("image", "/a.png", mtime), "image:/a.png,time:1700000000123456789"; got != want {
		t.Fatalf("ResourceKey = %q, want %q", got, want)
	}
}

func TestReloader_UnchangedIsIdempotent(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Period = 5 })
	if f.h.sched.Len() != 1 {
		t.Fatalf("timers = %d, want 1", f.h.sched.Len())
	}
	requests := len(f.h.gatherer.order)
	f.h.advance(5 * time.Second)
	f.h.advance(5 * time.Second)
	if len(f.h.gatherer.order) != requests {
		t.Fatalf("unchanged file issued %d requests", len(f.h.gatherer.order)-requests)
	}
}

func TestReloader_ChangedFileIsReplaced(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Period = 5 })
	mtime := f.touch(bgPath, time.Minute)
	f.h.advance(5 * time.Second)

	want := ResourceKey("background", bgPath, mtime)
	if got := f.slot.PendingKey(); got != want {
		t.Fatalf("pending = %q, want %q", got, want)
	}
	f.h.gatherer.finish(want, texAsset(4, 4))
	f.h.tick()
	if f.slot.CurrentKey() != want {
		t.Fatalf("current = %q, want %q", f.slot.CurrentKey(), want)
	}
	if f.h.gatherer.unloadCount("background:"+bgPath) != 1 {
		t.Fatal("initial asset not unloaded exactly once")
	}
}

func TestReloader_ModTimeErrorKeepsState(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Period = 5 })
	delete(f.h.probe.mtimes, bgPath)
	if f.r.Update() {
		t.Fatal("update requested a vanished file")
	}
	if f.r.Path() != bgPath || f.slot.PendingKey() != "" {
		t.Fatalf("path=%q pending=%q", f.r.Path(), f.slot.PendingKey())
	}
}

func TestReloader_PendingDefersCommit(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Period = 5 })
	first := f.touch(bgPath, time.Minute)
	if !f.r.Update() {
		t.Fatal("first change not requested")
	}
	second := f.touch(bgPath, time.Minute)
	if f.r.Update() {
		t.Fatal("second change requested while the first is pending")
	}

	f.h.gatherer.finish(ResourceKey("background", bgPath, first), texAsset(4, 4))
	f.h.tick()
	if !f.r.Update() {
		t.Fatal("second change lost after the first completed")
	}
	if got, want := f.slot.PendingKey(), ResourceKey("background", bgPath, second); got != want {
		t.Fatalf("pending = %q, want %q", got, want)
	}
}

func TestReloader_Command(t *testing.T) {
	const next = "/walls/b.png"
	f := newReloadFixture(t, func(r *Reloader) {
		r.Period = 5
		r.Command = "pick-wallpaper"
	})
	f.h.probe.mtimes[next] = testStart
	f.h.commands.out["pick-wallpaper"] = "file://" + next + "\n"

	if !f.r.Update() {
		t.Fatal("command output not loaded")
	}
	if got := f.h.gatherer.last(); got.Source != next || got.Key != ResourceKey("background", next, testStart) {
		t.Fatalf("request = %+v", got)
	}
	if f.r.Path() != next {
		t.Fatalf("path = %q, want %q", f.r.Path(), next)
	}
}

func TestReloader_EmptyCommandOutput(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Command = "pick-wallpaper" })
	f.h.commands.out["pick-wallpaper"] = "\n"
	if f.r.Update() {
		t.Fatal("empty command output triggered a reload")
	}
}

func TestReloader_ZeroPeriodWaitsForForceUpdate(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Period = 0 })
	f.touch(bgPath, time.Minute)
	f.h.advance(time.Minute)
	if f.slot.PendingKey() != "" {
		t.Fatal("reloaded before an hour passed without a forced update")
	}
	f.h.sched.ForceUpdate()
	f.h.tick()
	if f.slot.PendingKey() == "" {
		t.Fatal("forced update did not reload")
	}
}

func TestReloader_Cron(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Cron = "* * * * *" })
	if !f.r.Enabled() {
		t.Fatal("cron reloader disabled")
	}
	f.touch(bgPath, time.Minute)
	f.h.advance(29 * time.Second)
	if f.slot.PendingKey() != "" {
		t.Fatal("cron fired before the minute")
	}
	f.h.advance(time.Second)
	if f.slot.PendingKey() == "" {
		t.Fatal("cron did not fire at the minute")
	}
	if f.h.sched.Len() != 1 {
		t.Fatalf("cron timer not replanted: %d timers", f.h.sched.Len())
	}
}

func TestReloader_StopCancels(t *testing.T) {
	f := newReloadFixture(t, func(r *Reloader) { r.Period = 1 })
	f.r.Stop()
	f.touch(bgPath, time.Minute)
	f.h.advance(5 * time.Second)
	if f.h.sched.Len() != 0 || f.slot.PendingKey() != "" {
		t.Fatalf("timers=%d pending=%q after Stop", f.h.sched.Len(), f.slot.PendingKey())
	}
}
