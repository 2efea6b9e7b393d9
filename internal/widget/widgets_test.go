package widget

import (
	"errors"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/state"
)

func TestNew(t *testing.T) {
	h := newHarness(t)
	for _, kind := range []string{"background", "image", "label", "shape"} {
		w, err := New(kind, h.deps())
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		if w.Type() != kind {
			t.Errorf("New(%q).Type() = %q", kind, w.Type())
		}
	}
	if _, err := New("clock", h.deps()); err == nil {
		t.Fatal("unknown widget type accepted")
	}
}

func TestImage_Static(t *testing.T) {
	h := newHarness(t)
	img := NewImage(h.deps())
	if err := img.Configure(props.Props{"path": props.String("/img/a.png"), "fade": props.Bool(false)}, testOutput); err != nil {
		t.Fatal(err)
	}
	if h.sched.Len() != 0 {
		t.Fatalf("static image scheduled %d timers", h.sched.Len())
	}
	if !img.Draw(full) {
		t.Fatal("Draw while loading should ask for another frame")
	}

	h.gatherer.finish("image:/img/a.png", texAsset(40, 20))
	h.tick()
	if h.renders["DP-1"] == 0 {
		t.Fatal("completion did not request a render")
	}
	h.backend.reset()
	// Loaded with fading off: drawn at full opacity and settled, so no
	// further frame is requested.
	if got := img.Draw(full); got {
		t.Fatalf("Draw of a loaded opaque image = %v, want false", got)
	}
	top := h.backend.lastTop()
	if top.Op != "texture" || top.Alpha != 1 {
		t.Fatalf("top call = %+v", top)
	}
	if top.Box.W != 308 || top.Box.H != 158 {
		t.Fatalf("box = %+v, want 308x158", top.Box)
	}
}

func TestImage_MissingPath(t *testing.T) {
	h := newHarness(t)
	err := NewImage(h.deps()).Configure(props.Props{}, testOutput)
	if !errors.Is(err, props.ErrMissing) {
		t.Fatalf("err = %v, want ErrMissing", err)
	}
}

func TestImage_InvalidAsset(t *testing.T) {
	h := newHarness(t)
	img := NewImage(h.deps())
	img.Configure(props.Props{"path": props.String("/img/broken.png")}, testOutput)
	h.gatherer.finish("image:/img/broken.png", invalidAsset())
	h.tick()

	if img.Draw(full) {
		t.Fatal("invalid image asked for another frame")
	}
	if h.gatherer.cache.Len() != 0 {
		t.Fatalf("cache keeps %v", h.gatherer.cache.Keys())
	}
	h.backend.reset()
	img.Draw(full)
	if len(h.backend.calls) != 0 {
		t.Fatalf("dropped image still draws: %v", h.backend.ops())
	}
}

func TestImage_Fade(t *testing.T) {
	h := newHarness(t)
	img := NewImage(h.deps())
	img.Configure(props.Props{
		"path":          props.String("/img/a.png"),
		"fade":          props.Bool(true),
		"fade_duration": props.Int(500),
	}, testOutput)
	h.gatherer.finish("image:/img/a.png", texAsset(10, 10))
	h.advance(250 * time.Millisecond)

	if !img.Draw(full) {
		t.Fatal("fading image did not ask for another frame")
	}
	if top := h.backend.lastTop(); top.Alpha != 0.5 {
		t.Fatalf("alpha = %v, want 0.5", top.Alpha)
	}
}

func TestImage_DestroyBeforeLoad(t *testing.T) {
	h := newHarness(t)
	img := NewImage(h.deps())
	img.Configure(props.Props{"path": props.String("/img/a.png")}, testOutput)
	img.Destroy()
	h.gatherer.finish("image:/img/a.png", texAsset(10, 10))
	h.tick()
	if h.renders["DP-1"] != 0 {
		t.Fatal("destroyed image requested a render")
	}
}

func TestLabel_Text(t *testing.T) {
	h := newHarness(t)
	l := NewLabel(h.deps())
	if err := l.Configure(props.Props{"text": props.String("Hi $USER"), "font_size": props.Int(20)}, testOutput); err != nil {
		t.Fatal(err)
	}
	got := h.gatherer.last()
	if !strings.HasPrefix(got.Key, "label:") || got.Source != "Hi alice" || got.Target != gatherer.TargetText {
		t.Fatalf("request = %+v", got)
	}
	if got.Props["cmd"] != props.Bool(false) || got.Props["font_size"] != props.Int(20) {
		t.Fatalf("props = %v", got.Props)
	}
	if h.sched.Len() != 0 {
		t.Fatalf("static label scheduled %d timers", h.sched.Len())
	}

	h.gatherer.finish(got.Key, texAsset(100, 20))
	h.tick()
	if l.Draw(full) {
		t.Fatal("static label asked for another frame")
	}
	top := h.backend.lastTop()
	want := render.Box{X: 910, Y: 530, W: 100, H: 20}
	if diff := cmp.Diff(want, top.Box); diff != "" {
		t.Fatalf("box mismatch (-want +got):\n%s", diff)
	}
}

func TestLabel_MissingText(t *testing.T) {
	h := newHarness(t)
	if err := NewLabel(h.deps()).Configure(props.Props{}, testOutput); !errors.Is(err, props.ErrMissing) {
		t.Fatalf("err = %v, want ErrMissing", err)
	}
}

func TestLabel_TimeRefresh(t *testing.T) {
	h := newHarness(t)
	l := NewLabel(h.deps())
	l.Configure(props.Props{"text": props.String("$TIME")}, testOutput)
	if got := h.gatherer.last().Source; got != "10:00" {
		t.Fatalf("source = %q, want 10:00", got)
	}
	h.advance(time.Second)
	if n := len(h.gatherer.order); n != 1 {
		t.Fatalf("unchanged time issued %d requests", n)
	}
	h.advance(29 * time.Second)
	if got := h.gatherer.last().Source; got != "10:01" {
		t.Fatalf("source = %q, want 10:01", got)
	}
}

func TestLabel_FailOnForceUpdate(t *testing.T) {
	h := newHarness(t)
	l := NewLabel(h.deps())
	l.Configure(props.Props{"text": props.String("$FAIL")}, testOutput)
	if h.sched.Len() != 1 {
		t.Fatalf("timers = %d, want the forced keep-alive", h.sched.Len())
	}

	h.session.RecordFail(state.FailInfo{Text: "wrong password", Source: "pam"})
	h.session.SetDisplayFail(true)
	h.sched.ForceUpdate()
	h.tick()
	if got := h.gatherer.last().Source; got != "wrong password" {
		t.Fatalf("source = %q, want the failure text", got)
	}
}

func TestLabel_CommandSkipsWhilePending(t *testing.T) {
	h := newHarness(t)
	l := NewLabel(h.deps())
	l.Configure(props.Props{"text": props.String("cmd[update:1000] date")}, testOutput)
	first := h.gatherer.last()
	if first.Source != "date" || first.Props["cmd"] != props.Bool(true) {
		t.Fatalf("request = %+v", first)
	}

	h.advance(time.Second)
	if n := len(h.gatherer.order); n != 2 {
		t.Fatalf("requests = %d, want 2", n)
	}
	h.advance(time.Second)
	if n := len(h.gatherer.order); n != 2 {
		t.Fatalf("refresh issued while pending: %d requests", n)
	}
	l.Destroy()
	if h.sched.Len() != 0 {
		t.Fatalf("timers = %d after Destroy", h.sched.Len())
	}
}

func TestShape_Rectangle(t *testing.T) {
	h := newHarness(t)
	s := NewShape(h.deps())
	if err := s.Configure(props.Props{"border_size": props.Int(5)}, testOutput); err != nil {
		t.Fatal(err)
	}
	if s.Draw(full) {
		t.Fatal("opaque shape asked for another frame")
	}
	if diff := cmp.Diff([]string{"rect", "border"}, h.backend.ops()); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
	rect, border := h.backend.calls[0], h.backend.calls[1]
	if diff := cmp.Diff(render.Box{X: 5, Y: 975, W: 100, H: 100}, rect.Box); diff != "" {
		t.Errorf("fill box (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(render.Box{X: 0, Y: 970, W: 110, H: 110}, border.Box); diff != "" {
		t.Errorf("border box (-want +got):\n%s", diff)
	}
	if rect.Color != (color.NRGBA{R: 255, G: 255, B: 255, A: 128}) {
		t.Errorf("fill colour = %v", rect.Color)
	}
}

func TestShape_Blur(t *testing.T) {
	h := newHarness(t)
	s := NewShape(h.deps())
	s.Configure(props.Props{"blur": props.Bool(true), "shape": props.String("circle")}, testOutput)
	s.Draw(full)
	if diff := cmp.Diff([]string{"push", "clear", "rect", "blur", "pop", "texture"}, h.backend.ops()); diff != "" {
		t.Fatalf("first draw (-want +got):\n%s", diff)
	}
	h.backend.reset()
	s.Draw(full)
	if diff := cmp.Diff([]string{"texture"}, h.backend.ops()); diff != "" {
		t.Fatalf("cached draw (-want +got):\n%s", diff)
	}
}

func TestBackground_Colour(t *testing.T) {
	h := newHarness(t)
	b := NewBackground(h.deps())
	b.Configure(props.Props{"color": props.String("rgb(10,20,30)")}, testOutput)
	if b.Draw(full) {
		t.Fatal("solid background asked for another frame")
	}
	top := h.backend.lastTop()
	if top.Op != "rect" || top.Box.W != 1920 || top.Box.H != 1080 || top.Color != (color.NRGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("top call = %+v", top)
	}
	if len(h.gatherer.order) != 0 {
		t.Fatal("solid background requested an asset")
	}
}

func TestBackground_Picture(t *testing.T) {
	h := newHarness(t)
	h.probe.mtimes["/bg.png"] = testStart
	b := NewBackground(h.deps())
	b.Configure(props.Props{"path": props.String("/bg.png")}, testOutput)

	if !b.Draw(full) || h.backend.lastTop().Op != "rect" {
		t.Fatal("loading background should draw its colour and ask for another frame")
	}
	h.gatherer.finish("background:/bg.png", texAsset(192, 108))
	h.tick()
	h.backend.reset()
	if b.Draw(full) {
		t.Fatal("loaded background asked for another frame")
	}
	if diff := cmp.Diff([]string{"texture"}, h.backend.ops()); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}
	if got := h.backend.calls[0].Box; got.W != 1920 || got.H != 1080 {
		t.Fatalf("cover box = %+v", got)
	}
}

func TestBackground_Blur(t *testing.T) {
	h := newHarness(t)
	h.probe.mtimes["/bg.png"] = testStart
	b := NewBackground(h.deps())
	b.Configure(props.Props{"path": props.String("/bg.png"), "blur_passes": props.Int(2)}, testOutput)
	h.gatherer.finish("background:/bg.png", texAsset(192, 108))
	h.tick()

	b.Draw(full)
	if diff := cmp.Diff([]string{"push", "clear", "texture", "blur", "pop", "texture"}, h.backend.ops()); diff != "" {
		t.Fatalf("first draw (-want +got):\n%s", diff)
	}
	h.backend.reset()
	b.Draw(full)
	if diff := cmp.Diff([]string{"texture"}, h.backend.ops()); diff != "" {
		t.Fatalf("cached draw (-want +got):\n%s", diff)
	}
}

func TestBackground_Fallback(t *testing.T) {
	h := newHarness(t)
	h.probe.mtimes["/fallback.png"] = testStart
	b := NewBackground(h.deps())
	b.Configure(props.Props{"path": props.String("/missing.png"), "fallback_path": props.String("/fallback.png")}, testOutput)
	if got := h.gatherer.last().Key; got != "background:/fallback.png" {
		t.Fatalf("key = %q", got)
	}
}

func TestBackground_Screenshot(t *testing.T) {
	h := newHarness(t)
	b := NewBackground(h.deps())
	b.Configure(props.Props{"path": props.String("screenshot")}, testOutput)
	if len(h.gatherer.order) != 0 {
		t.Fatal("screenshot requested without screencopy support")
	}
	if b.Draw(full) {
		t.Fatal("fallback background asked for another frame")
	}
	if top := h.backend.lastTop(); top.Op != "rect" {
		t.Fatalf("top call = %+v, want the colour fallback", top)
	}

	h = newHarness(t)
	deps := h.deps()
	deps.Screencopy = true
	b = NewBackground(deps)
	b.Configure(props.Props{"path": props.String("screenshot")}, testOutput)
	want := gatherer.Request{Key: "screenshot:DP-1", Source: "DP-1", Target: gatherer.TargetScreenshot}
	got := h.gatherer.last()
	got.Callback = nil
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request (-want +got):\n%s", diff)
	}
	if h.sched.Len() != 0 {
		t.Fatal("screenshot background planted a reload timer")
	}
}

func TestBackground_Video(t *testing.T) {
	h := newHarness(t)
	h.probe.mtimes["/v.mp4"] = testStart
	h.probe.videos["/v.mp4"] = true
	b := NewBackground(h.deps())
	b.Configure(props.Props{
		"path":             props.String("/v.mp4"),
		"mpvpaper_fps":     props.Int(24),
		"mpvpaper_panscan": props.Float(1.5),
		"mpvpaper_mute":    props.Bool(false),
	}, testOutput)

	want := []videoStart{{Output: "DP-1", Path: "/v.mp4", Layer: "overlay", Options: []string{"loop", "--vf=fps=24", "panscan=1.5", "--mute=no"}}}
	if diff := cmp.Diff(want, h.video.starts); diff != "" {
		t.Fatalf("video starts (-want +got):\n%s", diff)
	}
	if b.Draw(full) || len(h.backend.calls) != 0 {
		t.Fatal("video background drew on the canvas")
	}
	if len(h.gatherer.order) != 0 {
		t.Fatal("video background requested a texture")
	}
	b.Destroy()
	if diff := cmp.Diff([]string{"DP-1"}, h.video.stops); diff != "" {
		t.Fatalf("video stops (-want +got):\n%s", diff)
	}
}

func TestBackground_VideoStartFails(t *testing.T) {
	h := newHarness(t)
	h.probe.mtimes["/v.mp4"] = testStart
	h.probe.videos["/v.mp4"] = true
	h.video.err = errors.New("mpvpaper not found")
	b := NewBackground(h.deps())
	b.Configure(props.Props{"path": props.String("/v.mp4")}, testOutput)
	if b.Video() || len(h.gatherer.order) != 0 {
		t.Fatalf("video=%v requests=%d", b.Video(), len(h.gatherer.order))
	}
	b.Draw(full)
	if top := h.backend.lastTop(); top.Op != "rect" {
		t.Fatalf("top call = %+v, want the colour fallback", top)
	}
}

func TestBackground_CrossfadeReload(t *testing.T) {
	h := newHarness(t)
	h.probe.mtimes["/bg.png"] = testStart
	b := NewBackground(h.deps())
	b.Configure(props.Props{
		"path":           props.String("/bg.png"),
		"reload_time":    props.Int(5),
		"crossfade_time": props.Float(1),
	}, testOutput)
	h.gatherer.finish("background:/bg.png", texAsset(192, 108))
	h.tick()

	mtime := testStart.Add(time.Minute)
	h.probe.mtimes["/bg.png"] = mtime
	h.advance(5 * time.Second)
	key := ResourceKey("background", "/bg.png", mtime)
	h.gatherer.finish(key, texAsset(192, 108))
	h.tick()

	h.backend.reset()
	if !b.Draw(full) {
		t.Fatal("crossfading background did not ask for another frame")
	}
	if !strings.Contains(strings.Join(h.backend.ops(), ","), "mix") {
		t.Fatalf("crossfade draw did not mix: %v", h.backend.ops())
	}

	h.advance(time.Second)
	if h.gatherer.unloadCount("background:/bg.png") != 1 {
		t.Fatalf("old picture unloaded %d times", h.gatherer.unloadCount("background:/bg.png"))
	}
	if b.Draw(full) {
		t.Fatal("background still animating after the crossfade")
	}
	b.Destroy()
	if h.sched.Len() != 0 {
		t.Fatalf("timers = %d after Destroy", h.sched.Len())
	}
}
