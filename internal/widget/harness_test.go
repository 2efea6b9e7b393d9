package widget

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"
	"time"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/state"
	"github.com/rook-computer/lockscreen/internal/timer"
)

var testStart = time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC)

// fakeGatherer keeps requests until the test completes them. Completion goes
// through the scheduler like the real gatherer's posted closure.
type fakeGatherer struct {
	cache   *asset.Cache
	sched   *timer.Scheduler
	pending map[string][]gatherer.Request
	order   []gatherer.Request
	unloads []string
}

func newFakeGatherer(sched *timer.Scheduler) *fakeGatherer {
	return &fakeGatherer{cache: asset.NewCache(), sched: sched, pending: map[string][]gatherer.Request{}}
}

func (g *fakeGatherer) RequestPreload(req gatherer.Request) error {
	if req.Key == "" {
		return errors.New("empty key")
	}
	g.order = append(g.order, req)
	if a := g.cache.Get(req.Key); a != nil && a.Valid {
		g.cache.Retain(req.Key)
		if req.Callback != nil {
			g.sched.Post(req.Callback)
		}
		return nil
	}
	g.pending[req.Key] = append(g.pending[req.Key], req)
	return nil
}

func (g *fakeGatherer) AssetByID(key string) *asset.Asset { return g.cache.Get(key) }

func (g *fakeGatherer) Unload(a *asset.Asset) {
	if a == nil {
		return
	}
	g.unloads = append(g.unloads, a.Key)
	g.cache.Release(a)
}

func (g *fakeGatherer) last() gatherer.Request {
	if len(g.order) == 0 {
		return gatherer.Request{}
	}
	return g.order[len(g.order)-1]
}

func (g *fakeGatherer) unloadCount(key string) int {
	n := 0
	for _, k := range g.unloads {
		if k == key {
			n++
		}
	}
	return n
}

// finish inserts a for key with one reference per waiting request and posts
// their callbacks.
func (g *fakeGatherer) finish(key string, a *asset.Asset) {
	reqs := g.pending[key]
	delete(g.pending, key)
	a.Key = key
	g.sched.Post(func() {
		g.cache.Insert(a, len(reqs))
		for _, r := range reqs {
			if r.Callback != nil {
				r.Callback()
			}
		}
	})
}

// finishMissing runs the callbacks without anything landing in the cache.
func (g *fakeGatherer) finishMissing(key string) {
	reqs := g.pending[key]
	delete(g.pending, key)
	g.sched.Post(func() {
		for _, r := range reqs {
			if r.Callback != nil {
				r.Callback()
			}
		}
	})
}

func texAsset(w, h int) *asset.Asset {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	return &asset.Asset{Texture: asset.NewTexture(img), Valid: true}
}

func invalidAsset() *asset.Asset {
	return &asset.Asset{Err: errors.New("decode failed")}
}

type call struct {
	Op    string
	Box   render.Box
	Color color.NRGBA
	Alpha float64
	Mix   float64
}

type recordingBackend struct {
	calls []call
	depth int
}

func (b *recordingBackend) Clear(c color.NRGBA) { b.calls = append(b.calls, call{Op: "clear", Color: c}) }

func (b *recordingBackend) RenderRect(box render.Box, c color.NRGBA, rounding int) {
	b.calls = append(b.calls, call{Op: "rect", Box: box, Color: c, Alpha: float64(c.A) / 255})
}

func (b *recordingBackend) RenderTexture(box render.Box, tex *asset.Texture, alpha float64, rounding int) {
	b.calls = append(b.calls, call{Op: "texture", Box: box, Alpha: alpha})
}

func (b *recordingBackend) RenderTextureMix(box render.Box, from, to *asset.Texture, alpha, mix float64, rounding int) {
	b.calls = append(b.calls, call{Op: "mix", Box: box, Alpha: alpha, Mix: mix})
}

func (b *recordingBackend) RenderBorder(box render.Box, c color.NRGBA, thickness, rounding int, alpha float64) {
	b.calls = append(b.calls, call{Op: "border", Box: box, Color: c, Alpha: alpha})
}

func (b *recordingBackend) BlurFramebuffer(fb *render.Framebuffer, params render.BlurParams) {
	b.calls = append(b.calls, call{Op: "blur"})
}

func (b *recordingBackend) PushFb(fb *render.Framebuffer) {
	b.depth++
	b.calls = append(b.calls, call{Op: "push"})
}

func (b *recordingBackend) PopFb() {
	b.depth--
	b.calls = append(b.calls, call{Op: "pop"})
}

func (b *recordingBackend) ops() []string {
	ops := make([]string, len(b.calls))
	for i, c := range b.calls {
		ops[i] = c.Op
	}
	return ops
}

// lastTop is the most recent call made on the output itself rather than
// into a framebuffer.
func (b *recordingBackend) lastTop() call {
	depth := 0
	var top call
	for _, c := range b.calls {
		switch c.Op {
		case "push":
			depth++
		case "pop":
			depth--
		default:
			if depth == 0 {
				top = c
			}
		}
	}
	return top
}

func (b *recordingBackend) reset() { b.calls = nil }

type fakeProbe struct {
	mtimes map[string]time.Time
	videos map[string]bool
}

func (p *fakeProbe) Abs(path string) string { return path }

func (p *fakeProbe) ModTime(path string) (time.Time, error) {
	t, ok := p.mtimes[path]
	if !ok {
		return time.Time{}, os.ErrNotExist
	}
	return t, nil
}

func (p *fakeProbe) Exists(path string) bool {
	_, ok := p.mtimes[path]
	return ok
}

func (p *fakeProbe) IsVideo(path string) bool { return p.videos[path] }

type fakeCommands struct{ out map[string]string }

func (c fakeCommands) Output(ctx context.Context, command string) (string, error) {
	out, ok := c.out[command]
	if !ok {
		return "", errors.New("command failed")
	}
	return out, nil
}

type videoStart struct {
	Output, Path, Layer string
	Options             []string
}

type fakeVideo struct {
	starts []videoStart
	stops  []string
	err    error
}

func (v *fakeVideo) Start(outputID, path, layer string, options []string) error {
	if v.err != nil {
		return v.err
	}
	v.starts = append(v.starts, videoStart{Output: outputID, Path: path, Layer: layer, Options: options})
	return nil
}

func (v *fakeVideo) Stop(outputID string) error {
	v.stops = append(v.stops, outputID)
	return nil
}

type harness struct {
	clock    *timer.FakeClock
	sched    *timer.Scheduler
	gatherer *fakeGatherer
	backend  *recordingBackend
	probe    *fakeProbe
	commands fakeCommands
	video    *fakeVideo
	session  *state.Store
	renders  map[string]int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := timer.NewFakeClock(testStart)
	sched := timer.New(clock, nil)
	return &harness{
		clock:    clock,
		sched:    sched,
		gatherer: newFakeGatherer(sched),
		backend:  &recordingBackend{},
		probe:    &fakeProbe{mtimes: map[string]time.Time{}, videos: map[string]bool{}},
		commands: fakeCommands{out: map[string]string{}},
		video:    &fakeVideo{},
		session:  state.NewStore(),
		renders:  map[string]int{},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Timers:       h.sched,
		Gatherer:     h.gatherer,
		Backend:      h.backend,
		RenderOutput: func(id string) { h.renders[id]++ },
		Probe:        h.probe,
		Commands:     h.commands,
		Video:        h.video,
		Session:      h.session,
		User:         "alice",
	}
}

// advance moves the clock and runs one tick.
func (h *harness) advance(d time.Duration) {
	h.sched.Tick(h.clock.Advance(d))
}

func (h *harness) tick() { h.sched.Tick(h.clock.Now()) }

var testOutput = render.Output{ID: "DP-1", Viewport: image.Pt(1920, 1080)}

var full = render.RenderData{Opacity: 1}
