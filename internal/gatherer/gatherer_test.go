package gatherer

import (
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/props"
)

// mainLoop stands in for the scheduler: posted closures queue up until the
// test runs them on its own goroutine.
type mainLoop struct{ ch chan func() }

func newMainLoop() *mainLoop { return &mainLoop{ch: make(chan func(), 64)} }

func (m *mainLoop) Post(fn func()) { m.ch <- fn }

func (m *mainLoop) runOne(t *testing.T) {
	t.Helper()
	select {
	case fn := <-m.ch:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a posted completion")
	}
}

type fakeProbe struct{ videos map[string]bool }

func (p fakeProbe) IsVideo(path string) bool { return p.videos[path] }
func (p fakeProbe) Abs(path string) string   { return path }

type fakeCommands struct{ out map[string]string }

func (c fakeCommands) Output(ctx context.Context, command string) (string, error) {
	out, ok := c.out[command]
	if !ok {
		return "", errors.New("unknown command")
	}
	return out, nil
}

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	f, err := fs.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func newTestGatherer(t *testing.T, fs afero.Fs, opts Options) (*Gatherer, *asset.Cache, *mainLoop) {
	t.Helper()
	cache := asset.NewCache()
	loop := newMainLoop()
	opts.Fs = fs
	if opts.Probe == nil {
		opts.Probe = fakeProbe{}
	}
	g := New(cache, loop, opts)
	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = g.Stop()
	})
	return g, cache, loop
}

func TestGatherer_DeduplicatesInFlightKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/bg.png", 8, 4)
	g, cache, loop := newTestGatherer(t, fs, Options{Workers: 3})

	const n = 5
	called := 0
	for i := 0; i < n; i++ {
		err := g.RequestPreload(Request{Key: "background:/bg.png", Source: "/bg.png", Target: TargetImage, Callback: func() { called++ }})
		if err != nil {
			t.Fatalf("RequestPreload: %v", err)
		}
	}
	loop.runOne(t)

	if got := g.Stats().JobsStarted; got != 1 {
		t.Errorf("JobsStarted = %d, want 1", got)
	}
	if called != n {
		t.Errorf("callbacks = %d, want %d", called, n)
	}
	a := g.AssetByID("background:/bg.png")
	if a == nil || !a.Valid || a.Texture.Size() != image.Pt(8, 4) {
		t.Fatalf("asset = %+v", a)
	}
	if refs := cache.Refs("background:/bg.png"); refs != n {
		t.Errorf("refs = %d, want %d", refs, n)
	}
	if s := g.Stats(); s.InFlight != 0 || s.Queued != 0 {
		t.Errorf("stats after completion = %+v", s)
	}
}

func TestGatherer_CachedKeyPostsImmediately(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", 2, 2)
	g, cache, loop := newTestGatherer(t, fs, Options{})

	if err := g.RequestPreload(Request{Key: "image:/a.png", Source: "/a.png"}); err != nil {
		t.Fatal(err)
	}
	loop.runOne(t)

	called := false
	if err := g.RequestPreload(Request{Key: "image:/a.png", Source: "/a.png", Callback: func() { called = true }}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("cached callback ran synchronously instead of being posted")
	}
	loop.runOne(t)
	if !called {
		t.Error("cached callback never ran")
	}
	if got := g.Stats().JobsStarted; got != 1 {
		t.Errorf("JobsStarted = %d, want 1", got)
	}
	if refs := cache.Refs("image:/a.png"); refs != 2 {
		t.Errorf("refs = %d, want 2", refs)
	}

	a := g.AssetByID("image:/a.png")
	g.Unload(a)
	g.Unload(a)
	if g.AssetByID("image:/a.png") != nil {
		t.Error("asset still cached after both owners unloaded")
	}
}

func TestGatherer_BadInputsProduceInvalidAssets(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/empty.png", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/corrupt.png", []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	g, _, loop := newTestGatherer(t, fs, Options{})

	for _, path := range []string{"/empty.png", "/corrupt.png", "/missing.png"} {
		called := false
		key := "image:" + path
		if err := g.RequestPreload(Request{Key: key, Source: path, Callback: func() { called = true }}); err != nil {
			t.Fatal(err)
		}
		loop.runOne(t)
		if !called {
			t.Errorf("%s: callback not called", path)
		}
		a := g.AssetByID(key)
		if a == nil {
			t.Fatalf("%s: no asset inserted", path)
		}
		if a.Valid || a.Err == nil {
			t.Errorf("%s: asset valid=%v err=%v, want invalid with error", path, a.Valid, a.Err)
		}
	}
}

func TestGatherer_VideoClassification(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/loop.mp4", []byte("...."), 0o644); err != nil {
		t.Fatal(err)
	}
	g, _, loop := newTestGatherer(t, fs, Options{Probe: fakeProbe{videos: map[string]bool{"/loop.mp4": true}}})

	if err := g.RequestPreload(Request{Key: "background:/loop.mp4", Source: "/loop.mp4"}); err != nil {
		t.Fatal(err)
	}
	loop.runOne(t)
	a := g.AssetByID("background:/loop.mp4")
	if a == nil || !a.Valid || !a.Video || a.Texture != nil {
		t.Errorf("asset = %+v, want valid video without texture", a)
	}
}

func TestGatherer_TextTargets(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, _, loop := newTestGatherer(t, fs, Options{Commands: fakeCommands{out: map[string]string{"date +%H": "09\n"}}})

	reqs := []Request{
		{Key: "label:1,seq:1", Source: "Hello", Target: TargetText, Props: props.Props{"font_size": props.Int(20)}},
		{Key: "label:2,seq:1", Source: "date +%H", Target: TargetText, Props: props.Props{"cmd": props.Bool(true)}},
		{Key: "label:3,seq:1", Source: "nope", Target: TargetText, Props: props.Props{"cmd": props.Bool(true)}},
	}
	for _, r := range reqs {
		if err := g.RequestPreload(r); err != nil {
			t.Fatal(err)
		}
	}
	for range reqs {
		loop.runOne(t)
	}

	for _, key := range []string{"label:1,seq:1", "label:2,seq:1"} {
		if a := g.AssetByID(key); a == nil || !a.Valid {
			t.Errorf("%s: asset = %+v, want valid", key, a)
		}
	}
	if a := g.AssetByID("label:3,seq:1"); a == nil || a.Valid || !strings.Contains(a.Err.Error(), "unknown command") {
		t.Errorf("failing command asset = %+v", a)
	}
}

func TestGatherer_QRCode(t *testing.T) {
	g, _, loop := newTestGatherer(t, afero.NewMemMapFs(), Options{})
	req := Request{Key: "image:qr:https://example.org", Source: "qr:https://example.org", Props: props.Props{"size": props.Int(128)}}
	if err := g.RequestPreload(req); err != nil {
		t.Fatal(err)
	}
	loop.runOne(t)
	a := g.AssetByID(req.Key)
	if a == nil || !a.Valid || a.Texture.Size() != image.Pt(128, 128) {
		t.Errorf("qr asset = %+v", a)
	}
}

func TestGatherer_StoppedRejectsRequests(t *testing.T) {
	g, _, _ := newTestGatherer(t, afero.NewMemMapFs(), Options{})
	if err := g.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	err := g.RequestPreload(Request{Key: "image:/x.png", Source: "/x.png"})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
	if err := g.RequestPreload(Request{Source: "/x.png"}); err == nil {
		t.Error("empty key accepted")
	}
}
