// Package gatherer produces assets off the main loop. Requests and lookups
// happen on the main loop; decoding, shaping and classification run on a
// bounded worker pool, and every completion is posted back to the main loop
// before the cache is touched or a callback runs.
package gatherer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/logging"
	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/textshape"
)

type Target int

const (
	TargetImage Target = iota
	TargetText
	TargetVideoPlaceholder
	TargetQRCode
	TargetScreenshot
)

func (t Target) String() string {
	switch t {
	case TargetImage:
		return "image"
	case TargetText:
		return "text"
	case TargetVideoPlaceholder:
		return "video"
	case TargetQRCode:
		return "qrcode"
	case TargetScreenshot:
		return "screenshot"
	}
	return "unknown"
}

// Request asks for the asset identified by Key. Source is a path, literal
// text, a shell command (text target with props["cmd"]) or a "qr:" payload.
// Callback runs on the main loop once the asset is in the cache.
type Request struct {
	Key      string
	Source   string
	Target   Target
	Props    props.Props
	Callback func()
}

// Poster runs closures on the main loop.
type Poster interface {
	Post(fn func())
}

type Probe interface {
	IsVideo(path string) bool
	Abs(path string) string
}

type CommandRunner interface {
	Output(ctx context.Context, command string) (string, error)
}

type TextShaper interface {
	Shape(text string, st textshape.Style) (*image.RGBA, error)
}

// Screencopy captures the current contents of an output.
type Screencopy interface {
	Capture(ctx context.Context, outputID string) (*image.RGBA, error)
}

type Options struct {
	Workers    int
	Fs         afero.Fs
	Probe      Probe
	Shaper     TextShaper
	Commands   CommandRunner
	Screencopy Screencopy
	Logger     logging.Logger
}

var ErrStopped = errors.New("gatherer stopped")

type job struct {
	req       Request
	callbacks []func()
	refs      int
}

type Stats struct {
	JobsStarted uint64 `json:"jobs_started"`
	InFlight    int    `json:"in_flight"`
	Queued      int    `json:"queued"`
}

type Gatherer struct {
	cache  *asset.Cache
	poster Poster
	opts   Options
	log    logging.Logger

	mu       sync.Mutex
	inflight map[string]*job
	queue    []*job
	stopped  bool
	notify   chan struct{}

	started atomic.Uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(cache *asset.Cache, poster Poster, opts Options) *Gatherer {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Shaper == nil {
		opts.Shaper = textshape.NewShaper(opts.Fs)
	}
	return &Gatherer{
		cache:    cache,
		poster:   poster,
		opts:     opts,
		log:      logging.OrNoop(opts.Logger),
		inflight: map[string]*job{},
		notify:   make(chan struct{}, 1),
	}
}

// Start launches the worker pool. Workers exit when ctx is done or Stop is
// called.
func (g *Gatherer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	g.cancel = cancel
	g.group = group
	for i := 0; i < g.opts.Workers; i++ {
		group.Go(func() error { return g.worker(ctx) })
	}
	g.log.Infof("gatherer", "started %d workers", g.opts.Workers)
}

// Stop cancels the workers and waits for them. Jobs still queued are dropped
// and their callbacks never run.
func (g *Gatherer) Stop() error {
	g.mu.Lock()
	g.stopped = true
	g.queue = nil
	g.mu.Unlock()
	if g.cancel == nil {
		return nil
	}
	g.cancel()
	err := g.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RequestPreload issues req unless the key is already cached (the callback is
// then posted immediately) or already in flight (the callback joins the
// running job). Must be called on the main loop.
func (g *Gatherer) RequestPreload(req Request) error {
	if req.Key == "" {
		return fmt.Errorf("preload %s %q: empty resource key", req.Target, req.Source)
	}
	if a := g.cache.Get(req.Key); a != nil && a.Valid {
		g.cache.Retain(req.Key)
		if req.Callback != nil {
			g.poster.Post(req.Callback)
		}
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return ErrStopped
	}
	if j, ok := g.inflight[req.Key]; ok {
		j.refs++
		if req.Callback != nil {
			j.callbacks = append(j.callbacks, req.Callback)
		}
		return nil
	}
	j := &job{req: req, refs: 1}
	if req.Callback != nil {
		j.callbacks = append(j.callbacks, req.Callback)
	}
	g.inflight[req.Key] = j
	g.queue = append(g.queue, j)
	g.started.Add(1)
	g.wake()
	g.log.Tracef("gatherer", "queued %s %s", req.Target, req.Key)
	return nil
}

// AssetByID is a main loop lookup; nil until the asset was produced.
func (g *Gatherer) AssetByID(key string) *asset.Asset { return g.cache.Get(key) }

// Unload releases one reference held through a.
func (g *Gatherer) Unload(a *asset.Asset) {
	if a == nil {
		return
	}
	if g.cache.Release(a) {
		g.log.Tracef("gatherer", "unloaded %s", a.Key)
	}
}

func (g *Gatherer) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{JobsStarted: g.started.Load(), InFlight: len(g.inflight), Queued: len(g.queue)}
}

func (g *Gatherer) wake() {
	select {
	case g.notify <- struct{}{}:
	default:
	}
}

func (g *Gatherer) next() *job {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return nil
	}
	j := g.queue[0]
	g.queue[0] = nil
	g.queue = g.queue[1:]
	if len(g.queue) > 0 {
		g.wake()
	}
	return j
}

func (g *Gatherer) worker(ctx context.Context) error {
	for {
		j := g.next()
		if j == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.notify:
				continue
			}
		}
		a := g.produce(ctx, j.req)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.complete(j, a)
	}
}

// complete hands a finished job to the main loop. The in-flight entry is only
// dropped there, so a request arriving meanwhile still joins this job.
func (g *Gatherer) complete(j *job, a *asset.Asset) {
	key := j.req.Key
	g.poster.Post(func() {
		g.mu.Lock()
		delete(g.inflight, key)
		refs := j.refs
		callbacks := j.callbacks
		g.mu.Unlock()

		g.cache.Insert(a, refs)
		for _, cb := range callbacks {
			cb()
		}
	})
}

func (g *Gatherer) produce(ctx context.Context, req Request) (a *asset.Asset) {
	a = &asset.Asset{Key: req.Key, Path: req.Source}
	defer func() {
		if r := recover(); r != nil {
			a = &asset.Asset{Key: req.Key, Path: req.Source, Err: fmt.Errorf("panic: %v", r)}
		}
		if a.Err != nil {
			g.log.Errorf("gatherer", "%s %s failed: %v", req.Target, req.Key, a.Err)
		} else {
			g.log.Tracef("gatherer", "%s %s ready", req.Target, req.Key)
		}
	}()

	var err error
	switch req.Target {
	case TargetImage:
		err = g.produceImage(req, a)
	case TargetText:
		err = g.produceText(ctx, req, a)
	case TargetVideoPlaceholder:
		a.Video = true
		a.Texture = asset.NewTexture(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	case TargetQRCode:
		err = g.produceQRCode(req, a)
	case TargetScreenshot:
		err = g.produceScreenshot(ctx, req, a)
	default:
		err = fmt.Errorf("unknown target %d", req.Target)
	}
	if err != nil {
		a.Err = err
		a.Texture = nil
		return a
	}
	a.Valid = a.Video || a.Texture.Valid()
	if !a.Valid {
		a.Err = errors.New("empty texture")
	}
	return a
}
