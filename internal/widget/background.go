package widget

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/render/layout"
)

const screenshotPath = "screenshot"

// ScreenshotKey is the resource key of the captured contents of an output.
func ScreenshotKey(outputID string) string { return "screenshot:" + outputID }

// Background fills an output with a solid colour, a cover-scaled picture
// (optionally blurred and crossfaded on reload), the screen contents, or a
// video played by an external overlay process.
type Background struct {
	deps     Deps
	slot     *Slot
	fader    *Fader
	reloader *Reloader

	outputID string
	viewport layout.Point
	zindex   int

	color      color.NRGBA
	blur       render.BlurParams
	path       string
	screenshot bool
	video      bool

	fb    render.Framebuffer
	dirty bool
}

func NewBackground(deps Deps) *Background {
	b := &Background{deps: deps, zindex: -1, dirty: true}
	b.slot = NewSlot(&b.deps, "background")
	b.slot.OnChange = b.requestRender
	b.slot.OnPromote = b.onPromote
	b.fader = NewFader(deps.Timers, b.requestRender)
	return b
}

func (b *Background) Type() string { return "background" }

func (b *Background) Zindex() int { return b.zindex }

// Video reports whether an overlay process plays this background.
func (b *Background) Video() bool { return b.video }

// Loading reports whether the initial picture is still being produced.
func (b *Background) Loading() bool {
	return b.slot.CurrentKey() != "" && b.slot.Current() == nil
}

func (b *Background) Configure(p props.Props, out render.Output) error {
	r := props.NewReader(p, "background", b.deps.Logger)
	b.outputID = out.ID
	b.viewport = layout.Point{X: float64(out.Viewport.X), Y: float64(out.Viewport.Y)}
	b.zindex = r.Int("zindex", -1)
	b.color = r.Color("color", color.NRGBA{})
	b.blur = render.BlurParams{
		Size:             r.Int("blur_size", 10),
		Passes:           r.Int("blur_passes", 0),
		Noise:            r.Float("noise", 0.0117),
		Contrast:         r.Float("contrast", 0.8916),
		Brightness:       r.Float("brightness", 0.8172),
		Vibrancy:         r.Float("vibrancy", 0.1696),
		VibrancyDarkness: r.Float("vibrancy_darkness", 0),
	}
	b.path = r.String("path", "")
	fallback := r.String("fallback_path", "")
	b.slot.Crossfade = r.DurationSeconds("crossfade_time", -1)
	configureFade(r, b.fader)

	b.screenshot = b.path == screenshotPath
	b.slot.Preserve = b.screenshot

	if b.path != "" && !b.screenshot {
		abs := b.deps.Probe.Abs(b.path)
		if b.deps.Probe.IsVideo(abs) && b.deps.Probe.Exists(abs) {
			b.startVideo(r, abs)
		}
	}

	if !b.video {
		if err := b.loadStatic(fallback); err != nil {
			return err
		}
	}

	if !b.screenshot && !b.video {
		b.reloader = NewReloader(&b.deps, b.slot, "background")
		b.reloader.Period = r.Int("reload_time", -1)
		b.reloader.Cron = r.String("reload_cron", "")
		b.reloader.Command = r.String("reload_cmd", "")
		b.reloader.Fallback = fallback
		if b.reloader.Enabled() {
			b.reloader.Start(b.path)
		}
	}

	b.fader.Start()
	return nil
}

func (b *Background) startVideo(r props.Reader, path string) {
	if b.deps.Video == nil {
		r.Warnf("%s is a video but no video controller is available", path)
		return
	}
	opts := []string{"loop"}
	if r.Has("mpvpaper_fps") {
		opts = append(opts, fmt.Sprintf("--vf=fps=%d", r.Int("mpvpaper_fps", 30)))
	}
	if r.Has("mpvpaper_panscan") {
		opts = append(opts, "panscan="+strconv.FormatFloat(r.Float("mpvpaper_panscan", 1), 'f', -1, 64))
	}
	if r.Has("mpvpaper_hwdec") {
		opts = append(opts, "--hwdec="+r.String("mpvpaper_hwdec", "auto"))
	}
	if r.Bool("mpvpaper_mute", true) {
		opts = append(opts, "--mute=yes")
	} else {
		opts = append(opts, "--mute=no")
	}
	layer := r.String("mpvpaper_layer", "overlay")
	if err := b.deps.Video.Start(b.outputID, path, layer, opts); err != nil {
		b.deps.log().Errorf("background", "video background for %s failed: %v", b.outputID, err)
		return
	}
	b.video = true
}

// loadStatic requests the picture, falling back to fallback when path does
// not exist. Without any usable source the solid colour is drawn.
func (b *Background) loadStatic(fallback string) error {
	if b.screenshot {
		if !b.deps.Screencopy {
			b.deps.log().Errorf("background", "no screencopy support, path=screenshot falls back to the background colour")
			return nil
		}
		key := ScreenshotKey(b.outputID)
		return b.slot.Load(gatherer.Request{Key: key, Source: b.outputID, Target: gatherer.TargetScreenshot})
	}

	target := b.path
	if target != "" && !b.deps.Probe.Exists(b.deps.Probe.Abs(target)) && fallback != "" {
		b.deps.log().Warnf("background", "%s does not exist, using fallback %s", target, fallback)
		target = fallback
	}
	if target == "" || strings.HasSuffix(target, ".mp4") || strings.HasSuffix(target, ".mkv") {
		if target != "" {
			b.deps.log().Errorf("background", "no usable background in %s, falling back to the background colour", target)
		}
		return nil
	}
	if err := b.slot.Load(gatherer.Request{Key: "background:" + target, Source: target, Target: gatherer.TargetImage}); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	return nil
}

func (b *Background) onPromote() {
	if b.blur.Passes <= 0 && !b.screenshot {
		b.fb.Release()
	}
	b.dirty = true
}

func (b *Background) requestRender() { b.deps.render(b.outputID) }

func (b *Background) fullBox() render.Box {
	return render.Box{W: b.viewport.X, H: b.viewport.Y}
}

func (b *Background) Draw(data render.RenderData) bool {
	if b.video {
		return false
	}
	opacity := data.Opacity * b.fader.Opacity()
	backend := b.deps.Backend

	if b.slot.CurrentKey() == "" {
		backend.RenderRect(b.fullBox(), withAlpha(b.color, opacity), 0)
		return animating(opacity)
	}
	a := b.slot.Current()
	if a == nil {
		backend.RenderRect(b.fullBox(), withAlpha(b.color, opacity), 0)
		return true
	}
	if !a.Valid || !a.Texture.Valid() {
		b.slot.DropCurrent()
		b.fb.Release()
		return true
	}

	crossfading := b.slot.Crossfading()
	if crossfading || ((b.blur.Passes > 0 || b.screenshot) && (!b.fb.Allocated() || b.dirty)) {
		b.dirty = false
		size := a.Texture.Size()
		texbox := layout.CoverBox(b.viewport, layout.Point{X: float64(size.X), Y: float64(size.Y)})
		box := render.Box{X: texbox.X, Y: texbox.Y, W: texbox.W, H: texbox.H}.Round()
		if !b.fb.Allocated() {
			b.fb.Alloc(int(b.viewport.X), int(b.viewport.Y))
		}
		backend.PushFb(&b.fb)
		backend.Clear(color.NRGBA{})
		if crossfading {
			mix := b.slot.CrossfadeProgress(b.deps.now())
			backend.RenderTextureMix(box, a.Texture, b.slot.Pending().Texture, 1, mix, 0)
		} else {
			backend.RenderTexture(box, a.Texture, 1, 0)
		}
		if b.blur.Passes > 0 {
			backend.BlurFramebuffer(&b.fb, b.blur)
		}
		backend.PopFb()
	}

	tex := a.Texture
	if b.fb.Allocated() {
		tex = b.fb.Tex
	}
	size := tex.Size()
	texbox := layout.CoverBox(b.viewport, layout.Point{X: float64(size.X), Y: float64(size.Y)})
	backend.RenderTexture(render.Box{X: texbox.X, Y: texbox.Y, W: texbox.W, H: texbox.H}.Round(), tex, opacity, 0)
	return crossfading || animating(opacity)
}

func (b *Background) Destroy() {
	if b.reloader != nil {
		b.reloader.Stop()
	}
	b.fader.Destroy()
	b.slot.Destroy()
	b.fb.Release()
	if b.video && b.deps.Video != nil {
		if err := b.deps.Video.Stop(b.outputID); err != nil {
			b.deps.log().Errorf("background", "stopping video background for %s: %v", b.outputID, err)
		}
		b.video = false
	}
}
