package widget

import (
	"fmt"
	"image/color"
	"math"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/render/layout"
)

var defaultBorderColor = color.NRGBA{R: 221, G: 221, B: 221, A: 255}

// Image shows a picture scaled to cover a square of Size pixels, clipped to
// rounded corners and framed by a border. The composed result is cached in an
// offscreen framebuffer until the picture changes.
type Image struct {
	deps     Deps
	slot     *Slot
	fader    *Fader
	reloader *Reloader

	outputID string
	viewport layout.Point
	pos      layout.Point
	halign   string
	valign   string
	angle    float64
	zindex   int

	path        string
	size        int
	rounding    int
	border      int
	borderColor color.NRGBA

	fb render.Framebuffer
}

func NewImage(deps Deps) *Image {
	i := &Image{deps: deps, zindex: 20}
	i.slot = NewSlot(&i.deps, "image")
	i.slot.OnChange = i.requestRender
	i.slot.OnPromote = i.fb.Release
	i.fader = NewFader(deps.Timers, i.requestRender)
	return i
}

func (i *Image) Type() string { return "image" }

func (i *Image) Zindex() int { return i.zindex }

func (i *Image) Configure(p props.Props, out render.Output) error {
	r := props.NewReader(p, "image", i.deps.Logger)
	if err := r.Require("path"); err != nil {
		return err
	}
	i.outputID = out.ID
	i.viewport = layout.Point{X: float64(out.Viewport.X), Y: float64(out.Viewport.Y)}
	pos := r.Vec2("position", props.Vec2{})
	i.pos = layout.Point{X: pos.X, Y: pos.Y}
	i.halign = r.String("halign", "center")
	i.valign = r.String("valign", "center")
	i.angle = degrees(r.Float("rotate", 0))
	i.zindex = r.Int("zindex", 20)
	i.path = r.String("path", "")
	i.size = r.Int("size", 150)
	if i.size <= 0 {
		r.Warnf("size %d is invalid, using 150", i.size)
		i.size = 150
	}
	i.rounding = r.Int("rounding", -1)
	i.border = r.Int("border_size", 4)
	if i.border < 0 {
		i.border = 0
	}
	i.borderColor = r.Color("border_color", defaultBorderColor)
	configureFade(r, i.fader)

	if i.path == "" {
		r.Warnf("empty path, nothing to show")
	} else if err := i.slot.Load(gatherer.Request{Key: "image:" + i.path, Source: i.path, Target: gatherer.TargetImage}); err != nil {
		return fmt.Errorf("image: %w", err)
	}

	i.reloader = NewReloader(&i.deps, i.slot, "image")
	i.reloader.Period = r.Int("reload_time", -1)
	i.reloader.Cron = r.String("reload_cron", "")
	i.reloader.Command = r.String("reload_cmd", "")
	if i.reloader.Enabled() {
		i.reloader.Start(i.path)
	}
	i.fader.Start()
	return nil
}

func (i *Image) requestRender() { i.deps.render(i.outputID) }

func (i *Image) Draw(data render.RenderData) bool {
	a := i.slot.Current()
	if a == nil {
		return i.slot.CurrentKey() != ""
	}
	if !a.Valid || !a.Texture.Valid() {
		if a.Video {
			i.deps.log().Warnf("image", "%s is a video, which image widgets cannot show", a.Path)
		}
		i.slot.DropCurrent()
		i.fb.Release()
		return false
	}
	if !i.fb.Allocated() {
		i.compose(a)
	}

	opacity := data.Opacity * i.fader.Opacity()
	size := i.fb.Size()
	pos, _ := layout.PosFromHVAlign(i.viewport, layout.Point{X: float64(size.X), Y: float64(size.Y)}, i.pos, i.halign, i.valign)
	box := render.Box{X: pos.X, Y: pos.Y, W: float64(size.X), H: float64(size.Y), Rot: i.angle}
	i.deps.Backend.RenderTexture(box.Round(), i.fb.Tex, opacity, 0)
	return animating(opacity)
}

// compose draws the border and the rounded, cover-scaled picture into the
// widget framebuffer.
func (i *Image) compose(a *asset.Asset) {
	tex := a.Texture.Size()
	scale := math.Max(float64(i.size)/float64(tex.X), float64(i.size)/float64(tex.Y))
	b := float64(i.border)
	texbox := render.Box{X: b, Y: b, W: float64(tex.X) * scale, H: float64(tex.Y) * scale}
	borderBox := render.Box{W: texbox.W + 2*b, H: texbox.H + 2*b}.Round()

	i.fb.Alloc(int(borderBox.W), int(borderBox.H))
	backend := i.deps.Backend
	backend.PushFb(&i.fb)
	backend.Clear(color.NRGBA{})
	if i.border > 0 {
		backend.RenderBorder(borderBox, i.borderColor, i.border, layout.RoundingForBorderBox(borderBox.W, borderBox.H, i.rounding, i.border), 1)
	}
	backend.RenderTexture(texbox.Round(), a.Texture, 1, layout.RoundingForBox(texbox.W, texbox.H, i.rounding))
	backend.PopFb()
}

func (i *Image) Destroy() {
	if i.reloader != nil {
		i.reloader.Stop()
	}
	i.fader.Destroy()
	i.slot.Destroy()
	i.fb.Release()
}
