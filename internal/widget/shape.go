package widget

import (
	"image/color"

	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/render/layout"
)

var defaultShapeColor = color.NRGBA{R: 255, G: 255, B: 255, A: 128}

// Shape draws a filled, optionally rounded and bordered rectangle.
type Shape struct {
	deps  Deps
	fader *Fader

	outputID string
	viewport layout.Point
	pos      layout.Point
	halign   string
	valign   string
	angle    float64
	zindex   int

	size        layout.Point
	color       color.NRGBA
	border      int
	borderColor color.NRGBA
	rounding    int
	blur        bool
	blurParams  render.BlurParams

	fb render.Framebuffer
}

func NewShape(deps Deps) *Shape {
	s := &Shape{deps: deps, zindex: 10}
	s.fader = NewFader(deps.Timers, s.requestRender)
	return s
}

func (s *Shape) Type() string { return "shape" }

func (s *Shape) Zindex() int { return s.zindex }

func (s *Shape) Configure(p props.Props, out render.Output) error {
	r := props.NewReader(p, "shape", s.deps.Logger)
	s.outputID = out.ID
	s.viewport = layout.Point{X: float64(out.Viewport.X), Y: float64(out.Viewport.Y)}

	if kind := r.String("shape", "rectangle"); kind != "rectangle" {
		r.Warnf("unsupported shape %q, drawing a rectangle", kind)
	}
	size := r.Vec2("size", props.Vec2{X: 100, Y: 100})
	s.size = layout.Point{X: size.X, Y: size.Y}
	s.color = r.Color("color", defaultShapeColor)
	s.border = r.Int("border_size", 0)
	if s.border < 0 {
		s.border = 0
	}
	s.borderColor = r.Color("border_color", color.NRGBA{A: 255})
	s.rounding = r.Int("rounding", 0)
	s.angle = degrees(r.Float("rotate", 0))
	s.blur = r.Bool("blur", false)
	s.blurParams = render.BlurParams{
		Size:   r.Int("blur_size", 10),
		Passes: r.Int("blur_passes", 3),
	}
	pos := r.Vec2("position", props.Vec2{})
	s.pos = layout.Point{X: pos.X, Y: pos.Y}
	s.halign = r.String("halign", "none")
	s.valign = r.String("valign", "none")
	if _, ok := layout.PosFromHVAlign(s.viewport, s.outer(), s.pos, s.halign, s.valign); !ok {
		r.Warnf("invalid alignment %q/%q, using the raw position", s.halign, s.valign)
	}
	s.zindex = r.Int("zindex", 10)
	configureFade(r, s.fader)
	s.fb.Release()
	s.fader.Start()
	return nil
}

// outer is the size including the border on both sides.
func (s *Shape) outer() layout.Point {
	b := float64(2 * s.border)
	return layout.Point{X: s.size.X + b, Y: s.size.Y + b}
}

func (s *Shape) requestRender() { s.deps.render(s.outputID) }

func (s *Shape) Draw(data render.RenderData) bool {
	opacity := data.Opacity * s.fader.Opacity()
	outer := s.outer()
	pos, _ := layout.PosFromHVAlign(s.viewport, outer, s.pos, s.halign, s.valign)
	borderBox := render.Box{X: pos.X, Y: pos.Y, W: outer.X, H: outer.Y, Rot: s.angle}.Round()
	b := float64(s.border)
	fill := render.Box{X: pos.X + b, Y: pos.Y + b, W: s.size.X, H: s.size.Y, Rot: s.angle}.Round()
	backend := s.deps.Backend

	if s.blur {
		if !s.fb.Allocated() {
			s.compose(outer)
		}
		backend.RenderTexture(borderBox, s.fb.Tex, opacity, 0)
		return animating(opacity)
	}

	backend.RenderRect(fill, withAlpha(s.color, opacity), layout.RoundingForBox(fill.W, fill.H, s.rounding))
	if s.border > 0 {
		backend.RenderBorder(borderBox, s.borderColor, s.border, layout.RoundingForBorderBox(borderBox.W, borderBox.H, s.rounding, s.border), opacity)
	}
	return animating(opacity)
}

// compose renders the shape once into the widget framebuffer and blurs it.
func (s *Shape) compose(outer layout.Point) {
	s.fb.Alloc(int(outer.X+0.5), int(outer.Y+0.5))
	b := float64(s.border)
	borderBox := render.Box{W: outer.X, H: outer.Y}.Round()
	fill := render.Box{X: b, Y: b, W: s.size.X, H: s.size.Y}.Round()

	backend := s.deps.Backend
	backend.PushFb(&s.fb)
	backend.Clear(color.NRGBA{})
	backend.RenderRect(fill, s.color, layout.RoundingForBox(fill.W, fill.H, s.rounding))
	if s.border > 0 {
		backend.RenderBorder(borderBox, s.borderColor, s.border, layout.RoundingForBorderBox(borderBox.W, borderBox.H, s.rounding, s.border), 1)
	}
	if s.blurParams.Passes > 0 {
		backend.BlurFramebuffer(&s.fb, s.blurParams)
	}
	backend.PopFb()
}

func (s *Shape) Destroy() {
	s.fader.Destroy()
	s.fb.Release()
}
