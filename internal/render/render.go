package render

import (
	"image"
	"image/color"
	"math"

	"github.com/rook-computer/lockscreen/internal/asset"
)

// Box is a rectangle in output pixels with y pointing down. Rot is a
// rotation in radians around the box center.
type Box struct {
	X, Y, W, H float64
	Rot        float64
}

func (b Box) Round() Box {
	return Box{X: math.Round(b.X), Y: math.Round(b.Y), W: math.Round(b.W), H: math.Round(b.H), Rot: b.Rot}
}

func (b Box) Rect() image.Rectangle {
	r := b.Round()
	return image.Rect(int(r.X), int(r.Y), int(r.X+r.W), int(r.Y+r.H))
}

// Output describes one display surface. It is read-only for widgets.
type Output struct {
	ID        string
	Viewport  image.Point
	Transform int
}

// RenderData is passed to every widget draw of a frame.
type RenderData struct {
	Opacity float64
}

type BlurParams struct {
	Size             int
	Passes           int
	Noise            float64
	Contrast         float64
	Brightness       float64
	Vibrancy         float64
	VibrancyDarkness float64
}

// Framebuffer is an offscreen render target widgets compose into.
type Framebuffer struct {
	Tex *asset.Texture
}

func (fb *Framebuffer) Alloc(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	fb.Tex = asset.NewTexture(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func (fb *Framebuffer) Allocated() bool { return fb != nil && fb.Tex.Valid() }

func (fb *Framebuffer) Release() { fb.Tex = nil }

func (fb *Framebuffer) Size() image.Point { return fb.Tex.Size() }

// Backend draws primitives onto the current target: the output frame, or
// the framebuffer most recently pushed.
type Backend interface {
	Clear(c color.NRGBA)
	RenderRect(box Box, c color.NRGBA, rounding int)
	RenderTexture(box Box, tex *asset.Texture, alpha float64, rounding int)
	RenderTextureMix(box Box, from, to *asset.Texture, alpha, mix float64, rounding int)
	RenderBorder(box Box, c color.NRGBA, thickness, rounding int, alpha float64)
	BlurFramebuffer(fb *Framebuffer, params BlurParams)
	PushFb(fb *Framebuffer)
	PopFb()
}

// Surface is where a finished frame goes.
type Surface interface {
	Frame() *image.RGBA
	Present() error
	Close() error
}
