package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/rook-computer/lockscreen/internal/asset"
)

// Canvas is the software Backend. Every primitive is rendered into a layer
// the size of its box and then composited onto the current target, rotated
// around the box center when Box.Rot is set.
type Canvas struct {
	base  *image.RGBA
	stack []*image.RGBA
}

func NewCanvas(dst *image.RGBA) *Canvas { return &Canvas{base: dst} }

// Target returns the image primitives currently draw into.
func (c *Canvas) Target() *image.RGBA {
	if n := len(c.stack); n > 0 {
		return c.stack[n-1]
	}
	return c.base
}

func (c *Canvas) PushFb(fb *Framebuffer) {
	if !fb.Allocated() {
		return
	}
	c.stack = append(c.stack, fb.Tex.Image)
}

func (c *Canvas) PopFb() {
	if n := len(c.stack); n > 0 {
		c.stack[n-1] = nil
		c.stack = c.stack[:n-1]
	}
}

func (c *Canvas) Clear(col color.NRGBA) {
	t := c.Target()
	draw.Draw(t, t.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *Canvas) RenderRect(box Box, col color.NRGBA, rounding int) {
	layer := newLayer(box)
	if layer == nil || col.A == 0 {
		return
	}
	draw.Draw(layer, layer.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
	applyMask(layer, rounding, 1)
	c.composite(box, layer)
}

func (c *Canvas) RenderTexture(box Box, tex *asset.Texture, alpha float64, rounding int) {
	if !tex.Valid() || alpha <= 0 {
		return
	}
	layer := newLayer(box)
	if layer == nil {
		return
	}
	scaleInto(layer, tex.Image)
	applyMask(layer, rounding, alpha)
	c.composite(box, layer)
}

// RenderTextureMix blends from towards to by mix in [0,1].
func (c *Canvas) RenderTextureMix(box Box, from, to *asset.Texture, alpha, mix float64, rounding int) {
	switch {
	case !to.Valid() || mix <= 0:
		c.RenderTexture(box, from, alpha, rounding)
		return
	case !from.Valid() || mix >= 1:
		c.RenderTexture(box, to, alpha, rounding)
		return
	}
	layer := newLayer(box)
	if layer == nil || alpha <= 0 {
		return
	}
	other := image.NewRGBA(layer.Bounds())
	scaleInto(layer, from.Image)
	scaleInto(other, to.Image)
	for i := range layer.Pix {
		layer.Pix[i] = uint8(float64(layer.Pix[i])*(1-mix) + float64(other.Pix[i])*mix + 0.5)
	}
	applyMask(layer, rounding, alpha)
	c.composite(box, layer)
}

func (c *Canvas) RenderBorder(box Box, col color.NRGBA, thickness, rounding int, alpha float64) {
	layer := newLayer(box)
	if layer == nil || thickness <= 0 || alpha <= 0 {
		return
	}
	w, h := layer.Rect.Dx(), layer.Rect.Dy()
	inner := rounding - thickness
	if inner < 0 {
		inner = 0
	}
	fill := color.NRGBA{R: col.R, G: col.G, B: col.B, A: uint8(float64(col.A)*clamp01(alpha) + 0.5)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !insideRounded(x, y, w, h, rounding) {
				continue
			}
			if insideRounded(x-thickness, y-thickness, w-2*thickness, h-2*thickness, inner) {
				continue
			}
			layer.Set(x, y, fill)
		}
	}
	c.composite(box, layer)
}

// BlurFramebuffer box-blurs fb in place Passes times with radius Size, then
// applies contrast and brightness.
func (c *Canvas) BlurFramebuffer(fb *Framebuffer, p BlurParams) {
	if !fb.Allocated() || p.Size <= 0 || p.Passes <= 0 {
		return
	}
	img := fb.Tex.Image
	tmp := image.NewRGBA(img.Rect)
	for i := 0; i < p.Passes; i++ {
		boxBlur(img, tmp, p.Size, true)
		boxBlur(tmp, img, p.Size, false)
	}
	if (p.Contrast == 0 || p.Contrast == 1) && (p.Brightness == 0 || p.Brightness == 1) {
		return
	}
	contrast, brightness := p.Contrast, p.Brightness
	if contrast == 0 {
		contrast = 1
	}
	if brightness == 0 {
		brightness = 1
	}
	for i := 0; i < len(img.Pix); i += 4 {
		a := float64(img.Pix[i+3])
		for ch := 0; ch < 3; ch++ {
			v := ((float64(img.Pix[i+ch])/255-0.5)*contrast + 0.5) * brightness * 255
			img.Pix[i+ch] = uint8(math.Min(math.Max(v, 0), a))
		}
	}
}

func (c *Canvas) composite(box Box, layer *image.RGBA) {
	t := c.Target()
	if box.Rot == 0 {
		r := box.Rect()
		draw.Draw(t, r, layer, image.Point{}, draw.Over)
		return
	}
	w, h := float64(layer.Rect.Dx()), float64(layer.Rect.Dy())
	cx, cy := box.X+box.W/2, box.Y+box.H/2
	sin, cos := math.Sincos(box.Rot)
	s2d := f64.Aff3{
		cos, -sin, cx - cos*w/2 + sin*h/2,
		sin, cos, cy - sin*w/2 - cos*h/2,
	}
	xdraw.ApproxBiLinear.Transform(t, s2d, layer, layer.Bounds(), xdraw.Over, nil)
}

func newLayer(box Box) *image.RGBA {
	r := box.Rect()
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil
	}
	return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
}

func scaleInto(dst, src *image.RGBA) {
	if dst.Rect.Size() == src.Rect.Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Rect.Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}

// applyMask clips layer to a rounded rectangle and scales it by alpha.
func applyMask(layer *image.RGBA, rounding int, alpha float64) {
	alpha = clamp01(alpha)
	if rounding <= 0 && alpha >= 1 {
		return
	}
	w, h := layer.Rect.Dx(), layer.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f := alpha
			if rounding > 0 && !insideRounded(x, y, w, h, rounding) {
				f = 0
			}
			if f >= 1 {
				continue
			}
			i := layer.PixOffset(x, y)
			for ch := 0; ch < 4; ch++ {
				layer.Pix[i+ch] = uint8(float64(layer.Pix[i+ch])*f + 0.5)
			}
		}
	}
}

// insideRounded reports whether pixel (x,y) lies in a w×h rectangle whose
// corners are rounded with radius r.
func insideRounded(x, y, w, h, r int) bool {
	if x < 0 || y < 0 || x >= w || y >= h {
		return false
	}
	if r <= 0 {
		return true
	}
	px, py := float64(x)+0.5, float64(y)+0.5
	rf := float64(r)
	dx := math.Max(math.Max(rf-px, px-(float64(w)-rf)), 0)
	dy := math.Max(math.Max(rf-py, py-(float64(h)-rf)), 0)
	return dx*dx+dy*dy <= rf*rf
}

func boxBlur(src, dst *image.RGBA, r int, horizontal bool) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	lines, length := h, w
	if !horizontal {
		lines, length = w, h
	}
	at := func(line, i int) int {
		if i < 0 {
			i = 0
		}
		if i >= length {
			i = length - 1
		}
		if horizontal {
			return src.PixOffset(src.Rect.Min.X+i, src.Rect.Min.Y+line)
		}
		return src.PixOffset(src.Rect.Min.X+line, src.Rect.Min.Y+i)
	}
	out := func(line, i int) int {
		if horizontal {
			return dst.PixOffset(dst.Rect.Min.X+i, dst.Rect.Min.Y+line)
		}
		return dst.PixOffset(dst.Rect.Min.X+line, dst.Rect.Min.Y+i)
	}
	window := 2*r + 1
	for line := 0; line < lines; line++ {
		for ch := 0; ch < 4; ch++ {
			sum := 0
			for i := -r; i <= r; i++ {
				sum += int(src.Pix[at(line, i)+ch])
			}
			for i := 0; i < length; i++ {
				dst.Pix[out(line, i)+ch] = uint8(sum / window)
				sum += int(src.Pix[at(line, i+r+1)+ch]) - int(src.Pix[at(line, i-r)+ch])
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
