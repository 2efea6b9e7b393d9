//go:build linux

package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"

	fb "github.com/gonutz/framebuffer"

	"github.com/rook-computer/lockscreen/internal/logging"
)

// FBSurface presents frames on a Linux framebuffer device. Frames are drawn
// at the logical size and scaled nearest-neighbour onto the device when the
// two differ.
type FBSurface struct {
	dev    *fb.Device
	frame  *image.RGBA
	log    logging.Logger
	screen *image.RGBA
}

// OpenFBSurface opens path (usually /dev/fb0). A zero logical size uses the
// device resolution. Whatever the console showed before is kept as the
// screenshot source for Capture.
func OpenFBSurface(path string, logical image.Point, log logging.Logger) (*FBSurface, error) {
	log = logging.OrNoop(log)
	dev, err := fb.Open(path)
	if err != nil {
		return nil, err
	}
	bounds := dev.Bounds()
	log.Infof("fb", "framebuffer open, bounds=%dx%d", bounds.Dx(), bounds.Dy())
	if logical.X <= 0 || logical.Y <= 0 {
		logical = bounds.Size()
	}
	s := &FBSurface{
		dev:   dev,
		frame: image.NewRGBA(image.Rectangle{Max: logical}),
		log:   log,
	}
	s.screen = image.NewRGBA(image.Rectangle{Max: logical})
	scaleNN(s.screen, dev)
	return s, nil
}

func (s *FBSurface) Frame() *image.RGBA { return s.frame }

func (s *FBSurface) Present() error {
	if s.dev == nil {
		return errors.New("framebuffer closed")
	}
	return blitToFB(s.dev, s.frame)
}

func (s *FBSurface) Close() error {
	if s.dev == nil {
		return nil
	}
	s.dev.Close()
	s.dev = nil
	s.log.Infof("fb", "framebuffer closed")
	return nil
}

// Capture returns a copy of the contents the framebuffer had when it was
// opened. outputID is ignored since a framebuffer is a single output.
func (s *FBSurface) Capture(ctx context.Context, outputID string) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := image.NewRGBA(s.screen.Rect)
	draw.Draw(out, out.Rect, s.screen, image.Point{}, draw.Src)
	return out, nil
}

func scaleNN(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()
	for y := 0; y < dh; y++ {
		sy := sb.Min.Y + (y*sb.Dy())/dh
		for x := 0; x < dw; x++ {
			sx := sb.Min.X + (x*sb.Dx())/dw
			dst.Set(x, y, src.At(sx, sy))
		}
	}
}

// blitToFB writes canvas to the device, sampling nearest-neighbour when the
// sizes differ. The framebuffer has no alpha, so pixels are written opaque.
func blitToFB(dev *fb.Device, canvas *image.RGBA) error {
	bounds := dev.Bounds()
	fbWidth, fbHeight := bounds.Dx(), bounds.Dy()
	cw, ch := canvas.Rect.Dx(), canvas.Rect.Dy()
	for y := 0; y < fbHeight; y++ {
		sy := (y * ch) / fbHeight
		for x := 0; x < fbWidth; x++ {
			sx := (x * cw) / fbWidth
			pixel := canvas.RGBAAt(sx, sy)
			dev.Set(bounds.Min.X+x, bounds.Min.Y+y, color.RGBA{R: pixel.R, G: pixel.G, B: pixel.B, A: 0xFF})
		}
	}
	return nil
}
