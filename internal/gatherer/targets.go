package gatherer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/textshape"
)

const (
	qrPrefix            = "qr:"
	defaultQRCodeSizePx = 256
)

func (g *Gatherer) abs(path string) string {
	if g.opts.Probe == nil {
		return path
	}
	return g.opts.Probe.Abs(path)
}

func (g *Gatherer) produceImage(req Request, a *asset.Asset) error {
	if strings.HasPrefix(req.Source, qrPrefix) {
		return g.produceQRCode(req, a)
	}
	path := g.abs(req.Source)
	a.Path = path
	if g.opts.Probe != nil && g.opts.Probe.IsVideo(path) {
		a.Video = true
		return nil
	}

	data, err := afero.ReadFile(g.opts.Fs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("read %s: empty file", path)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	g.log.Tracef("gatherer", "decoded %s (%s, %v)", path, format, img.Bounds().Size())
	a.Texture = asset.NewTexture(toRGBA(img))
	return nil
}

func (g *Gatherer) produceText(ctx context.Context, req Request, a *asset.Asset) error {
	r := props.NewReader(req.Props, "gatherer", g.log)
	text := req.Source
	if r.Bool("cmd", false) {
		if g.opts.Commands == nil {
			return errors.New("no command runner configured")
		}
		out, err := g.opts.Commands.Output(ctx, text)
		if err != nil {
			return err
		}
		text = strings.TrimRight(out, "\n")
	}

	st := textshape.Style{
		Font:     r.String("font_family", "Sans"),
		Size:     r.Float("font_size", 16),
		Color:    r.Color("color", color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
		Align:    textshape.ParseAlign(r.String("text_align", "left")),
		Vertical: r.String("text_orientation", "horizontal") == "vertical",
	}
	img, err := g.opts.Shaper.Shape(text, st)
	if err != nil {
		return fmt.Errorf("shape %q: %w", text, err)
	}
	a.Texture = asset.NewTexture(img)
	return nil
}

func (g *Gatherer) produceQRCode(req Request, a *asset.Asset) error {
	payload := strings.TrimPrefix(req.Source, qrPrefix)
	if payload == "" {
		return errors.New("empty qr payload")
	}
	size := props.NewReader(req.Props, "gatherer", g.log).Int("size", defaultQRCodeSizePx)
	if size <= 0 {
		size = defaultQRCodeSizePx
	}
	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("qrcode: %w", err)
	}
	a.Texture = asset.NewTexture(toRGBA(code.Image(size)))
	return nil
}

func (g *Gatherer) produceScreenshot(ctx context.Context, req Request, a *asset.Asset) error {
	if g.opts.Screencopy == nil {
		return errors.New("no screencopy source")
	}
	img, err := g.opts.Screencopy.Capture(ctx, req.Source)
	if err != nil {
		return fmt.Errorf("capture %s: %w", req.Source, err)
	}
	a.Texture = asset.NewTexture(img)
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
