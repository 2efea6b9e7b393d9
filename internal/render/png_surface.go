package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"path/filepath"

	"github.com/spf13/afero"
)

// PNGSurface writes every presented frame to Dir as frame-NNNN.png.
type PNGSurface struct {
	Fs  afero.Fs
	Dir string
	// Backdrop stands in for the screen contents in screenshot mode.
	Backdrop *image.RGBA

	frame *image.RGBA
	n     int
}

func NewPNGSurface(fs afero.Fs, dir string, size image.Point) (*PNGSurface, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid surface size %v", size)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &PNGSurface{Fs: fs, Dir: dir, frame: image.NewRGBA(image.Rectangle{Max: size})}, nil
}

func (s *PNGSurface) Frame() *image.RGBA { return s.frame }

// Frames is the number of frames written so far.
func (s *PNGSurface) Frames() int { return s.n }

// LastPath is the file the most recent Present wrote.
func (s *PNGSurface) LastPath() string {
	if s.n == 0 {
		return ""
	}
	return s.path(s.n - 1)
}

func (s *PNGSurface) path(i int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("frame-%04d.png", i))
}

func (s *PNGSurface) Present() error {
	f, err := s.Fs.Create(s.path(s.n))
	if err != nil {
		return err
	}
	if err := png.Encode(f, s.frame); err != nil {
		f.Close()
		return fmt.Errorf("encode frame %d: %w", s.n, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.n++
	return nil
}

func (s *PNGSurface) Close() error { return nil }

func (s *PNGSurface) Capture(ctx context.Context, outputID string) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Backdrop == nil {
		return nil, errors.New("no backdrop for screenshot")
	}
	out := image.NewRGBA(s.Backdrop.Rect)
	draw.Draw(out, out.Rect, s.Backdrop, s.Backdrop.Rect.Min, draw.Src)
	return out, nil
}
