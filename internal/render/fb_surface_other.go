//go:build !linux

package render

import (
	"context"
	"errors"
	"image"

	"github.com/rook-computer/lockscreen/internal/logging"
)

var errNoFramebuffer = errors.New("framebuffer output is only supported on linux")

// FBSurface is unavailable off Linux.
type FBSurface struct{}

func OpenFBSurface(path string, logical image.Point, log logging.Logger) (*FBSurface, error) {
	return nil, errNoFramebuffer
}

func (s *FBSurface) Frame() *image.RGBA { return nil }
func (s *FBSurface) Present() error     { return errNoFramebuffer }
func (s *FBSurface) Close() error       { return nil }

func (s *FBSurface) Capture(ctx context.Context, outputID string) (*image.RGBA, error) {
	return nil, errNoFramebuffer
}
