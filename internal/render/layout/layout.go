// Package layout places widget boxes on an output. Offsets in the layout
// file point up like the compositor's coordinates; boxes returned here use
// image coordinates with y pointing down.
package layout

import "math"

// Point is a position or size in output pixels.
type Point struct{ X, Y float64 }

// Box mirrors render.Box without the rotation so this package stays free of
// render imports.
type Box struct{ X, Y, W, H float64 }

// PosFromHVAlign returns the top-left corner of a box of the given size
// aligned inside viewport. halign is left, center, right or none; valign is
// top, center, bottom or none. offset is added with y pointing up. Unknown
// values behave like none and are reported through ok.
func PosFromHVAlign(viewport, size, offset Point, halign, valign string) (pos Point, ok bool) {
	ok = true
	x := offset.X
	switch halign {
	case "center":
		x += viewport.X/2 - size.X/2
	case "left", "none", "":
	case "right":
		x += viewport.X - size.X
	default:
		ok = false
	}

	// yUp is the distance from the bottom edge to the box's bottom edge.
	yUp := offset.Y
	switch valign {
	case "center":
		yUp += viewport.Y/2 - size.Y/2
	case "top":
		yUp += viewport.Y - size.Y
	case "bottom", "none", "":
	default:
		ok = false
	}
	return Point{X: x, Y: viewport.Y - yUp - size.Y}, ok
}

// RoundingForBox clamps a configured corner radius to half the shorter side.
// -1 means fully rounded.
func RoundingForBox(w, h float64, rounding int) int {
	half := int(math.Min(w, h) / 2)
	if rounding == -1 {
		return half
	}
	return clampInt(rounding, 0, half)
}

// RoundingForBorderBox is RoundingForBox for a border drawn thickness pixels
// outside a rounded box, so the border follows the inner curve.
func RoundingForBorderBox(w, h float64, rounding, thickness int) int {
	half := int(math.Min(w, h) / 2)
	switch rounding {
	case -1:
		return half
	case 0:
		return 0
	}
	return clampInt(rounding+thickness, 0, half)
}

// CoverBox scales a texture of size tex so it covers viewport, keeping the
// aspect ratio and centering the overflow.
func CoverBox(viewport, tex Point) Box {
	if tex.X <= 0 || tex.Y <= 0 {
		return Box{W: viewport.X, H: viewport.Y}
	}
	scale := math.Max(viewport.X/tex.X, viewport.Y/tex.Y)
	w, h := tex.X*scale, tex.Y*scale
	return Box{X: (viewport.X - w) / 2, Y: (viewport.Y - h) / 2, W: w, H: h}
}

// Grow expands b by px on every side.
func Grow(b Box, px float64) Box {
	return Box{X: b.X - px, Y: b.Y - px, W: b.W + 2*px, H: b.H + 2*px}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
