package render

import (
	"image"
	"image/color"
)

// Defaults for outputs whose size is not known up front.
var (
	// ClearColor is what every frame starts from before widgets draw.
	ClearColor = color.NRGBA{A: 0xFF}

	// DefaultViewport is the logical output size of the preview binary.
	DefaultViewport = image.Pt(1920, 1080)
)
