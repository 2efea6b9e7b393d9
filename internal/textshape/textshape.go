// Package textshape rasterises label text into RGBA textures. It is called
// from gatherer workers, so parsed fonts are shared but faces are not.
package textshape

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

func ParseAlign(s string) Align {
	switch strings.ToLower(s) {
	case "center", "centre":
		return AlignCenter
	case "right":
		return AlignRight
	}
	return AlignLeft
}

type Style struct {
	// Font is a bundled family name ("Sans", "Mono", "Sans Bold", "Sans Italic")
	// or a path to a .ttf/.otf file.
	Font     string
	Size     float64
	Color    color.NRGBA
	Align    Align
	Vertical bool
}

const defaultSize = 16

var bundled = map[string][]byte{
	"":            goregular.TTF,
	"sans":        goregular.TTF,
	"sans-serif":  goregular.TTF,
	"go":          goregular.TTF,
	"mono":        gomono.TTF,
	"monospace":   gomono.TTF,
	"sans bold":   gobold.TTF,
	"bold":        gobold.TTF,
	"sans italic": goitalic.TTF,
	"italic":      goitalic.TTF,
}

type parsedFont struct {
	ot *opentype.Font
	tt *truetype.Font
}

type Shaper struct {
	fs afero.Fs

	mu    sync.Mutex
	fonts map[string]parsedFont
}

func NewShaper(fs afero.Fs) *Shaper {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Shaper{fs: fs, fonts: map[string]parsedFont{}}
}

func (s *Shaper) load(name string) (parsedFont, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fonts[key]; ok {
		return f, nil
	}

	data, isBundled := bundled[key]
	if !isBundled {
		if !strings.ContainsRune(name, filepath.Separator) {
			data = goregular.TTF
		} else {
			b, err := afero.ReadFile(s.fs, name)
			if err != nil {
				return parsedFont{}, fmt.Errorf("read font %s: %w", name, err)
			}
			data = b
		}
	}

	var f parsedFont
	if strings.EqualFold(filepath.Ext(name), ".ttf") {
		tt, err := truetype.Parse(data)
		if err != nil {
			return parsedFont{}, fmt.Errorf("parse truetype %s: %w", name, err)
		}
		f.tt = tt
	} else {
		ot, err := opentype.Parse(data)
		if err != nil {
			return parsedFont{}, fmt.Errorf("parse opentype %s: %w", name, err)
		}
		f.ot = ot
	}
	s.fonts[key] = f
	return f, nil
}

func (s *Shaper) face(name string, size float64) (font.Face, error) {
	f, err := s.load(name)
	if err != nil {
		return nil, err
	}
	if f.tt != nil {
		return truetype.NewFace(f.tt, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull}), nil
	}
	return opentype.NewFace(f.ot, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// SplitLines splits on newlines and <br/> tags.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br>", "\n")
	return strings.Split(text, "\n")
}

// Shape renders text into a tightly sized texture.
func (s *Shaper) Shape(text string, st Style) (*image.RGBA, error) {
	size := st.Size
	if size <= 0 {
		size = defaultSize
	}
	face, err := s.face(st.Font, size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	lines := SplitLines(text)
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	if lineHeight <= 0 {
		lineHeight = (metrics.Ascent + metrics.Descent).Ceil()
	}

	widths := make([]int, len(lines))
	maxWidth := 1
	for i, line := range lines {
		widths[i] = font.MeasureString(face, line).Ceil()
		if widths[i] > maxWidth {
			maxWidth = widths[i]
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, maxWidth, lineHeight*len(lines)))
	d := &font.Drawer{Dst: img, Src: image.NewUniform(st.Color), Face: face}
	ascent := metrics.Ascent.Ceil()
	for i, line := range lines {
		x := 0
		switch st.Align {
		case AlignCenter:
			x = (maxWidth - widths[i]) / 2
		case AlignRight:
			x = maxWidth - widths[i]
		}
		d.Dot = fixed.P(x, i*lineHeight+ascent)
		d.DrawString(line)
	}

	if st.Vertical {
		return rotate90(img), nil
	}
	return img, nil
}

// rotate90 turns src a quarter clockwise.
func rotate90(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetRGBA(b.Dy()-1-y, x, src.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
