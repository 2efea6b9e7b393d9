package textshape

import (
	"image"
	"image/color"
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/image/font/gofont/goregular"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

func inkColumns(img *image.RGBA) (first, last int) {
	first, last = -1, -1
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if img.RGBAAt(x, y).A > 0 {
				if first < 0 {
					first = x
				}
				last = x
				break
			}
		}
	}
	return first, last
}

func TestShape_SingleLine(t *testing.T) {
	s := NewShaper(afero.NewMemMapFs())
	img, err := s.Shape("Hello", Style{Size: 24, Color: white})
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if img.Bounds().Dx() < 24 || img.Bounds().Dy() < 20 {
		t.Errorf("bounds = %v, too small for 24pt text", img.Bounds())
	}
	if first, _ := inkColumns(img); first < 0 {
		t.Error("no glyph pixels drawn")
	}
}

func TestShape_MultiLineAndVertical(t *testing.T) {
	s := NewShaper(afero.NewMemMapFs())
	one, err := s.Shape("ab", Style{Size: 20, Color: white})
	if err != nil {
		t.Fatal(err)
	}
	two, err := s.Shape("ab<br/>ab", Style{Size: 20, Color: white})
	if err != nil {
		t.Fatal(err)
	}
	if two.Bounds().Dy() != 2*one.Bounds().Dy() {
		t.Errorf("two lines height = %d, want %d", two.Bounds().Dy(), 2*one.Bounds().Dy())
	}

	vert, err := s.Shape("ab", Style{Size: 20, Color: white, Vertical: true})
	if err != nil {
		t.Fatal(err)
	}
	if vert.Bounds().Dx() != one.Bounds().Dy() || vert.Bounds().Dy() != one.Bounds().Dx() {
		t.Errorf("vertical bounds = %v, want transpose of %v", vert.Bounds(), one.Bounds())
	}
}

func TestShape_RightAlign(t *testing.T) {
	s := NewShaper(afero.NewMemMapFs())
	img, err := s.Shape("i\nWWWWWW", Style{Size: 20, Color: white, Align: AlignRight})
	if err != nil {
		t.Fatal(err)
	}
	lineHeight := img.Bounds().Dy() / 2
	top := img.SubImage(image.Rect(0, 0, img.Bounds().Dx(), lineHeight)).(*image.RGBA)
	first, _ := inkColumns(top)
	if first < img.Bounds().Dx()/2 {
		t.Errorf("short right-aligned line starts at x=%d of %d", first, img.Bounds().Dx())
	}
}

func TestShape_FontFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/fonts/Go-Regular.ttf", goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewShaper(fs)
	if _, err := s.Shape("x", Style{Font: "/fonts/Go-Regular.ttf", Size: 12, Color: white}); err != nil {
		t.Errorf("truetype file: %v", err)
	}
	if _, err := s.Shape("x", Style{Font: "/fonts/missing.otf", Size: 12, Color: white}); err == nil {
		t.Error("missing font file did not fail")
	}
}

func TestParseAlign(t *testing.T) {
	for in, want := range map[string]Align{"left": AlignLeft, "Center": AlignCenter, "right": AlignRight, "": AlignLeft} {
		if got := ParseAlign(in); got != want {
			t.Errorf("ParseAlign(%q) = %v, want %v", in, got, want)
		}
	}
}
