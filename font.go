package sapling

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"
)

// Font measures and draws single glyphs for dialogue layout.
type Font interface {
	Advance(r rune) float64
	LineHeight() float64
	DrawGlyph(dst *ebiten.Image, r rune, x, y float64, c Color)
}

// Kerner is implemented by fonts with pair kerning.
type Kerner interface {
	Kern(prev, r rune) float64
}

// --- MonoFont ---

// MonoFont is a fixed-cell font. It needs no assets, which makes it the
// default for headless pagination and tests. Glyphs are drawn with the
// ebitenutil debug face.
type MonoFont struct {
	Width, Height float64

	scratch *ebiten.Image
}

// DefaultMonoFont returns a MonoFont matching the ebitenutil debug face cell.
func DefaultMonoFont() *MonoFont {
	return &MonoFont{Width: 6, Height: 16}
}

// Advance returns the cell width for every rune.
func (f *MonoFont) Advance(rune) float64 { return f.Width }

// LineHeight returns the cell height.
func (f *MonoFont) LineHeight() float64 { return f.Height }

// DrawGlyph draws r with its cell's top-left at (x, y).
func (f *MonoFont) DrawGlyph(dst *ebiten.Image, r rune, x, y float64, c Color) {
	if r == ' ' {
		return
	}
	// Debug glyphs are 6x16; the scratch image holds one at a time.
	if f.scratch == nil {
		f.scratch = ebiten.NewImage(6, 16)
	}
	f.scratch.Clear()
	ebitenutil.DebugPrintAt(f.scratch, string(r), 0, 0)
	var op ebiten.DrawImageOptions
	op.GeoM.Scale(f.Width/6, f.Height/16)
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c.RGBA())
	dst.DrawImage(f.scratch, &op)
}

// --- FaceFont ---

// FaceFont draws glyphs with an Ebitengine text/v2 face.
type FaceFont struct {
	face text.Face
	lh   float64
}

// NewFaceFont wraps face.
func NewFaceFont(face text.Face) *FaceFont {
	m := face.Metrics()
	return &FaceFont{face: face, lh: m.HAscent + m.HDescent + m.HLineGap}
}

// DefaultFaceFont returns a FaceFont over basicfont's 7x13 bitmap face.
func DefaultFaceFont() *FaceFont {
	return NewFaceFont(text.NewGoXFace(basicfont.Face7x13))
}

// LoadTTFFont loads a TrueType font from raw TTF/OTF data at the given size.
func LoadTTFFont(ttfData []byte, size float64) (*FaceFont, error) {
	source, err := text.NewGoTextFaceSource(bytes.NewReader(ttfData))
	if err != nil {
		return nil, fmt.Errorf("sapling: failed to parse TTF data: %w", err)
	}
	return NewFaceFont(&text.GoTextFace{Source: source, Size: size}), nil
}

// Advance returns the horizontal advance of r.
func (f *FaceFont) Advance(r rune) float64 {
	return text.Advance(string(r), f.face)
}

// LineHeight returns the vertical distance between baselines.
func (f *FaceFont) LineHeight() float64 { return f.lh }

// Face returns the wrapped face.
func (f *FaceFont) Face() text.Face { return f.face }

// DrawGlyph draws r with its line's top-left at (x, y).
func (f *FaceFont) DrawGlyph(dst *ebiten.Image, r rune, x, y float64, c Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c.RGBA())
	text.Draw(dst, string(r), f.face, op)
}

// BitmapFont renders text from a pre-rasterized glyph sheet described in
// BMFont text format. Only single-page fonts are supported.
type BitmapFont struct {
	lineHeight float64
	page       *ebiten.Image
	glyphs     map[rune]bitmapGlyph
	kerning    map[[2]rune]float64
}

type bitmapGlyph struct {
	src     image.Rectangle
	offset  image.Point
	advance float64
}

// LoadBitmapFont parses BMFont .fnt text data. page is the glyph sheet; it
// may be nil when the font is only used for measurement.
func LoadBitmapFont(fntData []byte, page *ebiten.Image) (*BitmapFont, error) {
	f := &BitmapFont{
		page:    page,
		glyphs:  make(map[rune]bitmapGlyph),
		kerning: make(map[[2]rune]float64),
	}
	for _, line := range strings.Split(string(fntData), "\n") {
		tag, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
		a := parseFntAttrs(rest)
		switch tag {
		case "common":
			f.lineHeight = float64(a.int("lineHeight"))
		case "char":
			x, y := a.int("x"), a.int("y")
			f.glyphs[rune(a.int("id"))] = bitmapGlyph{
				src:     image.Rect(x, y, x+a.int("width"), y+a.int("height")),
				offset:  image.Pt(a.int("xoffset"), a.int("yoffset")),
				advance: float64(a.int("xadvance")),
			}
		case "kerning":
			pair := [2]rune{rune(a.int("first")), rune(a.int("second"))}
			f.kerning[pair] = float64(a.int("amount"))
		}
	}
	if f.lineHeight <= 0 {
		return nil, fmt.Errorf("sapling: bitmap font: missing common lineHeight")
	}
	if len(f.glyphs) == 0 {
		return nil, fmt.Errorf("sapling: bitmap font: no char definitions")
	}
	return f, nil
}

// SetPage sets the glyph sheet used by DrawGlyph.
func (f *BitmapFont) SetPage(page *ebiten.Image) { f.page = page }

// LineHeight returns the font's line spacing.
func (f *BitmapFont) LineHeight() float64 { return f.lineHeight }

// Advance returns the horizontal advance of r, or zero for unknown runes.
func (f *BitmapFont) Advance(r rune) float64 { return f.glyphs[r].advance }

// Kern returns the adjustment applied between prev and r.
func (f *BitmapFont) Kern(prev, r rune) float64 { return f.kerning[[2]rune{prev, r}] }

// DrawGlyph draws r with its line's top-left at (x, y).
func (f *BitmapFont) DrawGlyph(dst *ebiten.Image, r rune, x, y float64, c Color) {
	g, ok := f.glyphs[r]
	if !ok || f.page == nil || g.src.Empty() {
		return
	}
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(x+float64(g.offset.X), y+float64(g.offset.Y))
	op.ColorScale.ScaleWithColor(c.RGBA())
	dst.DrawImage(f.page.SubImage(g.src).(*ebiten.Image), &op)
}

// fntAttrs holds the key=value pairs of one .fnt line.
type fntAttrs map[string]string

func parseFntAttrs(s string) fntAttrs {
	a := make(fntAttrs)
	for _, part := range strings.Fields(s) {
		if k, v, ok := strings.Cut(part, "="); ok {
			a[k] = strings.Trim(v, `"`)
		}
	}
	return a
}

func (a fntAttrs) int(key string) int {
	n, _ := strconv.Atoi(a[key])
	return n
}
