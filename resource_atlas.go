package sapling

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strconv"

	"github.com/hajimehoshi/ebiten/v2"
)

// AtlasType is the type tag of atlases persisted as a PNG data URI plus
// TexturePacker hash frames.
const AtlasType = "atlas-datauri"

// TextureRegion describes a sub-rectangle within an atlas canvas.
type TextureRegion struct {
	X, Y      int  // top-left corner within the canvas
	Width     int  // width of the stored rect (may differ from OriginalW if trimmed)
	Height    int  // height of the stored rect
	OriginalW int  // untrimmed width as authored
	OriginalH int  // untrimmed height as authored
	OffsetX   int  // horizontal trim offset
	OffsetY   int  // vertical trim offset
	Rotated   bool // stored 90 degrees clockwise
	missing   bool
}

// Missing reports whether the region is the magenta placeholder returned for
// an unknown name.
func (r TextureRegion) Missing() bool { return r.missing }

// Atlas is a canvas plus a map of named regions.
type Atlas struct {
	Canvas  *Canvas
	regions map[string]TextureRegion
}

// NewAtlas wraps canvas with no regions.
func NewAtlas(canvas *Canvas) *Atlas {
	return &Atlas{Canvas: canvas, regions: make(map[string]TextureRegion)}
}

// NewGridAtlas slices canvas into a row-major grid of cells named "0", "1",
// and so on. Partial cells on the right and bottom edges are skipped.
func NewGridAtlas(canvas *Canvas, cellW, cellH int) *Atlas {
	a := NewAtlas(canvas)
	if cellW <= 0 || cellH <= 0 {
		return a
	}
	n := 0
	for y := 0; y+cellH <= canvas.Height(); y += cellH {
		for x := 0; x+cellW <= canvas.Width(); x += cellW {
			a.SetRegion(strconv.Itoa(n), TextureRegion{
				X: x, Y: y, Width: cellW, Height: cellH,
				OriginalW: cellW, OriginalH: cellH,
			})
			n++
		}
	}
	return a
}

// SetRegion adds or replaces a named region.
func (a *Atlas) SetRegion(name string, r TextureRegion) {
	a.regions[name] = r
}

// Region returns the named region, or a 1x1 magenta placeholder region if the
// name is unknown.
func (a *Atlas) Region(name string) TextureRegion {
	if r, ok := a.regions[name]; ok {
		return r
	}
	return TextureRegion{Width: 1, Height: 1, OriginalW: 1, OriginalH: 1, missing: true}
}

// RegionNames returns the region names in sorted order.
func (a *Atlas) RegionNames() []string {
	names := make([]string, 0, len(a.regions))
	for n := range a.regions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// magenta placeholder singleton (no sync.Once, sapling is single-threaded)
var magentaImage *ebiten.Image

func ensureMagentaImage() *ebiten.Image {
	if magentaImage == nil {
		magentaImage = ebiten.NewImage(1, 1)
		magentaImage.Fill(colorMagenta.RGBA())
	}
	return magentaImage
}

// Clone returns an independent copy of the atlas and its canvas.
func (a *Atlas) Clone() *Atlas {
	c := &Atlas{regions: maps.Clone(a.regions)}
	if c.regions == nil {
		c.regions = make(map[string]TextureRegion)
	}
	if a.Canvas != nil {
		c.Canvas = a.Canvas.Clone()
	}
	return c
}

// --- JSON structure types ---

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame            jsonRect `json:"frame"`
	Rotated          bool     `json:"rotated"`
	Trimmed          bool     `json:"trimmed"`
	SpriteSourceSize jsonRect `json:"spriteSourceSize"`
	SourceSize       jsonSize `json:"sourceSize"`
}

type jsonAtlas struct {
	Image  string               `json:"image"`
	Frames map[string]jsonFrame `json:"frames"`
}

// ParseAtlasFrames reads TexturePacker hash-format frames into a.
func (a *Atlas) ParseAtlasFrames(raw []byte) error {
	var frames map[string]jsonFrame
	if err := json.Unmarshal(raw, &frames); err != nil {
		return fmt.Errorf("sapling: failed to parse atlas frames: %w", err)
	}
	for name, f := range frames {
		a.regions[name] = frameToRegion(f)
	}
	return nil
}

func frameToRegion(f jsonFrame) TextureRegion {
	return TextureRegion{
		X:         f.Frame.X,
		Y:         f.Frame.Y,
		Width:     f.Frame.W,
		Height:    f.Frame.H,
		OriginalW: f.SourceSize.W,
		OriginalH: f.SourceSize.H,
		OffsetX:   f.SpriteSourceSize.X,
		OffsetY:   f.SpriteSourceSize.Y,
		Rotated:   f.Rotated,
	}
}

func regionToFrame(r TextureRegion) jsonFrame {
	return jsonFrame{
		Frame:            jsonRect{X: r.X, Y: r.Y, W: r.Width, H: r.Height},
		Rotated:          r.Rotated,
		Trimmed:          r.Width != r.OriginalW || r.Height != r.OriginalH,
		SpriteSourceSize: jsonRect{X: r.OffsetX, Y: r.OffsetY, W: r.Width, H: r.Height},
		SourceSize:       jsonSize{W: r.OriginalW, H: r.OriginalH},
	}
}

// AtlasHandler returns the handler for AtlasType.
func AtlasHandler() Handler[*Atlas] {
	return Handler[*Atlas]{
		Load: func(_ context.Context, data json.RawMessage) (*Atlas, error) {
			var ja jsonAtlas
			if err := json.Unmarshal(data, &ja); err != nil {
				return nil, fmt.Errorf("sapling: failed to parse atlas JSON: %w", err)
			}
			canvas, err := CanvasFromDataURI(ja.Image)
			if err != nil {
				return nil, err
			}
			a := NewAtlas(canvas)
			for name, f := range ja.Frames {
				a.regions[name] = frameToRegion(f)
			}
			return a, nil
		},
		Copy: func(_ context.Context, a *Atlas) (*Atlas, error) {
			return a.Clone(), nil
		},
		Save: func(_ context.Context, a *Atlas) (json.RawMessage, error) {
			if a.Canvas == nil {
				return nil, fmt.Errorf("sapling: atlas has no canvas")
			}
			uri, err := a.Canvas.DataURI()
			if err != nil {
				return nil, err
			}
			ja := jsonAtlas{Image: uri, Frames: make(map[string]jsonFrame, len(a.regions))}
			for name, r := range a.regions {
				ja.Frames[name] = regionToFrame(r)
			}
			return json.Marshal(ja)
		},
	}
}
