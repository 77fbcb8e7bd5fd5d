package sapling

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// CanvasType is the type tag of canvases persisted as PNG data URIs.
const CanvasType = "canvas-datauri"

const pngDataURIPrefix = "data:image/png;base64,"

// Canvas is an editable pixel buffer. Pixels live in CPU memory; the GPU
// image used for drawing is built on first use and rebuilt after MarkDirty.
type Canvas struct {
	pix   *image.NRGBA
	img   *ebiten.Image
	dirty bool
}

// NewCanvas creates a transparent canvas of the given size.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{pix: image.NewNRGBA(image.Rect(0, 0, w, h))}
}

// NewCanvasFromImage copies src into a new canvas whose origin is (0, 0).
func NewCanvasFromImage(src image.Image) *Canvas {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		// Row copy keeps straight-alpha values exact.
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], n.Pix[n.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return &Canvas{pix: dst}
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Canvas{pix: dst}
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.pix.Rect.Dx() }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.pix.Rect.Dy() }

// Pixels returns the backing pixel buffer. Call MarkDirty after writing to it.
func (c *Canvas) Pixels() *image.NRGBA { return c.pix }

// At returns the color at (x, y). Out-of-range reads are transparent.
func (c *Canvas) At(x, y int) Color {
	if !(image.Point{x, y}).In(c.pix.Rect) {
		return Color{}
	}
	return ColorFromNRGBA(c.pix.NRGBAAt(x, y))
}

// Set writes one pixel. Out-of-range writes are ignored.
func (c *Canvas) Set(x, y int, col Color) {
	if !(image.Point{x, y}).In(c.pix.Rect) {
		return
	}
	c.pix.SetNRGBA(x, y, col.NRGBA())
	c.dirty = true
}

// Fill sets every pixel to col.
func (c *Canvas) Fill(col Color) {
	n := col.NRGBA()
	for i := 0; i < len(c.pix.Pix); i += 4 {
		c.pix.Pix[i+0] = n.R
		c.pix.Pix[i+1] = n.G
		c.pix.Pix[i+2] = n.B
		c.pix.Pix[i+3] = n.A
	}
	c.dirty = true
}

// MarkDirty schedules the GPU image for re-upload.
func (c *Canvas) MarkDirty() { c.dirty = true }

// Image returns the canvas as an ebiten image, uploading pending changes.
func (c *Canvas) Image() *ebiten.Image {
	if c.img == nil {
		c.img = ebiten.NewImage(c.Width(), c.Height())
		c.dirty = true
	}
	if c.dirty {
		// ebiten expects premultiplied alpha.
		rgba := image.NewRGBA(c.pix.Rect)
		draw.Draw(rgba, rgba.Bounds(), c.pix, image.Point{}, draw.Src)
		c.img.WritePixels(rgba.Pix)
		c.dirty = false
	}
	return c.img
}

// Clone returns an independent copy. The GPU image is not shared.
func (c *Canvas) Clone() *Canvas {
	pix := image.NewNRGBA(c.pix.Rect)
	copy(pix.Pix, c.pix.Pix)
	return &Canvas{pix: pix}
}

// Equal reports whether both canvases have the same size and pixels.
func (c *Canvas) Equal(o *Canvas) bool {
	return c.pix.Rect == o.pix.Rect && bytes.Equal(c.pix.Pix, o.pix.Pix)
}

// DataURI encodes the canvas as a PNG data URI.
func (c *Canvas) DataURI() (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.pix); err != nil {
		return "", fmt.Errorf("sapling: encode canvas: %w", err)
	}
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CanvasFromDataURI decodes a PNG data URI.
func CanvasFromDataURI(uri string) (*Canvas, error) {
	if !strings.HasPrefix(uri, pngDataURIPrefix) {
		return nil, fmt.Errorf("sapling: canvas data is not a png data uri")
	}
	raw, err := base64.StdEncoding.DecodeString(uri[len(pngDataURIPrefix):])
	if err != nil {
		return nil, fmt.Errorf("sapling: decode canvas base64: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("sapling: decode canvas png: %w", err)
	}
	return NewCanvasFromImage(img), nil
}

// CanvasHandler returns the handler for CanvasType.
func CanvasHandler() Handler[*Canvas] {
	return Handler[*Canvas]{
		Load: func(_ context.Context, data json.RawMessage) (*Canvas, error) {
			var uri string
			if err := json.Unmarshal(data, &uri); err != nil {
				return nil, fmt.Errorf("sapling: canvas data: %w", err)
			}
			return CanvasFromDataURI(uri)
		},
		Copy: func(_ context.Context, c *Canvas) (*Canvas, error) {
			return c.Clone(), nil
		},
		Save: func(_ context.Context, c *Canvas) (json.RawMessage, error) {
			uri, err := c.DataURI()
			if err != nil {
				return nil, err
			}
			return json.Marshal(uri)
		},
	}
}
