package sapling

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// RenderTexture is an offscreen image that is kept between frames and
// recreated only when its size changes. The dialogue panel is composed in
// one and then drawn to the screen with its fade applied.
type RenderTexture struct {
	image *ebiten.Image
	w, h  int
}

// NewRenderTexture allocates a w by h texture.
func NewRenderTexture(w, h int) *RenderTexture {
	return &RenderTexture{image: ebiten.NewImage(w, h), w: w, h: h}
}

// Image returns the underlying image.
func (rt *RenderTexture) Image() *ebiten.Image { return rt.image }

// Width returns the texture width in pixels.
func (rt *RenderTexture) Width() int { return rt.w }

// Height returns the texture height in pixels.
func (rt *RenderTexture) Height() int { return rt.h }

// Fits reports whether the texture is w by h and still allocated.
func (rt *RenderTexture) Fits(w, h int) bool {
	return rt != nil && rt.image != nil && rt.w == w && rt.h == h
}

// Clear fills the texture with transparent black.
func (rt *RenderTexture) Clear() { rt.image.Clear() }

// Fill fills the texture with c.
func (rt *RenderTexture) Fill(c Color) { rt.image.Fill(c.RGBA()) }

// DrawTo composites the texture onto dst at (x, y) with alpha applied.
func (rt *RenderTexture) DrawTo(dst *ebiten.Image, x, y, alpha float64) {
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleAlpha(float32(alpha))
	dst.DrawImage(rt.image, &op)
}

// Dispose releases the image. The texture must not be used afterwards.
func (rt *RenderTexture) Dispose() {
	if rt.image != nil {
		rt.image.Deallocate()
		rt.image = nil
	}
}

// DrawOpts positions, scales and tints a drawn region.
type DrawOpts struct {
	X, Y float64
	// ScaleX and ScaleY default to 1 when zero.
	ScaleX, ScaleY float64
	// Color multiplies the source. The zero value means no tint.
	Color Color
	// Alpha defaults to 1 when zero.
	Alpha float64
}

// DrawRegion draws a region of atlas onto dst. A missing region, or an
// atlas without a canvas, draws the magenta placeholder at the region's
// authored size.
func DrawRegion(dst *ebiten.Image, atlas *Atlas, region TextureRegion, opts DrawOpts) {
	var op ebiten.DrawImageOptions
	if region.Missing() || atlas == nil || atlas.Canvas == nil {
		w, h := float64(region.OriginalW), float64(region.OriginalH)
		if w == 0 || h == 0 {
			w, h = 1, 1
		}
		op.GeoM.Scale(w, h)
		applyDrawOpts(&op, opts, 0, 0)
		dst.DrawImage(ensureMagentaImage(), &op)
		return
	}

	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	if region.Rotated {
		// Stored clockwise, so the packed rect is transposed.
		rect = image.Rect(region.X, region.Y, region.X+region.Height, region.Y+region.Width)
		op.GeoM.Rotate(-math.Pi / 2)
		op.GeoM.Translate(0, float64(region.Width))
	}
	sub := atlas.Canvas.Image().SubImage(rect).(*ebiten.Image)
	applyDrawOpts(&op, opts, float64(region.OffsetX), float64(region.OffsetY))
	dst.DrawImage(sub, &op)
}

// applyDrawOpts appends the trim offset, scale and position to op and sets
// a premultiplied color scale.
func applyDrawOpts(op *ebiten.DrawImageOptions, opts DrawOpts, offsetX, offsetY float64) {
	sx, sy := opts.ScaleX, opts.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	op.GeoM.Translate(offsetX, offsetY)
	op.GeoM.Scale(sx, sy)
	op.GeoM.Translate(opts.X, opts.Y)

	a := opts.Alpha
	if a == 0 {
		a = 1
	}
	c := opts.Color
	if c == (Color{}) {
		c = ColorWhite
	}
	a *= c.A
	op.ColorScale.Scale(float32(c.R*a), float32(c.G*a), float32(c.B*a), float32(a))
}
