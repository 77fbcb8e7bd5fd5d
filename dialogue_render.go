package sapling

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// PanelStyle describes the fixed-size box dialogue is drawn into.
type PanelStyle struct {
	Width, Height int
	Padding       float64
	Background    Color
	// Indicator colors the continue and stop markers.
	Indicator Color
	// FadeIn is how long the panel takes to appear, in seconds.
	FadeIn float32
}

// DefaultPanelStyle returns a 208x48 black panel sized for two lines of the
// default mono font.
func DefaultPanelStyle() PanelStyle {
	return PanelStyle{
		Width:      208,
		Height:     48,
		Padding:    8,
		Background: ColorBlack,
		Indicator:  ColorWhite,
		FadeIn:     0.15,
	}
}

// CommandKind identifies what a GlyphCommand draws.
type CommandKind uint8

const (
	// CommandGlyph draws one character.
	CommandGlyph CommandKind = iota
	// CommandUnderline draws a one-pixel bar under a glyph.
	CommandUnderline
	// CommandContinue marks that more pages are queued.
	CommandContinue
	// CommandStop marks the last page.
	CommandStop
)

// GlyphCommand is one draw operation in panel-local pixels.
type GlyphCommand struct {
	Kind  CommandKind
	Char  rune
	X, Y  float64
	Width float64
	Color Color
}

// indicatorSize is the width and height of the continue and stop markers.
const indicatorSize = 5

// DialogueRenderer draws a DialoguePlayer's current page into a panel.
type DialogueRenderer struct {
	Panel PanelStyle
	Font  Font

	rt      *RenderTexture
	fade    *gween.Tween
	alpha   float64
	bob     *gween.Tween
	bobUp   bool
	bobY    float64
	showing bool
}

// NewDialogueRenderer creates a renderer. A nil font uses DefaultMonoFont;
// it should match the font the player paginates with.
func NewDialogueRenderer(panel PanelStyle, font Font) *DialogueRenderer {
	if font == nil {
		font = DefaultMonoFont()
	}
	return &DialogueRenderer{Panel: panel, Font: font}
}

// Layout returns the page budget that fits inside the panel.
func (r *DialogueRenderer) Layout() PageLayout {
	lines := int((float64(r.Panel.Height) - 2*r.Panel.Padding) / r.Font.LineHeight())
	if lines < 1 {
		lines = 1
	}
	return PageLayout{
		Font:  r.Font,
		Width: float64(r.Panel.Width) - 2*r.Panel.Padding,
		Lines: lines,
	}
}

// Alpha returns the current panel opacity.
func (r *DialogueRenderer) Alpha() float64 { return r.alpha }

// Update advances the panel fade and the indicator bob. Call it once per
// frame alongside DialoguePlayer.Update.
func (r *DialogueRenderer) Update(p *DialoguePlayer, dt float64) {
	if p.CurrentPage() == nil {
		r.showing = false
		r.fade = nil
		r.alpha = 0
		return
	}
	if !r.showing {
		r.showing = true
		r.fade = gween.New(0, 1, r.Panel.FadeIn, ease.OutQuad)
		r.alpha = 0
	}
	if r.fade != nil {
		v, done := r.fade.Update(float32(dt))
		r.alpha = float64(v)
		if done {
			r.fade = nil
			r.alpha = 1
		}
	}

	if r.bob == nil {
		r.bob = gween.New(0, 2, 0.4, ease.InOutSine)
		r.bobUp = true
	}
	v, done := r.bob.Update(float32(dt))
	r.bobY = float64(v)
	if done {
		// Ping-pong between 0 and 2 pixels.
		if r.bobUp {
			r.bob = gween.New(2, 0, 0.4, ease.InOutSine)
		} else {
			r.bob = gween.New(0, 2, 0.4, ease.InOutSine)
		}
		r.bobUp = !r.bobUp
	}
}

// Commands returns the draw operations for p's current page without
// drawing anything. Hidden glyphs are omitted. The indicator appears once
// the page is fully revealed.
func (r *DialogueRenderer) Commands(p *DialoguePlayer) []GlyphCommand {
	page := p.CurrentPage()
	if page == nil {
		return nil
	}
	pad := r.Panel.Padding
	lh := r.Font.LineHeight()
	cmds := make([]GlyphCommand, 0, len(page.Glyphs)+1)
	for _, g := range page.Glyphs {
		if g.Hidden {
			continue
		}
		x := pad + g.Pos.X + g.Offset.X
		y := pad + g.Pos.Y + g.Offset.Y
		if g.Char != ' ' {
			cmds = append(cmds, GlyphCommand{Kind: CommandGlyph, Char: g.Char, X: x, Y: y, Color: g.Color})
		}
		if g.HasStyle(StyleUnderline) {
			cmds = append(cmds, GlyphCommand{
				Kind:  CommandUnderline,
				X:     pad + g.Pos.X,
				Y:     pad + g.Pos.Y + lh - 1,
				Width: r.Font.Advance(g.Char),
				Color: g.Color,
			})
		}
	}
	if p.State() == DialoguePageComplete {
		kind := CommandStop
		if p.QueuedPages() > 0 {
			kind = CommandContinue
		}
		cmds = append(cmds, GlyphCommand{
			Kind:  kind,
			X:     float64(r.Panel.Width) - pad - indicatorSize,
			Y:     float64(r.Panel.Height) - pad - indicatorSize + r.bobY,
			Width: indicatorSize,
			Color: r.Panel.Indicator,
		})
	}
	return cmds
}

// Draw renders the panel for p onto dst at (x, y). Nothing is drawn while
// the player is idle.
func (r *DialogueRenderer) Draw(dst *ebiten.Image, p *DialoguePlayer, x, y float64) {
	if p.CurrentPage() == nil {
		return
	}
	if !r.rt.Fits(r.Panel.Width, r.Panel.Height) {
		if r.rt != nil {
			r.rt.Dispose()
		}
		r.rt = NewRenderTexture(r.Panel.Width, r.Panel.Height)
	}
	r.rt.Fill(r.Panel.Background)
	img := r.rt.Image()
	for _, c := range r.Commands(p) {
		switch c.Kind {
		case CommandGlyph:
			r.Font.DrawGlyph(img, c.Char, c.X, c.Y, c.Color)
		case CommandUnderline:
			vector.DrawFilledRect(img, float32(c.X), float32(c.Y), float32(c.Width), 1, c.Color.RGBA(), false)
		case CommandStop:
			vector.DrawFilledRect(img, float32(c.X), float32(c.Y), float32(c.Width), float32(c.Width), c.Color.RGBA(), false)
		case CommandContinue:
			// A downward triangle built from shrinking rows.
			for row := 0; row < 3; row++ {
				w := c.Width - float64(row*2)
				vector.DrawFilledRect(img, float32(c.X+float64(row)), float32(c.Y+float64(row)), float32(w), 1, c.Color.RGBA(), false)
			}
		}
	}
	alpha := r.alpha
	if !r.showing {
		// Update was never called; draw without the fade.
		alpha = 1
	}
	if alpha <= 0 {
		return
	}
	r.rt.DrawTo(dst, x, y, alpha)
}
