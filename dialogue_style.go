package sapling

import (
	"math"
	"math/rand/v2"
)

// StyleFrame is what a GlyphStyle sees for one glyph on one update.
type StyleFrame struct {
	// Time is the seconds since the page was installed.
	Time float64
	// Value is the style's value on the glyph, empty for flags.
	Value string
	// Rand is the player's seeded source.
	Rand *rand.Rand
}

// GlyphStyle adjusts a glyph's Offset or Color. It runs on every update for
// every glyph carrying its tag, after Offset has been reset to zero and Color
// to the glyph's base color.
type GlyphStyle func(g *Glyph, f StyleFrame)

// RegisterGlyphStyle adds or replaces the handler for tag. Styles run in
// registration order.
func (p *DialoguePlayer) RegisterGlyphStyle(tag string, fn GlyphStyle) {
	if _, ok := p.styles[tag]; !ok {
		p.styleOrder = append(p.styleOrder, tag)
	}
	p.styles[tag] = fn
}

func registerDefaultStyles(p *DialoguePlayer) {
	p.RegisterGlyphStyle(StyleWavy, wavyStyle)
	p.RegisterGlyphStyle(StyleRainbow, rainbowStyle)
	p.RegisterGlyphStyle(StyleShake, shakeStyle)
}

// Tuning for the built-in styles.
const (
	wavyAmplitude  = 2.0
	wavySpeed      = 5.0
	wavyPhase      = 0.5
	rainbowSpeed   = 180.0
	rainbowSpread  = 20.0
	shakeMagnitude = 1.0
)

func wavyStyle(g *Glyph, f StyleFrame) {
	g.Offset.Y += math.Sin(f.Time*wavySpeed+float64(g.Index)*wavyPhase) * wavyAmplitude
}

func rainbowStyle(g *Glyph, f StyleFrame) {
	c := ColorFromHSV(f.Time*rainbowSpeed+float64(g.Index)*rainbowSpread, 1, 1)
	c.A = g.Color.A
	g.Color = c
}

func shakeStyle(g *Glyph, f StyleFrame) {
	g.Offset.X += (f.Rand.Float64()*2 - 1) * shakeMagnitude
	g.Offset.Y += (f.Rand.Float64()*2 - 1) * shakeMagnitude
}

func (p *DialoguePlayer) applyStyles() {
	if p.current == nil {
		return
	}
	for i, g := range p.current.Glyphs {
		g.Offset = Vec2{}
		if i < len(p.baseColors) {
			g.Color = p.baseColors[i]
		}
		if len(g.Styles) == 0 {
			continue
		}
		for _, tag := range p.styleOrder {
			v, ok := g.Styles[tag]
			if !ok {
				continue
			}
			p.styles[tag](g, StyleFrame{Time: p.pageTime, Value: v, Rand: p.rng})
		}
	}
}
