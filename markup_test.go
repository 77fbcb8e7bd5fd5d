package sapling

import (
	"testing"
)

func glyphText(gs []Glyph) string {
	rs := make([]rune, len(gs))
	for i, g := range gs {
		rs[i] = g.Char
	}
	return string(rs)
}

func TestParseMarkupShakeShorthand(t *testing.T) {
	gs := ParseMarkup("##hello##")
	if got := glyphText(gs); got != "hello" {
		t.Fatalf("text = %q, want hello", got)
	}
	for i, g := range gs {
		if !g.HasStyle(StyleShake) {
			t.Errorf("glyph %d (%q) missing shk", i, g.Char)
		}
		if !g.Hidden {
			t.Errorf("glyph %d should start hidden", i)
		}
	}
}

func TestParseMarkupShorthandStyles(t *testing.T) {
	tests := []struct {
		in    string
		style string
		text  string
	}{
		{"~~wave~~", StyleWavy, "wave"},
		{"==gay==", StyleRainbow, "gay"},
		{"__line__", StyleUnderline, "line"},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			gs := ParseMarkup(tt.in)
			if got := glyphText(gs); got != tt.text {
				t.Fatalf("text = %q, want %q", got, tt.text)
			}
			for _, g := range gs {
				if !g.HasStyle(tt.style) {
					t.Fatalf("glyph %q missing %s", g.Char, tt.style)
				}
			}
		})
	}
}

func TestParseMarkupUnmatchedIsLiteral(t *testing.T) {
	tests := []string{
		"##hello",
		"hello##",
		"a ## b",
		"~~ok",
		"{oops",
		"{not a tag}",
		"{+}",
		"{=x}",
		"####",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			gs := ParseMarkup(in)
			if got := glyphText(gs); got != in {
				t.Errorf("text = %q, want literal %q", got, in)
			}
			for _, g := range gs {
				if len(g.Styles) != 0 {
					t.Errorf("glyph %q has styles %v", g.Char, g.Styles)
				}
			}
		})
	}
}

func TestParseMarkupMixed(t *testing.T) {
	gs := ParseMarkup("a ##b## ~~c~~ ##d")
	if got := glyphText(gs); got != "a b c ##d" {
		t.Fatalf("text = %q", got)
	}
	if !gs[2].HasStyle(StyleShake) {
		t.Error("b should shake")
	}
	if !gs[4].HasStyle(StyleWavy) {
		t.Error("c should wave")
	}
	if gs[0].HasStyle(StyleShake) || gs[6].HasStyle(StyleShake) {
		t.Error("literal text picked up a style")
	}
}

func TestParseMarkupTags(t *testing.T) {
	gs := ParseMarkup("{+wvy}a{clr=#ff0000}b{-wvy}c{-clr}d")
	if got := glyphText(gs); got != "abcd" {
		t.Fatalf("text = %q", got)
	}
	if !gs[0].HasStyle(StyleWavy) || !gs[1].HasStyle(StyleWavy) || gs[2].HasStyle(StyleWavy) {
		t.Error("wvy push/pop wrong")
	}
	red := Color{1, 0, 0, 1}
	if gs[1].Color != red || gs[2].Color != red {
		t.Errorf("clr not applied: %v %v", gs[1].Color, gs[2].Color)
	}
	if gs[3].Color != ColorWhite {
		t.Errorf("clr not reset: %v", gs[3].Color)
	}
	if gs[0].Styles["wvy"] != "" {
		t.Error("flag style should have empty value")
	}
}

func TestParseMarkupDelay(t *testing.T) {
	gs := ParseMarkup("a{delay=0.2}b{-delay}c{delay=bad}d")
	if gs[0].Delay != 0 || gs[1].Delay != 0.2 || gs[2].Delay != 0 || gs[3].Delay != 0 {
		t.Errorf("delays = %v %v %v %v", gs[0].Delay, gs[1].Delay, gs[2].Delay, gs[3].Delay)
	}
}

func TestParseMarkupBreaks(t *testing.T) {
	gs := ParseMarkup("a{br}b{pg}c")
	if len(gs) != 5 {
		t.Fatalf("len = %d, want 5", len(gs))
	}
	if gs[1].Char != lineBreakRune || gs[3].Char != pageBreakRune {
		t.Errorf("control glyphs = %q %q", gs[1].Char, gs[3].Char)
	}
}

func TestParseMarkupEmpty(t *testing.T) {
	if gs := ParseMarkup(""); len(gs) != 0 {
		t.Errorf("len = %d, want 0", len(gs))
	}
}

func TestExpandShorthand(t *testing.T) {
	got := ExpandShorthand("##a## and __b__")
	want := "{+shk}a{-shk} and {+und}b{-und}"
	if got != want {
		t.Errorf("ExpandShorthand = %q, want %q", got, want)
	}
}

func TestExpandShorthandAcrossLines(t *testing.T) {
	got := ExpandShorthand("##a\nb## ~~c\n\nd~~")
	want := "{+shk}a\nb{-shk} {+wvy}c\n\nd{-wvy}"
	if got != want {
		t.Errorf("ExpandShorthand = %q, want %q", got, want)
	}
	for _, g := range ParseMarkup("##a\nb##") {
		if g.Char != '\n' && !g.HasStyle(StyleShake) {
			t.Errorf("glyph %q missing shk", g.Char)
		}
	}
}
