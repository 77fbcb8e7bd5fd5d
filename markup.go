package sapling

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Style tags produced by the paired delimiter shorthand.
const (
	StyleShake     = "shk"
	StyleWavy      = "wvy"
	StyleRainbow   = "rbw"
	StyleUnderline = "und"
	StyleColor     = "clr"
	StyleDelay     = "delay"
)

// Control glyphs emitted by {br} and {pg}. Paginate consumes them; they never
// appear on a page.
const (
	lineBreakRune = '\n'
	pageBreakRune = '\f'
)

// Glyph is one character of dialogue with its style state. Paginate fills
// in Pos; the player updates Hidden, Offset and Color as time passes.
type Glyph struct {
	Char rune
	// Styles maps active style tags to their values. Flags such as shk have
	// an empty value. The map is shared between glyphs and must not be
	// modified.
	Styles map[string]string
	Hidden bool
	// Delay is the reveal interval before this glyph appears, in seconds.
	// Zero means the player's default.
	Delay float64
	// Pos is the glyph's top-left within its page.
	Pos Vec2
	// Offset is the time-style displacement applied when drawing.
	Offset Vec2
	// Color is the resolved fill color.
	Color Color
	// Index is the glyph's position within its page.
	Index int
}

// HasStyle reports whether tag is active on g.
func (g *Glyph) HasStyle(tag string) bool {
	_, ok := g.Styles[tag]
	return ok
}

type delimiterStyle struct {
	re  *regexp.Regexp
	tag string
}

var fakedownStyles = []delimiterStyle{
	{regexp.MustCompile(`(?s)##(.+?)##`), StyleShake},
	{regexp.MustCompile(`(?s)~~(.+?)~~`), StyleWavy},
	{regexp.MustCompile(`(?s)==(.+?)==`), StyleRainbow},
	{regexp.MustCompile(`(?s)__(.+?)__`), StyleUnderline},
}

// ExpandShorthand rewrites paired delimiters into style tags:
// ##x## to {+shk}x{-shk}, ~~x~~ to wvy, ==x== to rbw and __x__ to und.
// A pair may span lines. Unpaired delimiters are left as literal text.
func ExpandShorthand(script string) string {
	for _, d := range fakedownStyles {
		script = d.re.ReplaceAllString(script, "{+"+d.tag+"}${1}{-"+d.tag+"}")
	}
	return script
}

// ParseMarkup turns script text into glyphs. It accepts the shorthand
// delimiters plus these inline tags:
//
//	{+tag}        push a style flag
//	{-tag}        pop a style flag or directive
//	{key=value}   set a directive, e.g. {delay=0.1} or {clr=#ff0000}
//	{br}          line break
//	{pg}          page break
//
// Anything that does not parse as a tag is kept as literal text. ParseMarkup
// never fails.
func ParseMarkup(script string) []Glyph {
	src := []rune(ExpandShorthand(script))
	glyphs := make([]Glyph, 0, len(src))
	styles := map[string]string{}

	for i := 0; i < len(src); i++ {
		r := src[i]
		if r == '{' {
			if end := indexRune(src[i+1:], '}'); end >= 0 {
				body := string(src[i+1 : i+1+end])
				if next, ctrl, ok := applyTag(styles, body); ok {
					styles = next
					if ctrl != 0 {
						glyphs = append(glyphs, Glyph{Char: ctrl, Styles: styles})
					}
					i += end + 1
					continue
				}
			}
		}
		if r == '\r' {
			continue
		}
		glyphs = append(glyphs, newGlyph(r, styles))
	}
	return glyphs
}

func newGlyph(r rune, styles map[string]string) Glyph {
	g := Glyph{Char: r, Styles: styles, Hidden: true, Color: ColorWhite}
	if v, ok := styles[StyleDelay]; ok {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d >= 0 {
			g.Delay = d
		}
	}
	if v, ok := styles[StyleColor]; ok {
		if c, err := ParseHexColor(v); err == nil {
			g.Color = c
		}
	}
	return g
}

// applyTag interprets one {...} body. It returns the style map to use from
// now on (a copy when changed), a control rune for br/pg, and whether the
// body was a tag at all.
func applyTag(styles map[string]string, body string) (map[string]string, rune, bool) {
	switch body {
	case "br":
		return styles, lineBreakRune, true
	case "pg":
		return styles, pageBreakRune, true
	}
	if len(body) < 2 {
		return styles, 0, false
	}
	switch body[0] {
	case '+':
		name := body[1:]
		if !isTagName(name) {
			return styles, 0, false
		}
		next := copyStyles(styles)
		next[name] = ""
		return next, 0, true
	case '-':
		name := body[1:]
		if !isTagName(name) {
			return styles, 0, false
		}
		next := copyStyles(styles)
		delete(next, name)
		return next, 0, true
	}
	key, value, ok := strings.Cut(body, "=")
	if !ok || !isTagName(key) || value == "" || strings.ContainsAny(value, " {}") {
		return styles, 0, false
	}
	next := copyStyles(styles)
	next[key] = value
	return next, 0, true
}

func copyStyles(s map[string]string) map[string]string {
	c := make(map[string]string, len(s)+1)
	for k, v := range s {
		c[k] = v
	}
	return c
}

func isTagName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

func indexRune(s []rune, r rune) int {
	for i, c := range s {
		if c == r {
			return i
		}
	}
	return -1
}
