package sapling

// PageLayout is the line budget dialogue text is paginated against.
type PageLayout struct {
	Font Font
	// Width is the maximum line width in pixels. Zero disables wrapping.
	Width float64
	// Lines is the maximum number of lines per page. Zero means unlimited.
	Lines int
}

// Page is one screen of dialogue. Glyphs lists every visible-or-hidden glyph
// in reveal order; Lines groups the same pointers by line.
type Page struct {
	Glyphs []*Glyph
	Lines  [][]*Glyph
}

// Revealed returns the number of glyphs that are no longer hidden.
func (p *Page) Revealed() int {
	n := 0
	for _, g := range p.Glyphs {
		if !g.Hidden {
			n++
		}
	}
	return n
}

// Text returns the page's characters with lines joined by newlines.
func (p *Page) Text() string {
	var b []rune
	for i, line := range p.Lines {
		if i > 0 {
			b = append(b, '\n')
		}
		for _, g := range line {
			b = append(b, g.Char)
		}
	}
	return string(b)
}

// paginator holds the in-progress page while Paginate walks the glyphs.
type paginator struct {
	layout   PageLayout
	lh       float64
	pages    []*Page
	cur      *Page
	line     []*Glyph
	x        float64
	prev     rune
	// autoWrap is set while the current line was started by wrapping
	// rather than by an explicit break; leading spaces on it are dropped.
	autoWrap bool
}

// Paginate word-wraps glyphs against layout and splits them into pages.
// Words wrap at spaces; a word wider than a whole line is broken between
// glyphs. {br} forces a line break and {pg} a page break. Pages that would
// hold no glyphs are dropped, so empty input yields no pages.
//
// The input is not modified; each page owns copies of its glyphs.
func Paginate(glyphs []Glyph, layout PageLayout) []*Page {
	if layout.Font == nil {
		layout.Font = DefaultMonoFont()
	}
	p := &paginator{layout: layout, lh: layout.Font.LineHeight()}
	p.cur = &Page{}

	for i := 0; i < len(glyphs); {
		g := glyphs[i]
		switch g.Char {
		case lineBreakRune:
			p.breakLine()
			i++
		case pageBreakRune:
			p.breakPage()
			i++
		case ' ':
			p.placeSpace(g)
			i++
		default:
			end := i
			for end < len(glyphs) && isWordRune(glyphs[end].Char) {
				end++
			}
			p.placeWord(glyphs[i:end])
			i = end
		}
	}
	p.breakPage()
	return p.pages
}

func isWordRune(r rune) bool {
	return r != ' ' && r != lineBreakRune && r != pageBreakRune
}

// kern is the pair adjustment between the previous glyph on the line and r.
func (p *paginator) kern(r rune) float64 {
	if k, ok := p.layout.Font.(Kerner); ok && p.prev != 0 {
		return k.Kern(p.prev, r)
	}
	return 0
}

func (p *paginator) advance(r rune) float64 {
	return p.kern(r) + p.layout.Font.Advance(r)
}

func (p *paginator) wordWidth(word []Glyph) float64 {
	var w float64
	prev := p.prev
	for _, g := range word {
		w += p.layout.Font.Advance(g.Char)
		if k, ok := p.layout.Font.(Kerner); ok && prev != 0 {
			w += k.Kern(prev, g.Char)
		}
		prev = g.Char
	}
	return w
}

func (p *paginator) fits(w float64) bool {
	return p.layout.Width <= 0 || p.x+w <= p.layout.Width
}

func (p *paginator) placeSpace(g Glyph) {
	if len(p.line) == 0 && p.autoWrap {
		return
	}
	adv := p.advance(g.Char)
	if !p.fits(adv) {
		// A space that overflows becomes the line break itself.
		p.wrapLine()
		return
	}
	p.put(g)
}

func (p *paginator) placeWord(word []Glyph) {
	if !p.fits(p.wordWidth(word)) && len(p.line) > 0 {
		p.wrapLine()
	}
	for _, g := range word {
		if !p.fits(p.advance(g.Char)) && len(p.line) > 0 {
			p.wrapLine()
		}
		p.put(g)
	}
}

// put places g at the pen position, shifted by its kerning pair.
func (p *paginator) put(g Glyph) {
	k := p.kern(g.Char)
	c := g
	c.Pos = Vec2{X: p.x + k, Y: float64(len(p.cur.Lines)) * p.lh}
	c.Index = len(p.cur.Glyphs)
	c.Hidden = true
	gp := &c
	p.cur.Glyphs = append(p.cur.Glyphs, gp)
	p.line = append(p.line, gp)
	p.x += k + p.layout.Font.Advance(g.Char)
	p.prev = g.Char
	p.autoWrap = false
}

func (p *paginator) wrapLine() {
	p.breakLine()
	p.autoWrap = true
}

func (p *paginator) breakLine() {
	p.cur.Lines = append(p.cur.Lines, p.line)
	p.line = nil
	p.x = 0
	p.prev = 0
	p.autoWrap = false
	if p.layout.Lines > 0 && len(p.cur.Lines) >= p.layout.Lines {
		p.flushPage()
	}
}

func (p *paginator) breakPage() {
	if len(p.line) > 0 {
		p.cur.Lines = append(p.cur.Lines, p.line)
	}
	p.line = nil
	p.x = 0
	p.prev = 0
	p.autoWrap = false
	p.flushPage()
}

func (p *paginator) flushPage() {
	if len(p.cur.Glyphs) > 0 {
		trimTrailingEmptyLines(p.cur)
		p.pages = append(p.pages, p.cur)
	}
	p.cur = &Page{}
}

func trimTrailingEmptyLines(pg *Page) {
	for len(pg.Lines) > 0 && len(pg.Lines[len(pg.Lines)-1]) == 0 {
		pg.Lines = pg.Lines[:len(pg.Lines)-1]
	}
}
