package sapling

import (
	"log/slog"
	"math/rand/v2"
	"strconv"
)

// DefaultGlyphDelay is the reveal interval between glyphs in seconds.
const DefaultGlyphDelay = 0.05

// DialogueState is the presentation state of a DialoguePlayer.
type DialogueState int

const (
	// DialogueIdle means no page is showing.
	DialogueIdle DialogueState = iota
	// DialoguePresenting means the current page is still revealing glyphs.
	DialoguePresenting
	// DialoguePageComplete means every glyph is revealed and the player is
	// waiting for Skip or MoveToNextPage.
	DialoguePageComplete
)

func (s DialogueState) String() string {
	switch s {
	case DialogueIdle:
		return "idle"
	case DialoguePresenting:
		return "presenting"
	case DialoguePageComplete:
		return "page-complete"
	}
	return "DialogueState(" + strconv.Itoa(int(s)) + ")"
}

// DialogueOptions configures a DialoguePlayer.
type DialogueOptions struct {
	// Layout is the page budget. A zero Font uses DefaultMonoFont.
	Layout PageLayout
	// GlyphDelay is the default reveal interval. Zero uses DefaultGlyphDelay.
	GlyphDelay float64
	// Seed seeds the shake jitter so tests and replays are repeatable.
	Seed uint64
	// Logger receives debug records. Nil discards them.
	Logger *slog.Logger
}

// DialogueHandle tracks one QueueScript call. It resolves once the call's
// last page has been shown and moved past, or dropped by Cancel or Restart.
type DialogueHandle struct {
	done     chan struct{}
	finished bool
}

func newDialogueHandle() *DialogueHandle {
	return &DialogueHandle{done: make(chan struct{})}
}

// Done returns a channel closed when the handle resolves.
func (h *DialogueHandle) Done() <-chan struct{} { return h.done }

// Finished reports whether the handle has resolved.
func (h *DialogueHandle) Finished() bool { return h.finished }

func (h *DialogueHandle) resolve() {
	if h == nil || h.finished {
		return
	}
	h.finished = true
	close(h.done)
}

// QueueOption adjusts how one script is queued.
type QueueOption func(*queueConfig)

type queueConfig struct {
	delay    float64
	color    Color
	hasColor bool
}

// WithGlyphDelay sets the reveal interval for glyphs that carry no delay
// directive of their own.
func WithGlyphDelay(seconds float64) QueueOption {
	return func(c *queueConfig) { c.delay = seconds }
}

// WithTextColor sets the fill color for glyphs that carry no clr directive.
func WithTextColor(col Color) QueueOption {
	return func(c *queueConfig) {
		c.color = col
		c.hasColor = true
	}
}

type queuedPage struct {
	page *Page
	// handle is set only on the last page of its QueueScript call.
	handle *DialogueHandle
}

// DialoguePlayer turns script text into pages and reveals them glyph by
// glyph as Update is called. It is driven from the game loop and is not safe
// for concurrent use.
type DialoguePlayer struct {
	layout     PageLayout
	glyphDelay float64
	logger     *slog.Logger

	current       *Page
	currentHandle *DialogueHandle
	baseColors    []Color
	queue         []queuedPage

	revealed  int
	elapsed   float64 // reveal accumulator
	pageTime  float64 // time since the current page was installed
	pagesSeen int

	styles     map[string]GlyphStyle
	styleOrder []string
	rng        *rand.Rand

	nextPage Signal[*Page]
	done     Signal[struct{}]
}

// NewDialoguePlayer creates an idle player with the built-in glyph styles
// registered.
func NewDialoguePlayer(opts DialogueOptions) *DialoguePlayer {
	if opts.Layout.Font == nil {
		opts.Layout.Font = DefaultMonoFont()
	}
	if opts.GlyphDelay <= 0 {
		opts.GlyphDelay = DefaultGlyphDelay
	}
	p := &DialoguePlayer{
		layout:     opts.Layout,
		glyphDelay: opts.GlyphDelay,
		logger:     orDiscard(opts.Logger),
		styles:     make(map[string]GlyphStyle),
		rng:        rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	registerDefaultStyles(p)
	return p
}

// Layout returns the page budget scripts are paginated against.
func (p *DialoguePlayer) Layout() PageLayout { return p.layout }

// SetLayout changes the page budget for scripts queued from now on.
func (p *DialoguePlayer) SetLayout(l PageLayout) {
	if l.Font == nil {
		l.Font = DefaultMonoFont()
	}
	p.layout = l
}

// OnNextPage registers fn to run whenever a page is installed or the player
// runs out of pages. fn receives nil in the latter case.
func (p *DialoguePlayer) OnNextPage(fn func(*Page)) CallbackHandle {
	return p.nextPage.Connect(fn)
}

// OnDone registers fn to run when the last queued page is moved past.
func (p *DialoguePlayer) OnDone(fn func()) CallbackHandle {
	return p.done.Connect(func(struct{}) { fn() })
}

// QueueScript parses and paginates script and appends its pages. An idle
// player starts presenting the first page immediately. A script with no
// glyphs queues nothing and returns a resolved handle.
func (p *DialoguePlayer) QueueScript(script string, opts ...QueueOption) *DialogueHandle {
	cfg := queueConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	glyphs := ParseMarkup(script)
	for i := range glyphs {
		g := &glyphs[i]
		if cfg.delay > 0 && !g.HasStyle(StyleDelay) {
			g.Delay = cfg.delay
		}
		if cfg.hasColor && !g.HasStyle(StyleColor) {
			g.Color = cfg.color
		}
	}
	pages := Paginate(glyphs, p.layout)

	h := newDialogueHandle()
	if len(pages) == 0 {
		h.resolve()
		return h
	}
	for i, pg := range pages {
		qp := queuedPage{page: pg}
		if i == len(pages)-1 {
			qp.handle = h
		}
		p.queue = append(p.queue, qp)
	}
	p.logger.Debug("dialogue queued", "pages", len(pages), "queued", len(p.queue))
	if p.current == nil {
		p.MoveToNextPage()
	}
	return h
}

// Update advances reveal timing and recomputes time-based glyph styles. It
// does nothing while idle. dt must not be negative.
func (p *DialoguePlayer) Update(dt float64) {
	if p.current == nil {
		return
	}
	if dt < 0 {
		dt = 0
	}
	p.pageTime += dt

	glyphs := p.current.Glyphs
	if p.revealed < len(glyphs) {
		p.elapsed += dt
		for p.revealed < len(glyphs) {
			d := p.delayOf(glyphs[p.revealed])
			if p.elapsed < d {
				break
			}
			p.elapsed -= d
			glyphs[p.revealed].Hidden = false
			p.revealed++
		}
		if p.revealed == len(glyphs) {
			p.elapsed = 0
		}
	}
	p.applyStyles()
}

func (p *DialoguePlayer) delayOf(g *Glyph) float64 {
	if v, ok := g.Styles[StyleDelay]; ok {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d >= 0 {
			return d
		}
	}
	if g.Delay > 0 {
		return g.Delay
	}
	return p.glyphDelay
}

// Skip reveals the rest of the current page, or moves to the next page if
// it is already fully revealed.
func (p *DialoguePlayer) Skip() {
	if p.current == nil {
		return
	}
	if p.revealed < len(p.current.Glyphs) {
		for _, g := range p.current.Glyphs[p.revealed:] {
			g.Hidden = false
		}
		p.revealed = len(p.current.Glyphs)
		p.elapsed = 0
		p.applyStyles()
		return
	}
	p.MoveToNextPage()
}

// MoveToNextPage installs the next queued page, or goes idle if none remain.
// It always counts as a page seen and emits next-page; going idle also
// emits done.
func (p *DialoguePlayer) MoveToNextPage() {
	finished := p.currentHandle
	if len(p.queue) > 0 {
		next := p.queue[0]
		p.queue[0] = queuedPage{}
		p.queue = p.queue[1:]
		p.install(next.page, next.handle)
	} else {
		p.install(nil, nil)
	}
	p.pagesSeen++
	finished.resolve()

	p.logger.Debug("dialogue page", "seen", p.pagesSeen, "queued", len(p.queue), "idle", p.current == nil)
	p.nextPage.Emit(p.current)
	if p.current == nil {
		p.done.Emit(struct{}{})
	}
}

func (p *DialoguePlayer) install(pg *Page, h *DialogueHandle) {
	p.current = pg
	p.currentHandle = h
	p.revealed = 0
	p.elapsed = 0
	p.pageTime = 0
	p.baseColors = p.baseColors[:0]
	if pg == nil {
		return
	}
	for _, g := range pg.Glyphs {
		g.Hidden = true
		p.baseColors = append(p.baseColors, g.Color)
	}
	p.applyStyles()
}

// Cancel drops the current and queued pages and goes idle without emitting
// next-page or done. Handles of dropped scripts resolve so nothing waiting
// on them hangs.
func (p *DialoguePlayer) Cancel() {
	p.currentHandle.resolve()
	for _, qp := range p.queue {
		qp.handle.resolve()
	}
	clear(p.queue)
	p.queue = p.queue[:0]
	p.install(nil, nil)
	p.logger.Debug("dialogue cancelled")
}

// Restart cancels everything and zeroes the counters, ready for a fresh
// play session.
func (p *DialoguePlayer) Restart() {
	p.Cancel()
	p.pagesSeen = 0
}

// State returns the presentation state.
func (p *DialoguePlayer) State() DialogueState {
	switch {
	case p.current == nil:
		return DialogueIdle
	case p.revealed < len(p.current.Glyphs):
		return DialoguePresenting
	default:
		return DialoguePageComplete
	}
}

// CurrentPage returns the page being presented, or nil when idle.
func (p *DialoguePlayer) CurrentPage() *Page { return p.current }

// QueuedPages returns the number of pages waiting behind the current one.
func (p *DialoguePlayer) QueuedPages() int { return len(p.queue) }

// PagesSeen returns how many times MoveToNextPage has run since the last
// Restart.
func (p *DialoguePlayer) PagesSeen() int { return p.pagesSeen }

// Revealed returns the number of revealed glyphs on the current page.
func (p *DialoguePlayer) Revealed() int { return p.revealed }

// PageTime returns the seconds elapsed since the current page was installed.
func (p *DialoguePlayer) PageTime() float64 { return p.pageTime }

// Empty reports whether nothing is showing or queued.
func (p *DialoguePlayer) Empty() bool { return p.current == nil && len(p.queue) == 0 }
