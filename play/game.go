// Package play runs a project: it clones an editor's state into a private
// play session, draws the avatar's room, and routes touches through the
// dialogue player and the script host.
package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/sapling"
	"github.com/phanxgames/sapling/project"
)

// ErrNoAvatar is returned by Start when no event is tagged is-player.
var ErrNoAvatar = errors.New("play: project has no avatar")

// stepDuration is how long the avatar sprite takes to slide one tile.
const stepDuration = 0.1

// Config configures a Game.
type Config struct {
	// ScreenWidth and ScreenHeight are the logical screen size. The room is
	// scaled to fill the width.
	ScreenWidth, ScreenHeight int
	Panel                     sapling.PanelStyle
	// Font is used for dialogue. Nil uses sapling.DefaultMonoFont.
	Font       sapling.Font
	GlyphDelay float64
	Seed       uint64
	Logger     *slog.Logger
	// ScreenshotDir receives captures requested with Screenshot or a
	// playtest screenshot step.
	ScreenshotDir string
	// ShowFPS draws an FPS and TPS overlay.
	ShowFPS bool
}

// DefaultConfig returns a 256x256 screen with the default panel.
func DefaultConfig() Config {
	return Config{
		ScreenWidth:  256,
		ScreenHeight: 256,
		Panel:        sapling.DefaultPanelStyle(),
	}
}

// ConfigFrom converts the shared settings.
func ConfigFrom(c *sapling.Config) Config {
	return Config{
		ScreenWidth:  c.Play.Screen.Width,
		ScreenHeight: c.Play.Screen.Height,
		Panel:        c.PanelStyle(),
		GlyphDelay:   c.Dialogue.GlyphDelay,
	}
}

// Game is a play session. It implements ebiten.Game.
type Game struct {
	cfg      Config
	logger   *slog.Logger
	state    *sapling.StateManager[*project.Project]
	dialogue *sapling.DialoguePlayer
	renderer *sapling.DialogueRenderer
	scripts  *sapling.ScriptHost

	room     int
	avatarID int
	started  bool

	sprite sapling.Vec2 // avatar draw position in tiles
	step   *sapling.TweenGroup

	touch   *sapling.ScriptTask
	pending *pendingTouch

	injected []Key
	runner   *Playtest
	frame    int

	atlas       *sapling.Atlas
	atlasSource *sapling.Canvas

	shots []string
	fps   *fpsOverlay
}

// pendingTouch finishes a default touch once its dialogue has been read.
type pendingTouch struct {
	handle *sapling.DialogueHandle
	then   func()
}

// New creates an idle game with its own state manager. reg must know the
// resource types the project uses; nil uses sapling.NewDefaultRegistry.
func New(cfg Config, reg *sapling.Registry) *Game {
	if cfg.ScreenWidth <= 0 || cfg.ScreenHeight <= 0 {
		d := DefaultConfig()
		cfg.ScreenWidth, cfg.ScreenHeight = d.ScreenWidth, d.ScreenHeight
	}
	if cfg.Panel.Width == 0 {
		cfg.Panel = sapling.DefaultPanelStyle()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := project.StateOptions(reg)
	opts.Logger = logger
	renderer := sapling.NewDialogueRenderer(cfg.Panel, cfg.Font)
	var fps *fpsOverlay
	if cfg.ShowFPS {
		fps = &fpsOverlay{}
	}
	return &Game{
		fps:      fps,
		cfg:      cfg,
		logger:   logger,
		state:    sapling.NewStateManager(opts),
		renderer: renderer,
		dialogue: sapling.NewDialoguePlayer(sapling.DialogueOptions{
			Layout:     renderer.Layout(),
			GlyphDelay: cfg.GlyphDelay,
			Seed:       cfg.Seed,
			Logger:     logger,
		}),
		scripts: sapling.NewScriptHost(logger),
	}
}

// Start begins a fresh session from a copy of editor's state. Editing
// editor afterwards does not affect the session, and playing does not
// affect editor.
func (g *Game) Start(ctx context.Context, editor *sapling.StateManager[*project.Project]) error {
	if err := g.state.CopyFrom(ctx, editor); err != nil {
		return fmt.Errorf("play: start: %w", err)
	}
	g.dialogue.Restart()
	g.scripts.Close()
	g.scripts = sapling.NewScriptHost(g.logger)
	g.touch = nil
	g.pending = nil
	g.step = nil
	g.injected = g.injected[:0]
	g.atlas, g.atlasSource = nil, nil

	room, av := g.doc().AvatarEvent()
	if av == nil {
		g.started = false
		return ErrNoAvatar
	}
	g.room = room.ID
	g.avatarID = av.ID
	g.sprite = sapling.Vec2{X: float64(av.Position[0]), Y: float64(av.Position[1])}
	g.started = true
	g.logger.Debug("play started", "room", g.room, "avatar", g.avatarID)
	return nil
}

// State returns the session's state manager.
func (g *Game) State() *sapling.StateManager[*project.Project] { return g.state }

// Dialogue returns the session's dialogue player.
func (g *Game) Dialogue() *sapling.DialoguePlayer { return g.dialogue }

// Scripts returns the session's script host.
func (g *Game) Scripts() *sapling.ScriptHost { return g.scripts }

// Frame returns the number of frames stepped since New.
func (g *Game) Frame() int { return g.frame }

// Room implements sapling.PlayerInfo.
func (g *Game) Room() int { return g.room }

// Position implements sapling.PlayerInfo.
func (g *Game) Position() (x, y int) {
	if av := g.avatar(); av != nil {
		return av.Position[0], av.Position[1]
	}
	return 0, 0
}

// SpritePosition returns where the avatar is drawn, in tiles. It lags the
// avatar's cell while a step animates.
func (g *Game) SpritePosition() sapling.Vec2 { return g.sprite }

// Busy reports whether dialogue or a touch is in progress. Movement is
// ignored while busy.
func (g *Game) Busy() bool {
	return !g.dialogue.Empty() || g.pending != nil || (g.touch != nil && !g.touch.Finished())
}

func (g *Game) doc() *project.Project {
	d, _ := g.state.Present()
	return d
}

func (g *Game) avatar() *project.Event {
	d := g.doc()
	if d == nil {
		return nil
	}
	_, ev := d.FindEvent(g.avatarID)
	return ev
}

// Move tries to step the avatar by (dx, dy). Walls and solid events block
// the step but are still touched. It reports whether the avatar moved.
func (g *Game) Move(dx, dy int) bool {
	if !g.started || g.Busy() {
		return false
	}
	d := g.doc()
	room := d.Room(g.room)
	av := g.avatar()
	if room == nil || av == nil {
		return false
	}
	tx, ty := av.Position[0]+dx, av.Position[1]+dy
	targets := g.others(room, tx, ty)

	blocked := room.IsWall(tx, ty)
	for _, ev := range targets {
		if ev.Tagged(project.FieldSolid) {
			blocked = true
		}
	}
	if blocked {
		g.touchAll(targets)
		return false
	}

	av.Position = [2]int{tx, ty}
	g.step = sapling.TweenVec2(&g.sprite, sapling.Vec2{X: float64(tx), Y: float64(ty)}, stepDuration, ease.OutQuad)
	g.touchAll(targets)
	return true
}

// others returns the events at (x, y) except the avatar.
func (g *Game) others(room *project.Room, x, y int) []*project.Event {
	var out []*project.Event
	for _, ev := range room.EventsAt(x, y) {
		if ev.ID != g.avatarID {
			out = append(out, ev)
		}
	}
	return out
}

// touchAll touches the first event that does something. Later events wait
// for the next step onto the cell.
func (g *Game) touchAll(evs []*project.Event) {
	for _, ev := range evs {
		if g.Touch(ev) {
			return
		}
	}
}

// Touch runs ev's touch script, or its default behaviour when it has none.
// Script errors are shown as dialogue and never returned.
func (g *Game) Touch(ev *project.Event) bool {
	if src, ok := ev.Text(project.FieldTouch); ok && src != "" {
		g.logger.Debug("touch script", "event", ev.ID)
		g.touch = g.scripts.Run(src, sapling.ScriptEnv{
			Event:    ev,
			Avatar:   g.avatar(),
			Player:   g,
			Dialogue: g.dialogue,
		})
		return true
	}

	say, hasSay := ev.Text(project.FieldSay)
	exit, hasExit := ev.Location(project.FieldExit)
	oneTime := ev.Tagged(project.FieldOneTime)
	if !hasSay && !hasExit && !oneTime {
		return false
	}
	finish := func() {
		if oneTime {
			if room := g.doc().Room(g.room); room != nil {
				room.RemoveEvent(ev.ID)
			}
		}
		if hasExit {
			g.teleport(exit)
		}
	}
	if hasSay && say != "" {
		h := g.dialogue.QueueScript(say)
		if !h.Finished() {
			g.pending = &pendingTouch{handle: h, then: finish}
			return true
		}
	}
	finish()
	return true
}

// teleport moves the avatar event to loc, changing rooms if needed.
func (g *Game) teleport(loc project.Location) {
	d := g.doc()
	from := d.Room(g.room)
	to := d.Room(loc.Room)
	av := g.avatar()
	if to == nil || av == nil || !project.InBounds(loc.X, loc.Y) {
		g.logger.Warn("exit to missing location", "room", loc.Room, "x", loc.X, "y", loc.Y)
		return
	}
	if from != to {
		from.RemoveEvent(av.ID)
		to.Events = append(to.Events, av)
		g.room = to.ID
	}
	av.Position = [2]int{loc.X, loc.Y}
	g.step = nil
	g.sprite = sapling.Vec2{X: float64(loc.X), Y: float64(loc.Y)}
	g.logger.Debug("teleport", "room", g.room, "x", loc.X, "y", loc.Y)
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	dt := 1 / float64(ebiten.TPS())
	g.Step(dt, pollKeyboard())
	if g.fps != nil {
		g.fps.update(dt)
	}
	return nil
}

// Step advances one frame of dt seconds. key is this frame's real key
// press; a queued injected key takes its place.
func (g *Game) Step(dt float64, key Key) {
	g.frame++
	if g.runner != nil {
		g.runner.step(g)
	}
	if k, ok := g.nextInjected(); ok {
		key = k
	}
	g.press(key)

	g.dialogue.Update(dt)
	g.renderer.Update(g.dialogue, dt)
	g.scripts.Update(dt)
	if g.touch != nil && g.touch.Finished() {
		g.touch = nil
	}
	if g.pending != nil && g.pending.handle.Finished() {
		p := g.pending
		g.pending = nil
		p.then()
	}
	if g.step != nil {
		g.step.Update(float32(dt))
		if g.step.Done {
			g.step = nil
		}
	}
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.cfg.ScreenWidth, g.cfg.ScreenHeight
}

// tileScale is the room's draw scale on screen.
func (g *Game) tileScale() float64 {
	return float64(g.cfg.ScreenWidth) / float64(project.RoomSize*project.TileSize)
}

// tileset returns the grid atlas over the project's tileset canvas,
// rebuilding it when the canvas changes.
func (g *Game) tileset() *sapling.Atlas {
	d := g.doc()
	if d == nil {
		return nil
	}
	c, ok := sapling.Lookup[*sapling.Canvas](g.state.Resources(), d.Tileset)
	if !ok {
		return nil
	}
	if c != g.atlasSource {
		g.atlas = sapling.NewGridAtlas(c, project.TileSize, project.TileSize)
		g.atlasSource = c
	}
	return g.atlas
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	d := g.doc()
	if !g.started || d == nil {
		return
	}
	room := d.Room(g.room)
	if room == nil {
		return
	}
	pal := d.Palette(room.Palette)
	screen.Fill(pal.Color(0).RGBA())

	atlas := g.tileset()
	if atlas != nil {
		s := g.tileScale()
		size := float64(project.TileSize) * s
		tint := pal.Color(1)
		for y := range project.RoomSize {
			for x := range project.RoomSize {
				if t := room.Tile(x, y); t != 0 {
					g.drawTile(screen, atlas, t, float64(x)*size, float64(y)*size, s, tint)
				}
			}
		}
		sprite := pal.Color(2)
		for _, ev := range room.Events {
			t, ok := ev.Graphic()
			if !ok {
				continue
			}
			pos := sapling.Vec2{X: float64(ev.Position[0]), Y: float64(ev.Position[1])}
			if ev.ID == g.avatarID {
				pos = g.sprite
			}
			g.drawTile(screen, atlas, t, pos.X*size, pos.Y*size, s, sprite)
		}
	}

	px := float64(g.cfg.ScreenWidth-g.cfg.Panel.Width) / 2
	py := float64(g.cfg.ScreenHeight - g.cfg.Panel.Height - 8)
	g.renderer.Draw(screen, g.dialogue, px, py)

	if g.fps != nil {
		g.fps.draw(screen)
	}
	g.flushScreenshots(screen)
}

func (g *Game) drawTile(dst *ebiten.Image, atlas *sapling.Atlas, tile int, x, y, scale float64, tint sapling.Color) {
	sapling.DrawRegion(dst, atlas, atlas.Region(strconv.Itoa(tile)), sapling.DrawOpts{
		X: x, Y: y, ScaleX: scale, ScaleY: scale, Color: tint, Alpha: 1,
	})
}

// RunConfig holds window settings for Run.
type RunConfig struct {
	Title         string
	Width, Height int
}

// Run opens a window and blocks until it is closed.
func Run(g *Game, cfg RunConfig) error {
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		ebiten.SetWindowSize(cfg.Width, cfg.Height)
	}
	defer g.scripts.Close()
	return ebiten.RunGame(g)
}
