package play

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/phanxgames/sapling"
	"github.com/phanxgames/sapling/project"
)

const frame = 1.0 / 60

func newEditor(t *testing.T, edit func(p *project.Project)) *sapling.StateManager[*project.Project] {
	t.Helper()
	ctx := context.Background()
	b, err := project.New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	editor := sapling.NewStateManager(project.StateOptions(nil))
	if err := editor.LoadBundle(ctx, b); err != nil {
		t.Fatal(err)
	}
	if edit != nil {
		err := editor.MakeChange(ctx, func(_ context.Context, p *project.Project) error {
			edit(p)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return editor
}

func newTestGame(t *testing.T, edit func(p *project.Project)) (*Game, *sapling.StateManager[*project.Project]) {
	t.Helper()
	editor := newEditor(t, edit)
	g := New(DefaultConfig(), nil)
	if err := g.Start(context.Background(), editor); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return g, editor
}

// addEvent places an event left of the avatar's starting cell.
func addEvent(fields ...sapling.Field) func(p *project.Project) {
	return func(p *project.Project) {
		p.Rooms[0].Events = append(p.Rooms[0].Events, &project.Event{
			ID:       p.NextEventID(),
			Position: [2]int{project.RoomSize/2 - 1, project.RoomSize / 2},
			Fields:   fields,
		})
	}
}

func pressN(g *Game, k Key, n int) {
	for range n {
		g.InjectKey(k)
		g.Step(frame, KeyNone)
	}
}

func TestStartLocatesAvatar(t *testing.T) {
	g, _ := newTestGame(t, nil)
	if x, y := g.Position(); x != 8 || y != 8 || g.Room() != 0 {
		t.Errorf("avatar at room %d (%d,%d)", g.Room(), x, y)
	}
	if g.SpritePosition() != (sapling.Vec2{X: 8, Y: 8}) {
		t.Errorf("sprite = %v", g.SpritePosition())
	}
	if g.Busy() {
		t.Error("fresh game is busy")
	}
}

func TestStartWithoutAvatar(t *testing.T) {
	editor := newEditor(t, func(p *project.Project) {
		p.Rooms[0].RemoveEvent(0)
	})
	g := New(DefaultConfig(), nil)
	if err := g.Start(context.Background(), editor); !errors.Is(err, ErrNoAvatar) {
		t.Fatalf("Start err = %v", err)
	}
	if g.Move(1, 0) {
		t.Error("Move succeeded without an avatar")
	}
}

func TestSessionIsIndependentOfEditor(t *testing.T) {
	g, editor := newTestGame(t, nil)
	g.Move(-1, 0)
	p, _ := editor.Present()
	_, av := p.AvatarEvent()
	if av.Position != [2]int{8, 8} {
		t.Errorf("editor avatar moved to %v", av.Position)
	}

	err := editor.MakeChange(context.Background(), func(_ context.Context, p *project.Project) error {
		p.Rooms[0].Tilemap[3][3] = project.TileSign
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.doc().Rooms[0].Tilemap[3][3] != 0 {
		t.Error("editor change leaked into the session")
	}
}

func TestMoveAnimatesSprite(t *testing.T) {
	g, _ := newTestGame(t, nil)
	if !g.Move(-1, 0) {
		t.Fatal("Move failed")
	}
	if x, _ := g.Position(); x != 7 {
		t.Fatalf("x = %d, want 7", x)
	}
	g.Step(stepDuration/2, KeyNone)
	if s := g.SpritePosition(); s.X <= 7 || s.X >= 8 {
		t.Errorf("mid-step sprite x = %v", s.X)
	}
	g.Step(stepDuration*2, KeyNone)
	if s := g.SpritePosition(); s != (sapling.Vec2{X: 7, Y: 8}) {
		t.Errorf("sprite = %v, want {7 8}", s)
	}
}

func TestWallsBlockMovement(t *testing.T) {
	g, _ := newTestGame(t, nil)
	for range 7 {
		if !g.Move(-1, 0) {
			t.Fatal("blocked before the wall")
		}
	}
	if g.Move(-1, 0) {
		t.Error("walked into the wall")
	}
	if x, _ := g.Position(); x != 1 {
		t.Errorf("x = %d, want 1", x)
	}
}

func TestSolidEventSaysAndBlocks(t *testing.T) {
	g, _ := newTestGame(t, nil)
	if !g.Move(1, 0) {
		t.Fatal("first step blocked")
	}
	if g.Move(1, 0) {
		t.Fatal("walked onto the solid sign")
	}
	if x, _ := g.Position(); x != 9 {
		t.Errorf("x = %d, want 9", x)
	}
	if g.Dialogue().State() != sapling.DialoguePresenting || !g.Busy() {
		t.Fatal("sign did not speak")
	}
	if g.Move(-1, 0) {
		t.Error("moved during dialogue")
	}

	pressN(g, KeyAction, 4)
	if !g.Dialogue().Empty() || g.Busy() {
		t.Fatalf("still busy: state=%v", g.Dialogue().State())
	}
	if !g.Move(-1, 0) {
		t.Error("cannot move after dialogue")
	}
}

func TestTouchScriptErrorIsShown(t *testing.T) {
	g, _ := newTestGame(t, addEvent(sapling.Field{Key: project.FieldTouch, Type: project.TypeScript, Data: `error("bad touch")`}))
	if !g.Move(-1, 0) {
		t.Fatal("Move failed")
	}
	page := g.Dialogue().CurrentPage()
	if page == nil || !strings.HasPrefix(page.Text(), "SCRIPT ERROR:") {
		t.Fatalf("page = %v", page)
	}
	g.Step(frame, KeyNone)
	if g.Frame() != 1 {
		t.Error("game did not keep stepping")
	}
}

func TestTouchScriptRuns(t *testing.T) {
	g, editor := newTestGame(t, addEvent(sapling.Field{
		Key: project.FieldTouch, Type: project.TypeScript,
		Data: `SAY("hi") SET_FIELD(EVENT, "seen", PLAYER.x)`,
	}))
	g.Move(-1, 0)
	if !g.Busy() {
		t.Fatal("touch script should hold the game busy")
	}
	pressN(g, KeyAction, 2)
	if g.Busy() {
		t.Fatal("still busy after dialogue")
	}
	_, touched := g.doc().FindEvent(2)
	if f, ok := touched.Field("seen"); !ok || f.Data != 7.0 {
		t.Errorf("seen = %+v", f)
	}
	p, _ := editor.Present()
	_, orig := p.FindEvent(2)
	if _, ok := orig.Field("seen"); ok {
		t.Error("script wrote to the editor's document")
	}
}

func TestExitAndOneTime(t *testing.T) {
	g, _ := newTestGame(t, func(p *project.Project) {
		p.Rooms = append(p.Rooms, project.NewRoom(1, 0))
		addEvent(
			sapling.Field{Key: project.FieldExit, Type: project.TypeLocation, Data: map[string]any{"room": 1.0, "x": 3.0, "y": 4.0}},
			sapling.Field{Key: project.FieldOneTime, Type: project.TypeTag, Data: true},
		)(p)
	})
	g.Move(-1, 0)
	if g.Room() != 1 {
		t.Fatalf("room = %d, want 1", g.Room())
	}
	if x, y := g.Position(); x != 3 || y != 4 {
		t.Errorf("position = (%d,%d)", x, y)
	}
	if g.SpritePosition() != (sapling.Vec2{X: 3, Y: 4}) {
		t.Errorf("sprite = %v", g.SpritePosition())
	}
	if _, ev := g.doc().FindEvent(2); ev != nil {
		t.Error("one-time event not removed")
	}
	if len(g.doc().Room(0).Events) != 1 || len(g.doc().Room(1).Events) != 1 {
		t.Error("avatar not moved between rooms")
	}
}

func TestSayThenExitWaitsForDialogue(t *testing.T) {
	g, _ := newTestGame(t, func(p *project.Project) {
		addEvent(
			sapling.Field{Key: project.FieldSay, Type: project.TypeDialogue, Data: "bye"},
			sapling.Field{Key: project.FieldExit, Type: project.TypeLocation, Data: project.Location{Room: 0, X: 2, Y: 2}},
		)(p)
	})
	g.Move(-1, 0)
	if x, _ := g.Position(); x != 7 {
		t.Fatalf("teleported before the dialogue ended")
	}
	pressN(g, KeyAction, 2)
	if x, y := g.Position(); x != 2 || y != 2 {
		t.Errorf("position = (%d,%d), want (2,2)", x, y)
	}
}

func TestInjectedKeysOnePerFrame(t *testing.T) {
	g, _ := newTestGame(t, nil)
	g.InjectKey(KeyUp)
	g.InjectKey(KeyUp)
	g.Step(frame, KeyNone)
	if _, y := g.Position(); y != 7 || g.Injected() != 1 {
		t.Fatalf("after one frame y=%d queued=%d", y, g.Injected())
	}
	g.Step(frame, KeyLeft)
	if x, y := g.Position(); y != 6 || x != 8 {
		t.Errorf("injected key should win over real input: (%d,%d)", x, y)
	}
	g.Step(frame, KeyLeft)
	if x, _ := g.Position(); x != 7 {
		t.Errorf("real key ignored: x=%d", x)
	}
}

func TestConfigFrom(t *testing.T) {
	c := sapling.DefaultConfig()
	c.Play.Screen.Width = 320
	cfg := ConfigFrom(c)
	if cfg.ScreenWidth != 320 || cfg.Panel != c.PanelStyle() {
		t.Errorf("cfg = %+v", cfg)
	}
	g := New(cfg, nil)
	if w, h := g.Layout(0, 0); w != 320 || h != 256 {
		t.Errorf("Layout = %dx%d", w, h)
	}
}
