package play

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Key is one logical input.
type Key uint8

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	// KeyAction skips or advances dialogue.
	KeyAction
)

var keyNames = map[string]Key{
	"up":     KeyUp,
	"down":   KeyDown,
	"left":   KeyLeft,
	"right":  KeyRight,
	"action": KeyAction,
}

// ParseKey maps "up", "down", "left", "right" or "action" to a Key.
func ParseKey(s string) (Key, error) {
	k, ok := keyNames[s]
	if !ok {
		return KeyNone, fmt.Errorf("play: unknown key %q", s)
	}
	return k, nil
}

// delta returns the movement for a direction key.
func (k Key) delta() (dx, dy int, ok bool) {
	switch k {
	case KeyUp:
		return 0, -1, true
	case KeyDown:
		return 0, 1, true
	case KeyLeft:
		return -1, 0, true
	case KeyRight:
		return 1, 0, true
	}
	return 0, 0, false
}

var keyBindings = []struct {
	key  Key
	keys []ebiten.Key
}{
	{KeyUp, []ebiten.Key{ebiten.KeyArrowUp, ebiten.KeyW}},
	{KeyDown, []ebiten.Key{ebiten.KeyArrowDown, ebiten.KeyS}},
	{KeyLeft, []ebiten.Key{ebiten.KeyArrowLeft, ebiten.KeyA}},
	{KeyRight, []ebiten.Key{ebiten.KeyArrowRight, ebiten.KeyD}},
	{KeyAction, []ebiten.Key{ebiten.KeySpace, ebiten.KeyEnter, ebiten.KeyZ}},
}

// Held keys repeat after keyRepeatDelay frames, every keyRepeatInterval.
const (
	keyRepeatDelay    = 15
	keyRepeatInterval = 6
)

// pollKeyboard returns the first bound key pressed or repeating this frame.
func pollKeyboard() Key {
	for _, b := range keyBindings {
		for _, k := range b.keys {
			d := inpututil.KeyPressDuration(k)
			if d == 1 || (d > keyRepeatDelay && d%keyRepeatInterval == 0) {
				return b.key
			}
		}
	}
	return KeyNone
}

// InjectKey queues a synthetic key press. Queued keys are consumed one per
// frame, ahead of the real keyboard.
func (g *Game) InjectKey(k Key) {
	g.injected = append(g.injected, k)
}

// Injected returns the number of queued synthetic keys.
func (g *Game) Injected() int { return len(g.injected) }

func (g *Game) nextInjected() (Key, bool) {
	if len(g.injected) == 0 {
		return KeyNone, false
	}
	k := g.injected[0]
	copy(g.injected, g.injected[1:])
	g.injected = g.injected[:len(g.injected)-1]
	return k, true
}

// press applies one key. Any key skips while dialogue is showing.
func (g *Game) press(k Key) {
	if k == KeyNone {
		return
	}
	if !g.dialogue.Empty() {
		g.dialogue.Skip()
		return
	}
	if dx, dy, ok := k.delta(); ok {
		g.Move(dx, dy)
	}
}
