package play

import (
	"encoding/json"
	"fmt"
)

// playtestStep is a single action in a playtest script.
type playtestStep struct {
	Action string `json:"action"`
	Key    string `json:"key,omitempty"`
	Count  int    `json:"count,omitempty"`
	Frames int    `json:"frames,omitempty"`
	Text   string `json:"text,omitempty"`
}

type playtestScript struct {
	Steps []playtestStep `json:"steps"`
}

// Playtest sequences injected input across frames. Attach it to a Game with
// SetPlaytest.
//
// Steps:
//
//	{"action": "move", "key": "left", "count": 3}
//	{"action": "skip", "count": 2}
//	{"action": "wait", "frames": 30}
//	{"action": "say", "text": "hello"}
//	{"action": "screenshot", "text": "after-sign"}
type Playtest struct {
	steps     []playtestStep
	cursor    int
	waitCount int
	done      bool
}

// LoadPlaytest parses a JSON playtest script.
func LoadPlaytest(jsonData []byte) (*Playtest, error) {
	var script playtestScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("play: parse playtest: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("play: parse playtest: no steps")
	}
	for i, st := range script.Steps {
		switch st.Action {
		case "move":
			if _, err := ParseKey(st.Key); err != nil {
				return nil, fmt.Errorf("play: parse playtest: step %d: %w", i, err)
			}
		case "skip", "wait", "say", "screenshot":
		default:
			return nil, fmt.Errorf("play: parse playtest: step %d: unknown action %q", i, st.Action)
		}
	}
	return &Playtest{steps: script.Steps}, nil
}

// SetPlaytest attaches r. Its steps run from Step before input is read.
func (g *Game) SetPlaytest(r *Playtest) {
	g.runner = r
}

// Done reports whether every step has run and its input drained.
func (r *Playtest) Done() bool {
	return r.done
}

// step advances the runner by one frame.
func (r *Playtest) step(g *Game) {
	if r.done {
		return
	}
	// Wait for pending injections to drain before advancing.
	if len(g.injected) > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	count := max(st.Count, 1)
	switch st.Action {
	case "move":
		k, _ := ParseKey(st.Key)
		for range count {
			g.InjectKey(k)
		}
	case "skip":
		for range count {
			g.InjectKey(KeyAction)
		}
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "say":
		g.dialogue.QueueScript(st.Text)
	case "screenshot":
		g.Screenshot(st.Text)
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(g.injected) == 0 {
		r.done = true
	}
}
