package ecs

import (
	"github.com/phanxgames/sapling"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// DialoguePageEvent is published when the dialogue player installs a page.
type DialoguePageEvent struct {
	// Seen is the number of pages shown so far, including this one.
	Seen int
	// Text is the page's characters with lines joined by newlines.
	Text string
	// Queued is the number of pages still waiting after this one.
	Queued int
}

// DialogueDoneEvent is published when the player moves past its last page.
type DialogueDoneEvent struct {
	Seen int
}

// StateChangeEvent is published whenever a state manager's present document
// or resources change.
type StateChangeEvent struct {
	Index      int
	HistoryLen int
	CanUndo    bool
	CanRedo    bool
	Editing    bool
}

var (
	// DialoguePageEventType carries DialoguePageEvent.
	DialoguePageEventType = events.NewEventType[DialoguePageEvent]()
	// DialogueDoneEventType carries DialogueDoneEvent.
	DialogueDoneEventType = events.NewEventType[DialogueDoneEvent]()
	// StateChangeEventType carries StateChangeEvent.
	StateChangeEventType = events.NewEventType[StateChangeEvent]()
)

// Bridge holds the callbacks a bridge registered. Close removes them.
type Bridge struct {
	handles []sapling.CallbackHandle
}

// Close stops publishing. Calling it twice is harmless.
func (b *Bridge) Close() {
	for _, h := range b.handles {
		h.Remove()
	}
	b.handles = nil
}

// BridgeDialogue publishes p's page and done notifications into world.
// The nil page the player reports when it runs out is not forwarded; it is
// followed by a DialogueDoneEvent.
func BridgeDialogue(world donburi.World, p *sapling.DialoguePlayer) *Bridge {
	b := &Bridge{}
	b.handles = append(b.handles,
		p.OnNextPage(func(pg *sapling.Page) {
			if pg == nil {
				return
			}
			DialoguePageEventType.Publish(world, DialoguePageEvent{
				Seen:   p.PagesSeen(),
				Text:   pg.Text(),
				Queued: p.QueuedPages(),
			})
		}),
		p.OnDone(func() {
			DialogueDoneEventType.Publish(world, DialogueDoneEvent{Seen: p.PagesSeen()})
		}),
	)
	return b
}

// BridgeState publishes sm's change notifications into world.
func BridgeState[D any](world donburi.World, sm *sapling.StateManager[D]) *Bridge {
	b := &Bridge{}
	b.handles = append(b.handles, sm.OnChange(func() {
		StateChangeEventType.Publish(world, StateChangeEvent{
			Index:      sm.Index(),
			HistoryLen: sm.HistoryLen(),
			CanUndo:    sm.CanUndo(),
			CanRedo:    sm.CanRedo(),
			Editing:    sm.Editing(),
		})
	}))
	return b
}
