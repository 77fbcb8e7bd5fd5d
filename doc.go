// Package sapling is the state and dialogue core of a 2D game-authoring
// toolkit for [Ebitengine].
//
// Editors change a project document only through a [StateManager], which
// records undo history, hands out a mutable draft of the current document,
// and keeps the project's binary assets in a [ResourceStore]. A player
// runtime clones that state, reads the present document to render frames, and
// routes touch events through a [DialoguePlayer] and a sandboxed
// [ScriptHost].
//
// # State and resources
//
// A StateManager is generic over the document type. The caller supplies a
// clone function and a manifest function that lists the resource ids a
// document references:
//
//	sm := sapling.NewStateManager(sapling.StateOptions[*project.Project]{
//		Clone:    project.Clone,
//		Manifest: project.Manifest,
//		Registry: sapling.NewDefaultRegistry(),
//	})
//	err := sm.MakeChange(ctx, func(ctx context.Context, p *project.Project) error {
//		id, inst, err := sm.Resources().Fork(ctx, p.Tileset)
//		if err != nil {
//			return err
//		}
//		inst.(*sapling.Canvas).Set(0, 0, sapling.ColorWhite)
//		p.Tileset = id
//		return nil
//	})
//
// Resource instances must never be mutated in place: fork first, mutate the
// copy, then point the draft at the new id. Earlier history entries keep
// observing the old instance, which is what makes undo correct.
//
// # Dialogue
//
// Script text supports paired style markers (##shake##, ~~wavy~~,
// ==rainbow==, __underline__) and inline tags such as {delay=0.1}, {clr=#ff0},
// {br} and {pg}. Text is paginated against a [PageLayout] and revealed glyph
// by glyph as [DialoguePlayer.Update] is called each frame.
//
// # Scripts
//
// Touch scripts are Lua, executed in a sandbox that only exposes SAY, DELAY,
// LOG, FIELD, SET_FIELD, FIELDS and the EVENT, AVATAR and PLAYER handles.
// Failures are shown in-band as dialogue and never reach the game loop.
//
// [Ebitengine]: https://ebitengine.org
package sapling
