// Package ecs bridges sapling's dialogue player and state manager into a
// [Donburi] world as typed events.
//
// Usage:
//
//	b := ecs.BridgeDialogue(world, player)
//	defer b.Close()
//	ecs.DialoguePageEventType.Subscribe(world, onPage)
//	// each frame, after player.Update:
//	ecs.DialoguePageEventType.ProcessEvents(world)
//
// Events are queued by Donburi and delivered when ProcessEvents runs, so
// systems observe them at a well-defined point in the frame.
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
