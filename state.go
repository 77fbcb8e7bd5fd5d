package sapling

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultHistoryLimit is the number of history entries a StateManager keeps
// when StateOptions.HistoryLimit is zero.
const DefaultHistoryLimit = 20

// StateOptions configures a StateManager. Clone and Manifest are required.
type StateOptions[D any] struct {
	// HistoryLimit bounds the number of retained history entries. Zero uses
	// DefaultHistoryLimit. Values below 2 are raised to 2 so that one undo
	// step always exists.
	HistoryLimit int

	// Clone returns a deep copy of a document. Resource ids are copied as
	// plain values; the resources themselves are not.
	Clone func(D) D

	// Manifest lists the resource ids a document references.
	Manifest ManifestFunc[D]

	// Registry resolves resource type tags. Nil uses NewDefaultRegistry.
	Registry *Registry

	// Logger receives debug records. Nil discards them.
	Logger *slog.Logger
}

// StateManager is the undo/redo engine and the single owner of a project's
// current document and its resources. All mutation goes through MakeChange
// or an Edit.
//
// A StateManager is not safe for concurrent use and is not reentrant: an edit
// must be committed or aborted before the next one begins.
type StateManager[D any] struct {
	opts      StateOptions[D]
	history   []D
	index     int
	resources *ResourceStore
	change    Signal[struct{}]
	edit      *Edit[D]
	logger    *slog.Logger
}

// NewStateManager creates an empty manager. Present reports no document
// until LoadBundle or CopyFrom is called.
func NewStateManager[D any](opts StateOptions[D]) *StateManager[D] {
	if opts.Clone == nil {
		panic("sapling: StateOptions.Clone is required")
	}
	if opts.Manifest == nil {
		panic("sapling: StateOptions.Manifest is required")
	}
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.HistoryLimit < 2 {
		opts.HistoryLimit = 2
	}
	if opts.Registry == nil {
		opts.Registry = NewDefaultRegistry()
	}
	logger := orDiscard(opts.Logger)
	resources := NewResourceStore(opts.Registry)
	resources.SetLogger(logger)
	return &StateManager[D]{
		opts:      opts,
		index:     -1,
		resources: resources,
		logger:    logger,
	}
}

// Present returns the document at the history cursor.
func (sm *StateManager[D]) Present() (D, bool) {
	if sm.index < 0 {
		var zero D
		return zero, false
	}
	return sm.history[sm.index], true
}

// Resources returns the manager's resource store. The pointer stays valid
// across LoadBundle and CopyFrom.
func (sm *StateManager[D]) Resources() *ResourceStore {
	return sm.resources
}

// HistoryLimit returns the configured history bound.
func (sm *StateManager[D]) HistoryLimit() int { return sm.opts.HistoryLimit }

// HistoryLen returns the number of retained history entries.
func (sm *StateManager[D]) HistoryLen() int { return len(sm.history) }

// Index returns the history cursor, or -1 when nothing is loaded.
func (sm *StateManager[D]) Index() int { return sm.index }

// CanUndo reports whether Undo would move the cursor.
func (sm *StateManager[D]) CanUndo() bool { return sm.index > 0 }

// CanRedo reports whether Redo would move the cursor.
func (sm *StateManager[D]) CanRedo() bool { return sm.index < len(sm.history)-1 }

// Editing reports whether an edit is open.
func (sm *StateManager[D]) Editing() bool { return sm.edit != nil }

// OnChange registers fn to run whenever the present document or resources
// change. Listeners re-read Present and Resources.
func (sm *StateManager[D]) OnChange(fn func()) CallbackHandle {
	return sm.change.Connect(func(struct{}) { fn() })
}

// Changed notifies change listeners.
func (sm *StateManager[D]) Changed() {
	sm.change.Emit(struct{}{})
}

// LoadBundle replaces the manager's history with the bundle's project and its
// resources with the bundle's resources. The bundle is validated and decoded
// before anything is replaced; on error the previous state is kept.
func (sm *StateManager[D]) LoadBundle(ctx context.Context, b Bundle[D]) error {
	if sm.edit != nil {
		return fmt.Errorf("sapling: load bundle: %w", ErrEditInProgress)
	}
	if err := ValidateBundle(b, sm.opts.Manifest); err != nil {
		return err
	}
	fresh := NewResourceStore(sm.opts.Registry)
	if err := fresh.Load(ctx, b.Resources); err != nil {
		return fmt.Errorf("sapling: load bundle: %w", err)
	}
	sm.resources.entries = fresh.entries
	sm.history = []D{b.Project}
	sm.index = 0
	sm.logger.Debug("bundle loaded", "resources", sm.resources.Len())
	sm.Changed()
	return nil
}

// CopyFrom makes sm an independent clone of other: history, cursor and
// resources are deep-copied. Later edits to either do not affect the other.
func (sm *StateManager[D]) CopyFrom(ctx context.Context, other *StateManager[D]) error {
	if sm.edit != nil || other.edit != nil {
		return fmt.Errorf("sapling: copy state: %w", ErrEditInProgress)
	}
	fresh := NewResourceStore(sm.opts.Registry)
	if err := fresh.CopyFrom(ctx, other.resources); err != nil {
		return fmt.Errorf("sapling: copy state: %w", err)
	}
	history := make([]D, len(other.history))
	for i, d := range other.history {
		history[i] = sm.opts.Clone(d)
	}
	sm.resources.entries = fresh.entries
	sm.history = history
	sm.index = other.index
	sm.logger.Debug("state copied", "history", len(history), "index", sm.index)
	sm.Changed()
	return nil
}

// MakeCheckpoint records an undoable point. The value before the upcoming
// edit is preserved at the previous index, and the present document becomes
// the tip that the edit mutates in place. When the history bound is exceeded
// the oldest entry is evicted and unreachable resources are pruned.
func (sm *StateManager[D]) MakeCheckpoint() error {
	if sm.edit != nil {
		return fmt.Errorf("sapling: checkpoint: %w", ErrEditInProgress)
	}
	if sm.index < 0 {
		return fmt.Errorf("sapling: checkpoint: %w", ErrNoDocument)
	}
	if _, evicted := sm.checkpoint(); evicted {
		sm.PruneResources()
	}
	return nil
}

// checkpoint performs MakeCheckpoint without pruning and returns the clone
// left behind at the previous slot.
func (sm *StateManager[D]) checkpoint() (pre D, evicted bool) {
	sm.history = sm.history[:sm.index+1]
	tip := sm.history[sm.index]
	pre = sm.opts.Clone(tip)
	sm.history[sm.index] = pre
	sm.history = append(sm.history, tip)
	if len(sm.history) > sm.opts.HistoryLimit {
		var zero D
		sm.history[0] = zero
		sm.history = sm.history[1:]
		evicted = true
	} else {
		sm.index++
	}
	sm.logger.Debug("checkpoint", "index", sm.index, "history", len(sm.history), "evicted", evicted)
	return pre, evicted
}

// BeginEdit takes a checkpoint and returns a handle on the tip document.
// Exactly one of Commit or Abort must be called on the handle.
func (sm *StateManager[D]) BeginEdit() (*Edit[D], error) {
	if sm.edit != nil {
		return nil, ErrEditInProgress
	}
	if sm.index < 0 {
		return nil, ErrNoDocument
	}
	prevHistory := make([]D, len(sm.history))
	copy(prevHistory, sm.history)
	prevIndex := sm.index

	pre, evicted := sm.checkpoint()
	// The slot the edit started from must hold the unmutated copy if the
	// edit is rolled back.
	prevHistory[prevIndex] = pre

	e := &Edit[D]{
		sm:          sm,
		doc:         sm.history[sm.index],
		prevHistory: prevHistory,
		prevIndex:   prevIndex,
		evicted:     evicted,
	}
	sm.edit = e
	return e, nil
}

// MakeChange runs action against the tip document inside an edit. On success
// the edit is committed and listeners are notified. If action returns an
// error the checkpoint is rolled back, so history, cursor and present are as
// they were before the call; resources forked by the action stay in the
// store until the next prune.
func (sm *StateManager[D]) MakeChange(ctx context.Context, action func(ctx context.Context, doc D) error) error {
	e, err := sm.BeginEdit()
	if err != nil {
		return fmt.Errorf("sapling: make change: %w", err)
	}
	if err := action(ctx, e.Doc()); err != nil {
		_ = e.Abort()
		return fmt.Errorf("sapling: make change: %w", err)
	}
	return e.Commit()
}

// Undo moves the cursor back one entry. It does nothing at the oldest entry
// or while an edit is open.
func (sm *StateManager[D]) Undo() {
	if sm.edit != nil || !sm.CanUndo() {
		return
	}
	sm.index--
	sm.Changed()
}

// Redo moves the cursor forward one entry. It does nothing at the newest
// entry or while an edit is open.
func (sm *StateManager[D]) Redo() {
	if sm.edit != nil || !sm.CanRedo() {
		return
	}
	sm.index++
	sm.Changed()
}

// MakeBundle returns a self-contained copy of the present document and
// exactly the resources its manifest names.
func (sm *StateManager[D]) MakeBundle(ctx context.Context) (Bundle[D], error) {
	present, ok := sm.Present()
	if !ok {
		return Bundle[D]{}, fmt.Errorf("sapling: make bundle: %w", ErrNoDocument)
	}
	doc := sm.opts.Clone(present)
	res, err := sm.resources.Save(ctx, sm.opts.Manifest(doc))
	if err != nil {
		return Bundle[D]{}, fmt.Errorf("sapling: make bundle: %w", err)
	}
	return Bundle[D]{Project: doc, Resources: res}, nil
}

// PruneResources deletes every resource not referenced by any retained
// history entry. The cost is one manifest call per history entry.
func (sm *StateManager[D]) PruneResources() {
	keep := UnionManifest(sm.history, sm.opts.Manifest)
	debugCheckManifestSize(sm.logger, len(keep))
	removed := sm.resources.Prune(keep)
	sm.logger.Debug("resources pruned", "removed", removed, "kept", sm.resources.Len())
	debugCheckResourceCount(sm.logger, sm.resources.Len())
}

// Edit is an open checkout of the tip document.
type Edit[D any] struct {
	sm          *StateManager[D]
	doc         D
	prevHistory []D
	prevIndex   int
	evicted     bool
	closed      bool
}

// Doc returns the tip document. Mutate it in place; fork resources before
// changing them.
func (e *Edit[D]) Doc() D { return e.doc }

// Commit closes the edit, prunes if the checkpoint evicted an entry, and
// notifies change listeners.
func (e *Edit[D]) Commit() error {
	if e.closed {
		return ErrEditClosed
	}
	e.closed = true
	e.sm.edit = nil
	if e.evicted {
		e.sm.PruneResources()
	}
	e.sm.Changed()
	return nil
}

// Abort closes the edit and restores the history, cursor and present
// document that existed before BeginEdit.
func (e *Edit[D]) Abort() error {
	if e.closed {
		return ErrEditClosed
	}
	e.closed = true
	e.sm.edit = nil
	e.sm.history = e.prevHistory
	e.sm.index = e.prevIndex
	e.sm.logger.Debug("edit aborted", "index", e.sm.index, "history", len(e.sm.history))
	return nil
}
