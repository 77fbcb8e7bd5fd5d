package sapling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ResourceID identifies a resource within one ResourceStore. Ids are decimal
// counters so they stay readable in saved bundles.
type ResourceID string

// ResourceType decodes, duplicates and encodes the instances of one resource
// type. Implementations must make Load(Save(x)) behave like Copy(x), and Copy
// must share no mutable storage with its input.
//
// Handlers may be called from several goroutines at once by the store's bulk
// operations, each with a distinct instance.
type ResourceType interface {
	Load(ctx context.Context, data json.RawMessage) (any, error)
	Copy(ctx context.Context, instance any) (any, error)
	Save(ctx context.Context, instance any) (json.RawMessage, error)
}

// Handler is a ResourceType over a concrete instance type T. Use Register to
// add one to a Registry.
type Handler[T any] struct {
	Load func(ctx context.Context, data json.RawMessage) (T, error)
	Copy func(ctx context.Context, instance T) (T, error)
	Save func(ctx context.Context, instance T) (json.RawMessage, error)
}

type typedHandler[T any] struct {
	tag string
	h   Handler[T]
}

func (t typedHandler[T]) Load(ctx context.Context, data json.RawMessage) (any, error) {
	v, err := t.h.Load(ctx, data)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (t typedHandler[T]) Copy(ctx context.Context, instance any) (any, error) {
	v, ok := instance.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %s got %T", ErrWrongType, t.tag, instance)
	}
	c, err := t.h.Copy(ctx, v)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (t typedHandler[T]) Save(ctx context.Context, instance any) (json.RawMessage, error) {
	v, ok := instance.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %s got %T", ErrWrongType, t.tag, instance)
	}
	return t.h.Save(ctx, v)
}

// Registry maps resource type tags to their handlers. Build one at startup
// and pass it to every store that needs it.
type Registry struct {
	types map[string]ResourceType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]ResourceType)}
}

// NewDefaultRegistry returns a registry with the built-in canvas-datauri and
// atlas-datauri types.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	Register(r, CanvasType, CanvasHandler())
	Register(r, AtlasType, AtlasHandler())
	return r
}

// RegisterType adds or replaces the handler for tag.
func (r *Registry) RegisterType(tag string, t ResourceType) {
	r.types[tag] = t
}

// Register adds a typed handler for tag to r.
func Register[T any](r *Registry, tag string, h Handler[T]) {
	r.RegisterType(tag, typedHandler[T]{tag: tag, h: h})
}

// Lookup returns the handler for tag.
func (r *Registry) Lookup(tag string) (ResourceType, bool) {
	t, ok := r.types[tag]
	return t, ok
}

// Tags returns the registered type tags in sorted order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.types))
	for tag := range r.types {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ResourceData is the persisted form of one resource.
type ResourceData struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ResourceBundle maps resource ids to their persisted form.
type ResourceBundle map[ResourceID]ResourceData

type resourceEntry struct {
	tag      string
	instance any
}

// ResourceStore holds the decoded binary assets a project depends on,
// independent of undo history. Instances stored here are shared by every
// history entry that names their id, so they must be forked before being
// mutated.
type ResourceStore struct {
	registry *Registry
	entries  map[ResourceID]resourceEntry
	logger   *slog.Logger
}

// NewResourceStore creates an empty store that resolves type tags through
// reg. A nil reg uses NewDefaultRegistry.
func NewResourceStore(reg *Registry) *ResourceStore {
	if reg == nil {
		reg = NewDefaultRegistry()
	}
	return &ResourceStore{
		registry: reg,
		entries:  make(map[ResourceID]resourceEntry),
		logger:   discardLogger,
	}
}

// SetLogger replaces the store's logger. A nil logger discards output.
func (s *ResourceStore) SetLogger(l *slog.Logger) {
	if l == nil {
		l = discardLogger
	}
	s.logger = l
}

// Registry returns the registry the store resolves type tags through.
func (s *ResourceStore) Registry() *Registry {
	return s.registry
}

// GenerateID returns the lowest decimal id not currently held.
func (s *ResourceStore) GenerateID() ResourceID {
	for n := 0; ; n++ {
		id := ResourceID(strconv.Itoa(n))
		if _, ok := s.entries[id]; !ok {
			return id
		}
	}
}

// Get returns the instance stored at id.
func (s *ResourceStore) Get(id ResourceID) (any, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.instance, true
}

// GetType returns the type tag of the resource stored at id.
func (s *ResourceStore) GetType(id ResourceID) (string, bool) {
	e, ok := s.entries[id]
	return e.tag, ok
}

// Lookup returns the instance at id if it exists and has type T.
func Lookup[T any](s *ResourceStore, id ResourceID) (T, bool) {
	var zero T
	v, ok := s.Get(id)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Set stores instance at id under the given type tag, replacing any
// existing entry.
func (s *ResourceStore) Set(id ResourceID, instance any, tag string) {
	s.entries[id] = resourceEntry{tag: tag, instance: instance}
}

// Add stores instance under a freshly generated id and returns that id.
func (s *ResourceStore) Add(instance any, tag string) ResourceID {
	id := s.GenerateID()
	s.Set(id, instance, tag)
	return id
}

// Fork copies the resource at id through its type's handler and stores the
// copy under a new id. Mutate the returned instance, never the original.
func (s *ResourceStore) Fork(ctx context.Context, id ResourceID) (ResourceID, any, error) {
	e, ok := s.entries[id]
	if !ok {
		return "", nil, fmt.Errorf("sapling: fork %q: %w", id, ErrUnknownResource)
	}
	rt, err := s.handler(e.tag)
	if err != nil {
		return "", nil, fmt.Errorf("sapling: fork %q: %w", id, err)
	}
	inst, err := rt.Copy(ctx, e.instance)
	if err != nil {
		return "", nil, fmt.Errorf("sapling: fork %q (%s): %w", id, e.tag, err)
	}
	newID := s.Add(inst, e.tag)
	s.logger.Debug("resource forked", "from", id, "to", newID, "type", e.tag)
	return newID, inst, nil
}

// Prune deletes every entry whose id is not in keep.
func (s *ResourceStore) Prune(keep map[ResourceID]struct{}) int {
	removed := 0
	for id := range s.entries {
		if _, ok := keep[id]; !ok {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (s *ResourceStore) Clear() {
	clear(s.entries)
}

// Len returns the number of stored resources.
func (s *ResourceStore) Len() int {
	return len(s.entries)
}

// IDs returns the stored ids in ascending numeric order. Non-numeric ids
// sort after numeric ones, lexically.
func (s *ResourceStore) IDs() []ResourceID {
	ids := make([]ResourceID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// CopyFrom deep-copies every entry of other into s, preserving ids. All
// copies finish before s is modified, so a failed copy leaves s untouched.
// Every tag is resolved before any copy starts.
func (s *ResourceStore) CopyFrom(ctx context.Context, other *ResourceStore) error {
	ids := other.IDs()
	handlers := make([]ResourceType, len(ids))
	for i, id := range ids {
		rt, err := s.handler(other.entries[id].tag)
		if err != nil {
			return fmt.Errorf("sapling: copy %q: %w", id, err)
		}
		handlers[i] = rt
	}

	copies := make([]any, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		e, rt := other.entries[id], handlers[i]
		g.Go(func() error {
			c, err := rt.Copy(ctx, e.instance)
			if err != nil {
				return fmt.Errorf("sapling: copy %q (%s): %w", id, e.tag, err)
			}
			copies[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, id := range ids {
		s.entries[id] = resourceEntry{tag: other.entries[id].tag, instance: copies[i]}
	}
	return nil
}

// Save encodes exactly the requested ids. Ids the store does not hold are
// omitted.
func (s *ResourceStore) Save(ctx context.Context, ids []ResourceID) (ResourceBundle, error) {
	type job struct {
		id ResourceID
		e  resourceEntry
		rt ResourceType
	}
	var jobs []job
	seen := make(map[ResourceID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		e, ok := s.entries[id]
		if !ok {
			continue
		}
		rt, err := s.handler(e.tag)
		if err != nil {
			return nil, fmt.Errorf("sapling: save %q: %w", id, err)
		}
		jobs = append(jobs, job{id: id, e: e, rt: rt})
	}

	out := make([]json.RawMessage, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			data, err := j.rt.Save(ctx, j.e.instance)
			if err != nil {
				return fmt.Errorf("sapling: save %q (%s): %w", j.id, j.e.tag, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle := make(ResourceBundle, len(jobs))
	for i, j := range jobs {
		bundle[j.id] = ResourceData{Type: j.e.tag, Data: out[i]}
	}
	return bundle, nil
}

// Load decodes every entry of bundle and stores it at its id, replacing any
// existing resource with the same id. Other ids are left alone. Nothing is
// stored unless every entry decodes, and nothing is decoded unless every
// type is registered.
func (s *ResourceStore) Load(ctx context.Context, bundle ResourceBundle) error {
	ids := make([]ResourceID, 0, len(bundle))
	for id := range bundle {
		ids = append(ids, id)
	}
	sortIDs(ids)

	handlers := make([]ResourceType, len(ids))
	for i, id := range ids {
		rt, err := s.handler(bundle[id].Type)
		if err != nil {
			return fmt.Errorf("sapling: load %q: %w", id, err)
		}
		handlers[i] = rt
	}

	decoded := make([]any, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		rd, rt := bundle[id], handlers[i]
		g.Go(func() error {
			inst, err := rt.Load(ctx, rd.Data)
			if err != nil {
				return fmt.Errorf("sapling: load %q (%s): %w", id, rd.Type, err)
			}
			decoded[i] = inst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, id := range ids {
		s.entries[id] = resourceEntry{tag: bundle[id].Type, instance: decoded[i]}
	}
	return nil
}

func (s *ResourceStore) handler(tag string) (ResourceType, error) {
	rt, ok := s.registry.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, tag)
	}
	return rt, nil
}

func sortIDs(ids []ResourceID) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(string(ids[i]))
		b, errB := strconv.Atoi(string(ids[j]))
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
}
