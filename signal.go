package sapling

// Signal is an ordered list of observers for one kind of notification.
// Observers run synchronously, in registration order, on the goroutine that
// calls Emit. There is no locking; sapling is single-threaded.
type Signal[T any] struct {
	handlers []signalHandler[T]
	nextID   uint32
}

type signalHandler[T any] struct {
	id uint32
	fn func(T)
}

// CallbackHandle allows removing a registered callback.
type CallbackHandle struct {
	id     uint32
	remove func(uint32)
}

// Remove unregisters this callback so it no longer fires. Calling Remove on
// a zero handle or twice is harmless.
func (h CallbackHandle) Remove() {
	if h.remove == nil {
		return
	}
	h.remove(h.id)
}

// Connect registers fn and returns a handle that removes it.
func (s *Signal[T]) Connect(fn func(T)) CallbackHandle {
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, signalHandler[T]{id: id, fn: fn})
	return CallbackHandle{id: id, remove: s.disconnect}
}

// Emit calls every observer with v. Observers added during Emit are not
// called until the next Emit.
func (s *Signal[T]) Emit(v T) {
	if len(s.handlers) == 0 {
		return
	}
	hs := s.handlers
	for i := range hs {
		if hs[i].fn != nil {
			hs[i].fn(v)
		}
	}
}

// Len returns the number of registered observers.
func (s *Signal[T]) Len() int {
	return len(s.handlers)
}

func (s *Signal[T]) disconnect(id uint32) {
	for i := range s.handlers {
		if s.handlers[i].id == id {
			// Copy instead of shifting in place so an Emit already iterating
			// the old slice is not disturbed.
			next := make([]signalHandler[T], 0, len(s.handlers)-1)
			next = append(next, s.handlers[:i]...)
			s.handlers = append(next, s.handlers[i+1:]...)
			return
		}
	}
}
