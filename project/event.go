package project

import (
	"slices"

	"github.com/phanxgames/sapling"
)

// Field types.
const (
	TypeText     = "text"
	TypeDialogue = "dialogue"
	TypeScript   = "script"
	TypeTag      = "tag"
	TypeLocation = "location"
	TypeFile     = "file"
	TypeJSON     = "json"
)

// Field keys the player runtime understands.
const (
	FieldIsPlayer = "is-player"
	FieldSolid    = "solid"
	FieldOneTime  = "one-time"
	FieldGraphic  = "graphic"
	FieldSay      = "say"
	FieldTouch    = "touch"
	FieldExit     = "exit"
	FieldTitle    = "title"
)

// Event is an object placed in a room. Behaviour comes entirely from its
// fields.
type Event struct {
	ID       int             `json:"id"`
	Position [2]int          `json:"position"`
	Fields   []sapling.Field `json:"fields"`
}

// Location is the data of a location field.
type Location struct {
	Room int `json:"room"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

var _ sapling.FieldHolder = (*Event)(nil)

// EventID implements sapling.FieldHolder.
func (e *Event) EventID() int { return e.ID }

// Field returns the first field named key.
func (e *Event) Field(key string) (sapling.Field, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return sapling.Field{}, false
}

// SetField replaces the first field named f.Key or appends f.
func (e *Event) SetField(f sapling.Field) {
	for i := range e.Fields {
		if e.Fields[i].Key == f.Key {
			e.Fields[i] = f
			return
		}
	}
	e.Fields = append(e.Fields, f)
}

// Fields implements sapling.FieldHolder.
func (e *Event) Fields() []sapling.Field { return e.Fields }

// RemoveField deletes every field named key.
func (e *Event) RemoveField(key string) bool {
	n := len(e.Fields)
	e.Fields = slices.DeleteFunc(e.Fields, func(f sapling.Field) bool { return f.Key == key })
	return len(e.Fields) != n
}

// Tagged reports whether the event has a field named key of any type.
func (e *Event) Tagged(key string) bool {
	_, ok := e.Field(key)
	return ok
}

// Text returns the string data of field key.
func (e *Event) Text(key string) (string, bool) {
	f, ok := e.Field(key)
	if !ok {
		return "", false
	}
	s, ok := f.Data.(string)
	return s, ok
}

// Location decodes a location field. Data may be a Location or the
// map[string]any produced by JSON decoding and scripts.
func (e *Event) Location(key string) (Location, bool) {
	f, ok := e.Field(key)
	if !ok {
		return Location{}, false
	}
	switch d := f.Data.(type) {
	case Location:
		return d, true
	case map[string]any:
		room, ok1 := number(d["room"])
		x, ok2 := number(d["x"])
		y, ok3 := number(d["y"])
		return Location{Room: room, X: x, Y: y}, ok1 && ok2 && ok3
	}
	return Location{}, false
}

// Graphic returns the tile index drawn for the event.
func (e *Event) Graphic() (int, bool) {
	f, ok := e.Field(FieldGraphic)
	if !ok {
		return 0, false
	}
	return number(f.Data)
}

// Clone deep-copies e.
func (e *Event) Clone() *Event {
	c := &Event{ID: e.ID, Position: e.Position, Fields: make([]sapling.Field, len(e.Fields))}
	for i, f := range e.Fields {
		c.Fields[i] = sapling.Field{Key: f.Key, Type: f.Type, Data: sapling.CloneValue(f.Data)}
	}
	return c
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
