// Package project defines the reference project document edited through a
// sapling.StateManager: rooms of tiles and walls, colour palettes, and
// events annotated with typed fields.
package project

import (
	"slices"

	"github.com/phanxgames/sapling"
)

// RoomSize is the width and height of every room, in tiles.
const RoomSize = 16

// ManifestPaths are gjson paths equivalent to Manifest, for tools that work
// on raw bundle JSON.
var ManifestPaths = []string{
	"tileset",
	`rooms.#.events.#.fields.#(type=="file")#.data`,
}

// Project is the document root.
type Project struct {
	Tileset  sapling.ResourceID `json:"tileset"`
	Palettes []Palette          `json:"palettes"`
	Rooms    []*Room            `json:"rooms"`
}

// Palette is a background, tile and sprite colour, stored as hex strings.
type Palette struct {
	ID     int       `json:"id"`
	Colors [3]string `json:"colors"`
}

// Color returns palette entry i, or magenta if it does not parse.
func (p Palette) Color(i int) sapling.Color {
	if i < 0 || i >= len(p.Colors) {
		return sapling.Color{R: 1, B: 1, A: 1}
	}
	c, err := sapling.ParseHexColor(p.Colors[i])
	if err != nil {
		return sapling.Color{R: 1, B: 1, A: 1}
	}
	return c
}

// Room is one RoomSize x RoomSize screen.
type Room struct {
	ID      int      `json:"id"`
	Palette int      `json:"palette"`
	Tilemap [][]int  `json:"tilemap"`
	Wallmap [][]int  `json:"wallmap"`
	Events  []*Event `json:"events"`
}

// NewRoom returns an empty room.
func NewRoom(id, palette int) *Room {
	r := &Room{ID: id, Palette: palette}
	r.Tilemap = make([][]int, RoomSize)
	r.Wallmap = make([][]int, RoomSize)
	for y := range RoomSize {
		r.Tilemap[y] = make([]int, RoomSize)
		r.Wallmap[y] = make([]int, RoomSize)
	}
	return r
}

// InBounds reports whether (x, y) is a cell of the room.
func InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < RoomSize && y < RoomSize
}

// Tile returns the tile index at (x, y), or 0 outside the room.
func (r *Room) Tile(x, y int) int {
	if y < 0 || y >= len(r.Tilemap) || x < 0 || x >= len(r.Tilemap[y]) {
		return 0
	}
	return r.Tilemap[y][x]
}

// IsWall reports whether (x, y) blocks movement. Cells outside the room
// are walls.
func (r *Room) IsWall(x, y int) bool {
	if !InBounds(x, y) {
		return true
	}
	if y >= len(r.Wallmap) || x >= len(r.Wallmap[y]) {
		return false
	}
	return r.Wallmap[y][x] != 0
}

// EventsAt returns the events positioned on (x, y) in list order.
func (r *Room) EventsAt(x, y int) []*Event {
	var out []*Event
	for _, e := range r.Events {
		if e.Position == [2]int{x, y} {
			out = append(out, e)
		}
	}
	return out
}

// RemoveEvent deletes the event with id from the room.
func (r *Room) RemoveEvent(id int) bool {
	for i, e := range r.Events {
		if e.ID == id {
			r.Events = slices.Delete(r.Events, i, i+1)
			return true
		}
	}
	return false
}

// Room returns the room with id, or nil.
func (p *Project) Room(id int) *Room {
	for _, r := range p.Rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Palette returns the palette with id, or the first palette.
func (p *Project) Palette(id int) Palette {
	for _, pal := range p.Palettes {
		if pal.ID == id {
			return pal
		}
	}
	if len(p.Palettes) > 0 {
		return p.Palettes[0]
	}
	return Palette{Colors: [3]string{"#000000", "#ffffff", "#ffffff"}}
}

// FindEvent returns the event with id and the room holding it.
func (p *Project) FindEvent(id int) (*Room, *Event) {
	for _, r := range p.Rooms {
		for _, e := range r.Events {
			if e.ID == id {
				return r, e
			}
		}
	}
	return nil, nil
}

// EventAt returns the first event at (x, y) in room, or nil.
func (p *Project) EventAt(room, x, y int) *Event {
	r := p.Room(room)
	if r == nil {
		return nil
	}
	if evs := r.EventsAt(x, y); len(evs) > 0 {
		return evs[0]
	}
	return nil
}

// AvatarEvent returns the first event tagged is-player.
func (p *Project) AvatarEvent() (*Room, *Event) {
	for _, r := range p.Rooms {
		for _, e := range r.Events {
			if e.Tagged(FieldIsPlayer) {
				return r, e
			}
		}
	}
	return nil, nil
}

// NextEventID returns an id one greater than any in use.
func (p *Project) NextEventID() int {
	next := 0
	for _, r := range p.Rooms {
		for _, e := range r.Events {
			if e.ID >= next {
				next = e.ID + 1
			}
		}
	}
	return next
}

// Clone deep-copies p. Resource ids are copied as values.
func Clone(p *Project) *Project {
	if p == nil {
		return nil
	}
	c := &Project{
		Tileset:  p.Tileset,
		Palettes: slices.Clone(p.Palettes),
		Rooms:    make([]*Room, len(p.Rooms)),
	}
	for i, r := range p.Rooms {
		c.Rooms[i] = r.clone()
	}
	return c
}

func (r *Room) clone() *Room {
	c := &Room{
		ID:      r.ID,
		Palette: r.Palette,
		Tilemap: cloneGrid(r.Tilemap),
		Wallmap: cloneGrid(r.Wallmap),
		Events:  make([]*Event, len(r.Events)),
	}
	for i, e := range r.Events {
		c.Events[i] = e.Clone()
	}
	return c
}

func cloneGrid(g [][]int) [][]int {
	if g == nil {
		return nil
	}
	out := make([][]int, len(g))
	for i, row := range g {
		out[i] = slices.Clone(row)
	}
	return out
}

// Manifest lists the tileset and every file field's resource id.
func Manifest(p *Project) []sapling.ResourceID {
	var ids []sapling.ResourceID
	if p.Tileset != "" {
		ids = append(ids, p.Tileset)
	}
	for _, r := range p.Rooms {
		for _, e := range r.Events {
			for _, f := range e.Fields {
				if f.Type != TypeFile {
					continue
				}
				if s, ok := f.Data.(string); ok && s != "" {
					ids = append(ids, sapling.ResourceID(s))
				}
			}
		}
	}
	return ids
}

// StateOptions returns manager options for projects.
func StateOptions(reg *sapling.Registry) sapling.StateOptions[*Project] {
	return sapling.StateOptions[*Project]{
		Clone:    Clone,
		Manifest: Manifest,
		Registry: reg,
	}
}
