package project

import (
	"context"
	"fmt"

	"github.com/phanxgames/sapling"
)

// TileSize is the edge length of one tileset cell in pixels.
const TileSize = 8

// Built-in tiles of the default tileset.
const (
	TileBlank = iota
	TileBrick
	TileAvatar
	TileSign
)

var defaultTiles = [...][TileSize]string{
	TileBlank: {
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
	},
	TileBrick: {
		"########",
		"#...#...",
		"########",
		"..#...#.",
		"########",
		"#...#...",
		"########",
		"..#...#.",
	},
	TileAvatar: {
		"...##...",
		"...##...",
		"..####..",
		".#.##.#.",
		"...##...",
		"..#..#..",
		"..#..#..",
		"........",
	},
	TileSign: {
		"........",
		".######.",
		".#....#.",
		".######.",
		"...##...",
		"...##...",
		"...##...",
		"........",
	},
}

// NewTileset draws the built-in tiles in a row, white on transparent, so
// they can be tinted by palette colours.
func NewTileset() *sapling.Canvas {
	c := sapling.NewCanvas(TileSize*len(defaultTiles), TileSize)
	for i, rows := range defaultTiles {
		for y, row := range rows {
			for x, ch := range row {
				if ch == '#' {
					c.Set(i*TileSize+x, y, sapling.ColorWhite)
				}
			}
		}
	}
	return c
}

// New builds the starting bundle for a fresh project: the default tileset,
// one walled room, an avatar and a sign. reg must know CanvasType; nil uses
// sapling.NewDefaultRegistry.
func New(ctx context.Context, reg *sapling.Registry) (sapling.Bundle[*Project], error) {
	store := sapling.NewResourceStore(reg)
	tileset := store.Add(NewTileset(), sapling.CanvasType)
	resources, err := store.Save(ctx, []sapling.ResourceID{tileset})
	if err != nil {
		return sapling.Bundle[*Project]{}, fmt.Errorf("project: new: %w", err)
	}

	room := NewRoom(0, 0)
	for i := range RoomSize {
		for _, c := range [][2]int{{i, 0}, {i, RoomSize - 1}, {0, i}, {RoomSize - 1, i}} {
			room.Tilemap[c[1]][c[0]] = TileBrick
			room.Wallmap[c[1]][c[0]] = 1
		}
	}
	room.Events = []*Event{
		{
			ID:       0,
			Position: [2]int{RoomSize / 2, RoomSize / 2},
			Fields: []sapling.Field{
				{Key: FieldTitle, Type: TypeText, Data: "avatar"},
				{Key: FieldIsPlayer, Type: TypeTag, Data: true},
				{Key: FieldGraphic, Type: TypeJSON, Data: float64(TileAvatar)},
			},
		},
		{
			ID:       1,
			Position: [2]int{RoomSize/2 + 2, RoomSize / 2},
			Fields: []sapling.Field{
				{Key: FieldTitle, Type: TypeText, Data: "sign"},
				{Key: FieldSolid, Type: TypeTag, Data: true},
				{Key: FieldGraphic, Type: TypeJSON, Data: float64(TileSign)},
				{Key: FieldSay, Type: TypeDialogue, Data: "welcome to ~~sapling~~!{pg}use the ##arrow keys## to move."},
			},
		},
	}

	p := &Project{
		Tileset: tileset,
		Palettes: []Palette{
			{ID: 0, Colors: [3]string{"#1b1c33", "#5c6a9e", "#f2e8c4"}},
		},
		Rooms: []*Room{room},
	}
	return sapling.Bundle[*Project]{Project: p, Resources: resources}, nil
}
